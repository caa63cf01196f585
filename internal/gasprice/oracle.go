package gasprice

import (
	"context"
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"github.com/bcnmy/relayer-node/internal/cache"
	"github.com/bcnmy/relayer-node/internal/network"
)

// Oracle serves the cached price tiers of one chain.
type Oracle struct {
	chainID uint64
	eip1559 bool
	cache   cache.Cache
	client  network.Client
	logger  *zap.Logger
}

func NewOracle(chainID uint64, eip1559 bool, c cache.Cache, client network.Client, logger *zap.Logger) *Oracle {
	return &Oracle{
		chainID: chainID,
		eip1559: eip1559,
		cache:   c,
		client:  client,
		logger:  logger,
	}
}

func (o *Oracle) ChainID() uint64 {
	return o.chainID
}

// IsEIP1559 reports whether the chain is priced with fee pairs.
func (o *Oracle) IsEIP1559() bool {
	return o.eip1559
}

// GetGasPrice returns the cached price of tier. On a miss, legacy chains fall back to
// eth_gasPrice and EIP-1559 chains to a live fee estimate.
func (o *Oracle) GetGasPrice(ctx context.Context, tier Tier) (Price, error) {
	if o.eip1559 {
		maxFeeKey, tipKey := maxFeePerGasKey(o.chainID, tier), maxPriorityFeePerGasKey(o.chainID, tier)
		values, err := o.cache.GetMany(ctx, maxFeeKey, tipKey)
		if err != nil {
			return Price{}, fmt.Errorf("failed to get eip1559 fees from cache: %w", err)
		}
		maxFee, maxFeeFound := o.parseCached(maxFeeKey, values[maxFeeKey])
		tip, tipFound := o.parseCached(tipKey, values[tipKey])
		if maxFeeFound && tipFound {
			return DynamicPrice(maxFee, tip), nil
		}

		o.logger.Debug("eip1559 fees missing in cache, estimating from network",
			zap.Uint64("chain_id", o.chainID), zap.String("tier", string(tier)))
		maxFee, tip, err = o.client.GetEIP1559Fees(ctx)
		if err != nil {
			return Price{}, fmt.Errorf("failed to get eip1559 fees from network: %w", err)
		}
		return DynamicPrice(maxFee, tip), nil
	}

	gasPrice, found, err := o.getCached(ctx, gasPriceKey(o.chainID, tier))
	if err != nil {
		return Price{}, err
	}
	if found {
		return LegacyPrice(gasPrice), nil
	}

	gasPrice, err = o.client.GetGasPrice(ctx)
	if err != nil {
		return Price{}, fmt.Errorf("failed to get gas price from network: %w", err)
	}
	return LegacyPrice(gasPrice), nil
}

// GetNetworkGasPrice returns the live price in the pricing model of the chain.
func (o *Oracle) GetNetworkGasPrice(ctx context.Context) (Price, error) {
	if o.eip1559 {
		maxFee, tip, err := o.client.GetEIP1559Fees(ctx)
		if err != nil {
			return Price{}, fmt.Errorf("failed to get eip1559 fees from network: %w", err)
		}
		return DynamicPrice(maxFee, tip), nil
	}

	gasPrice, err := o.client.GetGasPrice(ctx)
	if err != nil {
		return Price{}, fmt.Errorf("failed to get gas price from network: %w", err)
	}
	return LegacyPrice(gasPrice), nil
}

// SetGasPrice caches price under tier. Both fee legs of a dynamic price are written together.
func (o *Oracle) SetGasPrice(ctx context.Context, tier Tier, price Price) error {
	if price.IsDynamicFee() {
		err := o.cache.SetMany(ctx, map[string]string{
			maxFeePerGasKey(o.chainID, tier):         price.MaxFeePerGas.String(),
			maxPriorityFeePerGasKey(o.chainID, tier): price.MaxPriorityFeePerGas.String(),
		})
		if err != nil {
			return fmt.Errorf("failed to cache eip1559 fees: %w", err)
		}
		return nil
	}

	if price.GasPrice == nil {
		return fmt.Errorf("empty gas price for tier %s", tier)
	}
	if err := o.cache.Set(ctx, gasPriceKey(o.chainID, tier), price.GasPrice.String()); err != nil {
		return fmt.Errorf("failed to cache gas price: %w", err)
	}
	return nil
}

func (o *Oracle) GetBumpedUpGasPrice(past Price, bumpPercent uint64) (Price, error) {
	return BumpGasPrice(past, bumpPercent)
}

func (o *Oracle) getCached(ctx context.Context, key string) (*big.Int, bool, error) {
	value, found, err := o.cache.Get(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get %s from cache: %w", key, err)
	}
	if !found {
		return nil, false, nil
	}
	parsed, ok := o.parseCached(key, value)
	return parsed, ok, nil
}

func (o *Oracle) parseCached(key, value string) (*big.Int, bool) {
	if value == "" {
		return nil, false
	}
	parsed, err := ParseWei(value)
	if err != nil {
		o.logger.Warn("ignoring malformed cached gas price", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return parsed, true
}

func gasPriceKey(chainID uint64, tier Tier) string {
	return fmt.Sprintf("GasPrice_%d_%s", chainID, tier)
}

func maxFeePerGasKey(chainID uint64, tier Tier) string {
	return fmt.Sprintf("MaxFeeGas_%d_%s", chainID, tier)
}

func maxPriorityFeePerGasKey(chainID uint64, tier Tier) string {
	return fmt.Sprintf("MaxPriorityFeeGas_%d_%s", chainID, tier)
}
