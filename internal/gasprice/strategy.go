package gasprice

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/bcnmy/relayer-node/internal/metrics"
	"github.com/bcnmy/relayer-node/internal/network"
)

const (
	DefaultUpdateFrequency = 60 * time.Second
	// fastestOverFastPercent keeps the FAST tier far enough above DEFAULT to replace it.
	fastestOverFastPercent = 111
)

var (
	defaultMediumGasPrice = big.NewInt(20_000_000_000)
	defaultFastGasPrice   = big.NewInt(30_000_000_000)
)

// Snapshot holds freshly fetched tiers: Medium is the standard price, Fast the one used by
// default and Fastest the one used when a transaction asks for speed.
type Snapshot struct {
	Medium  Price
	Fast    Price
	Fastest Price
}

// FetchFunc pulls a price snapshot from one source.
type FetchFunc func(ctx context.Context) (Snapshot, error)

// Strategy is how the prices of one chain are obtained and bounded.
type Strategy struct {
	Fetch             FetchFunc
	MinGasPrice       *big.Int
	MaxGasPrice       *big.Int
	BaseFeeMultiplier float64
}

// Strategies maps a chain id to its pricing strategy.
type Strategies map[uint64]Strategy

// FirstOf tries each fetcher in order and returns the first snapshot obtained.
func FirstOf(fetchers ...FetchFunc) FetchFunc {
	return func(ctx context.Context) (Snapshot, error) {
		var errs []error
		for _, fetch := range fetchers {
			snapshot, err := fetch(ctx)
			if err == nil {
				return snapshot, nil
			}
			errs = append(errs, err)
		}
		return Snapshot{}, errors.Join(errs...)
	}
}

// NetworkFetcher builds a snapshot from the node's own price suggestion.
func NetworkFetcher(client network.Client, eip1559 bool) FetchFunc {
	return func(ctx context.Context) (Snapshot, error) {
		if eip1559 {
			maxFee, tip, err := client.GetEIP1559Fees(ctx)
			if err != nil {
				return Snapshot{}, err
			}
			price := DynamicPrice(maxFee, tip)
			return Snapshot{Medium: price, Fast: price, Fastest: price}, nil
		}

		gasPrice, err := client.GetGasPrice(ctx)
		if err != nil {
			return Snapshot{}, err
		}
		price := LegacyPrice(gasPrice)
		return Snapshot{Medium: price, Fast: price, Fastest: price}, nil
	}
}

// Refresher periodically writes the tiers of one chain into the oracle cache.
type Refresher struct {
	oracle    *Oracle
	strategy  Strategy
	frequency time.Duration
	logger    *zap.Logger
}

func NewRefresher(oracle *Oracle, strategy Strategy, frequency time.Duration, logger *zap.Logger) *Refresher {
	if frequency <= 0 {
		frequency = DefaultUpdateFrequency
	}
	return &Refresher{
		oracle:    oracle,
		strategy:  strategy,
		frequency: frequency,
		logger:    logger,
	}
}

func (r *Refresher) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.frequency)
	defer ticker.Stop()

	for {
		if err := r.Refresh(ctx); err != nil {
			r.logger.Error("failed to refresh gas prices", zap.Uint64("chain_id", r.oracle.ChainID()), zap.Error(err))
		}

		select {
		case <-ctx.Done():
			r.logger.Info("context cancelled, shutting down gas price refresher", zap.Uint64("chain_id", r.oracle.ChainID()))
			return nil
		case <-ticker.C:
		}
	}
}

// Refresh fetches, bounds and caches one snapshot. When every source fails the
// default prices are cached instead.
func (r *Refresher) Refresh(ctx context.Context) error {
	var snapshot Snapshot
	if r.strategy.Fetch != nil {
		fetched, err := r.strategy.Fetch(ctx)
		if err != nil {
			r.logger.Warn("failed to fetch gas prices, using defaults",
				zap.Uint64("chain_id", r.oracle.ChainID()), zap.Error(err))
		} else {
			snapshot = fetched
		}
	}

	snapshot = r.normalize(snapshot)

	tiers := map[Tier]Price{
		TierDefault: snapshot.Fast,
		TierMedium:  snapshot.Medium,
		TierFast:    snapshot.Fastest,
	}
	for _, tier := range Tiers {
		price := tiers[tier]
		if err := r.oracle.SetGasPrice(ctx, tier, price); err != nil {
			return fmt.Errorf("failed to set %s gas price: %w", tier, err)
		}
		r.report(tier, price)
	}

	r.logger.Debug("gas prices refreshed",
		zap.Uint64("chain_id", r.oracle.ChainID()),
		zap.Stringer("medium", snapshot.Medium),
		zap.Stringer("fast", snapshot.Fast),
		zap.Stringer("fastest", snapshot.Fastest))
	return nil
}

func (r *Refresher) normalize(s Snapshot) Snapshot {
	if s.Medium.IsZero() {
		s.Medium = LegacyPrice(new(big.Int).Set(defaultMediumGasPrice))
	}
	if s.Fast.IsZero() {
		s.Fast = LegacyPrice(new(big.Int).Set(defaultFastGasPrice))
	}

	if r.oracle.IsEIP1559() {
		s.Medium = r.toDynamic(s.Medium)
		s.Fast = r.toDynamic(s.Fast)
		s.Fastest = r.toDynamic(s.Fastest)
		s.Medium = r.applyBaseFeeMultiplier(s.Medium)
		s.Fast = r.applyBaseFeeMultiplier(s.Fast)
		s.Fastest = r.applyBaseFeeMultiplier(s.Fastest)
	} else {
		s.Medium = toLegacy(s.Medium)
		s.Fast = toLegacy(s.Fast)
		s.Fastest = toLegacy(s.Fastest)
	}

	s.Medium = r.clamp(s.Medium)
	s.Fast = r.clamp(s.Fast)
	s.Fastest = r.clamp(atLeast(s.Fastest, scale(s.Fast, fastestOverFastPercent)))
	return s
}

func (r *Refresher) toDynamic(p Price) Price {
	if p.IsZero() || p.IsDynamicFee() {
		return p
	}
	// a scalar price is used as both fee legs
	return DynamicPrice(new(big.Int).Set(p.GasPrice), new(big.Int).Set(p.GasPrice))
}

func (r *Refresher) applyBaseFeeMultiplier(p Price) Price {
	if !p.IsDynamicFee() {
		return p
	}
	return DynamicPrice(multiplyFloat(p.MaxFeePerGas, r.strategy.BaseFeeMultiplier), p.MaxPriorityFeePerGas)
}

func toLegacy(p Price) Price {
	if p.IsDynamicFee() {
		return LegacyPrice(p.MaxFeePerGas)
	}
	return p
}

func (r *Refresher) clamp(p Price) Price {
	if p.IsDynamicFee() {
		return DynamicPrice(r.clampWei(p.MaxFeePerGas), r.clampWei(p.MaxPriorityFeePerGas))
	}
	return LegacyPrice(r.clampWei(p.GasPrice))
}

func (r *Refresher) clampWei(v *big.Int) *big.Int {
	if r.strategy.MinGasPrice != nil && v.Cmp(r.strategy.MinGasPrice) < 0 {
		return new(big.Int).Set(r.strategy.MinGasPrice)
	}
	if r.strategy.MaxGasPrice != nil && r.strategy.MaxGasPrice.Sign() > 0 && v.Cmp(r.strategy.MaxGasPrice) > 0 {
		return new(big.Int).Set(r.strategy.MaxGasPrice)
	}
	return v
}

func (r *Refresher) report(tier Tier, p Price) {
	v := p.GasPrice
	if p.IsDynamicFee() {
		v = p.MaxFeePerGas
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	metrics.SetGasPrice(r.oracle.ChainID(), string(tier), f)
}

// atLeast returns p raised per leg to floor. A zero p takes floor.
func atLeast(p, floor Price) Price {
	if p.IsZero() {
		return floor
	}
	if p.IsDynamicFee() != floor.IsDynamicFee() {
		return p
	}
	return MaxPrice(p, floor)
}

// scale multiplies every leg of p by percent/100, rounding up.
func scale(p Price, percent int64) Price {
	s := func(v *big.Int) *big.Int {
		out := new(big.Int).Mul(v, big.NewInt(percent))
		out.Add(out, big.NewInt(99))
		return out.Div(out, big.NewInt(100))
	}
	if p.IsDynamicFee() {
		return DynamicPrice(s(p.MaxFeePerGas), s(p.MaxPriorityFeePerGas))
	}
	return LegacyPrice(s(p.GasPrice))
}

// multiplyFloat multiplies v by f, truncating.
func multiplyFloat(v *big.Int, f float64) *big.Int {
	if f <= 0 || f == 1 {
		return v
	}
	out, _ := new(big.Float).Mul(new(big.Float).SetInt(v), big.NewFloat(f)).Int(nil)
	return out
}
