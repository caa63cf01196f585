package relayer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bcnmy/relayer-node/internal/gasprice"
	"github.com/bcnmy/relayer-node/internal/metrics"
	"github.com/bcnmy/relayer-node/internal/relay"
)

var weiPerEther = new(big.Rat).SetInt(big.NewInt(1_000_000_000_000_000_000))

// arbitrumChains use the second gas limit of the funding gas limit map.
var arbitrumChains = map[uint64]struct{}{
	42161:  {},
	421611: {},
}

// FundRelayers tops up every listed relayer whose balance is below the funding threshold with
// a plain transfer from the owner account.
func (m *Manager) FundRelayers(ctx context.Context, addresses []string) error {
	if m.sender == nil {
		return errors.New("no transaction sender configured for funding")
	}

	m.fundLock.Lock()
	defer m.fundLock.Unlock()

	var errs []error
	for _, address := range addresses {
		address = relay.NormalizeAddress(address)
		if !m.hasBalanceBelowThreshold(address) {
			m.logger.Info("relayer has sufficient funds", zap.String("address", address))
			continue
		}

		if err := m.fund(ctx, address); err != nil {
			metrics.IncFunding(m.opts.ChainID, false)
			errs = append(errs, fmt.Errorf("failed to fund relayer %s: %w", address, err))
			continue
		}
		metrics.IncFunding(m.opts.ChainID, true)
	}

	return errors.Join(errs...)
}

func (m *Manager) fund(ctx context.Context, address string) error {
	value, err := ParseEther(m.opts.FundingRelayerAmount)
	if err != nil {
		return err
	}

	gasLimit := m.fundingGasLimit()
	owner := m.owner.GetPublicKey()

	ownerNonce, err := m.nonces.GetNonce(ctx, owner, false)
	if err != nil {
		return fmt.Errorf("failed to get owner nonce: %w", err)
	}
	price, err := m.gas.GetGasPrice(ctx, gasprice.TierDefault)
	if err != nil {
		return fmt.Errorf("failed to get gas price: %w", err)
	}

	raw := relay.RawTransaction{
		From:     owner,
		To:       address,
		Value:    gasprice.ToHex(value),
		Data:     "0x",
		GasLimit: gasprice.ToHex(new(big.Int).SetUint64(gasLimit)),
		ChainID:  m.opts.ChainID,
		Nonce:    ownerNonce,
	}
	price.ApplyTo(&raw)

	transactionID, err := fundingTransactionID(raw)
	if err != nil {
		return err
	}

	m.logger.Info("funding relayer",
		zap.String("address", address),
		zap.String("transaction_id", transactionID),
		zap.String("value", value.String()))

	result := m.sender.SendTransaction(ctx, relay.TransactionData{
		TransactionID: transactionID,
		To:            raw.To,
		Value:         raw.Value,
		Data:          raw.Data,
		GasLimit:      raw.GasLimit,
	}, m.owner, relay.TransactionTypeFunding, m.opts.Name)
	if result.State != relay.StateSuccess {
		return fmt.Errorf("funding transaction %s failed: %s", transactionID, result.Error)
	}
	return nil
}

func (m *Manager) hasBalanceBelowThreshold(address string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := m.lookup(address)
	if item == nil || m.opts.FundingBalanceThreshold == nil {
		return false
	}
	return item.balance().Cmp(m.opts.FundingBalanceThreshold) < 0
}

func (m *Manager) fundingGasLimit() uint64 {
	index := 0
	if _, ok := arbitrumChains[m.opts.ChainID]; ok {
		index = 1
	}
	return m.opts.GasLimitMap[index]
}

func fundingTransactionID(raw relay.RawTransaction) (string, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return "", fmt.Errorf("failed to marshal funding transaction: %w", err)
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, data).String(), nil
}

// ParseEther converts a decimal ether amount to wei.
func ParseEther(amount string) (*big.Int, error) {
	r, ok := new(big.Rat).SetString(amount)
	if !ok {
		return nil, fmt.Errorf("invalid ether amount %q", amount)
	}
	if r.Sign() < 0 {
		return nil, fmt.Errorf("negative ether amount %q", amount)
	}

	r.Mul(r, weiPerEther)
	if !r.IsInt() {
		return nil, fmt.Errorf("ether amount %q has more than 18 decimals", amount)
	}
	return new(big.Int).Set(r.Num()), nil
}
