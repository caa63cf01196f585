package nonce

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/bcnmy/relayer-node/internal/cache"
	"github.com/bcnmy/relayer-node/internal/network"
	"github.com/bcnmy/relayer-node/internal/relay"
)

const DefaultUsedNonceRetention = time.Hour

// Manager sequences nonces of relayer accounts on one chain. The cache is a hint, the chain is
// authoritative. Callers must serialize GetNonce, the send and IncrementNonce per address.
type Manager struct {
	chainID   uint64
	cache     cache.Cache
	client    network.Client
	retention time.Duration
	logger    *zap.Logger
}

func NewManager(chainID uint64, c cache.Cache, client network.Client, retention time.Duration, logger *zap.Logger) *Manager {
	if retention <= 0 {
		retention = DefaultUsedNonceRetention
	}
	return &Manager{
		chainID:   chainID,
		cache:     c,
		client:    client,
		retention: retention,
		logger:    logger,
	}
}

// GetNonce returns the cached nonce of address unless it is missing or already marked used,
// in which case the network nonce (pending or mined) replaces it.
func (m *Manager) GetNonce(ctx context.Context, address string, pending bool) (uint64, error) {
	address = relay.NormalizeAddress(address)

	cached, found, err := m.cachedNonce(ctx, address)
	if err != nil {
		m.logger.Warn("failed to read nonce from cache", zap.String("address", address), zap.Error(err))
	}
	if found {
		used, err := m.isUsed(ctx, address, cached)
		if err != nil {
			m.logger.Warn("failed to read used nonce marker", zap.String("address", address), zap.Error(err))
		}
		if !used {
			return cached, nil
		}
	}

	nonce, err := m.client.GetNonce(ctx, address, pending)
	if err != nil {
		return 0, fmt.Errorf("failed to get nonce of %s from network: %w", address, err)
	}

	if err := m.cache.Set(ctx, nonceKey(address, m.chainID), strconv.FormatUint(nonce, 10)); err != nil {
		m.logger.Warn("failed to cache nonce", zap.String("address", address), zap.Error(err))
	}

	m.logger.Debug("nonce fetched from network",
		zap.String("address", address),
		zap.Uint64("chain_id", m.chainID),
		zap.Uint64("nonce", nonce),
		zap.Bool("pending", pending))
	return nonce, nil
}

// MarkUsed flags nonce of address as consumed for the retention period.
func (m *Manager) MarkUsed(ctx context.Context, address string, nonce uint64) error {
	key := usedNonceKey(relay.NormalizeAddress(address), nonce, m.chainID)
	if err := m.cache.Set(ctx, key, "1"); err != nil {
		return fmt.Errorf("failed to mark nonce %d used: %w", nonce, err)
	}
	if err := m.cache.Expire(ctx, key, m.retention); err != nil {
		return fmt.Errorf("failed to set expiry of used nonce marker: %w", err)
	}
	return nil
}

// IncrementNonce atomically advances the cached nonce of address.
func (m *Manager) IncrementNonce(ctx context.Context, address string) (uint64, error) {
	next, err := m.cache.Increment(ctx, nonceKey(relay.NormalizeAddress(address), m.chainID), 1)
	if err != nil {
		return 0, fmt.Errorf("failed to increment nonce of %s: %w", address, err)
	}
	return uint64(next), nil
}

// SetNonce overwrites the cached nonce of address.
func (m *Manager) SetNonce(ctx context.Context, address string, nonce uint64) error {
	if err := m.cache.Set(ctx, nonceKey(relay.NormalizeAddress(address), m.chainID), strconv.FormatUint(nonce, 10)); err != nil {
		return fmt.Errorf("failed to set nonce of %s: %w", address, err)
	}
	return nil
}

func (m *Manager) cachedNonce(ctx context.Context, address string) (uint64, bool, error) {
	value, found, err := m.cache.Get(ctx, nonceKey(address, m.chainID))
	if err != nil || !found {
		return 0, false, err
	}

	nonce, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("malformed cached nonce %q: %w", value, err)
	}
	return nonce, true, nil
}

func (m *Manager) isUsed(ctx context.Context, address string, nonce uint64) (bool, error) {
	_, found, err := m.cache.Get(ctx, usedNonceKey(address, nonce, m.chainID))
	return found, err
}

func nonceKey(address string, chainID uint64) string {
	return fmt.Sprintf("AccountNonce_%s_%d", address, chainID)
}

func usedNonceKey(address string, nonce, chainID uint64) string {
	return fmt.Sprintf("UsedAccountNonce_%s_%d_%d", address, nonce, chainID)
}
