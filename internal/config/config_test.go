package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bcnmy/relayer-node/internal/config"
	"github.com/bcnmy/relayer-node/internal/relay"
)

func setBaseEnv(t *testing.T) {
	t.Setenv("RELAYER_CHAIN_IDS", "137,42161")
	t.Setenv("RELAYER_RPC_URLS", "137=https://polygon-rpc.com;https://rpc.ankr.com/polygon,42161=https://arb1.arbitrum.io/rpc")
	t.Setenv("RELAYER_EIP1559_CHAIN_IDS", "137")
	t.Setenv("RELAYER_MANAGERS", "RM1,RM2")
	t.Setenv("RELAYER_MANAGER_RM1_OWNER_PRIVATE_KEY", "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	t.Setenv("RELAYER_MANAGER_RM1_RELAYER_SEED", "seed one")
	t.Setenv("RELAYER_MANAGER_RM2_OWNER_PRIVATE_KEY", "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	t.Setenv("RELAYER_MANAGER_RM2_RELAYER_SEED", "seed two")
	t.Setenv("RELAYER_MANAGER_RM2_TRANSACTION_TYPES", "cross_chain")
	t.Setenv("RELAYER_MANAGER_RM2_CHAIN_IDS", "137")
}

func TestNewRelayerNodeConfig(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("RELAYER_BUMP_GAS_PRICE_PERCENT", "137=20")
	t.Setenv("RELAYER_RETRY_TRANSACTION_INTERVAL", "42161=15s")
	t.Setenv("RELAYER_MANAGER_RM1_FUNDING_RELAYER_AMOUNT", "137=0.5,42161=0.01")

	cfg, managers, err := config.NewRelayerNodeConfig(zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, []uint64{137, 42161}, cfg.ChainIDs)
	assert.Equal(t, []string{"https://polygon-rpc.com", "https://rpc.ankr.com/polygon"}, cfg.URLs(137))
	assert.True(t, cfg.IsEIP1559(137))
	assert.False(t, cfg.IsEIP1559(42161))
	assert.Equal(t, 60*time.Second, cfg.UpdateFrequency)
	assert.Equal(t, 15*time.Second, cfg.RetryDelay(42161))
	assert.Zero(t, cfg.RetryDelay(137))
	assert.Equal(t, uint64(20), cfg.BumpPercent(137))
	assert.Equal(t, uint64(10), cfg.BumpPercent(42161))
	assert.Equal(t, 5, cfg.MaxRetryCounts()[relay.TransactionTypeFunding])

	require.Len(t, managers, 2)
	assert.Equal(t, "RM1", managers[0].Name)
	assert.Equal(t, []relay.TransactionType{relay.TransactionTypeAA, relay.TransactionTypeSCW}, managers[0].Types())
	assert.Equal(t, []uint64{137, 42161}, managers[0].Chains(cfg.ChainIDs))
	assert.Equal(t, "0.5", managers[0].FundingRelayerAmount[137])
	assert.Equal(t, map[int]uint64{0: 21000, 1: 300000}, managers[0].GasLimitMap())
	assert.Equal(t, []relay.TransactionType{relay.TransactionTypeCrossChain}, managers[1].Types())
	assert.Equal(t, []uint64{137}, managers[1].Chains(cfg.ChainIDs))
}

func TestNewRelayerNodeConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing rpc url", env: map[string]string{"RELAYER_RPC_URLS": "137=https://polygon-rpc.com"}},
		{name: "missing seed", env: map[string]string{"RELAYER_MANAGER_RM2_RELAYER_SEED": ""}},
		{name: "unknown manager chain", env: map[string]string{"RELAYER_MANAGER_RM2_CHAIN_IDS": "1"}},
		{name: "funding type", env: map[string]string{"RELAYER_MANAGER_RM1_TRANSACTION_TYPES": "FUNDING"}},
		{name: "bad gas bound", env: map[string]string{"RELAYER_MIN_GAS_PRICE": "137=1gwei"}},
		{name: "malformed chain value", env: map[string]string{"RELAYER_GAS_STATION_URLS": "polygon=https://gasstation.polygon.technology"}},
		{name: "bad retry interval", env: map[string]string{"RELAYER_RETRY_TRANSACTION_INTERVAL": "137=soon"}},
		{name: "pool bounds", env: map[string]string{"RELAYER_MANAGER_RM1_MAX_RELAYER_COUNT": "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBaseEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, _, err := config.NewRelayerNodeConfig(zap.NewNop())
			assert.Error(t, err)
		})
	}
}
