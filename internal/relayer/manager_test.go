package relayer

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/bcnmy/relayer-node/internal/account"
	"github.com/bcnmy/relayer-node/internal/gasprice"
	"github.com/bcnmy/relayer-node/internal/relay"
	mock_network "github.com/bcnmy/relayer-node/testutil/mocks/network"
	mock_relayer "github.com/bcnmy/relayer-node/testutil/mocks/relayer"
)

const ownerKey = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

type testManager struct {
	*Manager
	client *mock_network.MockClient
	nonces *mock_relayer.MockNonceManager
	gas    *mock_relayer.MockGasPriceOracle
	sender *mock_relayer.MockTransactionSender
}

func defaultOptions() Options {
	return Options{
		Name:                             "RM1",
		ChainID:                          137,
		RelayerSeed:                      "test relayer seed",
		MinRelayerCount:                  2,
		MaxRelayerCount:                  2,
		InactiveRelayerCountThreshold:    1,
		PendingTransactionCountThreshold: 1,
		NewRelayerInstanceCount:          0,
		FundingBalanceThreshold:          big.NewInt(100),
		FundingRelayerAmount:             "0.1",
		GasLimitMap:                      map[int]uint64{0: 21000, 1: 300000},
	}
}

func newTestManager(t *testing.T, opts Options) *testManager {
	ctrl := gomock.NewController(t)
	owner, err := account.FromPrivateKey(ownerKey)
	require.NoError(t, err)

	tm := &testManager{
		client: mock_network.NewMockClient(ctrl),
		nonces: mock_relayer.NewMockNonceManager(ctrl),
		gas:    mock_relayer.NewMockGasPriceOracle(ctrl),
		sender: mock_relayer.NewMockTransactionSender(ctrl),
	}
	tm.Manager = NewManager(opts, Dependencies{
		Owner:    owner,
		Client:   tm.client,
		Nonces:   tm.nonces,
		GasPrice: tm.gas,
	}, zap.NewNop())
	tm.SetTransactionSender(tm.sender)
	return tm
}

// assertPartition checks that every relayer is in exactly one of the idle queue and the
// processing map.
func assertPartition(t *testing.T, m *Manager) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]int)
	for _, item := range m.queue.List() {
		seen[item.Address]++
	}
	for address := range m.processing {
		seen[address]++
	}
	for address := range m.relayers {
		assert.Equal(t, 1, seen[address], "relayer %s", address)
	}
	assert.Len(t, seen, len(m.relayers))
}

func TestCreateRelayersSkipsFailedKeys(t *testing.T) {
	opts := defaultOptions()
	opts.MaxRelayerCount = 0
	tm := newTestManager(t, opts)
	ctx := context.Background()

	failing, err := account.Derive(opts.RelayerSeed, 0, 1)
	require.NoError(t, err)

	tm.client.EXPECT().GetBalance(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, address string) (*big.Int, error) {
			if address == failing.GetPublicKey() {
				return nil, errors.New("rpc down")
			}
			return big.NewInt(1000), nil
		}).Times(3)
	tm.nonces.EXPECT().GetNonce(gomock.Any(), gomock.Any(), false).Return(uint64(4), nil).Times(2)

	addresses, err := tm.CreateRelayers(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, addresses, 2)
	assert.NotContains(t, addresses, failing.GetPublicKey())
	assert.Equal(t, 2, tm.RelayersCount(false))
	assert.Equal(t, 2, tm.RelayersCount(true))
	assertPartition(t, tm.Manager)

	for _, address := range addresses {
		assert.NotNil(t, tm.GetRelayer(address))
	}
}

func TestCreateRelayersRespectsMaximum(t *testing.T) {
	tm := newTestManager(t, defaultOptions())
	ctx := context.Background()

	tm.client.EXPECT().GetBalance(gomock.Any(), gomock.Any()).Return(big.NewInt(1000), nil).Times(2)
	tm.nonces.EXPECT().GetNonce(gomock.Any(), gomock.Any(), false).Return(uint64(0), nil).Times(2)

	addresses, err := tm.CreateRelayers(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, addresses, 2)

	addresses, err = tm.CreateRelayers(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, addresses)
}

func TestPoolExhaustedUntilRelayerReturned(t *testing.T) {
	opts := defaultOptions()
	opts.PendingTransactionCountThreshold = 2
	tm := newTestManager(t, opts)
	ctx := context.Background()

	tm.client.EXPECT().GetBalance(gomock.Any(), gomock.Any()).Return(big.NewInt(1000), nil).Times(2)
	tm.nonces.EXPECT().GetNonce(gomock.Any(), gomock.Any(), false).Return(uint64(0), nil).Times(2)
	_, err := tm.CreateRelayers(ctx, 2)
	require.NoError(t, err)

	first := tm.GetActiveRelayer()
	second := tm.GetActiveRelayer()
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.NotEqual(t, first.GetPublicKey(), second.GetPublicKey())
	assertPartition(t, tm.Manager)

	assert.Nil(t, tm.GetActiveRelayer())
	assert.Nil(t, tm.GetActiveRelayer())

	tm.AddActiveRelayer(ctx, first.GetPublicKey())
	assertPartition(t, tm.Manager)

	again := tm.GetActiveRelayer()
	require.NotNil(t, again)
	assert.Equal(t, first.GetPublicKey(), again.GetPublicKey())
}

func TestRelayerAtThresholdIsParkedUntilMined(t *testing.T) {
	tm := newTestManager(t, defaultOptions())
	ctx := context.Background()

	tm.client.EXPECT().GetBalance(gomock.Any(), gomock.Any()).Return(big.NewInt(1000), nil).Times(2)
	tm.nonces.EXPECT().GetNonce(gomock.Any(), gomock.Any(), false).Return(uint64(0), nil).Times(2)
	_, err := tm.CreateRelayers(ctx, 2)
	require.NoError(t, err)

	first := tm.GetActiveRelayer()
	second := tm.GetActiveRelayer()
	require.NotNil(t, first)
	require.NotNil(t, second)

	// pending count 1 reaches the threshold, both stay out of rotation
	tm.AddActiveRelayer(ctx, first.GetPublicKey())
	tm.AddActiveRelayer(ctx, second.GetPublicKey())
	assertPartition(t, tm.Manager)
	assert.Nil(t, tm.GetActiveRelayer())

	tm.client.EXPECT().GetBalance(gomock.Any(), first.GetPublicKey()).Return(big.NewInt(900), nil)
	tm.PostTransactionMined(ctx, first.GetPublicKey())
	assertPartition(t, tm.Manager)

	again := tm.GetActiveRelayer()
	require.NotNil(t, again)
	assert.Equal(t, first.GetPublicKey(), again.GetPublicKey())
	assert.Nil(t, tm.GetActiveRelayer())
}

func TestReleasedSendsKeepRelayerInRotation(t *testing.T) {
	tm := newTestManager(t, defaultOptions())
	ctx := context.Background()

	tm.client.EXPECT().GetBalance(gomock.Any(), gomock.Any()).Return(big.NewInt(1000), nil).Times(2)
	tm.nonces.EXPECT().GetNonce(gomock.Any(), gomock.Any(), false).Return(uint64(0), nil).Times(2)
	_, err := tm.CreateRelayers(ctx, 2)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		relayer := tm.GetActiveRelayer()
		require.NotNil(t, relayer)

		tm.ReleasePending(relayer.GetPublicKey())
		tm.AddActiveRelayer(ctx, relayer.GetPublicKey())
		assertPartition(t, tm.Manager)
		assert.Equal(t, 2, tm.RelayersCount(true))
	}

	for _, state := range tm.Relayers() {
		assert.True(t, state.Idle)
		assert.Zero(t, state.PendingCount)
	}
}

func TestReleasePendingNeverGoesNegative(t *testing.T) {
	tm := newTestManager(t, defaultOptions())
	ctx := context.Background()

	tm.client.EXPECT().GetBalance(gomock.Any(), gomock.Any()).Return(big.NewInt(1000), nil).Times(2)
	tm.nonces.EXPECT().GetNonce(gomock.Any(), gomock.Any(), false).Return(uint64(0), nil).Times(2)
	addresses, err := tm.CreateRelayers(ctx, 2)
	require.NoError(t, err)

	tm.ReleasePending(addresses[0])
	tm.ReleasePending("0x0000000000000000000000000000000000000001")

	relayer := tm.GetActiveRelayer()
	require.NotNil(t, relayer)
	tm.AddActiveRelayer(ctx, relayer.GetPublicKey())
	assertPartition(t, tm.Manager)
	assert.Equal(t, 1, tm.RelayersCount(true))
}

func TestMinedWhileCheckedOutStaysInProcessing(t *testing.T) {
	tm := newTestManager(t, defaultOptions())
	ctx := context.Background()

	tm.client.EXPECT().GetBalance(gomock.Any(), gomock.Any()).Return(big.NewInt(1000), nil).Times(3)
	tm.nonces.EXPECT().GetNonce(gomock.Any(), gomock.Any(), false).Return(uint64(0), nil).Times(2)
	_, err := tm.CreateRelayers(ctx, 2)
	require.NoError(t, err)

	relayer := tm.GetActiveRelayer()
	require.NotNil(t, relayer)

	tm.PostTransactionMined(ctx, relayer.GetPublicKey())
	assertPartition(t, tm.Manager)
	assert.Equal(t, 1, tm.RelayersCount(true))

	tm.AddActiveRelayer(ctx, relayer.GetPublicKey())
	assertPartition(t, tm.Manager)
	assert.Equal(t, 2, tm.RelayersCount(true))
}

func TestPartitionHoldsUnderConcurrency(t *testing.T) {
	opts := defaultOptions()
	opts.MaxRelayerCount = 0
	opts.MinRelayerCount = 5
	opts.PendingTransactionCountThreshold = 2
	tm := newTestManager(t, opts)
	ctx := context.Background()

	tm.client.EXPECT().GetBalance(gomock.Any(), gomock.Any()).Return(big.NewInt(1000), nil).AnyTimes()
	tm.nonces.EXPECT().GetNonce(gomock.Any(), gomock.Any(), false).Return(uint64(0), nil).AnyTimes()
	_, err := tm.CreateRelayers(ctx, 5)
	require.NoError(t, err)

	done := make(chan struct{})
	checkerDone := make(chan struct{})
	go func() {
		defer close(checkerDone)
		for {
			select {
			case <-done:
				return
			default:
				assertPartition(t, tm.Manager)
				time.Sleep(time.Millisecond)
			}
		}
	}()

	var wg sync.WaitGroup
	for worker := 0; worker < 10; worker++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				relayer := tm.GetActiveRelayer()
				if relayer == nil {
					continue
				}
				tm.AddActiveRelayer(ctx, relayer.GetPublicKey())
				tm.PostTransactionMined(ctx, relayer.GetPublicKey())
			}
		}()
	}
	wg.Wait()
	close(done)
	<-checkerDone

	assertPartition(t, tm.Manager)
	assert.Equal(t, 5, tm.RelayersCount(true))
}

func TestAutoScaleCreatesRelayers(t *testing.T) {
	opts := defaultOptions()
	opts.MinRelayerCount = 3
	opts.MaxRelayerCount = 4
	opts.NewRelayerInstanceCount = 2
	opts.PendingTransactionCountThreshold = 5
	tm := newTestManager(t, opts)
	ctx := context.Background()

	tm.client.EXPECT().GetBalance(gomock.Any(), gomock.Any()).Return(big.NewInt(1000), nil).Times(3)
	tm.nonces.EXPECT().GetNonce(gomock.Any(), gomock.Any(), false).Return(uint64(0), nil).Times(3)
	_, err := tm.CreateRelayers(ctx, 2)
	require.NoError(t, err)

	relayer := tm.GetActiveRelayer()
	require.NotNil(t, relayer)

	// two idle out of a minimum of three triggers scaling by two; one derived relayer fails
	tm.client.EXPECT().GetBalance(gomock.Any(), gomock.Any()).Return(nil, errors.New("rpc down")).Times(1)

	tm.AddActiveRelayer(ctx, relayer.GetPublicKey())
	assert.Equal(t, 3, tm.RelayersCount(false))
	assertPartition(t, tm.Manager)
}

func TestFundRelayers(t *testing.T) {
	tests := []struct {
		name     string
		chainID  uint64
		gasLimit string
	}{
		{"default gas limit", 137, "0x5208"},
		{"arbitrum gas limit", 42161, "0x493e0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := defaultOptions()
			opts.ChainID = tt.chainID
			tm := newTestManager(t, opts)
			ctx := context.Background()

			tm.client.EXPECT().GetBalance(gomock.Any(), gomock.Any()).Return(big.NewInt(10), nil)
			tm.nonces.EXPECT().GetNonce(gomock.Any(), gomock.Any(), false).Return(uint64(0), nil)
			addresses, err := tm.CreateRelayers(ctx, 1)
			require.NoError(t, err)

			owner := tm.OwnerAccount().GetPublicKey()
			tm.nonces.EXPECT().GetNonce(gomock.Any(), owner, false).Return(uint64(9), nil)
			tm.gas.EXPECT().GetGasPrice(gomock.Any(), gasprice.TierDefault).Return(gasprice.LegacyPrice(big.NewInt(30)), nil)
			tm.sender.EXPECT().SendTransaction(gomock.Any(), gomock.Any(), tm.OwnerAccount(), relay.TransactionTypeFunding, "RM1").
				DoAndReturn(func(_ context.Context, data relay.TransactionData, _ account.Signer, _ relay.TransactionType, _ string) relay.Result {
					assert.Equal(t, addresses[0], data.To)
					assert.Equal(t, "0x16345785d8a0000", data.Value)
					assert.Equal(t, "0x", data.Data)
					assert.Equal(t, tt.gasLimit, data.GasLimit)
					assert.NotEmpty(t, data.TransactionID)
					return relay.Result{State: relay.StateSuccess, TransactionID: data.TransactionID}
				})

			require.NoError(t, tm.FundRelayers(ctx, addresses))
		})
	}
}

func TestFundRelayersSkipsFundedRelayers(t *testing.T) {
	tm := newTestManager(t, defaultOptions())
	ctx := context.Background()

	tm.client.EXPECT().GetBalance(gomock.Any(), gomock.Any()).Return(big.NewInt(1000), nil)
	tm.nonces.EXPECT().GetNonce(gomock.Any(), gomock.Any(), false).Return(uint64(0), nil)
	addresses, err := tm.CreateRelayers(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, tm.FundRelayers(ctx, append(addresses, "0xunknown")))
}

func TestPostTransactionMinedFundsLowRelayer(t *testing.T) {
	tm := newTestManager(t, defaultOptions())
	ctx := context.Background()

	tm.client.EXPECT().GetBalance(gomock.Any(), gomock.Any()).Return(big.NewInt(1000), nil).Times(2)
	tm.nonces.EXPECT().GetNonce(gomock.Any(), gomock.Any(), false).Return(uint64(0), nil).Times(2)
	_, err := tm.CreateRelayers(ctx, 2)
	require.NoError(t, err)

	relayer := tm.GetActiveRelayer()
	require.NotNil(t, relayer)
	tm.AddActiveRelayer(ctx, relayer.GetPublicKey())

	funded := make(chan struct{})
	tm.client.EXPECT().GetBalance(gomock.Any(), relayer.GetPublicKey()).Return(big.NewInt(1), nil)
	tm.nonces.EXPECT().GetNonce(gomock.Any(), tm.OwnerAccount().GetPublicKey(), false).Return(uint64(0), nil)
	tm.gas.EXPECT().GetGasPrice(gomock.Any(), gasprice.TierDefault).Return(gasprice.LegacyPrice(big.NewInt(30)), nil)
	tm.sender.EXPECT().SendTransaction(gomock.Any(), gomock.Any(), gomock.Any(), relay.TransactionTypeFunding, "RM1").
		DoAndReturn(func(_ context.Context, data relay.TransactionData, _ account.Signer, _ relay.TransactionType, _ string) relay.Result {
			close(funded)
			return relay.Result{State: relay.StateSuccess}
		})

	tm.PostTransactionMined(ctx, relayer.GetPublicKey())

	select {
	case <-funded:
	case <-time.After(time.Second):
		t.Fatal("relayer was not funded")
	}
}

func TestParseEther(t *testing.T) {
	tests := []struct {
		amount string
		want   string
		err    bool
	}{
		{"1", "1000000000000000000", false},
		{"0.1", "100000000000000000", false},
		{"0.000000000000000001", "1", false},
		{"0.0000000000000000001", "", true},
		{"-1", "", true},
		{"abc", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			got, err := ParseEther(tt.amount)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}
