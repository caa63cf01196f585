package listener_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/bcnmy/relayer-node/internal/cache"
	"github.com/bcnmy/relayer-node/internal/listener"
	"github.com/bcnmy/relayer-node/internal/queue"
	"github.com/bcnmy/relayer-node/internal/relay"
	"github.com/bcnmy/relayer-node/internal/storage"
	mock_network "github.com/bcnmy/relayer-node/testutil/mocks/network"
	mock_queue "github.com/bcnmy/relayer-node/testutil/mocks/queue"
)

const (
	chainID        = uint64(137)
	relayerAddress = "0x2c7536e3605d9c16a7a3d7b1898e529396a65c23"
)

type published struct {
	mu      sync.Mutex
	events  []relay.Event
	retries []relay.RetryMessage
	delayed []bool
}

func (p *published) publish(_ context.Context, topic string, message any, opts ...queue.PublishOption) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch m := message.(type) {
	case relay.Event:
		if topic == queue.EventTopic(chainID) {
			p.events = append(p.events, m)
		}
	case relay.RetryMessage:
		if topic == queue.RetryTopic(chainID) {
			p.retries = append(p.retries, m)
			p.delayed = append(p.delayed, len(opts) > 0)
		}
	}
	return nil
}

func (p *published) eventTypes() []relay.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]relay.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Event)
	}
	return out
}

type fixture struct {
	listener  *listener.Listener
	client    *mock_network.MockClient
	storage   *storage.LevelDBStorage
	cache     *cache.MemoryCache
	published *published
}

func newFixture(t *testing.T) *fixture {
	ctrl := gomock.NewController(t)

	s, err := storage.NewLevelDBStorage(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	c := cache.NewMemoryCache()
	t.Cleanup(c.Close)

	f := &fixture{
		client:    mock_network.NewMockClient(ctrl),
		storage:   s,
		cache:     c,
		published: &published{},
	}

	q := mock_queue.NewMockQueue(ctrl)
	q.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(f.published.publish).AnyTimes()

	f.listener = listener.NewListener(listener.Options{ChainID: chainID}, listener.Dependencies{
		Client:  f.client,
		Queue:   q,
		Storage: s,
		Cache:   c,
	}, zap.NewNop())
	t.Cleanup(f.listener.Close)
	return f
}

func blockUntilCancelled(ctx context.Context, _ string) (*relay.Receipt, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func notifyParams(hash, previousHash string) relay.NotifyParams {
	return relay.NotifyParams{
		ExecutionResponse: &relay.ExecutionResponse{
			Hash:     hash,
			From:     relayerAddress,
			Nonce:    4,
			GasPrice: "0x64",
		},
		TransactionID:           "tx1",
		TransactionType:         relay.TransactionTypeAA,
		RelayerAddress:          relayerAddress,
		RelayerManagerName:      "RM1",
		WalletAddress:           "0xwallet",
		PreviousTransactionHash: previousHash,
		RawTransaction: relay.RawTransaction{
			From:     relayerAddress,
			To:       "0x000000000000000000000000000000000000dead",
			Value:    "0x0",
			Data:     "0x",
			GasLimit: "0x5208",
			GasPrice: "0x64",
			ChainID:  chainID,
			Nonce:    4,
		},
	}
}

func TestNotifyWithoutExecutionResponsePublishesError(t *testing.T) {
	f := newFixture(t)

	params := notifyParams("", "")
	params.ExecutionResponse = nil
	params.Error = "nonce too low"

	result, err := f.listener.Notify(context.Background(), params)
	require.NoError(t, err)
	assert.False(t, result.IsTransactionRelayed)
	assert.Nil(t, result.ExecutionResponse)

	assert.Equal(t, []relay.EventType{relay.EventTransactionError}, f.published.eventTypes())
	assert.Equal(t, "nonce too low", f.published.events[0].Error)
	assert.Empty(t, f.published.retries)

	records, err := f.storage.GetByTransactionID(chainID, "tx1")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestNotifyFirstHashFillsRequestRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.storage.SaveTransaction(relay.TransactionRecord{
		TransactionID:   "tx1",
		TransactionType: relay.TransactionTypeAA,
		ChainID:         chainID,
		Status:          relay.InProcess,
	}))
	f.client.EXPECT().WaitForTransaction(gomock.Any(), "0xaa").DoAndReturn(blockUntilCancelled)

	result, err := f.listener.Notify(ctx, notifyParams("0xaa", ""))
	require.NoError(t, err)
	assert.True(t, result.IsTransactionRelayed)

	records, err := f.storage.GetByTransactionID(chainID, "tx1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, relay.Pending, records[0].Status)
	assert.Equal(t, "0xaa", records[0].TransactionHash)
	assert.Equal(t, "0x64", records[0].GasPrice)
	assert.Equal(t, relayerAddress, records[0].RelayerAddress)
	assert.Equal(t, "RM1", records[0].RelayerManagerName)
	require.NotNil(t, records[0].RawTransaction)
	assert.Equal(t, uint64(4), records[0].RawTransaction.Nonce)

	assert.Equal(t, []relay.EventType{relay.EventTransactionHashGenerated}, f.published.eventTypes())
	require.Len(t, f.published.retries, 1)
	assert.Equal(t, "0xaa", f.published.retries[0].TransactionHash)
	assert.Equal(t, "RM1", f.published.retries[0].RelayerManagerName)
	assert.True(t, f.published.delayed[0])
}

func TestNotifyFirstHashWithoutRequestRecordInsertsOne(t *testing.T) {
	f := newFixture(t)
	f.client.EXPECT().WaitForTransaction(gomock.Any(), "0xaa").DoAndReturn(blockUntilCancelled)

	_, err := f.listener.Notify(context.Background(), notifyParams("0xaa", ""))
	require.NoError(t, err)

	records, err := f.storage.GetByTransactionID(chainID, "tx1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, relay.Pending, records[0].Status)
	assert.Equal(t, relay.TransactionTypeAA, records[0].TransactionType)
	assert.Equal(t, "0xwallet", records[0].WalletAddress)
}

func TestResubmissionKeepsBothRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.client.EXPECT().WaitForTransaction(gomock.Any(), "0xaa").DoAndReturn(blockUntilCancelled)
	f.client.EXPECT().WaitForTransaction(gomock.Any(), "0xbb").DoAndReturn(blockUntilCancelled)

	_, err := f.listener.Notify(ctx, notifyParams("0xaa", ""))
	require.NoError(t, err)

	resubmitted := notifyParams("0xbb", "0xaa")
	resubmitted.RawTransaction.GasPrice = "0x6e"
	_, err = f.listener.Notify(ctx, resubmitted)
	require.NoError(t, err)

	records, err := f.storage.GetByTransactionID(chainID, "tx1")
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "0xbb", records[0].TransactionHash)
	assert.Equal(t, relay.Pending, records[0].Status)
	assert.Equal(t, "0xaa", records[0].PreviousTransactionHash)
	assert.False(t, records[0].Resubmitted)
	assert.Equal(t, "0x6e", records[0].GasPrice)

	assert.Equal(t, "0xaa", records[1].TransactionHash)
	assert.Equal(t, relay.Dropped, records[1].Status)
	assert.True(t, records[1].Resubmitted)

	assert.Equal(t,
		[]relay.EventType{relay.EventTransactionHashGenerated, relay.EventTransactionHashChanged},
		f.published.eventTypes())
	assert.Len(t, f.published.retries, 2)
}

func TestMinedTransaction(t *testing.T) {
	tests := []struct {
		name          string
		receiptStatus uint64
		want          relay.TransactionStatus
	}{
		{"success", 1, relay.Success},
		{"reverted", 0, relay.Failed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			require.NoError(t, f.cache.Set(ctx, relay.RetryCountKey("tx1", chainID), "2"))
			f.client.EXPECT().WaitForTransaction(gomock.Any(), "0xaa").Return(&relay.Receipt{
				TransactionHash: "0xaa",
				Status:          tt.receiptStatus,
				BlockNumber:     10,
				GasUsed:         21000,
			}, nil)

			_, err := f.listener.Notify(ctx, notifyParams("0xaa", ""))
			require.NoError(t, err)
			f.listener.Wait()

			records, err := f.storage.GetByTransactionID(chainID, "tx1")
			require.NoError(t, err)
			require.Len(t, records, 1)
			assert.Equal(t, tt.want, records[0].Status)
			require.NotNil(t, records[0].Receipt)
			assert.Equal(t, uint64(10), records[0].Receipt.BlockNumber)

			_, found, err := f.cache.Get(ctx, relay.RetryCountKey("tx1", chainID))
			require.NoError(t, err)
			assert.False(t, found)

			assert.Equal(t,
				[]relay.EventType{relay.EventTransactionHashGenerated, relay.EventTransactionMined},
				f.published.eventTypes())
			mined := f.published.events[1]
			assert.Equal(t, relayerAddress, mined.RelayerAddress)
			assert.Equal(t, "RM1", mined.RelayerManagerName)
			require.NotNil(t, mined.Receipt)
			assert.Equal(t, tt.receiptStatus, mined.Receipt.Status)
		})
	}
}

func TestReplacedHashMinedFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mined := make(chan struct{})
	f.client.EXPECT().WaitForTransaction(gomock.Any(), "0xaa").DoAndReturn(
		func(ctx context.Context, _ string) (*relay.Receipt, error) {
			select {
			case <-mined:
				return &relay.Receipt{TransactionHash: "0xaa", Status: 1, BlockNumber: 12}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		})
	f.client.EXPECT().WaitForTransaction(gomock.Any(), "0xbb").DoAndReturn(blockUntilCancelled)

	_, err := f.listener.Notify(ctx, notifyParams("0xaa", ""))
	require.NoError(t, err)
	resubmitted := notifyParams("0xbb", "0xaa")
	resubmitted.PreviousTransactionHashes = []string{"0xaa"}
	_, err = f.listener.Notify(ctx, resubmitted)
	require.NoError(t, err)
	assert.False(t, f.listener.IsMined("tx1"))

	close(mined)
	f.listener.Wait()
	assert.True(t, f.listener.IsMined("tx1"))

	records, err := f.storage.GetByTransactionID(chainID, "tx1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "0xbb", records[0].TransactionHash)
	assert.Equal(t, relay.Dropped, records[0].Status)
	assert.Equal(t, "0xaa", records[1].TransactionHash)
	assert.Equal(t, relay.Success, records[1].Status)
	require.NotNil(t, records[1].Receipt)
	assert.Equal(t, uint64(12), records[1].Receipt.BlockNumber)

	assert.Equal(t, []relay.EventType{
		relay.EventTransactionHashGenerated,
		relay.EventTransactionHashChanged,
		relay.EventTransactionMined,
	}, f.published.eventTypes())
	assert.Equal(t, "0xaa", f.published.events[2].TransactionHash)

	require.Len(t, f.published.retries, 2)
	assert.Equal(t, []string{"0xaa"}, f.published.retries[1].PreviousTransactionHashes)
}

func TestReplacementOfMinedTransactionIsNotFollowed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.client.EXPECT().WaitForTransaction(gomock.Any(), "0xaa").
		Return(&relay.Receipt{TransactionHash: "0xaa", Status: 1, BlockNumber: 12}, nil)

	_, err := f.listener.Notify(ctx, notifyParams("0xaa", ""))
	require.NoError(t, err)
	f.listener.Wait()

	result, err := f.listener.Notify(ctx, notifyParams("0xbb", "0xaa"))
	require.NoError(t, err)
	assert.True(t, result.IsTransactionRelayed)
	f.listener.Wait()

	require.Len(t, f.published.retries, 2)
	assert.Equal(t, []string{"0xaa"}, f.published.retries[1].PreviousTransactionHashes)
}
