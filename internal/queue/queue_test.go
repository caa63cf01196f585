package queue_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bcnmy/relayer-node/internal/queue"
	"github.com/bcnmy/relayer-node/internal/relay"
)

func newQueue(t *testing.T, path string) *queue.LevelDBQueue {
	q, err := queue.NewLevelDBQueue(queue.Config{
		Path:            path,
		PollInterval:    10 * time.Millisecond,
		RedeliveryDelay: 10 * time.Millisecond,
	}, zap.NewNop())
	require.NoError(t, err)
	return q
}

type collector struct {
	mu       sync.Mutex
	received []relay.RetryMessage
}

func (c *collector) handle(ack bool) queue.Handler {
	return func(_ context.Context, d *queue.Delivery) error {
		var msg relay.RetryMessage
		if err := d.Decode(&msg); err != nil {
			return err
		}
		c.mu.Lock()
		c.received = append(c.received, msg)
		c.mu.Unlock()
		if ack {
			return d.Ack()
		}
		return nil
	}
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.received)
}

func TestPublishConsumeInOrder(t *testing.T) {
	q := newQueue(t, t.TempDir())
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	topic := queue.RetryTopic(137)
	for _, id := range []string{"tx1", "tx2", "tx3"} {
		require.NoError(t, q.Publish(ctx, topic, relay.RetryMessage{TransactionID: id}))
	}

	c := &collector{}
	go func() { _ = q.Consume(ctx, topic, c.handle(true)) }()

	require.Eventually(t, func() bool { return c.len() == 3 }, time.Second, 5*time.Millisecond)
	c.mu.Lock()
	assert.Equal(t, "tx1", c.received[0].TransactionID)
	assert.Equal(t, "tx2", c.received[1].TransactionID)
	assert.Equal(t, "tx3", c.received[2].TransactionID)
	c.mu.Unlock()

	size, err := q.Len(topic)
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestDelayedMessageIsNotDeliveredEarly(t *testing.T) {
	q := newQueue(t, t.TempDir())
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	topic := queue.RetryTopic(80001)
	require.NoError(t, q.Publish(ctx, topic, relay.RetryMessage{TransactionID: "later"}, queue.WithDelay(200*time.Millisecond)))
	require.NoError(t, q.Publish(ctx, topic, relay.RetryMessage{TransactionID: "now"}))

	c := &collector{}
	go func() { _ = q.Consume(ctx, topic, c.handle(true)) }()

	require.Eventually(t, func() bool { return c.len() == 1 }, time.Second, 5*time.Millisecond)
	c.mu.Lock()
	assert.Equal(t, "now", c.received[0].TransactionID)
	c.mu.Unlock()

	require.Eventually(t, func() bool { return c.len() == 2 }, 2*time.Second, 10*time.Millisecond)
	c.mu.Lock()
	assert.Equal(t, "later", c.received[1].TransactionID)
	c.mu.Unlock()
}

func TestUnackedMessageIsRedelivered(t *testing.T) {
	q := newQueue(t, t.TempDir())
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	topic := queue.EventTopic(137)
	require.NoError(t, q.Publish(ctx, topic, relay.RetryMessage{TransactionID: "tx1"}))

	c := &collector{}
	go func() { _ = q.Consume(ctx, topic, c.handle(false)) }()

	require.Eventually(t, func() bool { return c.len() >= 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestUnackedMessageSurvivesRestart(t *testing.T) {
	path := t.TempDir()
	q := newQueue(t, path)

	topic := queue.TransactionTopic(137, relay.TransactionTypeAA)
	assert.Equal(t, "relayer_queue_transaction_137_aa", topic)
	require.NoError(t, q.Publish(context.Background(), topic, relay.RetryMessage{TransactionID: "tx1"}))

	ctx, cancel := context.WithCancel(context.Background())
	handled := make(chan struct{})
	go func() {
		_ = q.Consume(ctx, topic, func(_ context.Context, _ *queue.Delivery) error {
			cancel()
			close(handled)
			// simulate a crash: block until the consumer is gone, never ack
			<-ctx.Done()
			return nil
		})
	}()
	<-handled
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, q.Close())

	q = newQueue(t, path)
	defer q.Close()

	size, err := q.Len(topic)
	require.NoError(t, err)
	assert.Equal(t, 1, size)
}
