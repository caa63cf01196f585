package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
	"go.uber.org/zap"
)

const (
	readyPrefix    = "queue"
	inflightPrefix = "inflight"

	defaultPollInterval    = 500 * time.Millisecond
	defaultRedeliveryDelay = 5 * time.Second
	defaultBatchSize       = 64
)

// Queue is a durable at-least-once message channel.
type Queue interface {
	Publish(ctx context.Context, topic string, message any, opts ...PublishOption) error
	// Consume blocks delivering messages of topic to handler until ctx is done.
	Consume(ctx context.Context, topic string, handler Handler) error
}

// Handler processes one delivery. A delivery that was not acked when the handler returns is
// delivered again after the redelivery delay.
type Handler func(ctx context.Context, delivery *Delivery) error

type PublishOption func(*publishOptions)

type publishOptions struct {
	delay time.Duration
}

// WithDelay postpones delivery of the message by d.
func WithDelay(d time.Duration) PublishOption {
	return func(o *publishOptions) {
		o.delay = d
	}
}

type envelope struct {
	ID          string          `json:"id"`
	Topic       string          `json:"topic"`
	Body        json.RawMessage `json:"body"`
	PublishedAt time.Time       `json:"publishedAt"`
	Redelivered int             `json:"redelivered"`
}

// Delivery is a message handed to a consumer.
type Delivery struct {
	ID          string
	Topic       string
	Body        []byte
	PublishedAt time.Time
	Redelivered int

	queue *LevelDBQueue
	acked bool
	mu    sync.Mutex
}

// Decode unmarshals the message body into v.
func (d *Delivery) Decode(v any) error {
	if err := json.Unmarshal(d.Body, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s message %s: %w", d.Topic, d.ID, err)
	}
	return nil
}

// Ack removes the message from the queue. Acking twice is a no-op.
func (d *Delivery) Ack() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.acked {
		return nil
	}
	if err := d.queue.db.Delete(inflightKey(d.Topic, d.ID), nil); err != nil {
		return fmt.Errorf("failed to ack message %s: %w", d.ID, err)
	}
	d.acked = true
	return nil
}

func (d *Delivery) isAcked() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.acked
}

type Config struct {
	Path            string
	PollInterval    time.Duration
	RedeliveryDelay time.Duration
}

// LevelDBQueue keeps ready messages under queue/<topic>/<deliverAt>/<id> so a prefix scan
// yields them in delivery order. Handed-out messages live under inflight/<topic>/<id>
// until acked.
type LevelDBQueue struct {
	sync.Mutex
	db              *leveldb.DB
	logger          *zap.Logger
	pollInterval    time.Duration
	redeliveryDelay time.Duration

	notifyMu sync.Mutex
	notify   map[string]chan struct{}
}

func NewLevelDBQueue(cfg Config, logger *zap.Logger) (*LevelDBQueue, error) {
	database, err := leveldb.OpenFile(cfg.Path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open queue database: %w", err)
	}

	q := &LevelDBQueue{
		db:              database,
		logger:          logger,
		pollInterval:    cfg.PollInterval,
		redeliveryDelay: cfg.RedeliveryDelay,
		notify:          make(map[string]chan struct{}),
	}
	if q.pollInterval <= 0 {
		q.pollInterval = defaultPollInterval
	}
	if q.redeliveryDelay <= 0 {
		q.redeliveryDelay = defaultRedeliveryDelay
	}

	if err := q.restoreInflight(); err != nil {
		_ = database.Close()
		return nil, err
	}

	return q, nil
}

func (q *LevelDBQueue) Publish(_ context.Context, topic string, message any, opts ...PublishOption) error {
	var options publishOptions
	for _, opt := range opts {
		opt(&options)
	}

	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal %s message: %w", topic, err)
	}

	env := envelope{
		ID:          uuid.NewString(),
		Topic:       topic,
		Body:        body,
		PublishedAt: time.Now(),
	}
	if err := q.put(env, time.Now().Add(options.delay)); err != nil {
		return err
	}

	q.signal(topic)
	return nil
}

func (q *LevelDBQueue) Consume(ctx context.Context, topic string, handler Handler) error {
	ticker := time.NewTicker(q.pollInterval)
	defer ticker.Stop()

	notify := q.notifyChan(topic)
	for {
		if err := q.deliverDue(ctx, topic, handler); err != nil {
			q.logger.Error("failed to deliver messages", zap.String("topic", topic), zap.Error(err))
		}

		select {
		case <-ctx.Done():
			q.logger.Info("context cancelled, stopping consumer", zap.String("topic", topic))
			return nil
		case <-ticker.C:
		case <-notify:
		}
	}
}

// Len returns the number of messages of topic waiting for delivery.
func (q *LevelDBQueue) Len(topic string) (int, error) {
	q.Lock()
	defer q.Unlock()

	iterator := q.db.NewIterator(util.BytesPrefix(topicPrefix(topic)), nil)
	defer iterator.Release()

	var count int
	for iterator.Next() {
		count++
	}
	return count, iterator.Error()
}

func (q *LevelDBQueue) Close() error {
	if err := q.db.Close(); err != nil {
		return fmt.Errorf("failed to close queue database: %w", err)
	}
	return nil
}

func (q *LevelDBQueue) deliverDue(ctx context.Context, topic string, handler Handler) error {
	deliveries, err := q.claimDue(topic, time.Now())
	if err != nil {
		return err
	}

	for _, delivery := range deliveries {
		if ctx.Err() != nil {
			// leave the rest inflight, they are restored on the next start
			return nil
		}

		if err := handler(ctx, delivery); err != nil {
			q.logger.Error("failed to handle message",
				zap.String("topic", topic),
				zap.String("message_id", delivery.ID),
				zap.Error(err))
		}

		if !delivery.isAcked() {
			if err := q.requeue(delivery); err != nil {
				q.logger.Error("failed to requeue message",
					zap.String("topic", topic),
					zap.String("message_id", delivery.ID),
					zap.Error(err))
			}
		}
	}

	return nil
}

// claimDue moves every message of topic due at now from the ready keyspace to the inflight one.
func (q *LevelDBQueue) claimDue(topic string, now time.Time) ([]*Delivery, error) {
	q.Lock()
	defer q.Unlock()

	iterator := q.db.NewIterator(util.BytesPrefix(topicPrefix(topic)), nil)
	defer iterator.Release()

	batch := new(leveldb.Batch)
	var deliveries []*Delivery
	for iterator.Next() && len(deliveries) < defaultBatchSize {
		deliverAt, err := parseDeliverAt(iterator.Key(), topic)
		if err != nil {
			return nil, err
		}
		if deliverAt > now.UnixNano() {
			break
		}

		var env envelope
		if err := json.Unmarshal(iterator.Value(), &env); err != nil {
			return nil, fmt.Errorf("failed to unmarshal queue envelope: %w", err)
		}

		batch.Delete(append([]byte(nil), iterator.Key()...))
		batch.Put(inflightKey(topic, env.ID), append([]byte(nil), iterator.Value()...))
		deliveries = append(deliveries, &Delivery{
			ID:          env.ID,
			Topic:       env.Topic,
			Body:        env.Body,
			PublishedAt: env.PublishedAt,
			Redelivered: env.Redelivered,
			queue:       q,
		})
	}
	if err := iterator.Error(); err != nil {
		return nil, fmt.Errorf("failed to iterate queue: %w", err)
	}

	if batch.Len() == 0 {
		return nil, nil
	}
	if err := q.db.Write(batch, nil); err != nil {
		return nil, fmt.Errorf("failed to claim queue messages: %w", err)
	}

	return deliveries, nil
}

func (q *LevelDBQueue) requeue(delivery *Delivery) error {
	env := envelope{
		ID:          delivery.ID,
		Topic:       delivery.Topic,
		Body:        delivery.Body,
		PublishedAt: delivery.PublishedAt,
		Redelivered: delivery.Redelivered + 1,
	}

	q.Lock()
	defer q.Unlock()

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal queue envelope: %w", err)
	}

	batch := new(leveldb.Batch)
	batch.Delete(inflightKey(env.Topic, env.ID))
	batch.Put(readyKey(env.Topic, time.Now().Add(q.redeliveryDelay), env.ID), data)
	return q.db.Write(batch, nil)
}

func (q *LevelDBQueue) restoreInflight() error {
	q.Lock()
	defer q.Unlock()

	iterator := q.db.NewIterator(util.BytesPrefix([]byte(inflightPrefix+"/")), nil)
	defer iterator.Release()

	batch := new(leveldb.Batch)
	now := time.Now()
	for iterator.Next() {
		var env envelope
		if err := json.Unmarshal(iterator.Value(), &env); err != nil {
			return fmt.Errorf("failed to unmarshal queue envelope: %w", err)
		}
		env.Redelivered++

		data, err := json.Marshal(env)
		if err != nil {
			return fmt.Errorf("failed to marshal queue envelope: %w", err)
		}
		batch.Delete(append([]byte(nil), iterator.Key()...))
		batch.Put(readyKey(env.Topic, now, env.ID), data)
	}
	if err := iterator.Error(); err != nil {
		return fmt.Errorf("failed to iterate inflight messages: %w", err)
	}

	if batch.Len() > 0 {
		q.logger.Info("restoring unacked messages", zap.Int("count", batch.Len()/2))
	}
	return q.db.Write(batch, nil)
}

func (q *LevelDBQueue) put(env envelope, deliverAt time.Time) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal queue envelope: %w", err)
	}

	q.Lock()
	defer q.Unlock()

	if err := q.db.Put(readyKey(env.Topic, deliverAt, env.ID), data, nil); err != nil {
		return fmt.Errorf("failed to put %s message: %w", env.Topic, err)
	}
	return nil
}

func (q *LevelDBQueue) notifyChan(topic string) chan struct{} {
	q.notifyMu.Lock()
	defer q.notifyMu.Unlock()

	ch, ok := q.notify[topic]
	if !ok {
		ch = make(chan struct{}, 1)
		q.notify[topic] = ch
	}
	return ch
}

func (q *LevelDBQueue) signal(topic string) {
	select {
	case q.notifyChan(topic) <- struct{}{}:
	default:
	}
}

func topicPrefix(topic string) []byte {
	return []byte(fmt.Sprintf("%s/%s/", readyPrefix, topic))
}

func readyKey(topic string, deliverAt time.Time, id string) []byte {
	return append(topicPrefix(topic), fmt.Sprintf("%020d/%s", deliverAt.UnixNano(), id)...)
}

func inflightKey(topic, id string) []byte {
	return []byte(fmt.Sprintf("%s/%s/%s", inflightPrefix, topic, id))
}

func parseDeliverAt(key []byte, topic string) (int64, error) {
	rest := strings.TrimPrefix(string(key), string(topicPrefix(topic)))
	ts, _, found := strings.Cut(rest, "/")
	if !found {
		return 0, fmt.Errorf("malformed queue key %q", key)
	}

	deliverAt, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed queue key %q: %w", key, err)
	}
	return deliverAt, nil
}
