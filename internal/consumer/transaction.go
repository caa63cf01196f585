package consumer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bcnmy/relayer-node/internal/account"
	"github.com/bcnmy/relayer-node/internal/cache"
	"github.com/bcnmy/relayer-node/internal/metrics"
	"github.com/bcnmy/relayer-node/internal/queue"
	"github.com/bcnmy/relayer-node/internal/relay"
)

const (
	DefaultRequeueDelay = time.Second
	DefaultConcurrency  = 10
)

type RelayerManager interface {
	Name() string
	GetActiveRelayer() account.Signer
	AddActiveRelayer(ctx context.Context, address string)
	ReleasePending(address string)
}

type TransactionService interface {
	SendTransaction(
		ctx context.Context,
		data relay.TransactionData,
		signer account.Signer,
		transactionType relay.TransactionType,
		managerName string,
	) relay.Result
}

type TransactionConsumerOptions struct {
	ChainID         uint64
	TransactionType relay.TransactionType
	// RequeueDelay postpones a request that found no idle relayer.
	RequeueDelay time.Duration
	// Concurrency bounds the requests in flight, one per checked out relayer.
	Concurrency int
}

// TransactionConsumer dispatches the transaction requests of one type on one chain to the
// relayers of a manager.
type TransactionConsumer struct {
	opts         TransactionConsumerOptions
	manager      RelayerManager
	transactions TransactionService
	queue        queue.Queue
	cache        cache.Cache
	logger       *zap.Logger
}

func NewTransactionConsumer(
	opts TransactionConsumerOptions,
	manager RelayerManager,
	transactions TransactionService,
	q queue.Queue,
	c cache.Cache,
	logger *zap.Logger,
) *TransactionConsumer {
	if opts.RequeueDelay <= 0 {
		opts.RequeueDelay = DefaultRequeueDelay
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	return &TransactionConsumer{
		opts:         opts,
		manager:      manager,
		transactions: transactions,
		queue:        q,
		cache:        c,
		logger: logger.With(
			zap.Uint64("chain_id", opts.ChainID),
			zap.String("transaction_type", string(opts.TransactionType)),
			zap.String("relayer_manager", manager.Name()),
		),
	}
}

func (c *TransactionConsumer) Topic() string {
	return queue.TransactionTopic(c.opts.ChainID, c.opts.TransactionType)
}

// Run consumes transaction requests until ctx is done. Up to Concurrency requests are sent at
// once; Run returns after the ones in flight have finished.
func (c *TransactionConsumer) Run(ctx context.Context) error {
	c.logger.Info("starting transaction consumer", zap.Int("concurrency", c.opts.Concurrency))

	var g errgroup.Group
	g.SetLimit(c.opts.Concurrency)
	defer func() { _ = g.Wait() }()

	return c.queue.Consume(ctx, c.Topic(), func(ctx context.Context, delivery *queue.Delivery) error {
		// requests are acked up front, further attempts only go through the retry checks
		if err := delivery.Ack(); err != nil {
			return err
		}

		var message relay.TransactionMessage
		if err := delivery.Decode(&message); err != nil {
			metrics.IncConsumedMessage(delivery.Topic, false)
			return err
		}

		topic := delivery.Topic
		g.Go(func() error {
			err := c.HandleMessage(ctx, message)
			metrics.IncConsumedMessage(topic, err == nil)
			if err != nil {
				c.logger.Error("failed to handle transaction request",
					zap.String("transaction_id", message.TransactionID), zap.Error(err))
			}
			return nil
		})
		return nil
	})
}

// HandleMessage sends the request with an idle relayer, or puts it back on the queue when none is idle.
func (c *TransactionConsumer) HandleMessage(ctx context.Context, message relay.TransactionMessage) error {
	logger := c.logger.With(zap.String("transaction_id", message.TransactionID))

	relayer := c.manager.GetActiveRelayer()
	if relayer == nil {
		logger.Info("no idle relayer, requeueing transaction request", zap.Duration("delay", c.opts.RequeueDelay))
		if err := c.queue.Publish(ctx, c.Topic(), message, queue.WithDelay(c.opts.RequeueDelay)); err != nil {
			return fmt.Errorf("failed to requeue transaction request %s: %w", message.TransactionID, err)
		}
		return nil
	}
	address := relayer.GetPublicKey()
	defer c.manager.AddActiveRelayer(ctx, address)

	if err := c.cache.Set(ctx, relay.RetryCountKey(message.TransactionID, c.opts.ChainID), "0"); err != nil {
		logger.Error("failed to reset retry count", zap.Error(err))
	}

	result := c.transactions.SendTransaction(ctx, message.TransactionData, relayer, c.opts.TransactionType, c.manager.Name())
	if result.TransactionHash == "" {
		// no hash means no mined event will release the slot
		c.manager.ReleasePending(address)
	}
	if result.State != relay.StateSuccess {
		logger.Error("failed to send transaction",
			zap.String("relayer_address", address),
			zap.Int("code", result.Code),
			zap.String("error", result.Error))
		return nil
	}

	logger.Info("transaction sent",
		zap.String("relayer_address", address),
		zap.String("transaction_hash", result.TransactionHash))
	return nil
}
