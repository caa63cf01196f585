package consumer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/bcnmy/relayer-node/internal/metrics"
	"github.com/bcnmy/relayer-node/internal/queue"
	"github.com/bcnmy/relayer-node/internal/relay"
)

// MinedHandler releases the relayer of a mined transaction.
type MinedHandler interface {
	PostTransactionMined(ctx context.Context, managerName string, chainID uint64, address string) error
}

// EventConsumer follows the lifecycle events of one chain.
type EventConsumer struct {
	chainID uint64
	mined   MinedHandler
	queue   queue.Queue
	logger  *zap.Logger
}

func NewEventConsumer(chainID uint64, mined MinedHandler, q queue.Queue, logger *zap.Logger) *EventConsumer {
	return &EventConsumer{
		chainID: chainID,
		mined:   mined,
		queue:   q,
		logger:  logger.With(zap.Uint64("chain_id", chainID)),
	}
}

func (c *EventConsumer) Run(ctx context.Context) error {
	c.logger.Info("starting event consumer")
	return c.queue.Consume(ctx, queue.EventTopic(c.chainID), func(ctx context.Context, delivery *queue.Delivery) error {
		if err := delivery.Ack(); err != nil {
			return err
		}

		var event relay.Event
		if err := delivery.Decode(&event); err != nil {
			metrics.IncConsumedMessage(delivery.Topic, false)
			return err
		}

		err := c.HandleEvent(ctx, event)
		metrics.IncConsumedMessage(delivery.Topic, err == nil)
		return err
	})
}

func (c *EventConsumer) HandleEvent(ctx context.Context, event relay.Event) error {
	c.logger.Info("transaction event",
		zap.String("transaction_id", event.TransactionID),
		zap.String("event", string(event.Event)),
		zap.String("transaction_hash", event.TransactionHash),
		zap.String("error", event.Error))

	if event.Event != relay.EventTransactionMined {
		return nil
	}
	if event.RelayerAddress == "" {
		return fmt.Errorf("mined event of transaction %s has no relayer address", event.TransactionID)
	}

	err := c.mined.PostTransactionMined(ctx, event.RelayerManagerName, c.chainID, event.RelayerAddress)
	if err != nil {
		return fmt.Errorf("failed to release relayer %s: %w", event.RelayerAddress, err)
	}
	return nil
}
