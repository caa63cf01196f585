package retry

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/bcnmy/relayer-node/internal/account"
	"github.com/bcnmy/relayer-node/internal/metrics"
	"github.com/bcnmy/relayer-node/internal/network"
	"github.com/bcnmy/relayer-node/internal/queue"
	"github.com/bcnmy/relayer-node/internal/relay"
)

const DefaultConfirmedCacheSize = 10_000

type TransactionService interface {
	RetryTransaction(
		ctx context.Context,
		retry relay.RetryMessage,
		signer account.Signer,
		transactionType relay.TransactionType,
	) relay.Result
}

// AccountResolver finds the signer a transaction was sent with.
type AccountResolver interface {
	ResolveAccount(
		managerName string,
		chainID uint64,
		relayerAddress string,
		transactionType relay.TransactionType,
	) (account.Signer, error)
}

// MinedTracker knows the transactions whose receipt was already observed.
type MinedTracker interface {
	IsMined(transactionID string) bool
}

type Options struct {
	ChainID            uint64
	ConfirmedCacheSize int
}

type Dependencies struct {
	Client       network.Client
	Transactions TransactionService
	Accounts     AccountResolver
	Queue        queue.Queue
	Mined        MinedTracker
}

// Service consumes the delayed retry checks of one chain. A check of a hash that has no receipt
// yet sends the transaction again with a bumped price, which schedules the next check.
type Service struct {
	chainID      uint64
	client       network.Client
	transactions TransactionService
	accounts     AccountResolver
	queue        queue.Queue
	mined        MinedTracker
	confirmed    *lru.Cache[string, struct{}]
	logger       *zap.Logger
}

func NewService(opts Options, deps Dependencies, logger *zap.Logger) (*Service, error) {
	size := opts.ConfirmedCacheSize
	if size <= 0 {
		size = DefaultConfirmedCacheSize
	}
	confirmed, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create confirmed transaction cache: %w", err)
	}

	return &Service{
		chainID:      opts.ChainID,
		client:       deps.Client,
		transactions: deps.Transactions,
		accounts:     deps.Accounts,
		queue:        deps.Queue,
		mined:        deps.Mined,
		confirmed:    confirmed,
		logger:       logger.With(zap.Uint64("chain_id", opts.ChainID)),
	}, nil
}

// Run consumes retry checks until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("starting retry transaction consumer")
	return s.queue.Consume(ctx, queue.RetryTopic(s.chainID), s.handleDelivery)
}

func (s *Service) handleDelivery(ctx context.Context, delivery *queue.Delivery) error {
	var message relay.RetryMessage
	if err := delivery.Decode(&message); err != nil {
		metrics.IncConsumedMessage(delivery.Topic, false)
		// a message that cannot be decoded never will be
		if ackErr := delivery.Ack(); ackErr != nil {
			s.logger.Error("failed to ack retry check", zap.Error(ackErr))
		}
		return err
	}

	// an unacked check is delivered again when the receipt lookup fails
	if err := s.CheckTransaction(ctx, message, delivery.Ack); err != nil {
		metrics.IncConsumedMessage(delivery.Topic, false)
		return err
	}
	metrics.IncConsumedMessage(delivery.Topic, true)
	return nil
}

// CheckTransaction retries the transaction of message unless one of its hashes is mined. ack is
// called once the receipt lookups succeeded, before any retry is sent.
func (s *Service) CheckTransaction(ctx context.Context, message relay.RetryMessage, ack func() error) error {
	logger := s.logger.With(
		zap.String("transaction_id", message.TransactionID),
		zap.String("transaction_hash", message.TransactionHash),
	)

	if s.isConfirmed(message.TransactionID) {
		logger.Debug("transaction already confirmed")
		return ack()
	}

	hash, receipt, err := s.findReceipt(ctx, message)
	if err != nil {
		return err
	}
	if err := ack(); err != nil {
		return err
	}

	if receipt != nil {
		s.confirmed.Add(message.TransactionID, struct{}{})
		logger.Info("transaction receipt found, not retrying",
			zap.String("mined_transaction_hash", hash),
			zap.Uint64("block_number", receipt.BlockNumber))
		return nil
	}

	signer, err := s.accounts.ResolveAccount(
		message.RelayerManagerName, s.chainID, message.RelayerAddress, message.TransactionType,
	)
	if err != nil {
		return fmt.Errorf("failed to resolve account of transaction %s: %w", message.TransactionID, err)
	}

	logger.Info("transaction receipt not found, retrying")
	result := s.transactions.RetryTransaction(ctx, message, signer, message.TransactionType)
	if result.State != relay.StateSuccess {
		logger.Error("failed to retry transaction", zap.Int("code", result.Code), zap.String("error", result.Error))
		return nil
	}
	logger.Info("transaction retried", zap.String("new_transaction_hash", result.TransactionHash))
	return nil
}

func (s *Service) isConfirmed(transactionID string) bool {
	if s.confirmed.Contains(transactionID) {
		return true
	}
	if s.mined != nil && s.mined.IsMined(transactionID) {
		s.confirmed.Add(transactionID, struct{}{})
		return true
	}
	return false
}

// findReceipt looks up the hashes of message newest first and returns the first mined one.
func (s *Service) findReceipt(ctx context.Context, message relay.RetryMessage) (string, *relay.Receipt, error) {
	hashes := message.History()
	for i := len(hashes) - 1; i >= 0; i-- {
		receipt, err := s.client.GetTransactionReceipt(ctx, hashes[i])
		if err != nil {
			return "", nil, fmt.Errorf("failed to get receipt of %s: %w", hashes[i], err)
		}
		if receipt != nil {
			return hashes[i], receipt, nil
		}
	}
	return "", nil, nil
}
