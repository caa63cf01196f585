package listener

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/bcnmy/relayer-node/internal/cache"
	"github.com/bcnmy/relayer-node/internal/metrics"
	"github.com/bcnmy/relayer-node/internal/network"
	"github.com/bcnmy/relayer-node/internal/queue"
	"github.com/bcnmy/relayer-node/internal/relay"
)

const (
	DefaultRetryDelay     = 60 * time.Second
	DefaultMinedCacheSize = 10_000
)

var (
	storageRetryAttempts = retry.Attempts(3)
	storageRetryDelay    = retry.Delay(100 * time.Millisecond)
)

type Options struct {
	ChainID uint64
	// RetryDelay is how long after a broadcast the retry check of a hash is delivered.
	RetryDelay time.Duration
	// MinedCacheSize bounds the transaction ids remembered as mined.
	MinedCacheSize int
}

type Dependencies struct {
	Client  network.Client
	Queue   queue.Queue
	Storage relay.Storage
	Cache   cache.Cache
}

type waiter struct {
	transactionID string
	cancel        context.CancelFunc
}

// Listener records every broadcast hash of a chain, schedules its retry check and follows it
// to its receipt in the background. All hashes of a transaction are followed until the first
// of them is mined.
type Listener struct {
	opts    Options
	client  network.Client
	queue   queue.Queue
	storage relay.Storage
	cache   cache.Cache
	logger  *zap.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	waiters map[string]waiter
	mined   *lru.Cache[string, struct{}]
}

func NewListener(opts Options, deps Dependencies, logger *zap.Logger) *Listener {
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.MinedCacheSize <= 0 {
		opts.MinedCacheSize = DefaultMinedCacheSize
	}
	// only fails on a non positive size
	mined, _ := lru.New[string, struct{}](opts.MinedCacheSize)

	ctx, cancel := context.WithCancel(context.Background())
	return &Listener{
		opts:    opts,
		client:  deps.Client,
		queue:   deps.Queue,
		storage: deps.Storage,
		cache:   deps.Cache,
		logger:  logger.With(zap.Uint64("chain_id", opts.ChainID)),
		ctx:     ctx,
		cancel:  cancel,
		waiters: make(map[string]waiter),
		mined:   mined,
	}
}

// Notify handles the outcome of one execution attempt. It returns before the transaction is
// mined; the final state is only published as an event.
func (l *Listener) Notify(ctx context.Context, params relay.NotifyParams) (relay.NotifyResult, error) {
	logger := l.logger.With(
		zap.String("transaction_id", params.TransactionID),
		zap.String("relayer_address", params.RelayerAddress),
	)

	if params.ExecutionResponse == nil {
		logger.Error("transaction was not executed", zap.String("error", params.Error))
		err := l.publishEvent(ctx, relay.Event{
			TransactionID:      params.TransactionID,
			Event:              relay.EventTransactionError,
			RelayerManagerName: params.RelayerManagerName,
			RelayerAddress:     params.RelayerAddress,
			Error:              params.Error,
		})
		return relay.NotifyResult{}, err
	}

	hash := params.ExecutionResponse.Hash
	logger = logger.With(zap.String("transaction_hash", hash))

	if err := l.saveHash(ctx, params); err != nil {
		logger.Error("failed to save transaction hash", zap.Error(err))
	}

	eventType := relay.EventTransactionHashGenerated
	if params.PreviousTransactionHash != "" {
		eventType = relay.EventTransactionHashChanged
	}

	var errs []error
	if err := l.publishEvent(ctx, relay.Event{
		TransactionID:           params.TransactionID,
		Event:                   eventType,
		RelayerManagerName:      params.RelayerManagerName,
		RelayerAddress:          params.RelayerAddress,
		TransactionHash:         hash,
		PreviousTransactionHash: params.PreviousTransactionHash,
	}); err != nil {
		errs = append(errs, err)
	}

	retryMessage := relay.RetryMessage{
		TransactionID:      params.TransactionID,
		TransactionHash:    hash,
		TransactionType:    params.TransactionType,
		RelayerAddress:     params.RelayerAddress,
		RelayerManagerName: params.RelayerManagerName,
		WalletAddress:      params.WalletAddress,
		RawTransaction:     params.RawTransaction,
	}
	if len(params.PreviousTransactionHashes) > 0 {
		retryMessage.PreviousTransactionHashes = append([]string(nil), params.PreviousTransactionHashes...)
	} else if params.PreviousTransactionHash != "" {
		retryMessage.PreviousTransactionHashes = []string{params.PreviousTransactionHash}
	}
	err := l.queue.Publish(ctx, queue.RetryTopic(l.opts.ChainID), retryMessage, queue.WithDelay(l.opts.RetryDelay))
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to publish retry check: %w", err))
	} else {
		logger.Info("retry check scheduled", zap.Duration("delay", l.opts.RetryDelay))
	}

	l.waitForReceipt(params)

	return relay.NotifyResult{
		IsTransactionRelayed: true,
		ExecutionResponse:    params.ExecutionResponse,
	}, errors.Join(errs...)
}

// Wait blocks until every receipt wait started so far has finished.
func (l *Listener) Wait() {
	l.wg.Wait()
}

// Close stops the pending receipt waits.
func (l *Listener) Close() {
	l.cancel()
	l.wg.Wait()
}

// saveHash persists the hash. The first hash fills the record created for the request, a
// replacement drops the previous record and appends a new one linked to it.
func (l *Listener) saveHash(ctx context.Context, params relay.NotifyParams) error {
	response := params.ExecutionResponse
	pending := relay.Pending
	raw := params.RawTransaction
	gasPrice := lastUsedGasPrice(raw)

	if params.PreviousTransactionHash == "" {
		var found bool
		err := l.withRetry(ctx, func() error {
			var err error
			found, err = l.storage.UpdateByTransactionID(l.opts.ChainID, params.TransactionID, relay.RecordUpdate{
				TransactionHash:    &response.Hash,
				Status:             &pending,
				RawTransaction:     &raw,
				GasPrice:           &gasPrice,
				RelayerAddress:     &params.RelayerAddress,
				RelayerManagerName: &params.RelayerManagerName,
			})
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to update transaction record: %w", err)
		}
		if found {
			return nil
		}
		return l.saveRecord(ctx, params, "")
	}

	dropped := relay.Dropped
	resubmitted := true
	err := l.withRetry(ctx, func() error {
		found, err := l.storage.UpdateByTransactionIDAndHash(
			l.opts.ChainID, params.TransactionID, params.PreviousTransactionHash,
			relay.RecordUpdate{Status: &dropped, Resubmitted: &resubmitted},
		)
		if err == nil && !found {
			l.logger.Warn("previous transaction record not found",
				zap.String("transaction_id", params.TransactionID),
				zap.String("previous_transaction_hash", params.PreviousTransactionHash))
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to drop previous transaction record: %w", err)
	}

	return l.saveRecord(ctx, params, params.PreviousTransactionHash)
}

func (l *Listener) saveRecord(ctx context.Context, params relay.NotifyParams, previousHash string) error {
	raw := params.RawTransaction
	record := relay.TransactionRecord{
		TransactionID:           params.TransactionID,
		TransactionType:         params.TransactionType,
		TransactionHash:         params.ExecutionResponse.Hash,
		PreviousTransactionHash: previousHash,
		Status:                  relay.Pending,
		RawTransaction:          &raw,
		GasPrice:                lastUsedGasPrice(raw),
		ChainID:                 l.opts.ChainID,
		RelayerAddress:          params.RelayerAddress,
		RelayerManagerName:      params.RelayerManagerName,
		WalletAddress:           params.WalletAddress,
	}
	err := l.withRetry(ctx, func() error {
		return l.storage.SaveTransaction(record)
	})
	if err != nil {
		return fmt.Errorf("failed to save transaction record: %w", err)
	}
	return nil
}

func (l *Listener) waitForReceipt(params relay.NotifyParams) {
	hash := params.ExecutionResponse.Hash

	l.mu.Lock()
	if _, ok := l.waiters[hash]; ok {
		l.mu.Unlock()
		return
	}
	if l.mined.Contains(params.TransactionID) {
		l.mu.Unlock()
		l.logger.Info("transaction already mined, not waiting for replacement",
			zap.String("transaction_id", params.TransactionID),
			zap.String("transaction_hash", hash))
		return
	}
	ctx, cancel := context.WithCancel(l.ctx)
	l.waiters[hash] = waiter{transactionID: params.TransactionID, cancel: cancel}
	l.mu.Unlock()

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer l.stopWaiting(hash)

		if err := l.onReceipt(ctx, params); err != nil {
			l.logger.Error("failed to follow transaction to its receipt",
				zap.String("transaction_id", params.TransactionID),
				zap.String("transaction_hash", hash),
				zap.Error(err))
		}
	}()
}

func (l *Listener) stopWaiting(hash string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if w, ok := l.waiters[hash]; ok {
		w.cancel()
		delete(l.waiters, hash)
	}
}

// claim marks the transaction of hash as mined and stops following its other hashes, which
// it returns. It reports false when another hash of the transaction was mined first.
func (l *Listener) claim(transactionID, hash string) ([]string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.mined.Contains(transactionID) {
		return nil, false
	}
	l.mined.Add(transactionID, struct{}{})

	var others []string
	for h, w := range l.waiters {
		if h == hash || w.transactionID != transactionID {
			continue
		}
		w.cancel()
		delete(l.waiters, h)
		others = append(others, h)
	}
	return others, true
}

// IsMined reports whether a hash of the transaction was seen mined.
func (l *Listener) IsMined(transactionID string) bool {
	return l.mined.Contains(transactionID)
}

func (l *Listener) onReceipt(ctx context.Context, params relay.NotifyParams) error {
	hash := params.ExecutionResponse.Hash

	receipt, err := l.client.WaitForTransaction(ctx, hash)
	if err != nil {
		if ctx.Err() != nil {
			l.logger.Debug("stopped waiting for receipt", zap.String("transaction_hash", hash))
			return nil
		}
		return fmt.Errorf("failed to wait for transaction: %w", err)
	}
	ctx = context.WithoutCancel(ctx)

	others, ok := l.claim(params.TransactionID, hash)
	if !ok {
		l.logger.Info("another hash of the transaction was mined first",
			zap.String("transaction_id", params.TransactionID),
			zap.String("transaction_hash", hash))
		return nil
	}

	if err := l.cache.Delete(ctx, relay.RetryCountKey(params.TransactionID, l.opts.ChainID)); err != nil {
		l.logger.Error("failed to delete retry count", zap.String("transaction_id", params.TransactionID), zap.Error(err))
	}

	status := relay.Success
	if receipt.Status == 0 {
		status = relay.Failed
	}
	l.logger.Info("transaction mined",
		zap.String("transaction_id", params.TransactionID),
		zap.String("transaction_hash", hash),
		zap.String("status", string(status)),
		zap.Uint64("block_number", receipt.BlockNumber))

	var errs []error
	err = l.withRetry(ctx, func() error {
		_, err := l.storage.UpdateByTransactionIDAndHash(l.opts.ChainID, params.TransactionID, hash, relay.RecordUpdate{
			Status:  &status,
			Receipt: receipt,
		})
		return err
	})
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to update transaction record: %w", err))
	}

	dropped := relay.Dropped
	for _, other := range others {
		other := other
		err = l.withRetry(ctx, func() error {
			_, err := l.storage.UpdateByTransactionIDAndHash(l.opts.ChainID, params.TransactionID, other, relay.RecordUpdate{
				Status: &dropped,
			})
			return err
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to drop transaction record %s: %w", other, err))
		}
	}

	err = l.publishEvent(ctx, relay.Event{
		TransactionID:      params.TransactionID,
		Event:              relay.EventTransactionMined,
		RelayerManagerName: params.RelayerManagerName,
		RelayerAddress:     params.RelayerAddress,
		TransactionHash:    hash,
		Receipt:            receipt,
	})
	if err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (l *Listener) publishEvent(ctx context.Context, event relay.Event) error {
	metrics.IncLifecycleEvent(l.opts.ChainID, string(event.Event))
	if err := l.queue.Publish(ctx, queue.EventTopic(l.opts.ChainID), event); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.Event, err)
	}
	return nil
}

func (l *Listener) withRetry(ctx context.Context, fn func() error) error {
	return retry.Do(fn,
		retry.Context(ctx),
		storageRetryAttempts,
		storageRetryDelay,
		retry.LastErrorOnly(true),
	)
}

func lastUsedGasPrice(raw relay.RawTransaction) string {
	if raw.IsDynamicFee() {
		return raw.MaxFeePerGas
	}
	return raw.GasPrice
}
