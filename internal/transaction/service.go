package transaction

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/bcnmy/relayer-node/internal/account"
	"github.com/bcnmy/relayer-node/internal/cache"
	"github.com/bcnmy/relayer-node/internal/gasprice"
	"github.com/bcnmy/relayer-node/internal/metrics"
	"github.com/bcnmy/relayer-node/internal/network"
	"github.com/bcnmy/relayer-node/internal/notification"
	"github.com/bcnmy/relayer-node/internal/relay"
)

const (
	CodeSuccess          = 200
	CodeMaxRetryExceeded = 404
	CodeFailed           = 500

	DefaultMaxRetryCount = 5
)

type NonceManager interface {
	GetNonce(ctx context.Context, address string, pending bool) (uint64, error)
	IncrementNonce(ctx context.Context, address string) (uint64, error)
	SetNonce(ctx context.Context, address string, nonce uint64) error
}

type GasPriceOracle interface {
	GetGasPrice(ctx context.Context, tier gasprice.Tier) (gasprice.Price, error)
	GetNetworkGasPrice(ctx context.Context) (gasprice.Price, error)
	GetBumpedUpGasPrice(past gasprice.Price, bumpPercent uint64) (gasprice.Price, error)
}

// Listener is told about every execution attempt.
type Listener interface {
	Notify(ctx context.Context, params relay.NotifyParams) (relay.NotifyResult, error)
}

// Funder tops up relayers of a manager that ran out of funds.
type Funder interface {
	FundRelayers(ctx context.Context, managerName string, chainID uint64, addresses []string) error
}

type Options struct {
	ChainID uint64
	// MaxRetryCount is keyed by transaction type, DefaultMaxRetryCount applies to missing types.
	MaxRetryCount       map[relay.TransactionType]int
	BumpGasPricePercent uint64
	ErrorMessages       ErrorMessages
}

type Dependencies struct {
	Client   network.Client
	Nonces   NonceManager
	GasPrice GasPriceOracle
	Cache    cache.Cache
	Listener Listener
	Notifier notification.Notifier
	Funder   Funder
}

// Service builds, signs and broadcasts the transactions of one chain.
type Service struct {
	opts     Options
	messages ErrorMessages
	client   network.Client
	nonces   NonceManager
	gas      GasPriceOracle
	cache    cache.Cache
	listener Listener
	notifier notification.Notifier
	funder   Funder
	logger   *zap.Logger
}

func NewService(opts Options, deps Dependencies, logger *zap.Logger) *Service {
	return &Service{
		opts:     opts,
		messages: opts.ErrorMessages.withDefaults(),
		client:   deps.Client,
		nonces:   deps.Nonces,
		gas:      deps.GasPrice,
		cache:    deps.Cache,
		listener: deps.Listener,
		notifier: deps.Notifier,
		funder:   deps.Funder,
		logger:   logger.With(zap.Uint64("chain_id", opts.ChainID)),
	}
}

func (s *Service) ChainID() uint64 {
	return s.opts.ChainID
}

// SendTransaction relays a new transaction with the relayer signer.
func (s *Service) SendTransaction(
	ctx context.Context,
	data relay.TransactionData,
	signer account.Signer,
	transactionType relay.TransactionType,
	managerName string,
) relay.Result {
	relayerAddress := signer.GetPublicKey()
	logger := s.logger.With(
		zap.String("transaction_id", data.TransactionID),
		zap.String("relayer_address", relayerAddress),
		zap.String("transaction_type", string(transactionType)),
	)
	logger.Info("transaction request received")

	if s.maxRetryCountExceeded(ctx, data.TransactionID, relayerAddress, transactionType, logger) {
		return failedResult(data.TransactionID, CodeMaxRetryExceeded, ErrMaxRetryCountExceeded)
	}

	raw, err := s.createTransaction(ctx, data, relayerAddress)
	if err != nil {
		logger.Error("failed to create transaction", zap.Error(err))
		metrics.IncFailedTxSubmit(s.opts.ChainID, string(transactionType))
		return failedResult(data.TransactionID, CodeFailed, err)
	}

	response, raw, err := s.execute(ctx, raw, signer, transactionType, managerName, false)
	notifyParams := relay.NotifyParams{
		TransactionID:      data.TransactionID,
		TransactionType:    transactionType,
		RelayerAddress:     relayerAddress,
		RelayerManagerName: managerName,
		WalletAddress:      data.WalletAddress,
		RawTransaction:     raw,
	}
	if err != nil {
		logger.Error("failed to execute transaction", zap.Error(err))
		notifyParams.Error = err.Error()
		s.notify(ctx, notifyParams, logger)
		metrics.IncFailedTxSubmit(s.opts.ChainID, string(transactionType))
		return failedResult(data.TransactionID, CodeFailed, err)
	}

	if _, err := s.nonces.IncrementNonce(ctx, relayerAddress); err != nil {
		logger.Error("failed to increment relayer nonce", zap.Error(err))
	}

	notifyParams.ExecutionResponse = response
	result := s.notify(ctx, notifyParams, logger)
	metrics.IncSuccessTxSubmit(s.opts.ChainID, string(transactionType))
	logger.Info("transaction sent", zap.String("transaction_hash", response.Hash), zap.Uint64("nonce", raw.Nonce))

	return successResult(data.TransactionID, response, result)
}

// RetryTransaction sends the transaction of a retry check again with a bumped gas price.
func (s *Service) RetryTransaction(
	ctx context.Context,
	retry relay.RetryMessage,
	signer account.Signer,
	transactionType relay.TransactionType,
) relay.Result {
	logger := s.logger.With(
		zap.String("transaction_id", retry.TransactionID),
		zap.String("previous_transaction_hash", retry.TransactionHash),
	)

	count, err := s.cache.Increment(ctx, relay.RetryCountKey(retry.TransactionID, s.opts.ChainID), 1)
	if err != nil {
		logger.Error("failed to increment retry count", zap.Error(err))
	}
	if s.maxRetryCountExceeded(ctx, retry.TransactionID, signer.GetPublicKey(), transactionType, logger) {
		metrics.IncTxRetry(s.opts.ChainID, string(transactionType), false)
		return failedResult(retry.TransactionID, CodeMaxRetryExceeded, ErrMaxRetryCountExceeded)
	}

	past, err := gasprice.FromRawTransaction(retry.RawTransaction)
	if err != nil {
		metrics.IncTxRetry(s.opts.ChainID, string(transactionType), false)
		return failedResult(retry.TransactionID, CodeFailed, fmt.Errorf("failed to read last used gas price: %w", err))
	}
	bumped, err := s.gas.GetBumpedUpGasPrice(past, s.opts.BumpGasPricePercent)
	if err != nil {
		metrics.IncTxRetry(s.opts.ChainID, string(transactionType), false)
		return failedResult(retry.TransactionID, CodeFailed, fmt.Errorf("failed to bump gas price: %w", err))
	}

	logger.Info("retrying transaction",
		zap.Int64("retry_count", count),
		zap.Stringer("past_gas_price", past),
		zap.Stringer("bumped_gas_price", bumped))
	return s.replace(ctx, retry, signer, transactionType, bumped, logger)
}

// ResubmitTransaction sends the transaction of retry again with an explicit gas price.
func (s *Service) ResubmitTransaction(
	ctx context.Context,
	retry relay.RetryMessage,
	signer account.Signer,
	transactionType relay.TransactionType,
	price gasprice.Price,
) relay.Result {
	logger := s.logger.With(
		zap.String("transaction_id", retry.TransactionID),
		zap.String("previous_transaction_hash", retry.TransactionHash),
	)
	logger.Info("resubmitting transaction", zap.Stringer("gas_price", price))
	return s.replace(ctx, retry, signer, transactionType, price, logger)
}

// ExecuteTransaction signs and broadcasts raw. Provider errors are classified into the sentinel
// errors of this package. A transaction the node already knows is reported as sent.
func (s *Service) ExecuteTransaction(
	ctx context.Context,
	raw relay.RawTransaction,
	signer account.Signer,
) (*relay.ExecutionResponse, error) {
	tx, err := toTransaction(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotRetriable, err)
	}
	signed, err := signer.SignTransaction(tx, new(big.Int).SetUint64(raw.ChainID))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to sign transaction: %v", ErrNotRetriable, err)
	}

	hash, err := s.client.SendTransaction(ctx, signed)
	if err != nil {
		classified := s.messages.Classify(err)
		if errors.Is(classified, ErrAlreadyKnown) {
			s.logger.Info("transaction already known to the network",
				zap.String("transaction_hash", signed.Hash().Hex()),
				zap.String("relayer_address", raw.From))
			return executionResponse(signed.Hash().Hex(), raw), nil
		}
		return nil, classified
	}

	return executionResponse(hash, raw), nil
}

func (s *Service) replace(
	ctx context.Context,
	retry relay.RetryMessage,
	signer account.Signer,
	transactionType relay.TransactionType,
	price gasprice.Price,
	logger *zap.Logger,
) relay.Result {
	raw := retry.RawTransaction
	price.ApplyTo(&raw)

	response, raw, err := s.execute(ctx, raw, signer, transactionType, retry.RelayerManagerName, true)
	if err != nil {
		logger.Error("failed to execute replacement transaction", zap.Error(err))
		metrics.IncTxRetry(s.opts.ChainID, string(transactionType), false)
		return failedResult(retry.TransactionID, CodeFailed, err)
	}

	result := s.notify(ctx, relay.NotifyParams{
		ExecutionResponse:         response,
		TransactionID:             retry.TransactionID,
		TransactionType:           transactionType,
		RelayerAddress:            signer.GetPublicKey(),
		RelayerManagerName:        retry.RelayerManagerName,
		WalletAddress:             retry.WalletAddress,
		PreviousTransactionHash:   retry.TransactionHash,
		PreviousTransactionHashes: retry.History(),
		RawTransaction:            raw,
	}, logger)
	metrics.IncTxRetry(s.opts.ChainID, string(transactionType), true)
	logger.Info("replacement transaction sent", zap.String("transaction_hash", response.Hash))

	return successResult(retry.TransactionID, response, result)
}

// execute runs the transaction and recovers once from a stale nonce or an underpriced
// replacement. A replacement keeps its nonce, a stale nonce on it means the previous hash got mined.
func (s *Service) execute(
	ctx context.Context,
	raw relay.RawTransaction,
	signer account.Signer,
	transactionType relay.TransactionType,
	managerName string,
	replacement bool,
) (*relay.ExecutionResponse, relay.RawTransaction, error) {
	response, err := s.ExecuteTransaction(ctx, raw, signer)
	if err == nil {
		return response, raw, nil
	}

	logger := s.logger.With(zap.String("relayer_address", raw.From), zap.Uint64("nonce", raw.Nonce))
	switch {
	case errors.Is(err, ErrNonceTooLow) && !replacement:
		nonce, nonceErr := s.client.GetNonce(ctx, raw.From, true)
		if nonceErr != nil {
			return nil, raw, fmt.Errorf("failed to get pending nonce: %w", nonceErr)
		}
		logger.Info("nonce too low, retrying with pending nonce", zap.Uint64("pending_nonce", nonce))
		if setErr := s.nonces.SetNonce(ctx, raw.From, nonce); setErr != nil {
			logger.Error("failed to reset relayer nonce", zap.Error(setErr))
		}
		raw.Nonce = nonce

	case errors.Is(err, ErrReplacementUnderpriced):
		price, priceErr := s.replacementPrice(ctx, raw)
		if priceErr != nil {
			return nil, raw, priceErr
		}
		logger.Info("replacement underpriced, retrying with bumped gas price", zap.Stringer("gas_price", price))
		price.ApplyTo(&raw)

	case errors.Is(err, ErrInsufficientFunds):
		logger.Info("relayer has insufficient funds")
		if transactionType != relay.TransactionTypeFunding {
			s.requestFunding(ctx, managerName, raw.From)
		}
		return nil, raw, err

	default:
		return nil, raw, err
	}

	response, err = s.ExecuteTransaction(ctx, raw, signer)
	if err != nil {
		return nil, raw, err
	}
	return response, raw, nil
}

// replacementPrice bumps the higher of the network price and the price raw was sent with.
func (s *Service) replacementPrice(ctx context.Context, raw relay.RawTransaction) (gasprice.Price, error) {
	last, err := gasprice.FromRawTransaction(raw)
	if err != nil {
		return gasprice.Price{}, fmt.Errorf("failed to read last used gas price: %w", err)
	}
	current, err := s.gas.GetNetworkGasPrice(ctx)
	if err != nil {
		return gasprice.Price{}, fmt.Errorf("failed to get network gas price: %w", err)
	}

	bumped, err := s.gas.GetBumpedUpGasPrice(gasprice.MaxPrice(current, last), s.opts.BumpGasPricePercent)
	if err != nil {
		return gasprice.Price{}, fmt.Errorf("failed to bump gas price: %w", err)
	}
	return bumped, nil
}

func (s *Service) createTransaction(ctx context.Context, data relay.TransactionData, relayerAddress string) (relay.RawTransaction, error) {
	nonce, err := s.nonces.GetNonce(ctx, relayerAddress, false)
	if err != nil {
		return relay.RawTransaction{}, fmt.Errorf("failed to get relayer nonce: %w", err)
	}
	price, err := s.gas.GetGasPrice(ctx, tierForSpeed(data.Speed))
	if err != nil {
		return relay.RawTransaction{}, fmt.Errorf("failed to get gas price: %w", err)
	}

	value := data.Value
	if value == "" {
		value = "0x0"
	}
	raw := relay.RawTransaction{
		From:     relayerAddress,
		To:       data.To,
		Value:    value,
		Data:     data.Data,
		GasLimit: data.GasLimit,
		ChainID:  s.opts.ChainID,
		Nonce:    nonce,
	}
	price.ApplyTo(&raw)
	return raw, nil
}

func (s *Service) maxRetryCountExceeded(
	ctx context.Context,
	transactionID, relayerAddress string,
	transactionType relay.TransactionType,
	logger *zap.Logger,
) bool {
	value, found, err := s.cache.Get(ctx, relay.RetryCountKey(transactionID, s.opts.ChainID))
	if err != nil {
		logger.Error("failed to get retry count", zap.Error(err))
		return false
	}
	if !found {
		return false
	}
	count, err := strconv.Atoi(value)
	if err != nil {
		logger.Error("invalid retry count in cache", zap.String("value", value), zap.Error(err))
		return false
	}

	maxCount, ok := s.opts.MaxRetryCount[transactionType]
	if !ok {
		maxCount = DefaultMaxRetryCount
	}
	if count <= maxCount {
		return false
	}

	logger.Warn("max retry count exceeded", zap.Int("retry_count", count), zap.Int("max_retry_count", maxCount))
	if s.notifier != nil {
		message := notification.MaxRetryCountMessage(transactionID, relayerAddress, transactionType, s.opts.ChainID)
		if err := s.notifier.Notify(ctx, message); err != nil {
			logger.Error("failed to send max retry count notification", zap.Error(err))
		}
	}
	return true
}

func (s *Service) requestFunding(ctx context.Context, managerName, address string) {
	if s.funder == nil {
		return
	}
	go func() {
		if err := s.funder.FundRelayers(context.WithoutCancel(ctx), managerName, s.opts.ChainID, []string{address}); err != nil {
			s.logger.Error("failed to fund relayer", zap.String("relayer_address", address), zap.Error(err))
		}
	}()
}

func (s *Service) notify(ctx context.Context, params relay.NotifyParams, logger *zap.Logger) relay.NotifyResult {
	result, err := s.listener.Notify(ctx, params)
	if err != nil {
		logger.Error("failed to notify transaction listener", zap.Error(err))
		result.IsTransactionRelayed = params.ExecutionResponse != nil
		result.ExecutionResponse = params.ExecutionResponse
	}
	return result
}

func tierForSpeed(speed string) gasprice.Tier {
	switch gasprice.Tier(strings.ToUpper(speed)) {
	case gasprice.TierMedium:
		return gasprice.TierMedium
	case gasprice.TierFast:
		return gasprice.TierFast
	default:
		return gasprice.TierDefault
	}
}

func successResult(transactionID string, response *relay.ExecutionResponse, notified relay.NotifyResult) relay.Result {
	return relay.Result{
		State:                relay.StateSuccess,
		Code:                 CodeSuccess,
		TransactionID:        transactionID,
		TransactionHash:      response.Hash,
		IsTransactionRelayed: notified.IsTransactionRelayed,
		ExecutionResponse:    response,
	}
}

func failedResult(transactionID string, code int, err error) relay.Result {
	return relay.Result{
		State:         relay.StateFailed,
		Code:          code,
		TransactionID: transactionID,
		Error:         err.Error(),
	}
}
