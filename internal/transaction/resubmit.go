package transaction

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/bcnmy/relayer-node/internal/account"
	"github.com/bcnmy/relayer-node/internal/gasprice"
	"github.com/bcnmy/relayer-node/internal/relay"
)

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrTransactionNotSent  = errors.New("transaction has not been sent yet")
	ErrTransactionMined    = errors.New("transaction is already mined")
	ErrUnsupportedChain    = errors.New("chain is not supported")
)

type AccountResolver interface {
	ResolveAccount(
		managerName string,
		chainID uint64,
		relayerAddress string,
		transactionType relay.TransactionType,
	) (account.Signer, error)
}

// ReplacementSender is implemented by *Service.
type ReplacementSender interface {
	ResubmitTransaction(
		ctx context.Context,
		retry relay.RetryMessage,
		signer account.Signer,
		transactionType relay.TransactionType,
		price gasprice.Price,
	) relay.Result
}

// ResubmitRequest asks to replace the latest hash of a transaction. A dynamic fee transaction
// given only GasPrice uses it for both fee legs.
type ResubmitRequest struct {
	TransactionID        string `json:"transactionId"`
	ChainID              uint64 `json:"chainId"`
	GasPrice             string `json:"gasPrice,omitempty"`
	MaxFeePerGas         string `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas string `json:"maxPriorityFeePerGas,omitempty"`
}

// Resubmitter replaces the pending hash of a stored transaction on operator request.
type Resubmitter struct {
	storage  relay.Storage
	accounts AccountResolver
	senders  map[uint64]ReplacementSender
	logger   *zap.Logger
}

func NewResubmitter(
	storage relay.Storage,
	accounts AccountResolver,
	senders map[uint64]ReplacementSender,
	logger *zap.Logger,
) *Resubmitter {
	return &Resubmitter{
		storage:  storage,
		accounts: accounts,
		senders:  senders,
		logger:   logger,
	}
}

func (r *Resubmitter) Resubmit(ctx context.Context, req ResubmitRequest) (relay.Result, error) {
	sender, ok := r.senders[req.ChainID]
	if !ok {
		return relay.Result{}, fmt.Errorf("%w: %d", ErrUnsupportedChain, req.ChainID)
	}

	records, err := r.storage.GetByTransactionID(req.ChainID, req.TransactionID)
	if err != nil {
		return relay.Result{}, fmt.Errorf("failed to get transaction records: %w", err)
	}
	if len(records) == 0 {
		return relay.Result{}, ErrTransactionNotFound
	}
	latest := records[0]
	switch {
	case latest.Status == relay.Success || latest.Status == relay.Failed:
		return relay.Result{}, ErrTransactionMined
	case latest.TransactionHash == "" || latest.RawTransaction == nil:
		return relay.Result{}, ErrTransactionNotSent
	}

	price, err := resubmitPrice(req, *latest.RawTransaction)
	if err != nil {
		return relay.Result{}, err
	}
	signer, err := r.accounts.ResolveAccount(latest.RelayerManagerName, req.ChainID, latest.RelayerAddress, latest.TransactionType)
	if err != nil {
		return relay.Result{}, fmt.Errorf("failed to resolve relayer account: %w", err)
	}

	r.logger.Info("operator resubmission requested",
		zap.String("transaction_id", req.TransactionID),
		zap.Uint64("chain_id", req.ChainID),
		zap.String("transaction_hash", latest.TransactionHash),
		zap.Stringer("gas_price", price))

	return sender.ResubmitTransaction(ctx, relay.RetryMessage{
		TransactionID:             latest.TransactionID,
		TransactionHash:           latest.TransactionHash,
		TransactionType:           latest.TransactionType,
		RelayerAddress:            latest.RelayerAddress,
		RelayerManagerName:        latest.RelayerManagerName,
		WalletAddress:             latest.WalletAddress,
		RawTransaction:            *latest.RawTransaction,
		PreviousTransactionHashes: previousHashes(records[1:]),
	}, signer, latest.TransactionType, price), nil
}

// previousHashes lists the hashes of records, which are ordered newest first, oldest first.
func previousHashes(records []relay.TransactionRecord) []string {
	var hashes []string
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].TransactionHash != "" {
			hashes = append(hashes, records[i].TransactionHash)
		}
	}
	return hashes
}

func resubmitPrice(req ResubmitRequest, raw relay.RawTransaction) (gasprice.Price, error) {
	if req.MaxFeePerGas != "" && req.MaxPriorityFeePerGas != "" {
		maxFee, err := gasprice.ParseWei(req.MaxFeePerGas)
		if err != nil {
			return gasprice.Price{}, fmt.Errorf("%w: maxFeePerGas: %v", ErrNotRetriable, err)
		}
		tip, err := gasprice.ParseWei(req.MaxPriorityFeePerGas)
		if err != nil {
			return gasprice.Price{}, fmt.Errorf("%w: maxPriorityFeePerGas: %v", ErrNotRetriable, err)
		}
		return gasprice.DynamicPrice(maxFee, tip), nil
	}

	gasPrice, err := gasprice.ParseWei(req.GasPrice)
	if err != nil {
		return gasprice.Price{}, fmt.Errorf("%w: gasPrice: %v", ErrNotRetriable, err)
	}
	if raw.IsDynamicFee() {
		return gasprice.DynamicPrice(gasPrice, gasPrice), nil
	}
	return gasprice.LegacyPrice(gasPrice), nil
}
