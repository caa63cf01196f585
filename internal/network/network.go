package network

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"github.com/bcnmy/relayer-node/internal/metrics"
	"github.com/bcnmy/relayer-node/internal/relay"
)

const defaultReceiptPollInterval = 2 * time.Second

// Client is the blockchain RPC provider of one chain.
type Client interface {
	ChainID(ctx context.Context) (uint64, error)
	GetBalance(ctx context.Context, address string) (*big.Int, error)
	// GetNonce returns the pending nonce when pending is set, the mined one otherwise.
	GetNonce(ctx context.Context, address string, pending bool) (uint64, error)
	GetGasPrice(ctx context.Context) (*big.Int, error)
	GetEIP1559Fees(ctx context.Context) (maxFeePerGas, maxPriorityFeePerGas *big.Int, err error)
	SendTransaction(ctx context.Context, tx *types.Transaction) (string, error)
	// GetTransactionReceipt returns nil without error when the transaction is not mined yet.
	GetTransactionReceipt(ctx context.Context, hash string) (*relay.Receipt, error)
	// WaitForTransaction blocks until the transaction is mined or ctx is done.
	WaitForTransaction(ctx context.Context, hash string) (*relay.Receipt, error)
}

type Config struct {
	ChainID             uint64
	URLs                []string
	ReceiptPollInterval time.Duration
}

// EVMClient talks to a list of fallback endpoints, moving to the next one on transient errors.
// A call is attempted at most once per endpoint.
type EVMClient struct {
	chainID      uint64
	urls         []string
	clients      []*ethclient.Client
	current      atomic.Uint32
	pollInterval time.Duration
	logger       *zap.Logger
}

func NewEVMClient(ctx context.Context, cfg Config, logger *zap.Logger) (*EVMClient, error) {
	if len(cfg.URLs) == 0 {
		return nil, fmt.Errorf("no rpc urls configured for chain %d", cfg.ChainID)
	}

	clients := make([]*ethclient.Client, 0, len(cfg.URLs))
	for _, url := range cfg.URLs {
		client, err := ethclient.DialContext(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("failed to dial rpc endpoint of chain %d: %w", cfg.ChainID, err)
		}
		clients = append(clients, client)
	}

	pollInterval := cfg.ReceiptPollInterval
	if pollInterval <= 0 {
		pollInterval = defaultReceiptPollInterval
	}

	return &EVMClient{
		chainID:      cfg.ChainID,
		urls:         cfg.URLs,
		clients:      clients,
		pollInterval: pollInterval,
		logger:       logger,
	}, nil
}

func (c *EVMClient) ChainID(ctx context.Context) (uint64, error) {
	var chainID *big.Int
	err := c.do(ctx, "eth_chainId", func(client *ethclient.Client) error {
		var err error
		chainID, err = client.ChainID(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get chain id: %w", err)
	}
	return chainID.Uint64(), nil
}

func (c *EVMClient) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	var balance *big.Int
	err := c.do(ctx, "eth_getBalance", func(client *ethclient.Client) error {
		var err error
		balance, err = client.BalanceAt(ctx, common.HexToAddress(address), nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get balance of %s: %w", address, err)
	}
	return balance, nil
}

func (c *EVMClient) GetNonce(ctx context.Context, address string, pending bool) (uint64, error) {
	var nonce uint64
	err := c.do(ctx, "eth_getTransactionCount", func(client *ethclient.Client) error {
		var err error
		if pending {
			nonce, err = client.PendingNonceAt(ctx, common.HexToAddress(address))
		} else {
			nonce, err = client.NonceAt(ctx, common.HexToAddress(address), nil)
		}
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get nonce of %s: %w", address, err)
	}
	return nonce, nil
}

func (c *EVMClient) GetGasPrice(ctx context.Context) (*big.Int, error) {
	var price *big.Int
	err := c.do(ctx, "eth_gasPrice", func(client *ethclient.Client) error {
		var err error
		price, err = client.SuggestGasPrice(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}
	return price, nil
}

// GetEIP1559Fees estimates fee legs as priority = eth_maxPriorityFeePerGas and
// maxFee = 2 * latest base fee + priority.
func (c *EVMClient) GetEIP1559Fees(ctx context.Context) (*big.Int, *big.Int, error) {
	var (
		tip  *big.Int
		head *types.Header
	)
	err := c.do(ctx, "eth_maxPriorityFeePerGas", func(client *ethclient.Client) error {
		var err error
		tip, err = client.SuggestGasTipCap(ctx)
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get max priority fee: %w", err)
	}

	err = c.do(ctx, "eth_getBlockByNumber", func(client *ethclient.Client) error {
		var err error
		head, err = client.HeaderByNumber(ctx, nil)
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get latest block header: %w", err)
	}
	if head.BaseFee == nil {
		return nil, nil, fmt.Errorf("chain %d does not report a base fee", c.chainID)
	}

	maxFee := new(big.Int).Mul(head.BaseFee, big.NewInt(2))
	maxFee.Add(maxFee, tip)
	return maxFee, tip, nil
}

func (c *EVMClient) SendTransaction(ctx context.Context, tx *types.Transaction) (string, error) {
	err := c.do(ctx, "eth_sendRawTransaction", func(client *ethclient.Client) error {
		return client.SendTransaction(ctx, tx)
	})
	if err != nil {
		return "", err
	}
	return tx.Hash().Hex(), nil
}

func (c *EVMClient) GetTransactionReceipt(ctx context.Context, hash string) (*relay.Receipt, error) {
	var receipt *types.Receipt
	err := c.do(ctx, "eth_getTransactionReceipt", func(client *ethclient.Client) error {
		var err error
		receipt, err = client.TransactionReceipt(ctx, common.HexToHash(hash))
		return err
	})
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get receipt of %s: %w", hash, err)
	}
	return toReceipt(receipt), nil
}

func (c *EVMClient) WaitForTransaction(ctx context.Context, hash string) (*relay.Receipt, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.GetTransactionReceipt(ctx, hash)
		if err != nil {
			c.logger.Debug("failed to poll transaction receipt", zap.String("transaction_hash", hash), zap.Error(err))
		}
		if receipt != nil {
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *EVMClient) Close() {
	for _, client := range c.clients {
		client.Close()
	}
}

func (c *EVMClient) do(ctx context.Context, method string, call func(client *ethclient.Client) error) error {
	return retry.Do(func() error {
		start := time.Now()
		err := call(c.clients[c.current.Load()%uint32(len(c.clients))])
		if err != nil {
			metrics.AddFailedRequest(method, time.Since(start).Seconds())
			return err
		}
		metrics.AddSuccessRequest(method, time.Since(start).Seconds())
		return nil
	},
		retry.Context(ctx),
		retry.Attempts(uint(len(c.clients))),
		retry.Delay(0),
		retry.LastErrorOnly(true),
		retry.RetryIf(isTransient),
		retry.OnRetry(func(n uint, err error) {
			next := c.current.Add(1) % uint32(len(c.clients))
			c.logger.Warn("rpc endpoint failed, switching to fallback",
				zap.Uint64("chain_id", c.chainID),
				zap.String("method", method),
				zap.String("next_url", c.urls[next]),
				zap.Error(err))
		}),
	)
}

func isTransient(err error) bool {
	if errors.Is(err, ethereum.NotFound) {
		return false
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		// the node answered, another endpoint would answer the same
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		return true
	}

	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}

func toReceipt(receipt *types.Receipt) *relay.Receipt {
	r := &relay.Receipt{
		TransactionHash: receipt.TxHash.Hex(),
		Status:          receipt.Status,
		GasUsed:         receipt.GasUsed,
	}
	if receipt.BlockNumber != nil {
		r.BlockNumber = receipt.BlockNumber.Uint64()
	}
	return r
}
