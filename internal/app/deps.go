package app

import (
	"context"
	"fmt"

	"github.com/avast/retry-go/v4"
	nlogger "github.com/neutron-org/neutron-logger"
	"go.uber.org/zap"

	"github.com/bcnmy/relayer-node/internal/cache"
	"github.com/bcnmy/relayer-node/internal/config"
	"github.com/bcnmy/relayer-node/internal/consumer"
	"github.com/bcnmy/relayer-node/internal/gasprice"
	"github.com/bcnmy/relayer-node/internal/listener"
	"github.com/bcnmy/relayer-node/internal/network"
	"github.com/bcnmy/relayer-node/internal/nonce"
	"github.com/bcnmy/relayer-node/internal/notification"
	"github.com/bcnmy/relayer-node/internal/queue"
	"github.com/bcnmy/relayer-node/internal/registry"
	"github.com/bcnmy/relayer-node/internal/relay"
	relayretry "github.com/bcnmy/relayer-node/internal/retry"
	"github.com/bcnmy/relayer-node/internal/transaction"
)

// ChainContainer holds the services of one chain. Relayer managers of every name share them.
type ChainContainer struct {
	ChainID      uint64
	Client       *network.EVMClient
	GasPrice     *gasprice.Oracle
	Refresher    *gasprice.Refresher
	Nonces       *nonce.Manager
	Listener     *listener.Listener
	Transactions *transaction.Service
	Retry        *relayretry.Service
	Events       *consumer.EventConsumer
}

// NewChainContainer dials the chain and builds its services on top of the shared node state.
func NewChainContainer(
	ctx context.Context,
	chainID uint64,
	cfg config.RelayerNodeConfig,
	c cache.Cache,
	q queue.Queue,
	storage relay.Storage,
	reg *registry.Registry,
	logRegistry *nlogger.Registry,
) (*ChainContainer, error) {
	client, err := dialChain(ctx, chainID, cfg, logRegistry.Get(NetworkContext))
	if err != nil {
		return nil, err
	}

	var (
		eip1559 = cfg.IsEIP1559(chainID)
		oracle  = gasprice.NewOracle(chainID, eip1559, c, client, logRegistry.Get(GasPriceContext))
		nonces  = nonce.NewManager(chainID, c, client, cfg.UsedNonceRetention, logRegistry.Get(NonceContext))
		txLstnr = listener.NewListener(
			listener.Options{ChainID: chainID, RetryDelay: cfg.RetryDelay(chainID)},
			listener.Dependencies{Client: client, Queue: q, Storage: storage, Cache: c},
			logRegistry.Get(ListenerContext),
		)
	)

	minPrice, maxPrice := cfg.GasPriceBounds(chainID)
	refresher := gasprice.NewRefresher(oracle, gasprice.Strategy{
		Fetch:             priceFetcher(chainID, eip1559, cfg.GasPriceConfig, client),
		MinGasPrice:       minPrice,
		MaxGasPrice:       maxPrice,
		BaseFeeMultiplier: cfg.BaseFeeMultiplierFor(chainID),
	}, cfg.UpdateFrequency, logRegistry.Get(GasPriceContext))

	transactions := transaction.NewService(
		transaction.Options{
			ChainID:             chainID,
			MaxRetryCount:       cfg.MaxRetryCounts(),
			BumpGasPricePercent: cfg.BumpPercent(chainID),
			ErrorMessages:       cfg.ErrorMessages(chainID),
		},
		transaction.Dependencies{
			Client:   client,
			Nonces:   nonces,
			GasPrice: oracle,
			Cache:    c,
			Listener: txLstnr,
			Notifier: notification.NewLogNotifier(logRegistry.Get(NotificationContext)),
			Funder:   reg,
		},
		logRegistry.Get(TransactionContext),
	)

	retryService, err := relayretry.NewService(
		relayretry.Options{ChainID: chainID, ConfirmedCacheSize: cfg.ConfirmedCacheSize},
		relayretry.Dependencies{Client: client, Transactions: transactions, Accounts: reg, Queue: q, Mined: txLstnr},
		logRegistry.Get(RetryContext),
	)
	if err != nil {
		txLstnr.Close()
		client.Close()
		return nil, fmt.Errorf("failed to create retry service for chain %d: %w", chainID, err)
	}

	return &ChainContainer{
		ChainID:      chainID,
		Client:       client,
		GasPrice:     oracle,
		Refresher:    refresher,
		Nonces:       nonces,
		Listener:     txLstnr,
		Transactions: transactions,
		Retry:        retryService,
		Events:       consumer.NewEventConsumer(chainID, reg, q, logRegistry.Get(ConsumerContext)),
	}, nil
}

func (c *ChainContainer) Close() {
	c.Listener.Close()
	c.Client.Close()
}

// dialChain connects to the rpc endpoints of the chain and checks they serve the configured chain id.
func dialChain(ctx context.Context, chainID uint64, cfg config.RelayerNodeConfig, logger *zap.Logger) (*network.EVMClient, error) {
	var client *network.EVMClient
	err := retry.Do(func() error {
		var err error
		client, err = network.NewEVMClient(ctx, network.Config{
			ChainID:             chainID,
			URLs:                cfg.URLs(chainID),
			ReceiptPollInterval: cfg.ReceiptPollInterval,
		}, logger)
		if err != nil {
			return err
		}

		networkChainID, err := client.ChainID(ctx)
		if err != nil {
			client.Close()
			return err
		}
		if networkChainID != chainID {
			client.Close()
			return retry.Unrecoverable(fmt.Errorf("rpc urls of chain %d serve chain %d", chainID, networkChainID))
		}
		return nil
	}, retry.Context(ctx), rtyAtt, rtyDel, rtyErr, retry.OnRetry(func(n uint, err error) {
		logger.Error("failed to connect to chain", zap.Uint64("chain_id", chainID), zap.Uint("attempt", n), zap.Error(err))
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to chain %d: %w", chainID, err)
	}
	return client, nil
}

// priceFetcher tries the configured gas station, then the fallback station, then the node.
func priceFetcher(chainID uint64, eip1559 bool, cfg config.GasPriceConfig, client network.Client) gasprice.FetchFunc {
	var (
		station  = gasprice.NewGasStationClient()
		fetchers []gasprice.FetchFunc
	)
	if url, ok := cfg.GasStationURLs[chainID]; ok && url != "" {
		if eip1559 {
			fetchers = append(fetchers, station.EIP1559Fetcher(url))
		} else {
			fetchers = append(fetchers, station.LegacyFetcher(url))
		}
	}
	if url, ok := cfg.FallbackGasStationURLs[chainID]; ok && url != "" {
		fetchers = append(fetchers, station.ScanFetcher(url))
	}
	fetchers = append(fetchers, gasprice.NetworkFetcher(client, eip1559))
	return gasprice.FirstOf(fetchers...)
}
