package app

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	nlogger "github.com/neutron-org/neutron-logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bcnmy/relayer-node/internal/account"
	"github.com/bcnmy/relayer-node/internal/cache"
	"github.com/bcnmy/relayer-node/internal/config"
	"github.com/bcnmy/relayer-node/internal/consumer"
	relayhttp "github.com/bcnmy/relayer-node/internal/http"
	"github.com/bcnmy/relayer-node/internal/monitoring"
	"github.com/bcnmy/relayer-node/internal/queue"
	"github.com/bcnmy/relayer-node/internal/registry"
	"github.com/bcnmy/relayer-node/internal/relay"
	"github.com/bcnmy/relayer-node/internal/relayer"
	"github.com/bcnmy/relayer-node/internal/status"
	"github.com/bcnmy/relayer-node/internal/storage"
	"github.com/bcnmy/relayer-node/internal/transaction"
)

var (
	Version = ""
	Commit  = ""
)

const (
	MainContext         = "main"
	AppContext          = "app"
	NetworkContext      = "network"
	GasPriceContext     = "gas_price"
	NonceContext        = "nonce"
	ManagerContext      = "relayer_manager"
	TransactionContext  = "transaction_service"
	ListenerContext     = "transaction_listener"
	RetryContext        = "retry_transaction"
	ConsumerContext     = "consumer"
	QueueContext        = "queue"
	StatusContext       = "status"
	NotificationContext = "notification"
)

// retries configuration for connecting to the chains
var (
	rtyAtt = retry.Attempts(uint(5))
	rtyDel = retry.Delay(time.Second * 10)
	rtyErr = retry.LastErrorOnly(true)
)

// LoggerContexts lists every logger the node asks the registry for.
func LoggerContexts() []string {
	return []string{
		MainContext,
		AppContext,
		NetworkContext,
		GasPriceContext,
		NonceContext,
		ManagerContext,
		TransactionContext,
		ListenerContext,
		RetryContext,
		ConsumerContext,
		QueueContext,
		StatusContext,
		NotificationContext,
		relayhttp.ServerContext,
		monitoring.MonitoringLoggerContext,
	}
}

// Node is a running relayer node: the shared cache, queue and storage, the services of every
// chain and the relayer managers on top of them.
type Node struct {
	cfg         config.RelayerNodeConfig
	managerCfgs map[string]config.ManagerConfig
	logRegistry *nlogger.Registry
	logger      *zap.Logger

	cache     *cache.MemoryCache
	queue     *queue.LevelDBQueue
	storage   *storage.LevelDBStorage
	registry  *registry.Registry
	chains    map[uint64]*ChainContainer
	consumers []*consumer.TransactionConsumer
	routes    map[uint64][]relay.TransactionType
}

func NewDefaultStorage(cfg config.RelayerNodeConfig) (*storage.LevelDBStorage, error) {
	leveldbStorage, err := storage.NewLevelDBStorage(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create NewLevelDBStorage: %w", err)
	}
	return leveldbStorage, nil
}

func NewDefaultQueue(cfg config.RelayerNodeConfig, logger *zap.Logger) (*queue.LevelDBQueue, error) {
	q, err := queue.NewLevelDBQueue(queue.Config{
		Path:         cfg.QueuePath,
		PollInterval: cfg.QueuePollInterval,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create NewLevelDBQueue: %w", err)
	}
	return q, nil
}

// NewNode connects to every configured chain and builds the relayer managers. It does not
// create relayers yet, Run does.
func NewNode(
	ctx context.Context,
	cfg config.RelayerNodeConfig,
	managers []config.ManagerConfig,
	logRegistry *nlogger.Registry,
) (*Node, error) {
	routes, err := BuildRoutes(managers, cfg.ChainIDs)
	if err != nil {
		return nil, err
	}

	n := &Node{
		cfg:         cfg,
		managerCfgs: make(map[string]config.ManagerConfig, len(managers)),
		logRegistry: logRegistry,
		logger:      logRegistry.Get(AppContext),
		cache:       cache.NewMemoryCache(),
		registry:    registry.New(),
		chains:      make(map[uint64]*ChainContainer, len(cfg.ChainIDs)),
		routes:      routes,
	}

	n.storage, err = NewDefaultStorage(cfg)
	if err != nil {
		n.Close()
		return nil, err
	}
	n.queue, err = NewDefaultQueue(cfg, logRegistry.Get(QueueContext))
	if err != nil {
		n.Close()
		return nil, err
	}

	for _, chainID := range cfg.ChainIDs {
		chain, err := NewChainContainer(ctx, chainID, cfg, n.cache, n.queue, n.storage, n.registry, logRegistry)
		if err != nil {
			n.Close()
			return nil, err
		}
		n.chains[chainID] = chain
	}

	if err := n.buildManagers(managers); err != nil {
		n.Close()
		return nil, err
	}

	return n, nil
}

func (n *Node) buildManagers(managers []config.ManagerConfig) error {
	var (
		createLocks = make(map[uint64]sync.Locker, len(n.chains))
		fundLocks   = make(map[uint64]sync.Locker, len(n.chains))
	)
	for chainID := range n.chains {
		createLocks[chainID] = &sync.Mutex{}
		fundLocks[chainID] = &sync.Mutex{}
	}

	for _, mc := range managers {
		n.managerCfgs[mc.Name] = mc

		owner, err := account.FromPrivateKey(mc.OwnerPrivateKey)
		if err != nil {
			return fmt.Errorf("failed to load owner account of relayer manager %s: %w", mc.Name, err)
		}

		for _, chainID := range mc.Chains(n.cfg.ChainIDs) {
			chain := n.chains[chainID]

			var threshold *big.Int
			if v, ok := mc.FundingBalanceThreshold[chainID]; ok {
				threshold, err = relayer.ParseEther(v)
				if err != nil {
					return fmt.Errorf("failed to parse funding balance threshold of relayer manager %s: %w", mc.Name, err)
				}
			}

			manager := relayer.NewManager(relayer.Options{
				Name:                             mc.Name,
				ChainID:                          chainID,
				RelayerSeed:                      mc.RelayerSeed,
				NodePathIndex:                    n.cfg.NodePathIndex,
				MinRelayerCount:                  mc.MinRelayerCount,
				MaxRelayerCount:                  mc.MaxRelayerCount,
				InactiveRelayerCountThreshold:    mc.InactiveRelayerCountThreshold,
				PendingTransactionCountThreshold: mc.PendingTransactionCountThreshold,
				NewRelayerInstanceCount:          mc.NewRelayerInstanceCount,
				FundingBalanceThreshold:          threshold,
				FundingRelayerAmount:             mc.FundingRelayerAmount[chainID],
				GasLimitMap:                      mc.GasLimitMap(),
			}, relayer.Dependencies{
				Owner:      owner,
				Client:     chain.Client,
				Nonces:     chain.Nonces,
				GasPrice:   chain.GasPrice,
				CreateLock: createLocks[chainID],
				FundLock:   fundLocks[chainID],
			}, n.logRegistry.Get(ManagerContext))
			manager.SetTransactionSender(chain.Transactions)

			if err := n.registry.Add(manager); err != nil {
				return err
			}

			for _, t := range mc.Types() {
				n.consumers = append(n.consumers, consumer.NewTransactionConsumer(
					consumer.TransactionConsumerOptions{
						ChainID:         chainID,
						TransactionType: t,
						RequeueDelay:    n.cfg.RequeueDelay,
						Concurrency:     mc.MaxRelayerCount,
					},
					manager,
					chain.Transactions,
					n.queue,
					n.cache,
					n.logRegistry.Get(ConsumerContext),
				))
			}
		}
	}
	return nil
}

// Run creates and funds the initial relayers, then serves until ctx is cancelled or a
// component fails.
func (n *Node) Run(ctx context.Context) error {
	if err := n.bootstrapRelayers(ctx); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	for _, chain := range n.chains {
		chain := chain
		g.Go(func() error { return chain.Refresher.Run(ctx) })
		g.Go(func() error { return chain.Retry.Run(ctx) })
		g.Go(func() error { return chain.Events.Run(ctx) })
	}
	for _, c := range n.consumers {
		c := c
		g.Go(func() error { return c.Run(ctx) })
	}

	g.Go(func() error {
		return relayhttp.Run(ctx, n.logRegistry, n.httpDependencies(), n.cfg.ListenAddr)
	})

	n.logger.Info("relayer node started",
		zap.Uint64s("chain_ids", n.cfg.ChainIDs),
		zap.Int("relayer_managers", len(n.registry.Managers())),
		zap.Int("consumers", len(n.consumers)),
		zap.String("listen_addr", n.cfg.ListenAddr),
	)

	return g.Wait()
}

func (n *Node) bootstrapRelayers(ctx context.Context) error {
	for _, m := range n.registry.Managers() {
		mc := n.managerCfgs[m.Name()]
		addresses, err := m.CreateRelayers(ctx, mc.MinRelayerCount)
		if err != nil {
			return fmt.Errorf("failed to create relayers of relayer manager %s on chain %d: %w", m.Name(), m.ChainID(), err)
		}
		if err := m.FundRelayers(ctx, addresses); err != nil {
			return fmt.Errorf("failed to fund relayers of relayer manager %s on chain %d: %w", m.Name(), m.ChainID(), err)
		}
		n.logger.Info("relayers created",
			zap.String("relayer_manager", m.Name()),
			zap.Uint64("chain_id", m.ChainID()),
			zap.Strings("addresses", addresses),
		)
	}
	n.registry.ReportMetrics()
	return nil
}

func (n *Node) httpDependencies() relayhttp.Dependencies {
	var (
		senders  = make(map[uint64]transaction.ReplacementSender, len(n.chains))
		networks = make(map[uint64]status.ChainIDReader, len(n.chains))
	)
	for chainID, chain := range n.chains {
		senders[chainID] = chain.Transactions
		networks[chainID] = chain.Client
	}

	return relayhttp.Dependencies{
		Storage:     n.storage,
		Queue:       n.queue,
		Resubmitter: transaction.NewResubmitter(n.storage, n.registry, senders, n.logRegistry.Get(TransactionContext)),
		Status: status.NewService(status.Dependencies{
			Cache:    n.cache,
			Storage:  n.storage,
			Networks: networks,
			Managers: n.registry,
		}, n.cfg.StatusCheckTimeout, n.logRegistry.Get(StatusContext)),
		Metrics: n.registry,
		Routes:  n.routes,
	}
}

// Close releases the chains first so that no listener writes to a closed storage.
func (n *Node) Close() {
	for _, chain := range n.chains {
		chain.Close()
	}
	if n.queue != nil {
		if err := n.queue.Close(); err != nil {
			n.logger.Error("failed to close queue", zap.Error(err))
		}
	}
	if n.storage != nil {
		if err := n.storage.Close(); err != nil {
			n.logger.Error("failed to close storage", zap.Error(err))
		}
	}
	n.cache.Close()
}

// BuildRoutes lists the transaction types accepted on each chain. A type is served by a single
// relayer manager per chain.
func BuildRoutes(managers []config.ManagerConfig, nodeChains []uint64) (map[uint64][]relay.TransactionType, error) {
	var (
		routes = make(map[uint64][]relay.TransactionType)
		owners = make(map[string]string)
	)
	for _, mc := range managers {
		for _, chainID := range mc.Chains(nodeChains) {
			for _, t := range mc.Types() {
				route := queue.TransactionTopic(chainID, t)
				if owner, ok := owners[route]; ok {
					return nil, fmt.Errorf("transaction type %s on chain %d is served by relayer managers %s and %s",
						t, chainID, owner, mc.Name)
				}
				owners[route] = mc.Name
				routes[chainID] = append(routes[chainID], t)
			}
		}
	}
	for chainID := range routes {
		sort.Slice(routes[chainID], func(i, j int) bool { return routes[chainID][i] < routes[chainID][j] })
	}
	return routes, nil
}
