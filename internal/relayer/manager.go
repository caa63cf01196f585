package relayer

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bcnmy/relayer-node/internal/account"
	"github.com/bcnmy/relayer-node/internal/gasprice"
	"github.com/bcnmy/relayer-node/internal/metrics"
	"github.com/bcnmy/relayer-node/internal/network"
	"github.com/bcnmy/relayer-node/internal/relay"
)

const createConcurrency = 8

// TransactionSender relays a transaction on behalf of a signer.
type TransactionSender interface {
	SendTransaction(
		ctx context.Context,
		data relay.TransactionData,
		signer account.Signer,
		transactionType relay.TransactionType,
		managerName string,
	) relay.Result
}

type NonceManager interface {
	GetNonce(ctx context.Context, address string, pending bool) (uint64, error)
}

type GasPriceOracle interface {
	GetGasPrice(ctx context.Context, tier gasprice.Tier) (gasprice.Price, error)
}

type Options struct {
	Name                             string
	ChainID                          uint64
	RelayerSeed                      string
	NodePathIndex                    uint32
	MinRelayerCount                  int
	MaxRelayerCount                  int
	InactiveRelayerCountThreshold    int
	PendingTransactionCountThreshold int
	NewRelayerInstanceCount          int
	FundingBalanceThreshold          *big.Int
	// FundingRelayerAmount is in ether, e.g. "0.1".
	FundingRelayerAmount string
	GasLimitMap          map[int]uint64
}

type Dependencies struct {
	Owner    account.Signer
	Client   network.Client
	Nonces   NonceManager
	GasPrice GasPriceOracle
	// CreateLock and FundLock serialize relayer creation and funding across managers.
	// Each manager uses its own lock when nil.
	CreateLock sync.Locker
	FundLock   sync.Locker
}

// Manager owns the relayer pool of one (name, chain). A created relayer is always either in
// the idle queue or in the processing map, never both.
type Manager struct {
	opts   Options
	owner  account.Signer
	client network.Client
	nonces NonceManager
	gas    GasPriceOracle
	logger *zap.Logger

	sender TransactionSender

	createLock sync.Locker
	fundLock   sync.Locker

	mu         sync.Mutex
	queue      *Queue
	relayers   map[string]account.Signer
	processing map[string]*Metadata
	nextIndex  uint32
}

func NewManager(opts Options, deps Dependencies, logger *zap.Logger) *Manager {
	m := &Manager{
		opts:       opts,
		owner:      deps.Owner,
		client:     deps.Client,
		nonces:     deps.Nonces,
		gas:        deps.GasPrice,
		logger:     logger.With(zap.String("relayer_manager", opts.Name), zap.Uint64("chain_id", opts.ChainID)),
		createLock: deps.CreateLock,
		fundLock:   deps.FundLock,
		queue:      NewQueue(),
		relayers:   make(map[string]account.Signer),
		processing: make(map[string]*Metadata),
	}
	if m.createLock == nil {
		m.createLock = &sync.Mutex{}
	}
	if m.fundLock == nil {
		m.fundLock = &sync.Mutex{}
	}
	return m
}

// SetTransactionSender wires the service funding transfers are relayed through.
func (m *Manager) SetTransactionSender(sender TransactionSender) {
	m.sender = sender
}

func (m *Manager) Name() string {
	return m.opts.Name
}

func (m *Manager) ChainID() uint64 {
	return m.opts.ChainID
}

func (m *Manager) OwnerAccount() account.Signer {
	return m.owner
}

// GetActiveRelayer checks the best funded idle relayer out of the pool. It returns nil when
// no relayer is idle; the caller must requeue its work.
func (m *Manager) GetActiveRelayer() account.Signer {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := m.queue.Pop()
	if item == nil {
		m.logger.Info("no active relayer available")
		return nil
	}

	item.PendingCount++
	item.checkedOut = true
	m.processing[item.Address] = item
	m.reportCounts()
	return m.relayers[item.Address]
}

// AddActiveRelayer returns a checked out relayer. It goes back to the idle queue only while
// its pending count is below the threshold, otherwise it stays parked until a transaction
// of it is mined.
func (m *Manager) AddActiveRelayer(ctx context.Context, address string) {
	address = relay.NormalizeAddress(address)

	m.mu.Lock()
	item, ok := m.processing[address]
	if !ok {
		m.mu.Unlock()
		m.logger.Error("relayer not found in processing relayer map", zap.String("address", address))
		return
	}

	item.checkedOut = false
	if item.PendingCount < m.opts.PendingTransactionCountThreshold {
		delete(m.processing, address)
		m.queue.Push(item)
		m.logger.Info("relayer added to active relayer queue", zap.String("address", address))
	} else {
		m.logger.Info("relayer parked until pending transactions are mined",
			zap.String("address", address), zap.Int("pending_count", item.PendingCount))
	}
	idle := m.queue.Size()
	m.reportCounts()
	m.mu.Unlock()

	if m.opts.MinRelayerCount-idle >= m.opts.InactiveRelayerCountThreshold && m.opts.NewRelayerInstanceCount > 0 {
		m.logger.Info("scaling relayer pool",
			zap.Int("idle", idle),
			zap.Int("new_relayers", m.opts.NewRelayerInstanceCount))
		if _, err := m.CreateRelayers(ctx, m.opts.NewRelayerInstanceCount); err != nil {
			m.logger.Error("failed to scale relayer pool", zap.Error(err))
		}
	}
}

// ReleasePending gives back the pending slot taken by GetActiveRelayer when the send produced
// no hash, since no mined event will ever release it.
func (m *Manager) ReleasePending(address string) {
	address = relay.NormalizeAddress(address)

	m.mu.Lock()
	defer m.mu.Unlock()

	item := m.lookup(address)
	if item == nil {
		m.logger.Error("relayer not found in relayer queue or processing map", zap.String("address", address))
		return
	}
	if item.PendingCount > 0 {
		item.PendingCount--
	}
}

// PostTransactionMined releases one pending slot of the relayer, refreshes its balance and
// funds it in the background when it runs low.
func (m *Manager) PostTransactionMined(ctx context.Context, address string) {
	address = relay.NormalizeAddress(address)

	m.mu.Lock()
	item := m.lookup(address)
	if item == nil {
		m.mu.Unlock()
		m.logger.Info("relayer not found in relayer queue or processing map", zap.String("address", address))
		return
	}
	if item.PendingCount > 0 {
		item.PendingCount--
	}
	pending := item.PendingCount
	m.mu.Unlock()

	m.logger.Info("relayer transaction mined", zap.String("address", address), zap.Int("pending_count", pending))

	balance, err := m.client.GetBalance(ctx, address)
	if err != nil {
		m.logger.Error("failed to refresh relayer balance", zap.String("address", address), zap.Error(err))
	}

	m.mu.Lock()
	if item = m.lookup(address); item != nil {
		if balance != nil {
			item.Balance = balance
		}
		if parked, ok := m.processing[address]; ok && !parked.checkedOut &&
			parked.PendingCount < m.opts.PendingTransactionCountThreshold {
			delete(m.processing, address)
			m.queue.Push(parked)
			m.logger.Info("parked relayer returned to active relayer queue", zap.String("address", address))
		}
	}
	m.reportCounts()
	m.mu.Unlock()

	if balance != nil && m.opts.FundingBalanceThreshold != nil && balance.Cmp(m.opts.FundingBalanceThreshold) < 0 {
		go func() {
			if err := m.FundRelayers(context.WithoutCancel(ctx), []string{address}); err != nil {
				m.logger.Error("failed to fund relayer", zap.String("address", address), zap.Error(err))
			}
		}()
	}
}

// CreateRelayers derives n more relayers, bounded by the maximum pool size, and adds the ones
// whose balance and nonce could be read to the idle queue.
func (m *Manager) CreateRelayers(ctx context.Context, n int) ([]string, error) {
	m.createLock.Lock()
	defer m.createLock.Unlock()

	m.mu.Lock()
	start := m.nextIndex
	if m.opts.MaxRelayerCount > 0 {
		if room := m.opts.MaxRelayerCount - len(m.relayers); n > room {
			n = room
		}
	}
	if n <= 0 {
		m.mu.Unlock()
		m.logger.Info("relayer pool is at its maximum size", zap.Int("max_relayer_count", m.opts.MaxRelayerCount))
		return nil, nil
	}
	m.nextIndex += uint32(n)
	m.mu.Unlock()

	type created struct {
		signer   account.Signer
		metadata *Metadata
	}
	results := make([]*created, n)

	var g errgroup.Group
	g.SetLimit(createConcurrency)
	for i := 0; i < n; i++ {
		i := i
		index := start + uint32(i)
		g.Go(func() error {
			signer, err := account.Derive(m.opts.RelayerSeed, m.opts.NodePathIndex, index)
			if err != nil {
				m.logger.Error("failed to derive relayer", zap.Uint32("index", index), zap.Error(err))
				return nil
			}
			address := signer.GetPublicKey()

			balance, err := m.client.GetBalance(ctx, address)
			if err != nil {
				m.logger.Error("failed to get relayer balance", zap.String("address", address), zap.Error(err))
				return nil
			}
			nonce, err := m.nonces.GetNonce(ctx, address, false)
			if err != nil {
				m.logger.Error("failed to get relayer nonce", zap.String("address", address), zap.Error(err))
				return nil
			}

			results[i] = &created{
				signer:   signer,
				metadata: &Metadata{Address: address, Balance: balance, Nonce: nonce},
			}
			return nil
		})
	}
	_ = g.Wait()

	var addresses []string
	m.mu.Lock()
	for _, res := range results {
		if res == nil {
			continue
		}
		m.relayers[res.metadata.Address] = res.signer
		m.queue.Push(res.metadata)
		addresses = append(addresses, res.metadata.Address)
	}
	m.reportCounts()
	m.mu.Unlock()

	m.logger.Info("relayers created", zap.Int("requested", n), zap.Int("created", len(addresses)))
	if len(addresses) == 0 {
		return nil, fmt.Errorf("failed to create any of %d relayers", n)
	}
	return addresses, nil
}

// GetRelayer returns the signer of a pool relayer, or nil.
func (m *Manager) GetRelayer(address string) account.Signer {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.relayers[relay.NormalizeAddress(address)]
}

// RelayersCount returns the number of idle relayers when active is set, all relayers otherwise.
func (m *Manager) RelayersCount(active bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if active {
		return m.queue.Size()
	}
	return len(m.relayers)
}

// RelayerState is a point in time view of a pool relayer.
type RelayerState struct {
	Metadata
	Idle bool `json:"idle"`
}

// Relayers returns a snapshot of the pool, sorted by address.
func (m *Manager) Relayers() []RelayerState {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]RelayerState, 0, len(m.relayers))
	for _, item := range m.queue.List() {
		out = append(out, RelayerState{Metadata: item.snapshot(), Idle: true})
	}
	for _, item := range m.processing {
		out = append(out, RelayerState{Metadata: item.snapshot()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// ReportMetrics publishes the pool sizes.
func (m *Manager) ReportMetrics() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reportCounts()
}

// lookup must be called with mu held.
func (m *Manager) lookup(address string) *Metadata {
	if item := m.queue.Get(address); item != nil {
		return item
	}
	return m.processing[address]
}

// reportCounts must be called with mu held.
func (m *Manager) reportCounts() {
	metrics.SetRelayersCount(m.opts.ChainID, m.opts.Name, m.queue.Size(), len(m.processing))
}
