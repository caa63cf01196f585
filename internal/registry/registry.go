package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/bcnmy/relayer-node/internal/account"
	"github.com/bcnmy/relayer-node/internal/relay"
	"github.com/bcnmy/relayer-node/internal/relayer"
	"github.com/bcnmy/relayer-node/internal/status"
)

type key struct {
	name    string
	chainID uint64
}

// New instantiates an empty *Registry.
func New() *Registry {
	return &Registry{
		managers: make(map[key]*relayer.Manager),
	}
}

// Registry holds the relayer managers of the node, keyed by manager name and chain id. It is
// built at startup and handed to every component that has to find a manager.
type Registry struct {
	mu       sync.RWMutex
	managers map[key]*relayer.Manager
}

// Add registers m. A manager name can be used once per chain.
func (r *Registry) Add(m *relayer.Manager) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{name: m.Name(), chainID: m.ChainID()}
	if _, ok := r.managers[k]; ok {
		return fmt.Errorf("relayer manager %s already registered for chain %d", m.Name(), m.ChainID())
	}
	r.managers[k] = m
	return nil
}

// IsEmpty returns true if no manager is registered.
func (r *Registry) IsEmpty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.managers) == 0
}

func (r *Registry) Manager(name string, chainID uint64) (*relayer.Manager, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.managers[key{name: name, chainID: chainID}]
	return m, ok
}

// Managers returns every registered manager ordered by chain id and name.
func (r *Registry) Managers() []*relayer.Manager {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*relayer.Manager, 0, len(r.managers))
	for _, m := range r.managers {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ChainID() != out[j].ChainID() {
			return out[i].ChainID() < out[j].ChainID()
		}
		return out[i].Name() < out[j].Name()
	})
	return out
}

// Pools returns the managers as seen by the status report.
func (r *Registry) Pools() []status.Pool {
	managers := r.Managers()
	out := make([]status.Pool, 0, len(managers))
	for _, m := range managers {
		out = append(out, m)
	}
	return out
}

// ReportMetrics refreshes the pool gauges of every manager.
func (r *Registry) ReportMetrics() {
	for _, m := range r.Managers() {
		m.ReportMetrics()
	}
}

// ResolveAccount returns the owner account for funding transactions and the pool relayer
// otherwise.
func (r *Registry) ResolveAccount(
	managerName string,
	chainID uint64,
	relayerAddress string,
	transactionType relay.TransactionType,
) (account.Signer, error) {
	m, err := r.mustManager(managerName, chainID)
	if err != nil {
		return nil, err
	}

	if transactionType == relay.TransactionTypeFunding {
		return m.OwnerAccount(), nil
	}
	signer := m.GetRelayer(relayerAddress)
	if signer == nil {
		return nil, fmt.Errorf("relayer %s not found in relayer manager %s on chain %d", relayerAddress, managerName, chainID)
	}
	return signer, nil
}

func (r *Registry) PostTransactionMined(ctx context.Context, managerName string, chainID uint64, address string) error {
	m, err := r.mustManager(managerName, chainID)
	if err != nil {
		return err
	}
	m.PostTransactionMined(ctx, address)
	return nil
}

func (r *Registry) FundRelayers(ctx context.Context, managerName string, chainID uint64, addresses []string) error {
	m, err := r.mustManager(managerName, chainID)
	if err != nil {
		return err
	}
	return m.FundRelayers(ctx, addresses)
}

func (r *Registry) mustManager(name string, chainID uint64) (*relayer.Manager, error) {
	m, ok := r.Manager(name, chainID)
	if !ok {
		return nil, fmt.Errorf("relayer manager %s not registered for chain %d", name, chainID)
	}
	return m, nil
}
