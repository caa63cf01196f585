package status

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bcnmy/relayer-node/internal/relayer"
)

const DefaultCheckTimeout = 10 * time.Second

type Pinger interface {
	Ping(ctx context.Context) error
}

type StoragePinger interface {
	Ping() error
}

type ChainIDReader interface {
	ChainID(ctx context.Context) (uint64, error)
}

// Pool is the part of a relayer manager the status report reads.
type Pool interface {
	Name() string
	ChainID() uint64
	Relayers() []relayer.RelayerState
}

type ManagerSource interface {
	Pools() []Pool
}

type Dependencies struct {
	Cache    Pinger
	Storage  StoragePinger
	Networks map[uint64]ChainIDReader
	Managers ManagerSource
}

type ManagerStatus struct {
	Name       string                 `json:"name"`
	ChainID    uint64                 `json:"chainId"`
	Idle       int                    `json:"idle"`
	Processing int                    `json:"processing"`
	Relayers   []relayer.RelayerState `json:"relayers"`
}

type NetworkStatus struct {
	ChainID        uint64 `json:"chainId"`
	NetworkChainID uint64 `json:"networkChainId,omitempty"`
	Healthy        bool   `json:"healthy"`
}

// Report is the node health as served by the status endpoint.
type Report struct {
	Healthy  bool            `json:"healthy"`
	Errors   []string        `json:"errors"`
	Networks []NetworkStatus `json:"networks"`
	Managers []ManagerStatus `json:"managers"`
}

// Service checks every external dependency of the node.
type Service struct {
	deps    Dependencies
	timeout time.Duration
	logger  *zap.Logger
}

func NewService(deps Dependencies, timeout time.Duration, logger *zap.Logger) *Service {
	if timeout <= 0 {
		timeout = DefaultCheckTimeout
	}
	return &Service{deps: deps, timeout: timeout, logger: logger}
}

func (s *Service) Check(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		mu     sync.Mutex
		report = Report{Errors: []string{}}
	)
	fail := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		report.Errors = append(report.Errors, err.Error())
	}

	var g errgroup.Group
	if s.deps.Cache != nil {
		g.Go(func() error {
			if err := s.deps.Cache.Ping(ctx); err != nil {
				fail(fmt.Errorf("cache: %w", err))
			}
			return nil
		})
	}
	if s.deps.Storage != nil {
		g.Go(func() error {
			if err := s.deps.Storage.Ping(); err != nil {
				fail(fmt.Errorf("storage: %w", err))
			}
			return nil
		})
	}
	for chainID, client := range s.deps.Networks {
		chainID, client := chainID, client
		g.Go(func() error {
			st := NetworkStatus{ChainID: chainID}
			got, err := client.ChainID(ctx)
			switch {
			case err != nil:
				fail(fmt.Errorf("network %d: %w", chainID, err))
			case got != chainID:
				st.NetworkChainID = got
				fail(fmt.Errorf("network %d: endpoint reports chain id %d", chainID, got))
			default:
				st.NetworkChainID = got
				st.Healthy = true
			}
			mu.Lock()
			report.Networks = append(report.Networks, st)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if s.deps.Managers != nil {
		for _, pool := range s.deps.Managers.Pools() {
			report.Managers = append(report.Managers, managerStatus(pool))
		}
	}

	sort.Slice(report.Networks, func(i, j int) bool { return report.Networks[i].ChainID < report.Networks[j].ChainID })
	sort.Strings(report.Errors)
	report.Healthy = len(report.Errors) == 0
	if !report.Healthy {
		s.logger.Warn("node is unhealthy", zap.Strings("errors", report.Errors))
	}
	return report
}

func managerStatus(pool Pool) ManagerStatus {
	st := ManagerStatus{
		Name:     pool.Name(),
		ChainID:  pool.ChainID(),
		Relayers: pool.Relayers(),
	}
	for _, r := range st.Relayers {
		if r.Idle {
			st.Idle++
		} else {
			st.Processing++
		}
	}
	return st
}
