package relayer

import (
	"math/big"
	"sort"
	"sync"
)

// Metadata is the pool state of one relayer account.
type Metadata struct {
	Address      string   `json:"address"`
	Balance      *big.Int `json:"balance"`
	Nonce        uint64   `json:"nonce"`
	PendingCount int      `json:"pendingCount"`

	// checkedOut is set while a send holds the relayer.
	checkedOut bool
}

func (m *Metadata) balance() *big.Int {
	if m.Balance == nil {
		return new(big.Int)
	}
	return m.Balance
}

func (m *Metadata) snapshot() Metadata {
	out := Metadata{
		Address:      m.Address,
		Nonce:        m.Nonce,
		PendingCount: m.PendingCount,
	}
	if m.Balance != nil {
		out.Balance = new(big.Int).Set(m.Balance)
	}
	return out
}

// Queue is the idle relayer list, kept sorted by balance, highest first.
type Queue struct {
	mu    sync.Mutex
	items []*Metadata
}

func NewQueue(items ...*Metadata) *Queue {
	q := &Queue{}
	for _, item := range items {
		q.Push(item)
	}
	return q
}

// Pop removes and returns the best funded relayer, or nil when the queue is empty.
func (q *Queue) Pop() *Metadata {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}
	head := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return head
}

func (q *Queue) Push(item *Metadata) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append(q.items, item)
	sort.SliceStable(q.items, func(i, j int) bool {
		return q.items[i].balance().Cmp(q.items[j].balance()) > 0
	})
}

func (q *Queue) Get(address string) *Metadata {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, item := range q.items {
		if item.Address == address {
			return item
		}
	}
	return nil
}

// List returns the queued relayers in pop order.
func (q *Queue) List() []*Metadata {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*Metadata, len(q.items))
	copy(out, q.items)
	return out
}

func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}
