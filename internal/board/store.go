// Package board owns the in-memory snapshot of the live order board and
// keeps it fresh: a settle-all refresh over the backend resources, a set of
// optimistic mutators and a fixed-interval poller. Each screen owns its own
// Service; nothing here is shared across instances.
package board

import (
	"sync"
	"time"

	"github.com/dinehall/boardlink/internal/domain"
)

// Snapshot is one consistent view of the board. Partial names the resources
// whose fetch failed in the round that produced it.
type Snapshot struct {
	Orders      []domain.Order    `json:"orders"`
	Tables      []domain.Table    `json:"tables"`
	Staff       []domain.Staff    `json:"staff"`
	Stats       domain.BoardStats `json:"stats"`
	RefreshedAt time.Time         `json:"refreshed_at"`
	Partial     []string          `json:"partial,omitempty"`
}

// Store is a mutex-guarded snapshot holder. Readers get deep copies so a
// caller can never alias the live state.
type Store struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewStore creates a store holding an empty snapshot.
func NewStore() *Store {
	return &Store{
		snap: Snapshot{
			Orders: []domain.Order{},
			Tables: []domain.Table{},
			Staff:  []domain.Staff{},
		},
	}
}

// Current returns a deep copy of the snapshot.
func (s *Store) Current() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSnapshot(s.snap)
}

// Replace swaps in a whole new snapshot.
func (s *Store) Replace(snap Snapshot) {
	s.mu.Lock()
	s.snap = cloneSnapshot(snap)
	s.mu.Unlock()
}

// Order returns a copy of the order with the given id.
func (s *Store) Order(id string) (domain.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.snap.Orders {
		if o.ID == id {
			return cloneOrder(o), true
		}
	}
	return domain.Order{}, false
}

// MutateOrder applies fn to the stored order with the given id. It returns
// false when the order is unknown.
func (s *Store) MutateOrder(id string, fn func(*domain.Order)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.snap.Orders {
		if s.snap.Orders[i].ID == id {
			fn(&s.snap.Orders[i])
			return true
		}
	}
	return false
}

// UpsertOrder inserts the order or replaces the stored one with the same id.
func (s *Store) UpsertOrder(order domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.snap.Orders {
		if s.snap.Orders[i].ID == order.ID {
			s.snap.Orders[i] = cloneOrder(order)
			return
		}
	}
	s.snap.Orders = append(s.snap.Orders, cloneOrder(order))
}

func cloneSnapshot(snap Snapshot) Snapshot {
	out := snap
	out.Orders = make([]domain.Order, len(snap.Orders))
	for i, o := range snap.Orders {
		out.Orders[i] = cloneOrder(o)
	}
	out.Tables = append([]domain.Table(nil), snap.Tables...)
	if out.Tables == nil {
		out.Tables = []domain.Table{}
	}
	out.Staff = append([]domain.Staff(nil), snap.Staff...)
	if out.Staff == nil {
		out.Staff = []domain.Staff{}
	}
	out.Partial = append([]string(nil), snap.Partial...)
	return out
}

func cloneOrder(o domain.Order) domain.Order {
	out := o
	out.Items = make([]domain.OrderItem, len(o.Items))
	for i, item := range o.Items {
		out.Items[i] = item
		out.Items[i].Modifiers = append([]string(nil), item.Modifiers...)
		if out.Items[i].Modifiers == nil {
			out.Items[i].Modifiers = []string{}
		}
	}
	return out
}
