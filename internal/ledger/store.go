package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store owns obligations and their transaction sub-ledgers. Every
// read-modify-write on a single record is atomic.
type Store interface {
	Create(ctx context.Context, o Obligation) (Obligation, error)
	Get(ctx context.Context, id string) (Obligation, error)
	// List returns obligations with the given status, or all of them when status is empty.
	List(ctx context.Context, status Status) ([]Obligation, error)
	ListByPerson(ctx context.Context, name string, status Status) ([]Obligation, error)
	ApplyTransaction(ctx context.Context, id string, amount float64, note string) (Obligation, error)
	// RecordPayment applies a payment only if it passes ValidatePayment
	// against the current record.
	RecordPayment(ctx context.Context, id string, amount float64, note string) (Obligation, error)
	Settle(ctx context.Context, id string) (Obligation, error)
	Edit(ctx context.Context, id string, c Changes) (Obligation, error)
	Delete(ctx context.Context, id string) error
}

// Validate checks a new obligation before it is stored. Empty kind and
// direction are allowed and get their defaults in Prepare.
func Validate(o Obligation) error {
	if o.TotalAmount <= 0 {
		return ErrInvalidAmount
	}
	switch o.Kind {
	case "", OneTime, Recurring:
	default:
		return ErrInvalidKind
	}
	switch o.Direction {
	case "", OwedToOwner, OwnerOwes:
	default:
		return ErrInvalidDirection
	}
	return nil
}

// Prepare fills in the defaults of a new obligation.
func Prepare(o Obligation, now time.Time) Obligation {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Kind == "" {
		o.Kind = OneTime
	}
	if o.Direction == "" {
		o.Direction = OwedToOwner
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.RemainingAmount = o.TotalAmount
	o.Status = Active
	if o.Kind != Recurring {
		o.ExpectedPerCycle = nil
	}
	o.Transactions = nil
	return o
}

// MemoryStore is an in-process Store. It is used when no database is
// configured and by tests.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]*entry
	seq   int64
	now   func() time.Time
}

type entry struct {
	o   Obligation
	seq int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]*entry), now: time.Now}
}

func (s *MemoryStore) Create(ctx context.Context, o Obligation) (Obligation, error) {
	if err := Validate(o); err != nil {
		return Obligation{}, err
	}
	o = Prepare(o, s.now())
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.items[o.ID] = &entry{o: o, seq: s.seq}
	return clone(o), nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Obligation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.items[id]
	if !ok {
		return Obligation{}, ErrNotFound
	}
	return clone(e.o), nil
}

func (s *MemoryStore) List(ctx context.Context, status Status) ([]Obligation, error) {
	return s.filter(func(o *Obligation) bool {
		return status == "" || o.Status == status
	}), nil
}

func (s *MemoryStore) ListByPerson(ctx context.Context, name string, status Status) ([]Obligation, error) {
	return s.filter(func(o *Obligation) bool {
		return SamePerson(o.PersonName, name) && (status == "" || o.Status == status)
	}), nil
}

func (s *MemoryStore) ApplyTransaction(ctx context.Context, id string, amount float64, note string) (Obligation, error) {
	return s.mutate(id, func(o *Obligation) error {
		return ApplyPayment(o, amount, note, s.now())
	})
}

func (s *MemoryStore) RecordPayment(ctx context.Context, id string, amount float64, note string) (Obligation, error) {
	return s.mutate(id, func(o *Obligation) error {
		return ApplyDirectPayment(o, amount, note, s.now())
	})
}

func (s *MemoryStore) Settle(ctx context.Context, id string) (Obligation, error) {
	return s.mutate(id, func(o *Obligation) error {
		MarkSettled(o, s.now())
		return nil
	})
}

func (s *MemoryStore) Edit(ctx context.Context, id string, c Changes) (Obligation, error) {
	return s.mutate(id, func(o *Obligation) error {
		return ApplyChanges(o, c)
	})
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return ErrNotFound
	}
	delete(s.items, id)
	return nil
}

// mutate runs fn on a copy and commits it only when fn succeeds.
func (s *MemoryStore) mutate(id string, fn func(*Obligation) error) (Obligation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[id]
	if !ok {
		return Obligation{}, ErrNotFound
	}
	next := clone(e.o)
	if err := fn(&next); err != nil {
		return Obligation{}, err
	}
	e.o = next
	return clone(next), nil
}

func (s *MemoryStore) filter(keep func(*Obligation) bool) []Obligation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := make([]*entry, 0, len(s.items))
	for _, e := range s.items {
		if keep(&e.o) {
			matched = append(matched, e)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq < matched[j].seq })
	out := make([]Obligation, 0, len(matched))
	for _, e := range matched {
		out = append(out, clone(e.o))
	}
	return out
}

func clone(o Obligation) Obligation {
	if o.ExpectedPerCycle != nil {
		v := *o.ExpectedPerCycle
		o.ExpectedPerCycle = &v
	}
	o.Transactions = append(make([]Transaction, 0, len(o.Transactions)), o.Transactions...)
	return o
}
