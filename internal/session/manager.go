package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Manager runs turns for one conversation at a time while different
// conversations proceed in parallel.
type Manager struct {
	store Store

	mu    sync.Mutex
	locks map[string]*convLock
}

type convLock struct {
	mu   sync.Mutex
	refs int
}

func NewManager(store Store) *Manager {
	return &Manager{store: store, locks: make(map[string]*convLock)}
}

// Turn is the state of a conversation for the duration of one Do call.
type Turn struct {
	State
	id    string
	store Store
}

// Commit writes the current state, or removes it when nothing is left to remember.
func (t *Turn) Commit(ctx context.Context) error {
	if t.State.empty() {
		return t.store.Delete(ctx, t.id)
	}
	return t.store.Save(ctx, t.id, t.State)
}

// Do loads the conversation, runs fn and commits the resulting state.
// The state is committed even when fn fails.
func (m *Manager) Do(ctx context.Context, id string, fn func(t *Turn) error) error {
	unlock := m.lock(id)
	defer unlock()

	st, err := m.store.Load(ctx, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("load session: %w", err)
	}
	t := &Turn{State: st, id: id, store: m.store}
	fnErr := fn(t)
	if err := t.Commit(ctx); err != nil {
		return errors.Join(fnErr, fmt.Errorf("commit session: %w", err))
	}
	return fnErr
}

func (m *Manager) lock(id string) func() {
	m.mu.Lock()
	l, ok := m.locks[id]
	if !ok {
		l = &convLock{}
		m.locks[id] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, id)
		}
		m.mu.Unlock()
	}
}
