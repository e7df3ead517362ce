package conversation

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
)

var ErrNotFound = errors.New("conversation not found")

// Store persists contexts between requests. Get returns ErrNotFound for an
// unknown or expired key. Expiry policy belongs to the implementation.
type Store interface {
	Get(ctx context.Context, key string) (*Context, error)
	Put(ctx context.Context, key string, c *Context) error
}

const lockStripes = 64

// Manager is the single writer for conversations kept in a Store: updates to
// one key are serialised in-process, different keys proceed in parallel.
type Manager struct {
	store       Store
	dropOnClear bool
	locks       [lockStripes]sync.Mutex
}

// NewManager wraps s. dropSnapshotOnClear decides whether Clear also forgets
// the last solved question.
func NewManager(s Store, dropSnapshotOnClear bool) *Manager {
	return &Manager{store: s, dropOnClear: dropSnapshotOnClear}
}

// Load returns the stored context or a fresh empty one.
func (m *Manager) Load(ctx context.Context, key string) (*Context, error) {
	c, err := m.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return New(), nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Update loads the context for key, applies fn and stores the result. If fn
// fails nothing is written.
func (m *Manager) Update(ctx context.Context, key string, fn func(*Context) error) (*Context, error) {
	mu := m.lockFor(key)
	mu.Lock()
	defer mu.Unlock()

	c, err := m.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := fn(c); err != nil {
		return nil, err
	}
	if err := m.store.Put(ctx, key, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Clear resets the turns of key following the manager's snapshot policy.
func (m *Manager) Clear(ctx context.Context, key string) (*Context, error) {
	return m.Update(ctx, key, func(c *Context) error {
		c.Clear(m.dropOnClear)
		return nil
	})
}

func (m *Manager) lockFor(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &m.locks[h.Sum32()%lockStripes]
}
