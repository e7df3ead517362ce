package store

import (
	"context"
	"sync"
	"time"

	"jee-solver/api/internal/conversation"
)

type memEntry struct {
	c       *conversation.Context
	expires time.Time
}

// MemoryStore keeps contexts in process. Entries expire ttl after their last
// Put; ttl <= 0 disables expiry. Values are cloned on the way in and out.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memEntry
	ttl   time.Duration
	now   func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{items: make(map[string]memEntry), ttl: ttl, now: time.Now}
}

func (s *MemoryStore) Get(_ context.Context, key string) (*conversation.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[key]
	if !ok {
		return nil, conversation.ErrNotFound
	}
	if !e.expires.IsZero() && s.now().After(e.expires) {
		delete(s.items, key)
		return nil, conversation.ErrNotFound
	}
	return e.c.Clone(), nil
}

func (s *MemoryStore) Put(_ context.Context, key string, c *conversation.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := memEntry{c: c.Clone()}
	if s.ttl > 0 {
		e.expires = s.now().Add(s.ttl)
	}
	s.items[key] = e
	return nil
}

// Sweep drops expired entries and reports how many went.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	now := s.now()
	for k, e := range s.items {
		if !e.expires.IsZero() && now.After(e.expires) {
			delete(s.items, k)
			n++
		}
	}
	return n
}

// Len counts stored entries, expired ones included until swept.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
