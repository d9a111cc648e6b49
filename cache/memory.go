package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	raw       []byte
	expiresAt time.Time
}

// MemoryStore is an in-process Store for tests and Redis-less deployments.
// Expired entries linger until read or swept.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	nowFunc func() time.Time
}

// NewMemoryStore creates an empty in-memory cache.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		nowFunc: time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string, out interface{}) (time.Time, bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok || s.nowFunc().After(entry.expiresAt) {
		return time.Time{}, false, nil
	}
	cachedAt, err := open(entry.raw, out)
	if err != nil {
		return time.Time{}, false, nil
	}
	return cachedAt, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	now := s.nowFunc()
	raw, err := seal(value, now)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{raw: raw, expiresAt: now.Add(ttl)}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *MemoryStore) ClearUser(_ context.Context, chatID int64) error {
	suffix := fmt.Sprintf(":%d", chatID)
	infix := fmt.Sprintf(":%d:", chatID)

	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.entries {
		if strings.HasSuffix(key, suffix) || strings.Contains(key, infix) {
			delete(s.entries, key)
		}
	}
	return nil
}

// Sweep drops expired entries. The bot runs this on a timer so a quiet cache
// does not grow without bound.
func (s *MemoryStore) Sweep() int {
	now := s.nowFunc()

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

var _ Store = (*MemoryStore)(nil)
