package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store implementation. It is safe for concurrent
// use and sweeps expired entries lazily during writes.
type MemoryStore struct {
	mu          sync.RWMutex
	entries     map[string]memoryEntry
	lastSweep   time.Time
	sweepEvery  time.Duration
	nowFn       func() time.Time
}

type memoryEntry struct {
	value     []byte
	storedAt  time.Time
	expiresAt time.Time // zero means no expiry
}

// MemoryStoreConfig holds configuration for the in-memory store.
type MemoryStoreConfig struct {
	// SweepInterval is how often expired entries are swept (default: 5 minutes).
	SweepInterval time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore(cfg MemoryStoreConfig) *MemoryStore {
	sweepEvery := cfg.SweepInterval
	if sweepEvery == 0 {
		sweepEvery = 5 * time.Minute
	}

	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}

	return &MemoryStore{
		entries:    make(map[string]memoryEntry),
		sweepEvery: sweepEvery,
		nowFn:      nowFn,
	}
}

// Get returns the value for key, or false when absent or expired.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && s.nowFn().After(entry.expiresAt) {
		return nil, false, nil
	}

	return entry.value, true, nil
}

// Put stores a value under key.
func (s *MemoryStore) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	now := s.nowFn()

	entry := memoryEntry{
		value:    value,
		storedAt: now,
	}
	if ttl > 0 {
		entry.expiresAt = now.Add(ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = entry
	s.sweepIfDue(now)
	return nil
}

// Delete removes a key.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// Keys returns all live keys with the given prefix.
func (s *MemoryStore) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.nowFn()
	var keys []string
	for k, entry := range s.entries {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
			continue
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// DeletePrefix removes all keys with the given prefix.
func (s *MemoryStore) DeletePrefix(_ context.Context, prefix string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k := range s.entries {
		if strings.HasPrefix(k, prefix) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored entries, including not-yet-swept expired ones.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// sweepIfDue removes expired entries if the sweep interval has passed.
// Caller must hold the write lock.
func (s *MemoryStore) sweepIfDue(now time.Time) {
	if now.Sub(s.lastSweep) < s.sweepEvery {
		return
	}
	s.lastSweep = now

	for k, entry := range s.entries {
		if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
			delete(s.entries, k)
		}
	}
}
