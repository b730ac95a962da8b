package cache

import (
	"context"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStore is an in-process Store. Expired entries are dropped on read
// and by Cleanup; when MaxEntries is set, the entries closest to expiry are
// evicted first.
type MemoryStore struct {
	entries    *xsync.MapOf[string, memoryEntry]
	maxEntries int
	now        func() time.Time
}

func NewMemoryStore(maxEntries int) *MemoryStore {
	return &MemoryStore{
		entries:    xsync.NewMapOf[string, memoryEntry](),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := m.entries.Load(key)
	if !ok {
		return nil, false, nil
	}
	if !m.now().Before(e.expiresAt) {
		m.entries.Delete(key)
		return nil, false, nil
	}
	return e.data, true, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if _, exists := m.entries.Load(key); !exists {
		m.evictIfNeeded()
	}
	m.entries.Store(key, memoryEntry{data: value, expiresAt: m.now().Add(ttl)})
	return nil
}

// Len reports the number of stored entries, fresh or not.
func (m *MemoryStore) Len() int {
	return m.entries.Size()
}

// Cleanup removes every expired entry and returns how many were removed.
func (m *MemoryStore) Cleanup() int {
	now := m.now()
	removed := 0
	m.entries.Range(func(key string, e memoryEntry) bool {
		if !now.Before(e.expiresAt) {
			m.entries.Delete(key)
			removed++
		}
		return true
	})
	return removed
}

// RunJanitor calls Cleanup every interval until ctx is done.
func (m *MemoryStore) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Cleanup()
		}
	}
}

func (m *MemoryStore) evictIfNeeded() {
	if m.maxEntries <= 0 || m.entries.Size() < m.maxEntries {
		return
	}
	m.Cleanup()
	for m.entries.Size() >= m.maxEntries {
		var oldestKey string
		var oldestAt time.Time
		m.entries.Range(func(key string, e memoryEntry) bool {
			if oldestKey == "" || e.expiresAt.Before(oldestAt) {
				oldestKey, oldestAt = key, e.expiresAt
			}
			return true
		})
		if oldestKey == "" {
			return
		}
		m.entries.Delete(oldestKey)
	}
}
