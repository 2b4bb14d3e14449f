package sessioncache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// Memory is an in-process cache backend. Expired entries are rejected
// lazily on Get; Sweep reclaims their memory and is intended to run on
// a schedule.
type Memory struct {
	mu         sync.RWMutex
	entries    map[string]memoryEntry
	defaultTTL time.Duration
}

// NewMemory creates a memory backend with the given default TTL.
func NewMemory(defaultTTL time.Duration) *Memory {
	return &Memory{
		entries:    make(map[string]memoryEntry),
		defaultTTL: defaultTTL,
	}
}

func (m *Memory) Get(_ context.Context, sid string) ([]byte, error) {
	m.mu.RLock()
	entry, ok := m.entries[sid]
	m.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		return nil, ErrNotFound
	}
	return entry.data, nil
}

func (m *Memory) Set(_ context.Context, sid string, data []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}

	m.mu.Lock()
	m.entries[sid] = memoryEntry{
		data:      data,
		expiresAt: time.Now().Add(ttl),
	}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Drop(_ context.Context, sid string) error {
	m.mu.Lock()
	delete(m.entries, sid)
	m.mu.Unlock()
	return nil
}

// Sweep removes expired entries and returns how many were purged.
func (m *Memory) Sweep() int {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	purged := 0
	for sid, entry := range m.entries {
		if now.After(entry.expiresAt) {
			delete(m.entries, sid)
			purged++
		}
	}
	return purged
}

// Len returns the number of live and not-yet-swept entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
