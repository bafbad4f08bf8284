package cache

import (
	"context"
	"sync"
	"time"

	"PadaOne/internal/ports"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is a process-local cache used when no Redis URL is configured.
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
	maxSize int
	now     func() time.Time
}

var _ ports.Cache = (*Memory)(nil)

// NewMemory bounds the cache to maxSize keys; the map is reset when full.
func NewMemory(maxSize int) *Memory {
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &Memory{entries: map[string]entry{}, maxSize: maxSize, now: time.Now}
}

// Get returns found=false for missing or expired keys.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && m.now().After(e.expiresAt) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return e.value, true, nil
}

// Set stores value; a non-positive ttl never expires.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.entries) >= m.maxSize {
		m.entries = map[string]entry{}
	}
	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.entries[key] = e
	return nil
}
