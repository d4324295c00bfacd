// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package adjudicate

import (
	"context"
	"sync"

	"github.com/pdiddy/trial-enricher/pkg/types"
)

// MemoryCache is an in-process Cache. Used for dry runs and tests.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]types.CacheEntry
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: map[string]types.CacheEntry{}}
}

func (m *MemoryCache) Get(_ context.Context, fingerprint string) (types.CacheEntry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[fingerprint]
	return e, ok, nil
}

func (m *MemoryCache) Put(_ context.Context, entry types.CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.Fingerprint] = entry
	return nil
}

// Len returns the number of cached decisions.
func (m *MemoryCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// MemoryLog is an in-process AuditLog.
type MemoryLog struct {
	mu      sync.Mutex
	entries []types.AdjudicationLogEntry
}

func (m *MemoryLog) Append(_ context.Context, entry types.AdjudicationLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

// Entries returns a copy of the appended entries in order.
func (m *MemoryLog) Entries() []types.AdjudicationLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.AdjudicationLogEntry(nil), m.entries...)
}
