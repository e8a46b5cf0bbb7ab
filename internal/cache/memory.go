package cache

import (
	"context"
	"sync"
	"time"

	"scrumcore/pkg/domain"
)

// racePenalty caps the TTL of values written shortly after an invalidation of
// the same key. A recompute that started before the invalidation and lands
// after it cannot outlive this window, so an invalidate always wins within a
// bounded interval.
const racePenalty = 2 * time.Second

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// Memory is an in-process Client backed by a map. Suitable for tests and
// single-process deployments.
type Memory struct {
	mu          sync.Mutex
	entries     map[string]memoryEntry
	invalidated map[string]time.Time
	nowFn       func() time.Time
}

// NewMemory constructs an empty in-memory cache client.
func NewMemory() *Memory {
	return &Memory{
		entries:     make(map[string]memoryEntry),
		invalidated: make(map[string]time.Time),
		nowFn:       func() time.Time { return time.Now().UTC() },
	}
}

// Get returns the cached value for the facet, or a miss when absent or expired.
func (m *Memory) Get(_ context.Context, entityID string, facet domain.Facet) (string, bool, error) {
	key := FacetKey(entityID, facet)
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[key]
	if !ok {
		return "", false, nil
	}
	if m.nowFn().After(entry.expiresAt) {
		delete(m.entries, key)
		return "", false, nil
	}
	return entry.value, true, nil
}

// Put stores a value with the given TTL. Writes landing inside the race
// penalty window of a recent invalidation are stored with a capped TTL.
func (m *Memory) Put(_ context.Context, entityID string, facet domain.Facet, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	key := FacetKey(entityID, facet)
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.nowFn()
	if at, ok := m.invalidated[key]; ok {
		if since := now.Sub(at); since < racePenalty && ttl > racePenalty-since {
			ttl = racePenalty - since
		} else if since >= racePenalty {
			delete(m.invalidated, key)
		}
	}
	m.entries[key] = memoryEntry{value: value, expiresAt: now.Add(ttl)}
	return nil
}

// Invalidate drops the listed facets for the entity and records the
// invalidation instant so racing writes cannot persist a stale value.
func (m *Memory) Invalidate(_ context.Context, entityID string, facets ...domain.Facet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.nowFn()
	for _, facet := range facets {
		key := FacetKey(entityID, facet)
		delete(m.entries, key)
		m.invalidated[key] = now
	}
	return nil
}
