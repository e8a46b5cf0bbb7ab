// Package cache implements the derived-facet state cache: a pure key/value
// store with TTL expiry and explicit invalidation, consulted by reads of a
// backlog item's derived status/state and the sprint/project story point
// aggregates. The cache holds no business logic; a miss always triggers
// recomputation from current data, so staleness affects latency only.
package cache

import (
	"context"
	"fmt"
	"time"

	"scrumcore/pkg/domain"
)

// DefaultTTL bounds how long an unexpired facet value may be served without
// recomputation. It is a staleness bound, not a correctness guarantee.
const DefaultTTL = 900 * time.Second

// Client is the state cache contract. Implementations must be safe for
// concurrent use, and a Put racing an Invalidate for the same key must
// resolve toward the Invalidate.
type Client interface {
	Get(ctx context.Context, entityID string, facet domain.Facet) (string, bool, error)
	Put(ctx context.Context, entityID string, facet domain.Facet, value string, ttl time.Duration) error
	Invalidate(ctx context.Context, entityID string, facets ...domain.Facet) error
}

// FacetKey renders the canonical cache key for an entity facet.
func FacetKey(entityID string, facet domain.Facet) string {
	return fmt.Sprintf("%s:%s", entityID, facet)
}

// Noop is a Client that never stores anything; every Get is a miss. It is
// the degraded form of the cache and the default for unconfigured services.
type Noop struct{}

// Get always misses.
func (Noop) Get(context.Context, string, domain.Facet) (string, bool, error) {
	return "", false, nil
}

// Put discards the value.
func (Noop) Put(context.Context, string, domain.Facet, string, time.Duration) error {
	return nil
}

// Invalidate is trivially satisfied.
func (Noop) Invalidate(context.Context, string, ...domain.Facet) error {
	return nil
}
