package cache

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"scrumcore/pkg/domain"
)

// Degrading wraps a Client and absorbs backend failures: an unreachable
// cache degrades to always-miss rather than failing reads or mutations.
// Transitions between healthy and degraded are logged once, not per call.
type Degrading struct {
	inner    Client
	logger   *slog.Logger
	degraded atomic.Bool
}

// NewDegrading wraps inner with failure absorption. A nil logger discards.
func NewDegrading(inner Client, logger *slog.Logger) *Degrading {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Degrading{inner: inner, logger: logger}
}

func (d *Degrading) observe(err error, op string) {
	if err != nil {
		if d.degraded.CompareAndSwap(false, true) {
			d.logger.Warn("state cache degraded to recompute-only", "op", op, "error", err)
		}
		return
	}
	if d.degraded.CompareAndSwap(true, false) {
		d.logger.Info("state cache recovered")
	}
}

// Get returns a miss when the backend errors.
func (d *Degrading) Get(ctx context.Context, entityID string, facet domain.Facet) (string, bool, error) {
	val, ok, err := d.inner.Get(ctx, entityID, facet)
	d.observe(err, "get")
	if err != nil {
		return "", false, nil
	}
	return val, ok, nil
}

// Put swallows backend errors; the value is simply not cached.
func (d *Degrading) Put(ctx context.Context, entityID string, facet domain.Facet, value string, ttl time.Duration) error {
	err := d.inner.Put(ctx, entityID, facet, value, ttl)
	d.observe(err, "put")
	return nil
}

// Invalidate swallows backend errors. With an unreachable backend nothing is
// being served from cache, so skipping the delete cannot leak stale reads.
func (d *Degrading) Invalidate(ctx context.Context, entityID string, facets ...domain.Facet) error {
	err := d.inner.Invalidate(ctx, entityID, facets...)
	d.observe(err, "invalidate")
	return nil
}
