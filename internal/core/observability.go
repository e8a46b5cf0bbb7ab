package core

import (
	"context"
	"time"
)

// MetricsRecorder observes service operation outcomes. Implementations must
// be safe for concurrent use.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// NoopMetricsRecorder ignores all observations.
type NoopMetricsRecorder struct{}

// Observe discards the observation.
func (NoopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}
