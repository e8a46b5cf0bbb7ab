// Package broadcast fans task-assignment notifications out to every
// collaborator watching a sprint board. Delivery is a live collaboration
// signal, not a durable event log: at-most-once, no retry, no persistence,
// and a publish failure never fails the mutation that triggered it.
package broadcast

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"log/slog"
	"time"

	"scrumcore/pkg/domain"
)

// channelSalt is hashed together with the sprint id so the channel name does
// not leak the raw id to observers. The value is fixed by already-deployed
// subscribers and must not change.
const channelSalt = "exclusiveshit"

// NobodyAssigned is the sentinel carried in place of an empty assignee list.
const NobodyAssigned = "Nobody"

// DefaultPublishTimeout bounds how long a mutation's response path may wait
// on the transport before the attempt is abandoned and logged.
const DefaultPublishTimeout = 300 * time.Millisecond

// Channel derives the deterministic broadcast channel for a sprint.
func Channel(sprintID string) string {
	sum := sha1.Sum([]byte(channelSalt + sprintID))
	return hex.EncodeToString(sum[:])
}

// Payload is the notification body published after an assignment mutation.
// JSON keys are fixed by existing board clients.
type Payload struct {
	Notification string                  `json:"notification"`
	PerformedBy  string                  `json:"performed_by"`
	Action       domain.AssignmentAction `json:"action"`
	TaskID       string                  `json:"task_id"`
	TaskHours    float64                 `json:"task_hours"`
	TaskDevs     []string                `json:"task_devs"`
	ItemStatus   domain.Status           `json:"user_story_status"`
	ItemID       string                  `json:"user_story_id"`
}

// Transport delivers a payload to all subscribers of a channel.
type Transport interface {
	Publish(ctx context.Context, channel string, payload Payload) error
}

// Dispatcher publishes assignment notifications through a transport with a
// bounded timeout. Transport failures are swallowed and logged.
type Dispatcher struct {
	transport Transport
	logger    *slog.Logger
	timeout   time.Duration
}

// NewDispatcher constructs a dispatcher. A nil transport disables broadcast;
// a nil logger discards; a non-positive timeout uses the default.
func NewDispatcher(transport Transport, logger *slog.Logger, timeout time.Duration) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	return &Dispatcher{transport: transport, logger: logger, timeout: timeout}
}

// Publish derives the sprint channel and hands the payload to the transport.
// Items not planned into a sprint have no board channel; the payload is
// dropped silently. The call never blocks past the dispatcher timeout and
// never returns an error to the mutation path.
func (d *Dispatcher) Publish(ctx context.Context, sprintID *string, payload Payload) {
	if d.transport == nil || sprintID == nil {
		return
	}
	channel := Channel(*sprintID)
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)

	done := make(chan error, 1)
	go func() {
		defer cancel()
		done <- d.transport.Publish(pubCtx, channel, payload)
	}()
	select {
	case err := <-done:
		if err != nil {
			d.logger.Warn("broadcast publish failed", "channel", channel, "action", payload.Action, "error", err)
		}
	case <-pubCtx.Done():
		d.logger.Warn("broadcast publish timed out", "channel", channel, "action", payload.Action)
	}
}
