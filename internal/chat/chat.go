// Package chat delivers project-level notifications to an external chat room
// via a best-effort webhook call. Failures are logged and discarded; a
// mutation must succeed even when the room is unreachable.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"scrumcore/pkg/domain"
)

// DefaultTimeout bounds the outbound webhook call.
const DefaultTimeout = 2 * time.Second

// Notifier posts messages to a chat room.
type Notifier interface {
	Notify(ctx context.Context, integration domain.ChatIntegration, message string) error
}

// Noop discards all messages.
type Noop struct{}

// Notify discards the message.
func (Noop) Notify(context.Context, domain.ChatIntegration, string) error { return nil }

// Webhook posts room messages to a chat service HTTP endpoint.
type Webhook struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// NewWebhook constructs a webhook notifier for the given endpoint. A nil
// client gets a default with a bounded timeout; a nil logger discards.
func NewWebhook(endpoint string, client *http.Client, logger *slog.Logger) *Webhook {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Webhook{endpoint: endpoint, client: client, logger: logger}
}

type webhookBody struct {
	Token   string `json:"token"`
	Room    string `json:"room"`
	Notify  bool   `json:"notify"`
	Message string `json:"message"`
}

// Notify posts the message using the project's stored integration settings.
// Incomplete settings skip the call; transport errors are returned so the
// caller can log them, but callers never propagate them to mutations.
func (w *Webhook) Notify(ctx context.Context, integration domain.ChatIntegration, message string) error {
	if !integration.Complete() {
		return nil
	}
	body, err := json.Marshal(webhookBody{
		Token:   integration.Token,
		Room:    integration.Room,
		Notify:  integration.Notify,
		Message: message,
	})
	if err != nil {
		return fmt.Errorf("encode webhook body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.client.Do(req)
	if err != nil {
		w.logger.Warn("chat webhook unreachable", "room", integration.Room, "error", err)
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		err := fmt.Errorf("chat webhook status %d", resp.StatusCode)
		w.logger.Warn("chat webhook rejected message", "room", integration.Room, "status", resp.StatusCode)
		return err
	}
	return nil
}
