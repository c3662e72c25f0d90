// Package notify provides the best-effort notification port. Events are
// published after the owning transaction commits; publish failures are
// logged and never propagated to the caller.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Event describes a workflow outcome worth announcing.
type Event struct {
	Type       string         `json:"type"`
	TenantID   string         `json:"tenantId"`
	EntityType string         `json:"entityType"`
	EntityID   int64          `json:"entityId"`
	Version    string         `json:"version,omitempty"`
	Actor      int64          `json:"actor,omitempty"`
	Outcome    string         `json:"outcome,omitempty"`
	Detail     map[string]any `json:"detail,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
}

// Notifier publishes workflow events to interested parties.
type Notifier interface {
	Publish(ctx context.Context, ev Event) error
}

// LogNotifier writes events to the structured log. It is the default sink.
type LogNotifier struct {
	Logger *slog.Logger
}

// Publish logs the event at info level.
func (n *LogNotifier) Publish(_ context.Context, ev Event) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("workflow event",
		"type", ev.Type,
		"tenant", ev.TenantID,
		"entityType", ev.EntityType,
		"entityID", ev.EntityID,
		"version", ev.Version,
		"outcome", ev.Outcome)
	return nil
}

// WebhookNotifier POSTs events as JSON to a configured endpoint.
type WebhookNotifier struct {
	URL    string
	Client *http.Client
}

// Publish delivers the event. Non-2xx responses are reported as errors so
// the caller can log them; delivery is still best-effort.
func (n *WebhookNotifier) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := n.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
