package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/plandeck/nudge/internal/config"
	"github.com/plandeck/nudge/internal/event"
)

// webhookEnvelope is the canonical wire format POSTed to the webhook target.
type webhookEnvelope struct {
	Event         string `json:"event"`
	CorrelationID string `json:"correlationId"`
	PlanID        string `json:"planId"`
	NodeID        string `json:"nodeId,omitempty"`
	Message       string `json:"message"`
	Timestamp     string `json:"timestamp"`
}

// Webhook POSTs the canonical envelope to a configured URL. Any non-2xx
// response is a delivery failure with the numeric status preserved.
type Webhook struct {
	settings config.SettingsLoader
	client   *http.Client
	now      func() time.Time
}

// NewWebhook creates a Webhook adapter. Settings are re-read per delivery.
func NewWebhook(settings config.SettingsLoader) *Webhook {
	return &Webhook{
		settings: settings,
		client:   &http.Client{Timeout: 15 * time.Second},
		now:      time.Now,
	}
}

func (w *Webhook) Name() string { return "webhook" }

func (w *Webhook) IsConfigured() bool {
	s, err := w.settings()
	return err == nil && s.WebhookURL != ""
}

func (w *Webhook) Deliver(ctx context.Context, ev *event.Notification) Result {
	s, err := w.settings()
	if err != nil {
		return failure(w.Name(), fmt.Sprintf("loading settings: %v", err))
	}
	if s.WebhookURL == "" {
		return failure(w.Name(), "webhook URL not configured")
	}
	if _, err := url.ParseRequestURI(s.WebhookURL); err != nil {
		return failure(w.Name(), fmt.Sprintf("malformed webhook URL: %v", err))
	}

	envelope := webhookEnvelope{
		Event:         ev.EventType,
		CorrelationID: ev.CorrelationID,
		PlanID:        ev.Plan.ID,
		Message:       ev.Message,
		Timestamp:     w.now().UTC().Format(time.RFC3339),
	}
	if ev.Task != nil {
		envelope.NodeID = ev.Task.ID
	} else if ev.Request != nil {
		envelope.NodeID = ev.Request.TaskID
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return failure(w.Name(), fmt.Sprintf("encoding envelope: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return failure(w.Name(), fmt.Sprintf("creating request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if s.WebhookToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.WebhookToken)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return failure(w.Name(), fmt.Sprintf("posting webhook: %v", err))
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		r := failure(w.Name(), fmt.Sprintf("webhook returned %s", resp.Status))
		r.StatusCode = resp.StatusCode
		return r
	}
	return success(w.Name())
}
