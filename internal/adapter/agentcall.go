package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/plandeck/nudge/internal/config"
	"github.com/plandeck/nudge/internal/event"
)

// AgentCall forwards notifications to a generic agent-runtime callback
// endpoint. Availability is gated on the callback token.
type AgentCall struct {
	settings config.SettingsLoader
	client   *http.Client
}

// NewAgentCall creates an AgentCall adapter. Settings are re-read per delivery.
func NewAgentCall(settings config.SettingsLoader) *AgentCall {
	return &AgentCall{
		settings: settings,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

func (a *AgentCall) Name() string { return "agentcall" }

func (a *AgentCall) IsConfigured() bool {
	s, err := a.settings()
	return err == nil && s.AgentCallbackURL != "" && s.AgentCallbackToken != ""
}

func (a *AgentCall) Deliver(ctx context.Context, ev *event.Notification) Result {
	s, err := a.settings()
	if err != nil {
		return failure(a.Name(), fmt.Sprintf("loading settings: %v", err))
	}
	if s.AgentCallbackURL == "" || s.AgentCallbackToken == "" {
		return failure(a.Name(), "agent callback URL or token not configured")
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return failure(a.Name(), fmt.Sprintf("encoding event: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.AgentCallbackURL, bytes.NewReader(body))
	if err != nil {
		return failure(a.Name(), fmt.Sprintf("creating request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.AgentCallbackToken)

	resp, err := a.client.Do(req)
	if err != nil {
		return failure(a.Name(), fmt.Sprintf("posting to agent runtime: %v", err))
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		r := failure(a.Name(), fmt.Sprintf("agent runtime returned %s", resp.Status))
		r.StatusCode = resp.StatusCode
		return r
	}
	return success(a.Name())
}
