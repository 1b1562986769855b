package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/plandeck/nudge/internal/adapter"
	"github.com/plandeck/nudge/internal/config"
	"github.com/plandeck/nudge/internal/dispatch"
	"github.com/plandeck/nudge/internal/event"
)

// Workflow type names. The bridge starts workflows by name so the serve
// process never links against the workflow definitions.
const (
	WorkflowNotification  = "NotificationWorkflow"
	WorkflowAgentRequest  = "AgentRequestWorkflow"
	WorkflowAgentResponse = "AgentResponseWorkflow"
)

// AgentResponse is the payload of agent:response:received events.
type AgentResponse struct {
	SessionID string        `json:"sessionId"`
	Status    string        `json:"status"`
	Summary   string        `json:"summary"`
	TaskID    string        `json:"taskId"`
	Adapter   string        `json:"adapter"`
	UserID    string        `json:"userId"`
	Plan      event.PlanRef `json:"plan"`
}

// Activities hosts the activity implementations the workflows call. The
// dispatcher ties the workflow handlers back to the same fan-out path the
// bridge uses for local fallback.
type Activities struct {
	Dispatcher *dispatch.Dispatcher
	Settings   config.SettingsLoader
	HTTPClient *http.Client
}

// NewActivities creates the activity set.
func NewActivities(dispatcher *dispatch.Dispatcher, settings config.SettingsLoader) *Activities {
	return &Activities{
		Dispatcher: dispatcher,
		Settings:   settings,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// DeliverNotification fans the event out to every configured adapter. The
// per-adapter results are returned for workflow history; a failed adapter is
// not an activity error.
func (a *Activities) DeliverNotification(ctx context.Context, ev event.Notification) ([]adapter.Result, error) {
	return a.Dispatcher.DeliverToAll(ctx, &ev), nil
}

// ForwardAgentRequest hands an agent-assistance request to the agent runtime.
// Unlike adapter deliveries, a failed forward is an activity error so the
// engine's retry policy applies.
func (a *Activities) ForwardAgentRequest(ctx context.Context, ev event.Notification) error {
	s, err := a.Settings()
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}
	if s.AgentCallbackURL == "" || s.AgentCallbackToken == "" {
		return temporal.NewNonRetryableApplicationError(
			"agent runtime not configured", "config", nil)
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.AgentCallbackURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.AgentCallbackToken)

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("posting to agent runtime: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("agent runtime returned %s", resp.Status)
	}
	return nil
}

// NotifyAgentResponse announces a completed agent session to the user's
// channels.
func (a *Activities) NotifyAgentResponse(ctx context.Context, resp AgentResponse) ([]adapter.Result, error) {
	ev := event.Notification{
		EventType:     event.TypeTaskCompleted,
		CorrelationID: resp.SessionID,
		UserID:        resp.UserID,
		Plan:          resp.Plan,
		Task:          &event.TaskRef{ID: resp.TaskID, Status: event.StatusCompleted},
		Actor:         event.Actor{Name: resp.Adapter, Type: event.ActorAgent},
		Message:       fmt.Sprintf("🤖 Agent finished: %s", resp.Summary),
	}
	return a.Dispatcher.DeliverToAll(ctx, &ev), nil
}

// defaultActivityOptions bounds activity execution. Delivery attempts inside
// the dispatcher already carry their own timeouts, so one retry here covers
// worker crashes, not adapter failures.
func defaultActivityOptions() workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: 5 * time.Second,
			MaximumAttempts: 2,
		},
	}
}

// NotificationWorkflow handles notification:send: one fan-out delivery.
func NotificationWorkflow(ctx workflow.Context, ev event.Notification) error {
	ctx = workflow.WithActivityOptions(ctx, defaultActivityOptions())

	var results []adapter.Result
	if err := workflow.ExecuteActivity(ctx, "DeliverNotification", ev).Get(ctx, &results); err != nil {
		return err
	}

	logger := workflow.GetLogger(ctx)
	for _, res := range results {
		if !res.Success {
			logger.Warn("adapter delivery failed",
				"adapter", res.Adapter, "reason", res.Reason)
		}
	}
	return nil
}

// AgentRequestWorkflow handles agent:request:created: forward the request to
// the agent runtime, then notify the owner's channels that it was filed.
func AgentRequestWorkflow(ctx workflow.Context, ev event.Notification) error {
	ctx = workflow.WithActivityOptions(ctx, defaultActivityOptions())

	if err := workflow.ExecuteActivity(ctx, "ForwardAgentRequest", ev).Get(ctx, nil); err != nil {
		workflow.GetLogger(ctx).Warn("forwarding agent request failed", "error", err)
		// Still tell the owner the request exists, even if the runtime is down.
	}

	var results []adapter.Result
	return workflow.ExecuteActivity(ctx, "DeliverNotification", ev).Get(ctx, &results)
}

// AgentResponseWorkflow handles agent:response:received.
func AgentResponseWorkflow(ctx workflow.Context, resp AgentResponse) error {
	ctx = workflow.WithActivityOptions(ctx, defaultActivityOptions())

	var results []adapter.Result
	return workflow.ExecuteActivity(ctx, "NotifyAgentResponse", resp).Get(ctx, &results)
}
