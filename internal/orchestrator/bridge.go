// Package orchestrator pushes notification events into the durable-workflow
// engine (Temporal) and hosts the workflow handlers that fan deliveries out.
// When the engine is unreachable, events with a registered in-process
// fallback are delivered locally instead of being lost.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"

	"github.com/plandeck/nudge/internal/metrics"
)

// Event names accepted by the bridge.
const (
	EventNotificationSend      = "notification:send"
	EventAgentRequestCreated   = "agent:request:created"
	EventAgentResponseReceived = "agent:response:received"
)

// workflowNames maps event names to the workflow type handling them.
var workflowNames = map[string]string{
	EventNotificationSend:      WorkflowNotification,
	EventAgentRequestCreated:   WorkflowAgentRequest,
	EventAgentResponseReceived: WorkflowAgentResponse,
}

// starter is the slice of the Temporal client the bridge uses.
type starter interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions,
		workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
}

// Fallback delivers an event in-process when the engine push fails.
type Fallback func(ctx context.Context, payload any)

// Bridge routes named events to workflow handlers, falling back to local
// delivery for event names that registered a fallback. Event names without a
// fallback are dropped on push failure: their handlers exist only in the
// worker process, so there is nothing local to run.
type Bridge struct {
	client    starter
	taskQueue string
	logger    *slog.Logger

	mu        sync.Mutex
	fallbacks map[string]Fallback
}

// NewBridge creates a Bridge. A nil client means the engine is unconfigured
// and every emit takes the fallback (or drop) path.
func NewBridge(c starter, taskQueue string, logger *slog.Logger) *Bridge {
	return &Bridge{
		client:    c,
		taskQueue: taskQueue,
		logger:    logger,
		fallbacks: make(map[string]Fallback),
	}
}

// RegisterFallback installs a local delivery path for eventName, used
// whenever the engine cannot be reached.
func (b *Bridge) RegisterFallback(eventName string, fb Fallback) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fallbacks[eventName] = fb
}

// EmitEvent pushes (eventName, payload) into the workflow engine. It returns
// true when the event was handed off; false when the engine was unreachable
// or unconfigured — including when the payload was delivered locally through
// a fallback. Callers can use the return value for logging and metrics, not
// for delivery correctness.
func (b *Bridge) EmitEvent(ctx context.Context, eventName string, payload any) bool {
	workflowName, ok := workflowNames[eventName]
	if !ok {
		b.logger.Warn("unknown event name dropped", "event", eventName)
		return false
	}

	if b.client != nil {
		opts := client.StartWorkflowOptions{
			ID:        workflowID(eventName),
			TaskQueue: b.taskQueue,
		}
		_, err := b.client.ExecuteWorkflow(ctx, opts, workflowName, payload)
		if err == nil {
			metrics.EventsEmitted.WithLabelValues(eventName, "engine").Inc()
			return true
		}
		b.logger.Warn("workflow engine push failed",
			"event", eventName, "workflow", workflowName, "error", err)
	}

	b.mu.Lock()
	fb := b.fallbacks[eventName]
	b.mu.Unlock()

	if fb == nil {
		metrics.EventsEmitted.WithLabelValues(eventName, "dropped").Inc()
		b.logger.Warn("event dropped, no local fallback", "event", eventName)
		return false
	}

	fb(ctx, payload)
	metrics.EventsEmitted.WithLabelValues(eventName, "fallback").Inc()
	return false
}

// workflowID builds a unique workflow id for one emission.
func workflowID(eventName string) string {
	return fmt.Sprintf("nudge-%s-%s", strings.ReplaceAll(eventName, ":", "-"), uuid.New().String())
}

// Dial connects to the Temporal frontend. Returns nil without error when
// address is empty, leaving the bridge on its fallback path.
func Dial(address, namespace string, logger *slog.Logger) (client.Client, error) {
	if address == "" {
		return nil, nil
	}
	c, err := client.Dial(client.Options{
		HostPort:  address,
		Namespace: namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("dialing workflow engine at %s: %w", address, err)
	}
	logger.Info("connected to workflow engine", "address", address, "namespace", namespace)
	return c, nil
}
