// Package service holds the seams between the (external) plan/task domain
// and the notification pipeline: the notifier the mutation handlers call,
// and the consumer for inbound agent-runtime callbacks.
package service

import (
	"context"
	"log/slog"

	"github.com/plandeck/nudge/internal/event"
	"github.com/plandeck/nudge/internal/orchestrator"
)

// EventEmitter pushes a named event toward the workflow engine. Services use
// this interface to emit without depending on the concrete bridge.
type EventEmitter interface {
	EmitEvent(ctx context.Context, eventName string, payload any) bool
}

// Notifier translates domain mutations into notification events. Every
// method is fire-and-forget from the caller's perspective: the originating
// mutation succeeds regardless of notification outcome, and failures are
// only observable in logs and metrics.
type Notifier struct {
	emitter EventEmitter
	logger  *slog.Logger
}

// NewNotifier creates a Notifier.
func NewNotifier(emitter EventEmitter, logger *slog.Logger) *Notifier {
	return &Notifier{emitter: emitter, logger: logger}
}

// TaskStatusChanged emits a notification for a task status transition.
// Transitions that are not notification-worthy are silently skipped.
func (n *Notifier) TaskStatusChanged(
	ctx context.Context,
	node event.TaskNode, plan event.PlanRef, actor event.Actor,
	ownerID, oldStatus, newStatus string,
) {
	ev := event.BuildStatusChange(node, plan, actor, ownerID, oldStatus, newStatus)
	if ev == nil {
		return
	}
	handed := n.emitter.EmitEvent(ctx, orchestrator.EventNotificationSend, ev)
	n.logger.Debug("status change emitted",
		"event", ev.EventType, "task", node.ID, "engine", handed)
}

// AgentAssistanceRequested emits an agent:request:created event for the
// node's pending request. The workflow handler forwards the request to the
// agent runtime and notifies the owner.
func (n *Notifier) AgentAssistanceRequested(
	ctx context.Context,
	node event.TaskNode, plan event.PlanRef, actor event.Actor, ownerID string,
) {
	ev := event.BuildAgentRequest(node, plan, actor, ownerID)
	handed := n.emitter.EmitEvent(ctx, orchestrator.EventAgentRequestCreated, ev)
	n.logger.Debug("agent request emitted",
		"event", ev.EventType, "task", node.ID, "engine", handed)
}

// DecisionRequested emits a notification for a decision entering pending.
func (n *Notifier) DecisionRequested(
	ctx context.Context,
	decision event.Decision, plan event.PlanRef, actor event.Actor, ownerID string,
) {
	ev := event.BuildDecisionRequested(decision, plan, actor, ownerID)
	handed := n.emitter.EmitEvent(ctx, orchestrator.EventNotificationSend, ev)
	n.logger.Debug("decision request emitted",
		"event", ev.EventType, "decision", decision.ID, "engine", handed)
}

// DecisionResolved emits a notification for the pending→decided transition.
// The caller invokes it exactly once per decision and never for expired or
// cancelled transitions.
func (n *Notifier) DecisionResolved(
	ctx context.Context,
	decision event.Decision, plan event.PlanRef, actor event.Actor, ownerID string,
) {
	ev := event.BuildDecisionResolved(decision, plan, actor, ownerID)
	handed := n.emitter.EmitEvent(ctx, orchestrator.EventNotificationSend, ev)
	n.logger.Debug("decision resolution emitted",
		"event", ev.EventType, "decision", decision.ID, "engine", handed)
}
