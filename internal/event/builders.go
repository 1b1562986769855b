package event

import "fmt"

// TaskNode is the slice of the external task entity the builders consume.
type TaskNode struct {
	ID    string
	Title string
	// PendingRequestType is the request verb ("complete", "assist", ...)
	// set on the node when agent assistance has been requested.
	PendingRequestType string
}

// Decision is the slice of the external decision-request entity the builders
// consume. The notification layer observes its transitions; it never mutates
// decision state.
type Decision struct {
	ID       string
	Question string
	Urgency  string
	Outcome  string
}

// UrgencyBlocking marks a decision that blocks progress until resolved.
const UrgencyBlocking = "blocking"

// BuildStatusChange translates a task status transition into a notification.
// Only transitions into blocked, completed, or in_progress are
// notification-worthy; any other target status returns nil.
func BuildStatusChange(node TaskNode, plan PlanRef, actor Actor, ownerID, oldStatus, newStatus string) *Notification {
	var eventType string
	switch newStatus {
	case StatusBlocked:
		eventType = TypeTaskBlocked
	case StatusCompleted:
		eventType = TypeTaskCompleted
	case StatusInProgress:
		eventType = TypeStatusChanged
	default:
		return nil
	}

	return &Notification{
		EventType:     eventType,
		CorrelationID: newCorrelationID(),
		UserID:        ownerID,
		Plan:          plan,
		Task:          &TaskRef{ID: node.ID, Title: node.Title, Status: newStatus},
		Actor:         actor,
		Message:       fmt.Sprintf("Task '%s' status: %s → %s", node.Title, oldStatus, newStatus),
	}
}

// BuildAgentRequest translates a pending agent-assistance request into a
// notification. There is no suppression rule: every request emits.
func BuildAgentRequest(node TaskNode, plan PlanRef, actor Actor, ownerID string) *Notification {
	requestType := node.PendingRequestType
	if requestType == "" {
		requestType = "assist"
	}

	return &Notification{
		EventType:     fmt.Sprintf("task.%s_requested", requestType),
		CorrelationID: newCorrelationID(),
		UserID:        ownerID,
		Plan:          plan,
		Request: &RequestRef{
			TaskID:      node.ID,
			TaskTitle:   node.Title,
			RequestType: requestType,
		},
		Actor:   actor,
		Message: fmt.Sprintf("🤖 Agent requested to %s task '%s'", requestType, node.Title),
	}
}

// BuildDecisionRequested translates a new pending decision into a
// notification. Blocking decisions get their own event type and a more urgent
// message tier.
func BuildDecisionRequested(decision Decision, plan PlanRef, actor Actor, ownerID string) *Notification {
	eventType := TypeDecisionRequested
	message := fmt.Sprintf("🤔 Decision requested: %s", decision.Question)
	if decision.Urgency == UrgencyBlocking {
		eventType = TypeDecisionRequestedBlocking
		message = fmt.Sprintf("🚨 Blocking decision needed: %s", decision.Question)
	}

	return &Notification{
		EventType:     eventType,
		CorrelationID: newCorrelationID(),
		UserID:        ownerID,
		Plan:          plan,
		Decision: &DecisionRef{
			ID:       decision.ID,
			Question: decision.Question,
			Urgency:  decision.Urgency,
		},
		Actor:   actor,
		Message: message,
	}
}

// BuildDecisionResolved translates the pending→decided transition into a
// notification. The caller guarantees it is invoked exactly once per decision
// and never for expired or cancelled transitions; no idempotence check is
// performed here.
func BuildDecisionResolved(decision Decision, plan PlanRef, actor Actor, ownerID string) *Notification {
	return &Notification{
		EventType:     TypeDecisionResolved,
		CorrelationID: newCorrelationID(),
		UserID:        ownerID,
		Plan:          plan,
		Decision: &DecisionRef{
			ID:       decision.ID,
			Question: decision.Question,
			Outcome:  decision.Outcome,
		},
		Actor:   actor,
		Message: fmt.Sprintf("✅ Decision resolved: %s", decision.Question),
	}
}
