// Package event defines the canonical notification event flowing through the
// delivery pipeline, and the builders that translate domain mutations into
// events. Events are built synchronously at the moment of mutation and are
// immutable afterwards; nothing in this package performs I/O.
package event

import "github.com/google/uuid"

// Event type tags. The dispatch path treats these as opaque strings; they are
// enumerated here so adapters and tests agree on the vocabulary.
const (
	TypeStatusChanged             = "task.status_changed"
	TypeTaskBlocked               = "task.blocked"
	TypeTaskCompleted             = "task.completed"
	TypeDecisionRequested         = "decision.requested"
	TypeDecisionRequestedBlocking = "decision.requested.blocking"
	TypeDecisionResolved          = "decision.resolved"
)

// Task node statuses observed by the status-change builder.
const (
	StatusNotStarted = "not_started"
	StatusInProgress = "in_progress"
	StatusBlocked    = "blocked"
	StatusCompleted  = "completed"
)

// Actor types.
const (
	ActorHuman = "human"
	ActorAgent = "agent"
)

// PlanRef is the minimal plan reference carried on every event. The full plan
// graph never travels through the pipeline.
type PlanRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Actor identifies who caused the mutation.
type Actor struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// TaskRef is the task payload attached to task.* events.
type TaskRef struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status,omitempty"`
}

// DecisionRef is the decision payload attached to decision.* events.
type DecisionRef struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Urgency  string `json:"urgency,omitempty"`
	Outcome  string `json:"outcome,omitempty"`
}

// RequestRef is the payload attached to task.<type>_requested events.
type RequestRef struct {
	TaskID      string `json:"taskId"`
	TaskTitle   string `json:"taskTitle"`
	RequestType string `json:"requestType"`
}

// Notification is the unit of work flowing through the pipeline. Exactly one
// of Task, Decision, or Request is set, depending on EventType. Message is
// always present and channel-independent.
type Notification struct {
	EventType     string       `json:"eventType"`
	CorrelationID string       `json:"correlationId"`
	UserID        string       `json:"userId"`
	Plan          PlanRef      `json:"plan"`
	Task          *TaskRef     `json:"task,omitempty"`
	Decision      *DecisionRef `json:"decision,omitempty"`
	Request       *RequestRef  `json:"request,omitempty"`
	Actor         Actor        `json:"actor"`
	Message       string       `json:"message"`
}

// newCorrelationID is swapped out in tests that need deterministic ids.
var newCorrelationID = func() string { return uuid.New().String() }
