package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/plandeck/nudge/internal/event"
	"github.com/plandeck/nudge/internal/orchestrator"
)

// AgentCallback is the inbound payload from the external agent runtime.
type AgentCallback struct {
	SessionID string `json:"sessionId"`
	Status    string `json:"status"`
	Result    struct {
		Summary string `json:"summary"`
	} `json:"result"`
	Metadata struct {
		TaskID  string `json:"taskId"`
		Adapter string `json:"adapter"`
		UserID  string `json:"userId"`
		PlanID  string `json:"planId"`
	} `json:"metadata"`
}

// TaskStore is the slice of the external plan/task persistence layer this
// subsystem consumes. It is owned elsewhere; only completion and progress
// appends happen through it.
type TaskStore interface {
	CompleteTask(ctx context.Context, taskID string) error
	AppendProgress(ctx context.Context, taskID, note string) error
}

// AgentCallbackService consumes agent-runtime callbacks: it marks the task
// complete, appends a progress entry, and emits agent:response:received.
type AgentCallbackService struct {
	store   TaskStore
	emitter EventEmitter
	logger  *slog.Logger
}

// NewAgentCallbackService creates an AgentCallbackService.
func NewAgentCallbackService(store TaskStore, emitter EventEmitter, logger *slog.Logger) *AgentCallbackService {
	return &AgentCallbackService{store: store, emitter: emitter, logger: logger}
}

// Handle processes one callback. Callbacks without a completed status or a
// task id are acknowledged and ignored; store failures surface as errors so
// the runtime retries the callback.
func (s *AgentCallbackService) Handle(ctx context.Context, cb AgentCallback) error {
	if cb.SessionID == "" {
		return &ValidationError{Field: "sessionId", Message: "must not be empty"}
	}

	if cb.Status != "completed" || cb.Metadata.TaskID == "" {
		s.logger.Debug("agent callback ignored",
			"session_id", cb.SessionID, "status", cb.Status, "task_id", cb.Metadata.TaskID)
		return nil
	}

	taskID := cb.Metadata.TaskID
	if err := s.store.CompleteTask(ctx, taskID); err != nil {
		return fmt.Errorf("completing task %q: %w", taskID, err)
	}

	note := fmt.Sprintf("Agent session %s completed: %s", cb.SessionID, cb.Result.Summary)
	if err := s.store.AppendProgress(ctx, taskID, note); err != nil {
		return fmt.Errorf("appending progress for task %q: %w", taskID, err)
	}

	s.emitter.EmitEvent(ctx, orchestrator.EventAgentResponseReceived, orchestrator.AgentResponse{
		SessionID: cb.SessionID,
		Status:    cb.Status,
		Summary:   cb.Result.Summary,
		TaskID:    taskID,
		Adapter:   cb.Metadata.Adapter,
		UserID:    cb.Metadata.UserID,
		Plan:      event.PlanRef{ID: cb.Metadata.PlanID},
	})

	s.logger.Info("agent callback processed",
		"session_id", cb.SessionID, "task_id", taskID, "adapter", cb.Metadata.Adapter)
	return nil
}
