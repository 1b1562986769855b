package orchestrator

import (
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
)

// NewWorker builds a Temporal worker hosting the notification workflow
// handlers on the given task queue.
func NewWorker(c client.Client, taskQueue string, activities *Activities) worker.Worker {
	w := worker.New(c, taskQueue, worker.Options{})

	w.RegisterWorkflowWithOptions(NotificationWorkflow,
		workflow.RegisterOptions{Name: WorkflowNotification})
	w.RegisterWorkflowWithOptions(AgentRequestWorkflow,
		workflow.RegisterOptions{Name: WorkflowAgentRequest})
	w.RegisterWorkflowWithOptions(AgentResponseWorkflow,
		workflow.RegisterOptions{Name: WorkflowAgentResponse})

	w.RegisterActivity(activities)

	return w
}
