package durable

import (
	"context"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
)

// NewWorker registers BookWorkflow and the activities on taskQueue. The
// caller starts and stops the worker.
func NewWorker(c client.Client, taskQueue string, acts *Activities) worker.Worker {
	w := worker.New(c, taskQueue, worker.Options{})
	w.RegisterWorkflowWithOptions(BookWorkflow, workflow.RegisterOptions{Name: "BookWorkflow"})
	w.RegisterActivity(acts)
	return w
}

// Start launches BookWorkflow for a book. The workflow id is derived from the
// book id so a second start of the same book joins the running one.
func Start(ctx context.Context, c client.Client, taskQueue string, in BookInput) (client.WorkflowRun, error) {
	return c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:                       "book-" + in.BookID,
		TaskQueue:                taskQueue,
		WorkflowIDConflictPolicy: enumspb.WORKFLOW_ID_CONFLICT_POLICY_USE_EXISTING,
		WorkflowIDReusePolicy:    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
	}, BookWorkflow, in)
}
