package gcp

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	executions "cloud.google.com/go/workflows/executions/apiv1"
	"cloud.google.com/go/workflows/executions/apiv1/executionspb"
	"github.com/googleapis/gax-go/v2"
	"github.com/rotisserie/eris"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Lllllllleong/routeingest/internal/models"
)

// executionsAPI is the part of the executions client the scheduler uses.
type executionsAPI interface {
	CreateExecution(ctx context.Context, req *executionspb.CreateExecutionRequest, opts ...gax.CallOption) (*executionspb.Execution, error)
	CancelExecution(ctx context.Context, req *executionspb.CancelExecutionRequest, opts ...gax.CallOption) (*executionspb.Execution, error)
	Close() error
}

// WorkflowScheduler schedules continuations as executions of a workflow that
// sleeps for the requested delay and then calls the run URL. Handles are
// execution IDs; the workflow passes its own ID back as executionName.
type WorkflowScheduler struct {
	client executionsAPI
	parent string
	runURL string
}

// NewWorkflowScheduler creates a scheduler for
// projects/{project}/locations/{location}/workflows/{workflowID}.
func NewWorkflowScheduler(ctx context.Context, projectID, location, workflowID, runURL string) (*WorkflowScheduler, error) {
	client, err := executions.NewClient(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "failed to create workflow executions client")
	}
	return &WorkflowScheduler{
		client: client,
		parent: workflowParent(projectID, location, workflowID),
		runURL: runURL,
	}, nil
}

func workflowParent(projectID, location, workflowID string) string {
	return fmt.Sprintf("projects/%s/locations/%s/workflows/%s", projectID, location, workflowID)
}

// continuationArgument renders the workflow argument.
func continuationArgument(runURL string, delay time.Duration) (string, error) {
	payload, err := json.Marshal(models.ContinuationArgument{
		RunURL:       runURL,
		DelaySeconds: int(delay.Round(time.Second) / time.Second),
		Source:       models.TriggerContinuation,
	})
	if err != nil {
		return "", eris.Wrap(err, "failed to marshal workflow payload")
	}
	return string(payload), nil
}

// Schedule starts a continuation execution.
func (s *WorkflowScheduler) Schedule(ctx context.Context, delay time.Duration) (string, error) {
	arg, err := continuationArgument(s.runURL, delay)
	if err != nil {
		return "", err
	}
	exec, err := s.client.CreateExecution(ctx, &executionspb.CreateExecutionRequest{
		Parent:    s.parent,
		Execution: &executionspb.Execution{Argument: arg},
	})
	if err != nil {
		return "", eris.Wrap(err, "failed to trigger workflow execution")
	}
	return path.Base(exec.GetName()), nil
}

// Cancel stops a pending continuation. Executions that already finished are ignored.
func (s *WorkflowScheduler) Cancel(ctx context.Context, handle string) error {
	_, err := s.client.CancelExecution(ctx, &executionspb.CancelExecutionRequest{
		Name: s.parent + "/executions/" + handle,
	})
	switch status.Code(err) {
	case codes.OK, codes.NotFound, codes.FailedPrecondition:
		return nil
	default:
		return eris.Wrapf(err, "failed to cancel workflow execution %s", handle)
	}
}

func (s *WorkflowScheduler) Close() error {
	return s.client.Close()
}
