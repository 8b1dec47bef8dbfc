package temporal

import (
	"context"
	"errors"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"

	"essay-eval-orchestrator/internal/domain"
)

// Executor starts EssayEvaluationWorkflow on a Temporal cluster and blocks until it finishes.
type Executor struct {
	Client    client.Client
	TaskQueue string
	// IDPrefix is joined to the evaluation ID to form the workflow ID.
	IDPrefix string
}

func (e *Executor) workflowID(evaluationID string) string {
	prefix := e.IDPrefix
	if prefix == "" {
		prefix = "essay-eval"
	}
	return prefix + "-" + evaluationID
}

func (e *Executor) Execute(ctx context.Context, evaluationID string, req domain.EvaluationRequest) (domain.Outcome, error) {
	failed := domain.Outcome{EvaluationID: evaluationID}

	run, err := e.Client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        e.workflowID(evaluationID),
		TaskQueue: e.TaskQueue,
	}, EssayEvaluationWorkflowName, WorkflowInput{EvaluationID: evaluationID, Request: req})
	if err != nil {
		return failed, err
	}

	var result WorkflowResult
	if err := run.Get(ctx, &result); err != nil {
		return failed, fromWorkflowError(err)
	}
	return result.Outcome, nil
}

// fromWorkflowError restores *domain.LLMCallFailedError from the application error raised
// by JudgeRubricActivity. A bare activity timeout can only come from a judge call.
func fromWorkflowError(err error) error {
	var appErr *temporal.ApplicationError
	if !errors.As(err, &appErr) || appErr.Type() != ApplicationErrorTypeLLMCallFailed {
		var timeoutErr *temporal.TimeoutError
		if errors.As(err, &timeoutErr) {
			return domain.NewLLMCallFailedError("", timeoutErr)
		}
		return err
	}
	var item string
	if appErr.HasDetails() {
		_ = appErr.Details(&item)
	}
	return domain.NewLLMCallFailedError(domain.RubricItem(item), errors.New(appErr.Message()))
}
