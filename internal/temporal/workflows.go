package temporal

import (
	"errors"
	"fmt"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"essay-eval-orchestrator/internal/domain"
)

const EssayEvaluationWorkflowName = "EssayEvaluationWorkflow"

type WorkflowInput struct {
	EvaluationID string
	Request      domain.EvaluationRequest
}

type WorkflowResult struct {
	Outcome domain.Outcome
}

// EssayEvaluationWorkflow preprocesses the submission, then forks a structure branch
// (introduction, body, conclusion in sequence) and a grammar branch. Both branches must
// succeed before synthesis; the first branch failure cancels the other and fails the run.
func EssayEvaluationWorkflow(ctx workflow.Context, input WorkflowInput) (WorkflowResult, error) {
	logger := workflow.GetLogger(ctx)
	state := domain.NewWorkflowState(input.Request)

	var pre domain.PreprocessResult
	if err := workflow.ExecuteActivity(
		mustActivityContext(ctx, ActivityPolicyPreprocessSubmission),
		(*Activities).PreprocessSubmissionActivity,
		PreprocessInput{EvaluationID: input.EvaluationID, Request: input.Request},
	).Get(ctx, &pre); err != nil {
		return WorkflowResult{}, err
	}
	if err := state.ApplyPreprocess(pre); err != nil {
		return WorkflowResult{}, err
	}
	if state.Stage == domain.StageRejected {
		logger.Info("submission rejected", "EvaluationID", input.EvaluationID, "ErrorType", string(state.ErrorType))
		return WorkflowResult{Outcome: state.Outcome(input.EvaluationID)}, nil
	}

	branchCtx, cancelBranches := workflow.WithCancel(ctx)
	defer cancelBranches()
	judgeCtx := mustActivityContext(branchCtx, ActivityPolicyJudgeRubric)

	structureFuture, structureSettable := workflow.NewFuture(branchCtx)
	workflow.Go(branchCtx, func(gctx workflow.Context) {
		judgements := make(map[domain.RubricItem]domain.RubricJudgement, len(domain.StructureItems))
		for _, item := range domain.StructureItems {
			var out JudgeRubricOutput
			if err := workflow.ExecuteActivity(judgeCtx, (*Activities).JudgeRubricActivity, JudgeRubricInput{
				EvaluationID:     input.EvaluationID,
				Request:          input.Request,
				RubricItem:       item,
				IncludeLevelInfo: true,
			}).Get(gctx, &out); err != nil {
				structureSettable.SetError(judgeActivityError(item, err))
				return
			}
			judgements[item] = out.Judgement
		}
		structureSettable.SetValue(judgements)
	})

	grammarFuture := workflow.ExecuteActivity(judgeCtx, (*Activities).JudgeRubricActivity, JudgeRubricInput{
		EvaluationID:     input.EvaluationID,
		Request:          input.Request,
		RubricItem:       domain.RubricGrammar,
		IncludeLevelInfo: false,
	})

	var branchErr error
	selector := workflow.NewSelector(ctx)
	selector.AddFuture(structureFuture, func(f workflow.Future) {
		var judgements map[domain.RubricItem]domain.RubricJudgement
		if err := f.Get(ctx, &judgements); err != nil {
			branchErr = err
			return
		}
		if err := state.RecordStructure(judgements); err != nil {
			branchErr = err
			return
		}
		for _, item := range domain.StructureItems {
			if state.CoreIssues[item] {
				logger.Info("core issue found", "EvaluationID", input.EvaluationID, "RubricItem", string(item), "LevelGroup", string(input.Request.LevelGroup))
			}
		}
	})
	selector.AddFuture(grammarFuture, func(f workflow.Future) {
		var out JudgeRubricOutput
		if err := f.Get(ctx, &out); err != nil {
			branchErr = judgeActivityError(domain.RubricGrammar, err)
			return
		}
		branchErr = state.RecordGrammar(out.Judgement)
	})

	for i := 0; i < 2; i++ {
		selector.Select(ctx)
		if branchErr != nil {
			cancelBranches()
			logger.Error("evaluation branch failed", "EvaluationID", input.EvaluationID, "Error", branchErr)
			return WorkflowResult{}, branchErr
		}
	}

	if err := state.Synthesize(); err != nil {
		return WorkflowResult{}, err
	}
	if err := state.Complete(); err != nil {
		return WorkflowResult{}, err
	}
	return WorkflowResult{Outcome: state.Outcome(input.EvaluationID)}, nil
}

// judgeActivityError reports a judge activity that ran out of time as LLMCallFailed for
// its rubric item. Other failures already carry that type.
func judgeActivityError(item domain.RubricItem, err error) error {
	var timeoutErr *temporal.TimeoutError
	if !errors.As(err, &timeoutErr) {
		return err
	}
	return temporal.NewNonRetryableApplicationError(
		fmt.Sprintf("llm call failed for %s: %v", item, timeoutErr),
		ApplicationErrorTypeLLMCallFailed,
		err,
		string(item),
	)
}
