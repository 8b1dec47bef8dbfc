package temporal

import (
	"context"
	"errors"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"essay-eval-orchestrator/internal/domain"
)

// ApplicationErrorTypeLLMCallFailed tags judge failures crossing the workflow boundary.
const ApplicationErrorTypeLLMCallFailed = "LLMCallFailed"

type RubricJudge interface {
	Judge(ctx context.Context, req domain.EvaluationRequest, item domain.RubricItem, includeLevelInfo bool) (domain.RubricJudgement, error)
}

type Activities struct {
	Judge RubricJudge
}

type PreprocessInput struct {
	EvaluationID string
	Request      domain.EvaluationRequest
}

type JudgeRubricInput struct {
	EvaluationID     string
	Request          domain.EvaluationRequest
	RubricItem       domain.RubricItem
	IncludeLevelInfo bool
}

type JudgeRubricOutput struct {
	Judgement domain.RubricJudgement
}

func (a *Activities) PreprocessSubmissionActivity(_ context.Context, input PreprocessInput) (domain.PreprocessResult, error) {
	return domain.Preprocess(input.Request), nil
}

// JudgeRubricActivity runs one rubric judge call. Judge failures are returned as
// non-retryable application errors carrying the rubric item as detail.
func (a *Activities) JudgeRubricActivity(ctx context.Context, input JudgeRubricInput) (JudgeRubricOutput, error) {
	activity.GetLogger(ctx).Info("judging rubric item", "EvaluationID", input.EvaluationID, "RubricItem", string(input.RubricItem))

	judgement, err := a.Judge.Judge(ctx, input.Request, input.RubricItem, input.IncludeLevelInfo)
	if err != nil {
		if errors.Is(err, domain.ErrLLMCallFailed) {
			return JudgeRubricOutput{}, temporal.NewNonRetryableApplicationError(err.Error(), ApplicationErrorTypeLLMCallFailed, err, string(input.RubricItem))
		}
		return JudgeRubricOutput{}, err
	}
	return JudgeRubricOutput{Judgement: judgement}, nil
}
