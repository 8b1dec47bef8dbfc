package temporal

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	ActivityPolicyPreprocessSubmission = "preprocess_submission"
	ActivityPolicyJudgeRubric          = "judge_rubric"
)

type activityPolicy struct {
	StartToCloseTimeout time.Duration
	RetryPolicy         temporal.RetryPolicy
}

// JudgeActivityTimeout is the start-to-close window of one judge activity. The judge's
// own LLM timeout must stay below it so a slow provider surfaces as LLMCallFailed.
const JudgeActivityTimeout = 3 * time.Minute

// CheckJudgeTimeout rejects an LLM timeout that would outlive the judge activity.
func CheckJudgeTimeout(llmTimeout time.Duration) error {
	if llmTimeout <= 0 || llmTimeout >= JudgeActivityTimeout {
		return fmt.Errorf("LLM_TIMEOUT %s must be positive and below the judge activity timeout %s", llmTimeout, JudgeActivityTimeout)
	}
	return nil
}

// Judge calls are attempted once; transport retries happen inside the LLM client.
var activityPolicies = map[string]activityPolicy{
	ActivityPolicyPreprocessSubmission: {
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: temporal.RetryPolicy{
			InitialInterval:    1 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    10 * time.Second,
			MaximumAttempts:    3,
		},
	},
	ActivityPolicyJudgeRubric: {
		StartToCloseTimeout: JudgeActivityTimeout,
		RetryPolicy: temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	},
}

func ActivityOptionsFor(policyName string) (workflow.ActivityOptions, error) {
	policy, ok := activityPolicies[policyName]
	if !ok {
		return workflow.ActivityOptions{}, fmt.Errorf("unknown activity policy: %s", policyName)
	}

	retry := policy.RetryPolicy
	return workflow.ActivityOptions{
		StartToCloseTimeout: policy.StartToCloseTimeout,
		RetryPolicy:         &retry,
	}, nil
}

func mustActivityContext(ctx workflow.Context, policyName string) workflow.Context {
	ao, err := ActivityOptionsFor(policyName)
	if err != nil {
		panic(err)
	}
	return workflow.WithActivityOptions(ctx, ao)
}
