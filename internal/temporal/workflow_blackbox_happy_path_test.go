package temporal

import (
	"context"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/converter"
	"go.temporal.io/sdk/testsuite"

	"essay-eval-orchestrator/internal/domain"
)

type activityTrace struct {
	mu sync.Mutex

	startedOrder   []string
	completedOrder []string

	preprocessIn  *PreprocessInput
	preprocessOut *domain.PreprocessResult
	judgeIns      []JudgeRubricInput
	judgeOuts     []JudgeRubricOutput
}

func (t *activityTrace) recordStarted(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.startedOrder = append(t.startedOrder, name)
}

func (t *activityTrace) recordCompleted(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completedOrder = append(t.completedOrder, name)
}

func (t *activityTrace) structureItems() []domain.RubricItem {
	t.mu.Lock()
	defer t.mu.Unlock()
	var items []domain.RubricItem
	for _, in := range t.judgeIns {
		if in.RubricItem != domain.RubricGrammar {
			items = append(items, in.RubricItem)
		}
	}
	return items
}

func newActivitiesForSpec(llm *stubLLM) *Activities {
	acts, err := buildActivities(llm)
	Expect(err).ToNot(HaveOccurred())
	return acts
}

var _ = Describe("EssayEvaluationWorkflow blackbox happy path", func() {
	It("evaluates an intermediate essay through both branches and synthesizes four results", func() {
		var suite testsuite.WorkflowTestSuite
		env := suite.NewTestWorkflowEnvironment()

		llm := &stubLLM{}
		acts := newActivitiesForSpec(llm)
		trace := &activityTrace{}

		env.SetOnActivityStartedListener(func(info *activity.Info, _ context.Context, args converter.EncodedValues) {
			trace.recordStarted(info.ActivityType.Name)

			switch info.ActivityType.Name {
			case "PreprocessSubmissionActivity":
				var in PreprocessInput
				_ = args.Get(&in)
				trace.mu.Lock()
				trace.preprocessIn = &in
				trace.mu.Unlock()
			case "JudgeRubricActivity":
				var in JudgeRubricInput
				_ = args.Get(&in)
				trace.mu.Lock()
				trace.judgeIns = append(trace.judgeIns, in)
				trace.mu.Unlock()
			}
		})

		env.SetOnActivityCompletedListener(func(info *activity.Info, result converter.EncodedValue, _ error) {
			trace.recordCompleted(info.ActivityType.Name)

			switch info.ActivityType.Name {
			case "PreprocessSubmissionActivity":
				var out domain.PreprocessResult
				_ = result.Get(&out)
				trace.mu.Lock()
				trace.preprocessOut = &out
				trace.mu.Unlock()
			case "JudgeRubricActivity":
				var out JudgeRubricOutput
				_ = result.Get(&out)
				trace.mu.Lock()
				trace.judgeOuts = append(trace.judgeOuts, out)
				trace.mu.Unlock()
			}
		})

		env.RegisterWorkflow(EssayEvaluationWorkflow)
		env.RegisterActivity(acts.PreprocessSubmissionActivity)
		env.RegisterActivity(acts.JudgeRubricActivity)

		evaluationID := "eval-happy-blackbox-1"
		req := domain.NewEvaluationRequest(
			"Intermediate",
			"Describe your dream vacation.",
			"My dream vacation is a quiet beach in Jeju. I want to swim every morning and read books under a tree.",
		)

		By("triggering the workflow execution")
		env.ExecuteWorkflow(EssayEvaluationWorkflow, WorkflowInput{EvaluationID: evaluationID, Request: req})

		By("validating workflow completes successfully")
		Expect(env.IsWorkflowCompleted()).To(BeTrue())
		Expect(env.GetWorkflowError()).ToNot(HaveOccurred())

		var wfResult WorkflowResult
		Expect(env.GetWorkflowResult(&wfResult)).To(Succeed())
		outcome := wfResult.Outcome
		Expect(outcome.EvaluationID).To(Equal(evaluationID))
		Expect(outcome.Stage).To(Equal(domain.StageDone))
		Expect(outcome.Status()).To(Equal(domain.StatusCompleted))

		By("validating results are in fixed rubric order with full marks")
		Expect(outcome.Results).To(HaveLen(4))
		for i, item := range domain.RubricOrder {
			Expect(outcome.Results[i].RubricItem).To(Equal(item))
			Expect(outcome.Results[i].Score).To(Equal(2))
			Expect(outcome.Results[i].Corrections).To(BeEmpty())
		}

		By("validating activity inputs and outputs")
		Expect(trace.startedOrder[0]).To(Equal("PreprocessSubmissionActivity"))
		Expect(trace.startedOrder).To(HaveLen(5))
		Expect(trace.completedOrder).To(HaveLen(5))

		Expect(trace.preprocessIn).ToNot(BeNil())
		Expect(trace.preprocessIn.EvaluationID).To(Equal(evaluationID))
		Expect(trace.preprocessIn.Request.LevelGroup).To(Equal(domain.LevelIntermediate))
		Expect(trace.preprocessOut).ToNot(BeNil())
		Expect(trace.preprocessOut.IsValid).To(BeTrue())
		Expect(trace.preprocessOut.WordCount).To(Equal(outcome.WordCount))

		Expect(trace.structureItems()).To(Equal(domain.StructureItems))
		for _, in := range trace.judgeIns {
			Expect(in.EvaluationID).To(Equal(evaluationID))
			Expect(in.IncludeLevelInfo).To(Equal(in.RubricItem != domain.RubricGrammar))
		}
		Expect(trace.judgeOuts).To(HaveLen(4))
		Expect(llm.callCount()).To(Equal(4))

		By("validating the recorded stage history")
		Expect(outcome.History[:3]).To(Equal([]domain.Stage{domain.StageStart, domain.StagePreprocessed, domain.StageForked}))
		Expect(outcome.History).To(ContainElements(domain.StageStructureEvaluated, domain.StageGrammarEvaluated))
		Expect(outcome.History[len(outcome.History)-2:]).To(Equal([]domain.Stage{domain.StageSynthesized, domain.StageDone}))
	})
})
