//go:build system

package main_test

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"strings"

	_ "github.com/lib/pq"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.temporal.io/sdk/client"

	"essay-eval-orchestrator/internal/domain"
)

var _ = Describe("System blackbox happy path", Ordered, func() {
	var cfg systemTestConfig

	BeforeAll(func() {
		if os.Getenv("RUN_BLACKBOX_SYSTEM_TEST") != "1" {
			Skip("set RUN_BLACKBOX_SYSTEM_TEST=1 to run real blackbox system test")
		}

		cfg = loadSystemTestConfig()

		By("failing fast if infrastructure is unreachable")
		Expect(waitForPostgres(cfg.PostgresDSN, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForTemporal(cfg.TemporalAddress, cfg.TemporalNamespace, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForHTTPStatus(strings.TrimRight(cfg.APIBaseURL, "/")+"/healthz", http.StatusOK, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForHTTPStatus(strings.TrimRight(cfg.APIBaseURL, "/")+"/readyz", http.StatusOK, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForWorkerPoller(cfg.TemporalAddress, cfg.TemporalNamespace, cfg.TemporalTaskQueue, cfg.WorkerPollerTimeout)).To(Succeed())
	})

	It("evaluates an essay over HTTP through a real worker", func() {
		apiBaseURL := strings.TrimRight(cfg.APIBaseURL, "/")

		By("submitting an essay exactly like a client")
		evaluationID, results, err := postEssay(apiBaseURL, essayRequest{
			LevelGroup:  "Intermediate",
			TopicPrompt: "Describe your dream vacation.",
			SubmitText:  "My dream vacation is a trip to Jeju Island. First, I want to walk on the beach and swim in the clear sea. Second, I would like to climb Hallasan with my family. In conclusion, Jeju is the perfect place to rest and enjoy nature.",
		}, cfg.RequestTimeout)
		Expect(err).ToNot(HaveOccurred())
		Expect(evaluationID).ToNot(BeEmpty())

		Expect(results).To(HaveLen(len(domain.RubricOrder)))
		for i, item := range domain.RubricOrder {
			Expect(results[i].RubricItem).To(Equal(item))
			Expect(results[i].Score).To(BeNumerically(">=", 0))
			Expect(results[i].Score).To(BeNumerically("<=", 2))
			Expect(results[i].Corrections).ToNot(BeNil())
			Expect(results[i].Feedback).ToNot(BeEmpty())
		}

		By("reading the stored evaluation back")
		record, err := getEvaluation(apiBaseURL, evaluationID)
		Expect(err).ToNot(HaveOccurred())
		Expect(record.Status).To(Equal(domain.StatusCompleted))
		Expect(record.History).To(HaveLen(7))
		Expect(record.History[0]).To(Equal(domain.StageStart))
		Expect(record.History[1]).To(Equal(domain.StagePreprocessed))
		Expect(record.History[len(record.History)-1]).To(Equal(domain.StageDone))

		By("validating activity inputs from Temporal workflow history")
		temporalClient, err := client.Dial(client.Options{
			HostPort:  cfg.TemporalAddress,
			Namespace: cfg.TemporalNamespace,
		})
		Expect(err).ToNot(HaveOccurred())
		defer temporalClient.Close()

		trace, err := collectActivityTrace(context.Background(), temporalClient, cfg.WorkflowIDPrefix+"-"+evaluationID)
		Expect(err).ToNot(HaveOccurred())
		Expect(trace.ScheduledOrder).To(HaveLen(5))
		Expect(trace.ScheduledOrder[0]).To(Equal("PreprocessSubmissionActivity"))

		judged := make([]domain.RubricItem, 0, 4)
		for _, in := range trace.JudgeInputs {
			Expect(in.EvaluationID).To(Equal(evaluationID))
			Expect(in.IncludeLevelInfo).To(Equal(in.RubricItem != domain.RubricGrammar))
			if in.RubricItem != domain.RubricGrammar {
				judged = append(judged, in.RubricItem)
			}
		}
		Expect(judged).To(Equal([]domain.RubricItem{domain.RubricIntroduction, domain.RubricBody, domain.RubricConclusion}))

		By("verifying audit records in Postgres")
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		Expect(err).ToNot(HaveOccurred())
		defer db.Close()

		stages, err := fetchStringRows(db, `SELECT stage FROM audit_log WHERE evaluation_id = $1 ORDER BY id`, evaluationID)
		Expect(err).ToNot(HaveOccurred())
		Expect(stages).To(ContainElements(
			string(domain.StageStructureEvaluated),
			string(domain.StageGrammarEvaluated),
			string(domain.StageSynthesized),
		))
	})

	It("rejects a non-English essay without calling the judge", func() {
		apiBaseURL := strings.TrimRight(cfg.APIBaseURL, "/")

		status, detail, err := postEssayExpectingError(apiBaseURL, essayRequest{
			LevelGroup:  "Basic",
			TopicPrompt: "자기소개",
			SubmitText:  "안녕하세요 저는 학생입니다",
		}, cfg.RequestTimeout)
		Expect(err).ToNot(HaveOccurred())
		Expect(status).To(Equal(http.StatusUnprocessableEntity))
		Expect(detail).To(Equal(domain.MessageInvalidLanguage))
	})
})
