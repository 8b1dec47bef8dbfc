package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	judgeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "essay_eval",
		Subsystem: "judge",
		Name:      "call_duration_seconds",
		Help:      "Duration of rubric judge LLM calls.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
	}, []string{"rubric_item"})

	judgeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "essay_eval",
		Subsystem: "judge",
		Name:      "call_failures_total",
		Help:      "Number of rubric judge calls that failed.",
	}, []string{"rubric_item"})

	coreIssues = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "essay_eval",
		Subsystem: "workflow",
		Name:      "core_issues_total",
		Help:      "Number of structure judgements flagged with a core issue.",
	}, []string{"level_group", "rubric_item"})

	evaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "essay_eval",
		Subsystem: "workflow",
		Name:      "evaluations_total",
		Help:      "Number of finished evaluations by status and error type.",
	}, []string{"status", "error_type"})

	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "essay_eval",
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Result cache lookups by outcome.",
	}, []string{"result"})
)

func JudgeDuration() *prometheus.HistogramVec {
	return judgeDuration
}

func JudgeFailures() *prometheus.CounterVec {
	return judgeFailures
}

func CoreIssues() *prometheus.CounterVec {
	return coreIssues
}

func Evaluations() *prometheus.CounterVec {
	return evaluations
}

func CacheLookups() *prometheus.CounterVec {
	return cacheLookups
}
