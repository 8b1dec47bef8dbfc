// Package judge implements the rubric judge: one structured LLM call per rubric item.
package judge

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"essay-eval-orchestrator/internal/domain"
	"essay-eval-orchestrator/internal/observability"
	"essay-eval-orchestrator/internal/openai"
)

const schemaName = "rubric_judgement"

type Config struct {
	LLM      openai.Client
	Template *openai.PromptTemplate
	Model    string
	Timeout  time.Duration
	Logger   zerolog.Logger
}

// LLMJudge is stateless apart from its read-only template and client and may be shared
// across concurrent evaluations.
type LLMJudge struct {
	llm      openai.Client
	template *openai.PromptTemplate
	model    string
	timeout  time.Duration
	logger   zerolog.Logger
	tracer   trace.Tracer
}

func New(cfg Config) *LLMJudge {
	return &LLMJudge{
		llm:      cfg.LLM,
		template: cfg.Template,
		model:    cfg.Model,
		timeout:  cfg.Timeout,
		logger:   cfg.Logger.With().Str("component", "judge").Logger(),
		tracer:   otel.Tracer("essay-eval-orchestrator/internal/judge"),
	}
}

// Judge scores one rubric item. The configured timeout bounds the whole call, retries
// included. Every failure is returned as *domain.LLMCallFailedError.
func (j *LLMJudge) Judge(parent context.Context, req domain.EvaluationRequest, item domain.RubricItem, includeLevelInfo bool) (domain.RubricJudgement, error) {
	ctx, span := j.tracer.Start(parent, "judge.rubric", trace.WithAttributes(
		attribute.String("rubric_item", string(item)),
		attribute.Bool("include_level_info", includeLevelInfo),
	))
	defer span.End()

	level := string(req.LevelGroup)
	if !includeLevelInfo {
		level = openai.GrammarLevelPlaceholder
	}
	systemPrompt := j.template.Render(openai.BuildRubricVars(level, string(item), req.TopicPrompt, req.SubmitText))

	callCtx := ctx
	if j.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := j.llm.CompleteJSON(callCtx, openai.CompletionRequest{
		Model:        j.model,
		SystemPrompt: systemPrompt,
		UserPrompt:   openai.BuildRubricUserPrompt(string(item)),
		SchemaName:   schemaName,
		Schema:       json.RawMessage(domain.RubricJudgementJSONSchema),
		Timeout:      j.timeout,
	})
	observability.JudgeDuration().WithLabelValues(string(item)).Observe(time.Since(start).Seconds())
	if err != nil {
		return domain.RubricJudgement{}, j.fail(span, item, err)
	}

	out, err := openai.ParseRubricJudgement(raw)
	if err != nil {
		return domain.RubricJudgement{}, j.fail(span, item, err)
	}

	j.logger.Debug().
		Str("rubric_item", string(item)).
		Int("score", out.Score).
		Int("corrections", len(out.Corrections)).
		Dur("elapsed", time.Since(start)).
		Msg("rubric judged")
	return out, nil
}

func (j *LLMJudge) fail(span trace.Span, item domain.RubricItem, err error) error {
	observability.JudgeFailures().WithLabelValues(string(item)).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	j.logger.Error().Err(err).Str("rubric_item", string(item)).Msg("rubric judge call failed")
	return domain.NewLLMCallFailedError(item, err)
}
