package evaluation

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"essay-eval-orchestrator/internal/domain"
)

// RubricJudge scores one rubric item of a request.
type RubricJudge interface {
	Judge(ctx context.Context, req domain.EvaluationRequest, item domain.RubricItem, includeLevelInfo bool) (domain.RubricJudgement, error)
}

// Executor runs one evaluation workflow to a terminal stage. A non-nil error means the run
// aborted; the returned outcome still carries the stage history reached.
type Executor interface {
	Execute(ctx context.Context, evaluationID string, req domain.EvaluationRequest) (domain.Outcome, error)
}

// Runner executes the workflow in-process: the grammar branch and the structure branch run
// concurrently and are joined before synthesis.
type Runner struct {
	judge  RubricJudge
	logger zerolog.Logger
}

func NewRunner(judge RubricJudge, logger zerolog.Logger) *Runner {
	return &Runner{judge: judge, logger: logger.With().Str("component", "runner").Logger()}
}

func (r *Runner) Execute(ctx context.Context, evaluationID string, req domain.EvaluationRequest) (domain.Outcome, error) {
	state, err := r.Run(ctx, req)
	return state.Outcome(evaluationID), err
}

func (r *Runner) Run(ctx context.Context, req domain.EvaluationRequest) (*domain.WorkflowState, error) {
	state := domain.NewWorkflowState(req)
	if err := state.ApplyPreprocess(domain.Preprocess(req)); err != nil {
		return state, err
	}
	if state.Stage == domain.StageRejected {
		r.logger.Info().
			Str("error_type", string(state.ErrorType)).
			Int("word_count", state.WordCount).
			Msg("submission rejected")
		return state, nil
	}

	var (
		structure map[domain.RubricItem]domain.RubricJudgement
		grammar   domain.RubricJudgement
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		structure, err = r.evaluateStructure(gctx, req)
		return err
	})
	g.Go(func() error {
		var err error
		grammar, err = r.judge.Judge(gctx, req, domain.RubricGrammar, false)
		return err
	})
	if err := g.Wait(); err != nil {
		return state, fmt.Errorf("evaluate branches: %w", err)
	}

	if err := state.RecordStructure(structure); err != nil {
		return state, err
	}
	for _, item := range domain.StructureItems {
		if state.CoreIssues[item] {
			r.logger.Info().
				Str("rubric_item", string(item)).
				Str("level_group", string(req.LevelGroup)).
				Msg("core issue found")
		}
	}
	if err := state.RecordGrammar(grammar); err != nil {
		return state, err
	}
	if err := state.Synthesize(); err != nil {
		return state, err
	}
	if err := state.Complete(); err != nil {
		return state, err
	}
	return state, nil
}

// evaluateStructure judges introduction, body and conclusion one after another.
func (r *Runner) evaluateStructure(ctx context.Context, req domain.EvaluationRequest) (map[domain.RubricItem]domain.RubricJudgement, error) {
	out := make(map[domain.RubricItem]domain.RubricJudgement, len(domain.StructureItems))
	for _, item := range domain.StructureItems {
		j, err := r.judge.Judge(ctx, req, item, true)
		if err != nil {
			return nil, err
		}
		out[item] = j
	}
	return out, nil
}
