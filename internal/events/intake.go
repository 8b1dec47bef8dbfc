package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"essay-eval-orchestrator/internal/domain"
	"essay-eval-orchestrator/internal/evaluation"
)

type ObjectStore interface {
	GetObject(ctx context.Context, objectKey string) ([]byte, error)
	PutObject(ctx context.Context, objectKey string, content []byte, contentType string) error
	Exists(ctx context.Context, objectKey string) (bool, error)
}

type Evaluator interface {
	Evaluate(ctx context.Context, req domain.EvaluationRequest) (domain.Outcome, error)
}

// BatchResult is the document written to results/<id>.json.
type BatchResult struct {
	SubmissionID string                    `json:"submission_id"`
	EvaluationID string                    `json:"evaluation_id,omitempty"`
	Status       domain.EvaluationStatus   `json:"status"`
	Results      []domain.EvaluationResult `json:"results,omitempty"`
	ErrorType    domain.ErrorType          `json:"error_type,omitempty"`
	Detail       string                    `json:"detail,omitempty"`
}

// Intake evaluates submissions uploaded to the object store and writes their results next to them.
type Intake struct {
	store     ObjectStore
	evaluator Evaluator
	validate  *validator.Validate
	timeout   time.Duration
	logger    zerolog.Logger
}

func NewIntake(store ObjectStore, evaluator Evaluator, validate *validator.Validate, timeout time.Duration, logger zerolog.Logger) *Intake {
	return &Intake{
		store:     store,
		evaluator: evaluator,
		validate:  validate,
		timeout:   timeout,
		logger:    logger.With().Str("component", "intake").Logger(),
	}
}

// Handle processes one submission. Only object store failures are returned; evaluation
// problems end up in the written result.
func (i *Intake) Handle(ctx context.Context, event SubmissionEvent) error {
	log := i.logger.With().Str("submission_id", event.SubmissionID).Str("object", event.ObjectKey).Logger()
	resultKey := ResultKey(event.SubmissionID)

	done, err := i.store.Exists(ctx, resultKey)
	if err != nil {
		return fmt.Errorf("check result %s: %w", resultKey, err)
	}
	if done {
		log.Info().Msg("result already exists, skipping submission")
		return nil
	}

	raw, err := i.store.GetObject(ctx, event.ObjectKey)
	if err != nil {
		return fmt.Errorf("read submission %s: %w", event.ObjectKey, err)
	}

	result := i.evaluate(ctx, event.SubmissionID, raw, log)
	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	if err := i.store.PutObject(ctx, resultKey, payload, "application/json"); err != nil {
		return fmt.Errorf("write result %s: %w", resultKey, err)
	}
	log.Info().Str("status", string(result.Status)).Str("result", resultKey).Msg("submission processed")
	return nil
}

func (i *Intake) evaluate(ctx context.Context, submissionID string, raw []byte, log zerolog.Logger) BatchResult {
	result := BatchResult{SubmissionID: submissionID}

	sub, err := evaluation.DecodeSubmission(raw, i.validate)
	if err != nil {
		log.Warn().Err(err).Msg("invalid submission payload")
		result.Status = domain.StatusRejected
		result.ErrorType = domain.ErrorTypeValidation
		result.Detail = err.Error()
		return result
	}

	evalCtx := ctx
	if i.timeout > 0 {
		var cancel context.CancelFunc
		evalCtx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	outcome, err := i.evaluator.Evaluate(evalCtx, sub.Request())
	result.EvaluationID = outcome.EvaluationID
	var rejection *domain.RejectionError
	switch {
	case err == nil:
		result.Status = domain.StatusCompleted
		result.Results = outcome.Results
	case errors.As(err, &rejection):
		result.Status = domain.StatusRejected
		result.ErrorType = rejection.Type
		result.Detail = rejection.Message
	default:
		log.Error().Err(err).Msg("submission evaluation failed")
		result.Status = domain.StatusFailed
		result.ErrorType = domain.ClassifyError(err)
		result.Detail = domain.MessageUnexpected
	}
	return result
}
