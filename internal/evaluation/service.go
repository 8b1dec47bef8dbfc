package evaluation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"essay-eval-orchestrator/internal/domain"
	"essay-eval-orchestrator/internal/observability"
)

// ErrStoreUnavailable is returned by Get when the service runs without persistence.
var ErrStoreUnavailable = errors.New("evaluation store not configured")

type Store interface {
	SaveEvaluation(ctx context.Context, rec domain.EvaluationRecord) error
	InsertAudit(ctx context.Context, evaluationID string, stage domain.Stage, detail any) error
	GetEvaluation(ctx context.Context, id string) (domain.EvaluationRecord, error)
}

type Cache interface {
	Get(ctx context.Context, req domain.EvaluationRequest) (domain.Outcome, bool, error)
	Set(ctx context.Context, req domain.EvaluationRequest, outcome domain.Outcome) error
}

type Publisher interface {
	PublishCompleted(ctx context.Context, req domain.EvaluationRequest, outcome domain.Outcome) error
}

type Option func(*Service)

func WithStore(store Store) Option {
	return func(s *Service) { s.store = store }
}

func WithCache(cache Cache) Option {
	return func(s *Service) { s.cache = cache }
}

func WithPublisher(pub Publisher) Option {
	return func(s *Service) { s.publisher = pub }
}

// WithIDGenerator overrides uuid generation for evaluation ids.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// Service is the entry point used by every surface (HTTP, batch intake). It owns id
// assignment and the side effects around a run.
type Service struct {
	executor  Executor
	store     Store
	cache     Cache
	publisher Publisher
	logger    zerolog.Logger
	newID     func() string
}

func NewService(executor Executor, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		executor: executor,
		logger:   logger.With().Str("component", "evaluation").Logger(),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Evaluate runs one submission through the workflow. A rejected submission yields its
// outcome together with a *domain.RejectionError; an aborted run yields the executor error.
func (s *Service) Evaluate(ctx context.Context, req domain.EvaluationRequest) (domain.Outcome, error) {
	id := s.newID()
	log := s.logger.With().Str("evaluation_id", id).Str("level_group", string(req.LevelGroup)).Logger()

	if outcome, ok := s.lookupCache(ctx, req, log); ok {
		outcome.EvaluationID = id
		s.persist(ctx, req, outcome, domain.StatusCompleted, log)
		log.Info().Msg("evaluation served from cache")
		return outcome, nil
	}

	start := time.Now()
	outcome, err := s.executor.Execute(ctx, id, req)
	outcome.EvaluationID = id
	status := outcome.Status()
	if err != nil {
		status = domain.StatusFailed
		if outcome.ErrorType == "" {
			outcome.ErrorType = domain.ClassifyError(err)
		}
		// The cause goes to the log below; stored records only carry the generic message.
		outcome.ErrorMessage = domain.MessageUnexpected
	}

	observability.Evaluations().WithLabelValues(string(status), string(outcome.ErrorType)).Inc()
	s.recordCoreIssues(req, outcome)
	s.persist(ctx, req, outcome, status, log)

	if err != nil {
		log.Error().Err(err).Str("stage", string(outcome.Stage)).Dur("elapsed", time.Since(start)).Msg("evaluation failed")
		return outcome, err
	}
	if rej := outcome.Err(); rej != nil {
		log.Info().Str("error_type", string(outcome.ErrorType)).Msg("evaluation rejected")
		return outcome, rej
	}

	log.Info().Int("word_count", outcome.WordCount).Dur("elapsed", time.Since(start)).Msg("evaluation completed")
	s.storeCache(ctx, req, outcome, log)
	s.publish(ctx, req, outcome, log)
	return outcome, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.EvaluationRecord, error) {
	if s.store == nil {
		return domain.EvaluationRecord{}, ErrStoreUnavailable
	}
	return s.store.GetEvaluation(ctx, id)
}

func (s *Service) lookupCache(ctx context.Context, req domain.EvaluationRequest, log zerolog.Logger) (domain.Outcome, bool) {
	if s.cache == nil {
		return domain.Outcome{}, false
	}
	outcome, ok, err := s.cache.Get(ctx, req)
	switch {
	case err != nil:
		observability.CacheLookups().WithLabelValues("error").Inc()
		log.Warn().Err(err).Msg("cache lookup failed")
		return domain.Outcome{}, false
	case !ok || outcome.Stage != domain.StageDone:
		observability.CacheLookups().WithLabelValues("miss").Inc()
		return domain.Outcome{}, false
	default:
		observability.CacheLookups().WithLabelValues("hit").Inc()
		return outcome, true
	}
}

func (s *Service) storeCache(ctx context.Context, req domain.EvaluationRequest, outcome domain.Outcome, log zerolog.Logger) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, req, outcome); err != nil {
		log.Warn().Err(err).Msg("cache store failed")
	}
}

func (s *Service) publish(ctx context.Context, req domain.EvaluationRequest, outcome domain.Outcome, log zerolog.Logger) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishCompleted(ctx, req, outcome); err != nil {
		log.Warn().Err(err).Msg("publish completion event failed")
	}
}

func (s *Service) recordCoreIssues(req domain.EvaluationRequest, outcome domain.Outcome) {
	for _, item := range domain.StructureItems {
		if outcome.CoreIssues[item] {
			observability.CoreIssues().WithLabelValues(string(req.LevelGroup), string(item)).Inc()
		}
	}
}

// persist writes the record and one audit row per stage reached. Failures are logged only;
// the caller already has its outcome.
func (s *Service) persist(ctx context.Context, req domain.EvaluationRequest, outcome domain.Outcome, status domain.EvaluationStatus, log zerolog.Logger) {
	if s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := s.store.SaveEvaluation(ctx, recordFromOutcome(req, outcome, status)); err != nil {
		log.Error().Err(err).Msg("save evaluation failed")
		return
	}
	for _, stage := range outcome.History {
		if err := s.store.InsertAudit(ctx, outcome.EvaluationID, stage, map[string]any{
			"status":     status,
			"word_count": outcome.WordCount,
		}); err != nil {
			log.Error().Err(err).Str("stage", string(stage)).Msg("insert audit failed")
			return
		}
	}
}

func recordFromOutcome(req domain.EvaluationRequest, outcome domain.Outcome, status domain.EvaluationStatus) domain.EvaluationRecord {
	rec := domain.EvaluationRecord{
		ID:        outcome.EvaluationID,
		Request:   req,
		Status:    status,
		WordCount: outcome.WordCount,
		Results:   outcome.Results,
		History:   outcome.History,
	}
	if outcome.ErrorType != "" {
		errType := string(outcome.ErrorType)
		rec.ErrorType = &errType
	}
	if outcome.ErrorMessage != "" {
		msg := outcome.ErrorMessage
		rec.ErrorMessage = &msg
	}
	return rec
}
