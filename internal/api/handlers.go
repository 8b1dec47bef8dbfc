package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"essay-eval-orchestrator/internal/domain"
	"essay-eval-orchestrator/internal/evaluation"
)

const welcomeMessage = "Welcome to the Essay Evaluation API!"

type EvaluationService interface {
	Evaluate(ctx context.Context, req domain.EvaluationRequest) (domain.Outcome, error)
	Get(ctx context.Context, id string) (domain.EvaluationRecord, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	MaxBodyBytes   int64
	AllowedOrigins []string
	// EvaluationTimeout bounds one synchronous evaluation; zero means the request context only.
	EvaluationTimeout time.Duration
}

type Handler struct {
	cfg      Config
	svc      EvaluationService
	validate *validator.Validate
	ready    []Pinger
	logger   zerolog.Logger
}

type errorResponse struct {
	Detail any `json:"detail"`
}

func NewHandler(cfg Config, svc EvaluationService, validate *validator.Validate, logger zerolog.Logger, ready ...Pinger) *Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	return &Handler{cfg: cfg, svc: svc, validate: validate, ready: ready, logger: logger}
}

func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": welcomeMessage})
}

func (h *Handler) EvaluateEssay(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, h.cfg.MaxBodyBytes+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "failed to read request body"})
		return
	}
	if int64(len(body)) > h.cfg.MaxBodyBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Detail: "request body exceeds size limit"})
		return
	}

	sub, err := evaluation.DecodeSubmission(body, h.validate)
	if err != nil {
		var invalid *evaluation.InvalidSubmissionError
		if errors.As(err, &invalid) {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Detail: invalid.Fields})
			return
		}
		h.internalError(w, r, err)
		return
	}

	ctx := r.Context()
	if h.cfg.EvaluationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.EvaluationTimeout)
		defer cancel()
	}

	outcome, err := h.svc.Evaluate(ctx, sub.Request())
	if outcome.EvaluationID != "" {
		w.Header().Set("X-Evaluation-ID", outcome.EvaluationID)
	}
	if err != nil {
		var rejection *domain.RejectionError
		if errors.As(err, &rejection) {
			writeJSON(w, rejectionStatus(rejection.Type), errorResponse{Detail: rejection.Message})
			return
		}
		h.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome.Results)
}

func (h *Handler) GetEvaluation(w http.ResponseWriter, r *http.Request, evaluationID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rec, err := h.svc.Get(ctx, evaluationID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, rec)
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Detail: "evaluation not found"})
	case errors.Is(err, evaluation.ErrStoreUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Detail: "evaluation history is not enabled"})
	default:
		h.logger.Error().Err(err).Str("evaluation_id", evaluationID).Msg("fetch evaluation failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: "failed to fetch evaluation"})
	}
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	for _, p := range h.ready {
		if err := p.Ping(ctx); err != nil {
			h.logger.Warn().Err(err).Msg("readiness check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error().Err(err).
		Str("error_type", string(domain.ClassifyError(err))).
		Str("path", r.URL.Path).
		Msg("evaluation request failed")
	writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: domain.MessageUnexpected})
}

// rejectionStatus maps preprocessor rejections: empty and non-English submissions are
// unprocessable, anything else is a bad request.
func rejectionStatus(t domain.ErrorType) int {
	switch t {
	case domain.ErrorTypeInvalidLanguage, domain.ErrorTypeValidation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
