package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	braintrust "github.com/braintrustdata/braintrust-sdk-go"
	"github.com/braintrustdata/braintrust-sdk-go/eval"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	statusCompleted = "COMPLETED"
	statusRejected  = "REJECTED"
	statusFailed    = "FAILED"

	maxRubricScore = 2
)

var rubricOrder = []string{"introduction", "body", "conclusion", "grammar"}

type evalInput struct {
	Name        string `json:"name"`
	LevelGroup  string `json:"level_group"`
	TopicPrompt string `json:"topic_prompt"`
	SubmitText  string `json:"submit_text"`
}

type rubricResult struct {
	RubricItem  string            `json:"rubric_item"`
	Score       int               `json:"score"`
	Corrections []json.RawMessage `json:"corrections"`
	Feedback    string            `json:"feedback"`
}

type evalOutput struct {
	EvaluationID string         `json:"evaluation_id,omitempty"`
	Status       string         `json:"status,omitempty"`
	Detail       string         `json:"detail,omitempty"`
	Results      []rubricResult `json:"results,omitempty"`
	// Scores holds the expected human scores per rubric item.
	Scores map[string]int `json:"scores,omitempty"`
}

type rawCase struct {
	Input    evalInput  `json:"input"`
	Expected evalOutput `json:"expected"`
}

type config struct {
	APIURL         string
	CasesPath      string
	Project        string
	Experiment     string
	RequestTimeout time.Duration
	Parallelism    int
}

type evalRunner struct {
	cfg    config
	client *http.Client
}

func main() {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		fail(err)
	}

	if strings.TrimSpace(os.Getenv("BRAINTRUST_API_KEY")) == "" {
		fail(errors.New("BRAINTRUST_API_KEY is required"))
	}

	cases, err := loadCases(cfg.CasesPath)
	if err != nil {
		fail(err)
	}

	runner := &evalRunner{
		cfg:    cfg,
		client: &http.Client{},
	}

	if err := runner.healthCheck(ctx); err != nil {
		fail(err)
	}

	tp := sdktrace.NewTracerProvider()
	defer func() {
		_ = tp.Shutdown(context.Background())
	}()

	bt, err := braintrust.New(
		tp,
		braintrust.WithProject(cfg.Project),
		braintrust.WithBlockingLogin(true),
	)
	if err != nil {
		fail(fmt.Errorf("failed to initialize Braintrust: %w", err))
	}

	evaluator := braintrust.NewEvaluator[evalInput, evalOutput](bt)

	result, err := evaluator.Run(ctx, eval.Opts[evalInput, evalOutput]{
		Experiment: cfg.Experiment,
		Dataset:    eval.NewDataset(cases),
		Task:       eval.T(runner.runCase),
		Scorers: []eval.Scorer[evalInput, evalOutput]{
			eval.NewScorer("status", scoreStatus),
			eval.NewScorer("rubric_order", scoreRubricOrder),
			eval.NewScorer("score_range", scoreRange),
			eval.NewScorer("exact_agreement", scoreExactAgreement),
			eval.NewScorer("adjacent_agreement", scoreAdjacentAgreement),
			eval.NewScorer("feedback_present", scoreFeedbackPresent),
		},
		Tags: []string{"essay-evaluation", "rubric", "workflow-api"},
		Metadata: map[string]any{
			"service":             "essay-eval-orchestrator",
			"api_url":             cfg.APIURL,
			"request_timeout_sec": int(cfg.RequestTimeout.Seconds()),
		},
		Parallelism: cfg.Parallelism,
	})
	if err != nil {
		fail(fmt.Errorf("eval run failed: %w", err))
	}

	if runErr := result.Error(); runErr != nil {
		fail(fmt.Errorf("eval completed with errors: %w", runErr))
	}

	if link, err := result.Permalink(); err == nil && link != "" {
		fmt.Println("Braintrust report:", link)
	}

	fmt.Println(result.String())
}

func loadConfig() (config, error) {
	cfg := config{
		APIURL:         getenv("EVAL_API_URL", "http://localhost:8080"),
		CasesPath:      getenv("EVAL_CASES_PATH", "cases.json"),
		Project:        getenv("BRAINTRUST_PROJECT", "essay-eval-orchestrator"),
		Experiment:     getenv("EVAL_EXPERIMENT", "essay-rubric-eval"),
		RequestTimeout: time.Duration(getenvInt("EVAL_REQUEST_TIMEOUT_SEC", 180)) * time.Second,
		Parallelism:    getenvInt("EVAL_PARALLELISM", 1),
	}

	if cfg.RequestTimeout <= 0 {
		return config{}, errors.New("EVAL_REQUEST_TIMEOUT_SEC must be > 0")
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 1
	}

	return cfg, nil
}

func loadCases(path string) ([]eval.Case[evalInput, evalOutput], error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to read cases file %s: %w", resolved, err)
	}

	var raw []rawCase
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse cases file %s: %w", resolved, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("cases file is empty: %s", resolved)
	}

	cases := make([]eval.Case[evalInput, evalOutput], 0, len(raw))
	for _, row := range raw {
		cases = append(cases, eval.Case[evalInput, evalOutput]{
			Input:    row.Input,
			Expected: row.Expected,
			Metadata: map[string]any{"name": row.Input.Name, "level_group": row.Input.LevelGroup},
		})
	}
	return cases, nil
}

// runCase posts one essay and maps the HTTP outcome onto evalOutput.
func (r *evalRunner) runCase(ctx context.Context, input evalInput) (evalOutput, error) {
	reqCtx, cancel := context.WithTimeout(ctx, r.cfg.RequestTimeout)
	defer cancel()

	body, err := json.Marshal(map[string]string{
		"level_group":  input.LevelGroup,
		"topic_prompt": input.TopicPrompt,
		"submit_text":  input.SubmitText,
	})
	if err != nil {
		return evalOutput{}, err
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, strings.TrimRight(r.cfg.APIURL, "/")+"/v1/essay-eval", bytes.NewReader(body))
	if err != nil {
		return evalOutput{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return evalOutput{}, fmt.Errorf("evaluate failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return evalOutput{}, fmt.Errorf("evaluate response read failed: %w", err)
	}

	out := evalOutput{EvaluationID: resp.Header.Get("X-Evaluation-ID")}
	switch {
	case resp.StatusCode == http.StatusOK:
		out.Status = statusCompleted
		if err := json.Unmarshal(payload, &out.Results); err != nil {
			return evalOutput{}, fmt.Errorf("decode failed: %w (payload=%s)", err, string(payload))
		}
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		out.Status = statusRejected
		out.Detail = decodeDetail(payload)
	default:
		out.Status = statusFailed
		out.Detail = decodeDetail(payload)
	}
	return out, nil
}

func decodeDetail(payload []byte) string {
	var body struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return strings.TrimSpace(string(payload))
	}
	if s, ok := body.Detail.(string); ok {
		return s
	}
	raw, _ := json.Marshal(body.Detail)
	return string(raw)
}

func (r *evalRunner) healthCheck(ctx context.Context) error {
	reqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, strings.TrimRight(r.cfg.APIURL, "/")+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("health check decode failed: %w", err)
	}
	if strings.ToLower(out.Status) != "ok" {
		return fmt.Errorf("health check returned non-ok status: %s", out.Status)
	}
	return nil
}

func scoreStatus(_ context.Context, tr eval.TaskResult[evalInput, evalOutput]) (eval.Scores, error) {
	expected := strings.ToUpper(strings.TrimSpace(tr.Expected.Status))
	if expected == "" {
		expected = statusCompleted
	}
	if strings.ToUpper(tr.Output.Status) != expected {
		return eval.S(0), nil
	}
	if expected == statusRejected && tr.Expected.Detail != "" && tr.Output.Detail != tr.Expected.Detail {
		return eval.S(0), nil
	}
	return eval.S(1), nil
}

func scoreRubricOrder(_ context.Context, tr eval.TaskResult[evalInput, evalOutput]) (eval.Scores, error) {
	if tr.Output.Status != statusCompleted {
		return eval.S(notApplicable(tr)), nil
	}
	if len(tr.Output.Results) != len(rubricOrder) {
		return eval.S(0), nil
	}
	for i, item := range rubricOrder {
		if tr.Output.Results[i].RubricItem != item {
			return eval.S(0), nil
		}
	}
	return eval.S(1), nil
}

func scoreRange(_ context.Context, tr eval.TaskResult[evalInput, evalOutput]) (eval.Scores, error) {
	if tr.Output.Status != statusCompleted {
		return eval.S(notApplicable(tr)), nil
	}
	for _, res := range tr.Output.Results {
		if res.Score < 0 || res.Score > maxRubricScore || res.Corrections == nil {
			return eval.S(0), nil
		}
	}
	return eval.S(1), nil
}

func scoreExactAgreement(_ context.Context, tr eval.TaskResult[evalInput, evalOutput]) (eval.Scores, error) {
	return eval.S(agreement(tr, 0)), nil
}

func scoreAdjacentAgreement(_ context.Context, tr eval.TaskResult[evalInput, evalOutput]) (eval.Scores, error) {
	return eval.S(agreement(tr, 1)), nil
}

func scoreFeedbackPresent(_ context.Context, tr eval.TaskResult[evalInput, evalOutput]) (eval.Scores, error) {
	if tr.Output.Status != statusCompleted {
		return eval.S(notApplicable(tr)), nil
	}
	if len(tr.Output.Results) == 0 {
		return eval.S(0), nil
	}
	present := 0
	for _, res := range tr.Output.Results {
		if strings.TrimSpace(res.Feedback) != "" {
			present++
		}
	}
	return eval.S(float64(present) / float64(len(tr.Output.Results))), nil
}

// agreement is the share of human-scored rubric items the model scored within tolerance.
func agreement(tr eval.TaskResult[evalInput, evalOutput], tolerance int) float64 {
	if tr.Output.Status != statusCompleted {
		return notApplicable(tr)
	}
	if len(tr.Expected.Scores) == 0 {
		return 0
	}

	actual := make(map[string]int, len(tr.Output.Results))
	for _, res := range tr.Output.Results {
		actual[res.RubricItem] = res.Score
	}

	matched := 0
	for item, want := range tr.Expected.Scores {
		got, ok := actual[item]
		if !ok {
			continue
		}
		if abs(got-want) <= tolerance {
			matched++
		}
	}
	return float64(matched) / float64(len(tr.Expected.Scores))
}

// notApplicable scores result-shape checks on cases that are expected not to complete.
func notApplicable(tr eval.TaskResult[evalInput, evalOutput]) float64 {
	expected := strings.ToUpper(strings.TrimSpace(tr.Expected.Status))
	if expected != "" && expected != statusCompleted && strings.EqualFold(tr.Output.Status, expected) {
		return 1
	}
	return 0
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func resolvePath(path string) (string, error) {
	if path == "" {
		return "", errors.New("path is empty")
	}
	if filepath.IsAbs(path) {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		return "", fmt.Errorf("path not found: %s", path)
	}

	candidates := []string{
		path,
		filepath.Join("evals", "braintrust", path),
	}

	for _, c := range candidates {
		absPath, err := filepath.Abs(c)
		if err != nil {
			continue
		}
		if _, err := os.Stat(absPath); err == nil {
			return absPath, nil
		}
	}

	return "", fmt.Errorf("path not found: %s", path)
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	var out int
	if _, err := fmt.Sscanf(v, "%d", &out); err != nil {
		return fallback
	}
	return out
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
