package openai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"essay-eval-orchestrator/internal/domain"
)

const rubricSchemaURL = "rubric_judgement.json"

var (
	rubricSchemaOnce sync.Once
	rubricSchema     *jsonschema.Schema
	rubricSchemaErr  error
)

func compiledRubricSchema() (*jsonschema.Schema, error) {
	rubricSchemaOnce.Do(func() {
		rubricSchema, rubricSchemaErr = jsonschema.CompileString(rubricSchemaURL, domain.RubricJudgementJSONSchema)
	})
	return rubricSchema, rubricSchemaErr
}

// ParseRubricJudgement decodes a structured model output and enforces the rubric contract:
// schema shape, score in [0,2], and a non-nil corrections list.
func ParseRubricJudgement(raw string) (domain.RubricJudgement, error) {
	trimmed := stripCodeFence(strings.TrimSpace(raw))
	if trimmed == "" {
		return domain.RubricJudgement{}, fmt.Errorf("empty model output")
	}

	schema, err := compiledRubricSchema()
	if err != nil {
		return domain.RubricJudgement{}, fmt.Errorf("compile rubric schema: %w", err)
	}

	var doc any
	if err := json.Unmarshal([]byte(trimmed), &doc); err != nil {
		return domain.RubricJudgement{}, fmt.Errorf("model output is not json: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return domain.RubricJudgement{}, fmt.Errorf("model output violates rubric schema: %w", err)
	}

	var out domain.RubricJudgement
	if err := strictDecode([]byte(trimmed), &out); err != nil {
		return domain.RubricJudgement{}, err
	}
	if out.Score < domain.MinScore || out.Score > domain.MaxScore {
		return domain.RubricJudgement{}, fmt.Errorf("score %d out of range [%d,%d]", out.Score, domain.MinScore, domain.MaxScore)
	}
	if out.Corrections == nil {
		out.Corrections = []domain.CorrectionDetail{}
	}
	return out, nil
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func strictDecode(data []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("unexpected trailing data")
	}
	return nil
}
