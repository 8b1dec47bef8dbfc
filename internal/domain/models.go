package domain

import "strings"

type RubricItem string

const (
	RubricIntroduction RubricItem = "introduction"
	RubricBody         RubricItem = "body"
	RubricConclusion   RubricItem = "conclusion"
	RubricGrammar      RubricItem = "grammar"
)

// RubricOrder is the fixed order of items in every final result list.
var RubricOrder = []RubricItem{RubricIntroduction, RubricBody, RubricConclusion, RubricGrammar}

// StructureItems are judged sequentially on the structure branch.
var StructureItems = []RubricItem{RubricIntroduction, RubricBody, RubricConclusion}

type LevelGroup string

const (
	LevelBasic        LevelGroup = "basic"
	LevelIntermediate LevelGroup = "intermediate"
	LevelAdvanced     LevelGroup = "advanced"
	LevelExpert       LevelGroup = "expert"
)

const (
	MinScore = 0
	MaxScore = 2
)

const RubricJudgementJSONSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["score", "corrections", "feedback"],
  "properties": {
    "score": {"type": "integer", "minimum": 0, "maximum": 2},
    "corrections": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["highlight", "issue", "correction"],
        "properties": {
          "highlight": {"type": "string"},
          "issue": {"type": "string"},
          "correction": {"type": "string"}
        }
      }
    },
    "feedback": {"type": "string"}
  }
}`

// EvaluationRequest is immutable once built; LevelGroup is normalized exactly once here.
type EvaluationRequest struct {
	LevelGroup  LevelGroup `json:"level_group"`
	TopicPrompt string     `json:"topic_prompt"`
	SubmitText  string     `json:"submit_text"`
}

func NewEvaluationRequest(levelGroup, topicPrompt, submitText string) EvaluationRequest {
	return EvaluationRequest{
		LevelGroup:  LevelGroup(strings.ToLower(strings.TrimSpace(levelGroup))),
		TopicPrompt: topicPrompt,
		SubmitText:  submitText,
	}
}

type CorrectionDetail struct {
	Highlight  string `json:"highlight"`
	Issue      string `json:"issue"`
	Correction string `json:"correction"`
}

type RubricJudgement struct {
	Score       int                `json:"score"`
	Corrections []CorrectionDetail `json:"corrections"`
	Feedback    string             `json:"feedback"`
}

type EvaluationResult struct {
	RubricItem  RubricItem         `json:"rubric_item"`
	Score       int                `json:"score"`
	Corrections []CorrectionDetail `json:"corrections"`
	Feedback    string             `json:"feedback"`
}

type EvaluationStatus string

const (
	StatusCompleted EvaluationStatus = "COMPLETED"
	StatusRejected  EvaluationStatus = "REJECTED"
	StatusFailed    EvaluationStatus = "FAILED"
)

// Outcome is what a finished workflow run hands back to its caller.
type Outcome struct {
	EvaluationID string              `json:"evaluation_id"`
	Stage        Stage               `json:"stage"`
	WordCount    int                 `json:"word_count"`
	Results      []EvaluationResult  `json:"results,omitempty"`
	ErrorType    ErrorType           `json:"error_type,omitempty"`
	ErrorMessage string              `json:"error_message,omitempty"`
	CoreIssues   map[RubricItem]bool `json:"core_issues,omitempty"`
	History      []Stage             `json:"history"`
}

func (o Outcome) Status() EvaluationStatus {
	switch o.Stage {
	case StageDone:
		return StatusCompleted
	case StageRejected:
		return StatusRejected
	default:
		return StatusFailed
	}
}

// Err returns the rejection carried by a Rejected outcome, nil otherwise.
func (o Outcome) Err() error {
	if o.Stage != StageRejected {
		return nil
	}
	return &RejectionError{Type: o.ErrorType, Message: o.ErrorMessage}
}

type EvaluationRecord struct {
	ID           string             `json:"id"`
	Request      EvaluationRequest  `json:"request"`
	Status       EvaluationStatus   `json:"status"`
	WordCount    int                `json:"word_count"`
	Results      []EvaluationResult `json:"results,omitempty"`
	ErrorType    *string            `json:"error_type,omitempty"`
	ErrorMessage *string            `json:"error_message,omitempty"`
	History      []Stage            `json:"history,omitempty"`
}
