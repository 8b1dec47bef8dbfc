package evaluation

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"essay-eval-orchestrator/internal/domain"
)

// Submission is the wire shape of an evaluation request. Pointer fields distinguish a
// missing field from an empty one: a missing field fails validation, an empty
// submit_text reaches the preprocessor.
type Submission struct {
	LevelGroup  *string `json:"level_group" validate:"required,min=1"`
	TopicPrompt *string `json:"topic_prompt" validate:"required"`
	SubmitText  *string `json:"submit_text" validate:"required"`
}

func (s Submission) Request() domain.EvaluationRequest {
	return domain.NewEvaluationRequest(deref(s.LevelGroup), deref(s.TopicPrompt), deref(s.SubmitText))
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// InvalidSubmissionError lists every problem found in a submission payload.
type InvalidSubmissionError struct {
	Fields []FieldError
}

func (e *InvalidSubmissionError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return "invalid submission: " + strings.Join(msgs, "; ")
}

// NewValidator returns a validator that reports fields by their json names.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// DecodeSubmission parses and validates a JSON payload. Problems with the payload are
// returned as *InvalidSubmissionError.
func DecodeSubmission(data []byte, validate *validator.Validate) (Submission, error) {
	var sub Submission
	if err := json.Unmarshal(data, &sub); err != nil {
		return Submission{}, &InvalidSubmissionError{Fields: []FieldError{decodeFieldError(err)}}
	}
	if err := validate.Struct(sub); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return Submission{}, err
		}
		fields := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
		}
		return Submission{}, &InvalidSubmissionError{Fields: fields}
	}
	return sub, nil
}

func decodeFieldError(err error) FieldError {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return FieldError{Field: typeErr.Field, Message: fmt.Sprintf("'%s' must be a valid string", typeErr.Field)}
	}
	return FieldError{Field: "body", Message: "request body must be a valid JSON object"}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("'%s' is a required field", fe.Field())
	case "min":
		return fmt.Sprintf("'%s' cannot be empty", fe.Field())
	default:
		return fmt.Sprintf("'%s' failed %s validation", fe.Field(), fe.Tag())
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
