package domain

import (
	"errors"
	"fmt"
)

type ErrorType string

const (
	ErrorTypeValidation      ErrorType = "validation_error"
	ErrorTypeInvalidLanguage ErrorType = "invalid_language"
	ErrorTypeLLMCallFailed   ErrorType = "llm_call_failed"
	ErrorTypeInternal        ErrorType = "internal_error"
)

const (
	MessageEmptySubmission = "Submission text cannot be empty."
	MessageInvalidLanguage = "Please write in English. Only English, numbers, and basic punctuation are allowed."
	MessageUnexpected      = "An unexpected error occurred during the evaluation process."
)

var (
	ErrLLMCallFailed     = errors.New("llm call failed")
	ErrInvalidTransition = errors.New("invalid workflow transition")
	ErrNotFound          = errors.New("evaluation not found")
)

// RejectionError carries a Preprocessor rejection out of a Rejected workflow run.
type RejectionError struct {
	Type    ErrorType
	Message string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// LLMCallFailedError wraps any transport, timeout or contract failure of a judge call.
type LLMCallFailedError struct {
	RubricItem RubricItem
	Err        error
}

func NewLLMCallFailedError(item RubricItem, err error) error {
	return &LLMCallFailedError{RubricItem: item, Err: err}
}

func (e *LLMCallFailedError) Error() string {
	return fmt.Sprintf("llm call failed for %s: %v", e.RubricItem, e.Err)
}

func (e *LLMCallFailedError) Unwrap() error {
	return e.Err
}

func (e *LLMCallFailedError) Is(target error) bool {
	return target == ErrLLMCallFailed
}

// ClassifyError maps an error to the taxonomy used at the boundary.
func ClassifyError(err error) ErrorType {
	var rejection *RejectionError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &rejection):
		return rejection.Type
	case errors.Is(err, ErrLLMCallFailed):
		return ErrorTypeLLMCallFailed
	default:
		return ErrorTypeInternal
	}
}
