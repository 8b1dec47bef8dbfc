package domain

import (
	"strings"
	"unicode"
)

const (
	emojiRangeStart = 0x1F300
	emojiRangeEnd   = 0x1FADF
)

var allowedPunctuation = map[rune]struct{}{
	'.': {}, ',': {}, '!': {}, '?': {}, '\'': {}, '"': {}, '(': {}, ')': {},
	'’': {}, '“': {}, '”': {}, '\u2014': {},
}

type PreprocessResult struct {
	WordCount    int
	IsValid      bool
	ErrorType    ErrorType
	ErrorMessage string
}

// Preprocess validates the submission text and counts its words.
func Preprocess(req EvaluationRequest) PreprocessResult {
	text := req.SubmitText
	if strings.TrimSpace(text) == "" {
		return PreprocessResult{
			WordCount:    0,
			IsValid:      false,
			ErrorType:    ErrorTypeValidation,
			ErrorMessage: MessageEmptySubmission,
		}
	}

	wordCount := len(strings.Fields(text))
	if !IsAllowedText(text) {
		return PreprocessResult{
			WordCount:    wordCount,
			IsValid:      false,
			ErrorType:    ErrorTypeInvalidLanguage,
			ErrorMessage: MessageInvalidLanguage,
		}
	}

	return PreprocessResult{WordCount: wordCount, IsValid: true}
}

func IsAllowedText(text string) bool {
	for _, r := range text {
		if !isAllowedRune(r) {
			return false
		}
	}
	return true
}

func isAllowedRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	// U+001C..U+001F are information separators, treated as whitespace.
	case unicode.IsSpace(r), r >= '\x1c' && r <= '\x1f':
		return true
	case r >= emojiRangeStart && r <= emojiRangeEnd:
		return true
	}
	_, ok := allowedPunctuation[r]
	return ok
}
