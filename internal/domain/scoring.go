package domain

import (
	"fmt"
	"strings"
)

// CoreIssueKeywords lists, per level, the issue phrases that touch the level's focus point.
var CoreIssueKeywords = map[LevelGroup][]string{
	LevelBasic:        {"unclear", "clarity", "confusing", "vague", "not specific", "hard to understand"},
	LevelIntermediate: {"support", "reason", "example", "evidence", "development", "expand on", "not well-developed", "lacks detail"},
	LevelAdvanced:     {"structure", "cohesion", "flow", "logical connection", "organization", "argument", "thesis"},
	LevelExpert:       {"persuasive", "nuance", "rhetoric", "compelling", "convincing", "counter-argument", "one-sided"},
}

// MinimumWordCounts holds the length thresholds; levels not listed never trigger the penalty.
var MinimumWordCounts = map[LevelGroup]int{
	LevelAdvanced: 150,
	LevelExpert:   200,
}

// HasCoreIssue reports whether any correction's issue mentions a focus keyword of level.
func HasCoreIssue(level LevelGroup, corrections []CorrectionDetail) bool {
	_, matched := FindCoreIssue(level, corrections)
	return matched
}

// FindCoreIssue is HasCoreIssue that also returns the first matching keyword.
func FindCoreIssue(level LevelGroup, corrections []CorrectionDetail) (string, bool) {
	if len(corrections) == 0 {
		return "", false
	}
	keywords := CoreIssueKeywords[level]
	if len(keywords) == 0 {
		return "", false
	}
	for _, c := range corrections {
		issue := strings.ToLower(c.Issue)
		for _, keyword := range keywords {
			if strings.Contains(issue, keyword) {
				return keyword, true
			}
		}
	}
	return "", false
}

func MinimumWordCount(level LevelGroup) int {
	return MinimumWordCounts[level]
}

func coreIssueNote(level LevelGroup) string {
	return fmt.Sprintf(" (Note: Score adjusted down due to a core issue related to the '%s' level's focus point.)", level)
}

func lengthNote(threshold int) string {
	return fmt.Sprintf(" (Note: Score further adjusted as the essay is shorter than %d words.)", threshold)
}

// Adjust applies the core-issue penalty and then the length penalty to a raw judgement.
// The judgement is not modified; grammar passes through unchanged.
func Adjust(item RubricItem, judgement RubricJudgement, hasCoreIssue bool, wordCount int, level LevelGroup) EvaluationResult {
	score := judgement.Score
	feedback := judgement.Feedback
	corrections := append([]CorrectionDetail{}, judgement.Corrections...)

	if item != RubricGrammar {
		if hasCoreIssue && score > MinScore {
			score--
			feedback += coreIssueNote(level)
		}

		threshold := MinimumWordCount(level)
		if wordCount < threshold && score > MinScore {
			score--
			feedback += lengthNote(threshold)
		}
	}

	return EvaluationResult{
		RubricItem:  item,
		Score:       score,
		Corrections: corrections,
		Feedback:    feedback,
	}
}
