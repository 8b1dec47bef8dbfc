package openai

import (
	"embed"
	"fmt"
	"os"
	"strings"
)

//go:embed templates/rubric_evaluation.md
var templateFS embed.FS

const (
	RubricEvaluationTemplate = "rubric_evaluation.md"

	// GrammarLevelPlaceholder replaces the level when grammar is judged, so that grammar is
	// scored independently of proficiency.
	GrammarLevelPlaceholder = "general, grammar focus"

	userTemplate = `Please evaluate the provided essay for the '{{RUBRIC_ITEM}}' rubric item.`
)

var requiredTemplateVars = []string{"LEVEL_GROUP", "RUBRIC_ITEM", "TOPIC_PROMPT", "SUBMIT_TEXT"}

// PromptTemplate is loaded once at startup and shared read-only by every request.
type PromptTemplate struct {
	name string
	body string
}

// LoadPromptTemplate reads the template at path, or the embedded default when path is empty.
func LoadPromptTemplate(path string) (*PromptTemplate, error) {
	var (
		raw  []byte
		err  error
		name = RubricEvaluationTemplate
	)
	if path == "" {
		raw, err = templateFS.ReadFile("templates/" + RubricEvaluationTemplate)
	} else {
		raw, err = os.ReadFile(path)
		name = path
	}
	if err != nil {
		return nil, fmt.Errorf("load prompt template %s: %w", name, err)
	}
	return NewPromptTemplate(name, string(raw))
}

func NewPromptTemplate(name, body string) (*PromptTemplate, error) {
	for _, v := range requiredTemplateVars {
		if !strings.Contains(body, "{{"+v+"}}") {
			return nil, fmt.Errorf("prompt template %s is missing {{%s}}", name, v)
		}
	}
	return &PromptTemplate{name: name, body: body}, nil
}

func (p *PromptTemplate) Name() string {
	return p.name
}

func (p *PromptTemplate) Render(vars map[string]string) string {
	return RenderTemplate(p.body, vars)
}

func RenderTemplate(tpl string, vars map[string]string) string {
	// Single pass: placeholders inside substituted values are left alone.
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tpl)
}

func BuildRubricVars(levelGroup, rubricItem, topicPrompt, submitText string) map[string]string {
	return map[string]string{
		"LEVEL_GROUP":  levelGroup,
		"RUBRIC_ITEM":  rubricItem,
		"TOPIC_PROMPT": topicPrompt,
		"SUBMIT_TEXT":  submitText,
	}
}

func BuildRubricUserPrompt(rubricItem string) string {
	return RenderTemplate(userTemplate, map[string]string{"RUBRIC_ITEM": rubricItem})
}
