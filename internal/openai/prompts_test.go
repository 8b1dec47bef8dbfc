package openai

import (
	"strings"
	"testing"
)

func TestRenderTemplate(t *testing.T) {
	r := RenderTemplate("hello {{A}} {{B}}", map[string]string{
		"A": "one",
		"B": "two",
	})
	if r != "hello one two" {
		t.Fatalf("unexpected render result: %s", r)
	}
}

func TestRenderTemplateDoesNotExpandValues(t *testing.T) {
	r := RenderTemplate("{{A}}|{{B}}", map[string]string{
		"A": "{{B}}",
		"B": "two",
	})
	if r != "{{B}}|two" {
		t.Fatalf("unexpected render result: %s", r)
	}
}

func TestLoadEmbeddedPromptTemplate(t *testing.T) {
	tpl, err := LoadPromptTemplate("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	prompt := tpl.Render(BuildRubricVars("intermediate", "body", "Describe your dream vacation.", "I want to go to the beach."))
	for _, p := range []string{"rubric item: body", "Target proficiency level: intermediate", "Describe your dream vacation.", "I want to go to the beach."} {
		if !strings.Contains(prompt, p) {
			t.Fatalf("prompt missing expected text %q", p)
		}
	}
	if strings.Contains(prompt, "{{") {
		t.Fatalf("prompt has unrendered placeholders")
	}
}

func TestNewPromptTemplateRequiresPlaceholders(t *testing.T) {
	if _, err := NewPromptTemplate("broken", "only {{RUBRIC_ITEM}}"); err == nil {
		t.Fatalf("expected missing placeholder error")
	}
}

func TestBuildRubricUserPrompt(t *testing.T) {
	got := BuildRubricUserPrompt("grammar")
	if got != "Please evaluate the provided essay for the 'grammar' rubric item." {
		t.Fatalf("unexpected user prompt: %s", got)
	}
}
