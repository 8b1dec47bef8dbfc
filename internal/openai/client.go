package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
)

const (
	defaultTimeout     = 60 * time.Second
	defaultTemperature = 0.1
	defaultAPIVersion  = "2024-12-01-preview"
)

// Client is the structured LLM capability: one system + user prompt in, one JSON document out.
// Implementations must be safe for concurrent use.
type Client interface {
	CompleteJSON(ctx context.Context, req CompletionRequest) (string, error)
}

type CompletionRequest struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
	SchemaName   string
	Schema       json.RawMessage
	Timeout      time.Duration
}

func (r CompletionRequest) timeout() time.Duration {
	if r.Timeout <= 0 {
		return defaultTimeout
	}
	return r.Timeout
}

type AzureConfig struct {
	Endpoint       string
	APIKey         string
	APIVersion     string
	DeploymentName string
	Temperature    float32
}

// AzureClient talks to an Azure OpenAI deployment through go-openai.
type AzureClient struct {
	client      *goopenai.Client
	deployment  string
	temperature float32
}

func NewAzureClient(cfg AzureConfig) (*AzureClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("AZURE_OPENAI_API_KEY is required")
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("AZURE_OPENAI_ENDPOINT is required")
	}
	if cfg.DeploymentName == "" {
		return nil, fmt.Errorf("AZURE_OPENAI_DEPLOYMENT_NAME is required")
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = defaultAPIVersion
	}

	config := goopenai.DefaultAzureConfig(cfg.APIKey, cfg.Endpoint)
	config.APIVersion = cfg.APIVersion
	deployment := cfg.DeploymentName
	config.AzureModelMapperFunc = func(string) string { return deployment }

	return &AzureClient{
		client:      goopenai.NewClientWithConfig(config),
		deployment:  deployment,
		temperature: cfg.Temperature,
	}, nil
}

func (c *AzureClient) CompleteJSON(ctx context.Context, req CompletionRequest) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, req.timeout())
	defer cancel()

	model := req.Model
	if model == "" {
		model = c.deployment
	}

	format := &goopenai.ChatCompletionResponseFormat{Type: goopenai.ChatCompletionResponseFormatTypeJSONObject}
	if len(req.Schema) > 0 {
		format = &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &goopenai.ChatCompletionResponseFormatJSONSchema{
				Name:   req.SchemaName,
				Schema: req.Schema,
				Strict: true,
			},
		}
	}

	resp, err := c.client.CreateChatCompletion(reqCtx, goopenai.ChatCompletionRequest{
		Model:       model,
		Temperature: c.temperature,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: req.UserPrompt},
		},
		ResponseFormat: format,
	})
	if err != nil {
		return "", fmt.Errorf("azure openai request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("azure openai returned zero choices")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("azure openai returned empty content")
	}
	return content, nil
}
