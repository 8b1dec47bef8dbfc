package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const defaultModel = "gpt-4o-mini"

type OfficialConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
}

// OfficialClient talks to api.openai.com (or a compatible endpoint) through openai-go.
type OfficialClient struct {
	client      sdk.Client
	model       string
	temperature float64
}

func NewOfficialClient(cfg OfficialConfig) (*OfficialClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	// Retries are owned by RetryingClient.
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OfficialClient{
		client:      sdk.NewClient(opts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}, nil
}

func (c *OfficialClient) CompleteJSON(ctx context.Context, req CompletionRequest) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, req.timeout())
	defer cancel()

	model := req.Model
	if model == "" {
		model = c.model
	}

	params := sdk.ChatCompletionNewParams{
		Model: sdk.ChatModel(model),
		Messages: []sdk.ChatCompletionMessageParamUnion{
			sdk.SystemMessage(req.SystemPrompt),
			sdk.UserMessage(req.UserPrompt),
		},
		Temperature: sdk.Float(c.temperature),
	}
	if len(req.Schema) > 0 {
		var schema map[string]any
		if err := json.Unmarshal(req.Schema, &schema); err != nil {
			return "", fmt.Errorf("decode response schema: %w", err)
		}
		params.ResponseFormat = sdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &sdk.ResponseFormatJSONSchemaParam{
				JSONSchema: sdk.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   req.SchemaName,
					Schema: schema,
					Strict: sdk.Bool(true),
				},
			},
		}
	}

	resp, err := c.client.Chat.Completions.New(reqCtx, params)
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned zero choices")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("openai returned empty content")
	}
	return content, nil
}
