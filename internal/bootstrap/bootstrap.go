// Package bootstrap builds the shared runtime pieces used by the cmd binaries.
package bootstrap

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"essay-eval-orchestrator/internal/config"
	"essay-eval-orchestrator/internal/judge"
	"essay-eval-orchestrator/internal/openai"
)

func NewLogger(cfg config.Config, service string) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(level).With().
		Timestamp().
		Str("service", service).
		Logger()
}

// NewLLMClient returns the configured provider wrapped with transport retries.
func NewLLMClient(cfg config.Config) (openai.Client, error) {
	var (
		client openai.Client
		err    error
	)
	switch cfg.LLMProvider {
	case config.ProviderAzure:
		client, err = openai.NewAzureClient(openai.AzureConfig{
			Endpoint:       cfg.AzureEndpoint,
			APIKey:         cfg.AzureAPIKey,
			APIVersion:     cfg.AzureAPIVersion,
			DeploymentName: cfg.AzureDeploymentName,
			Temperature:    float32(cfg.LLMTemperature),
		})
	case config.ProviderOpenAI:
		client, err = openai.NewOfficialClient(openai.OfficialConfig{
			APIKey:      cfg.OpenAIAPIKey,
			BaseURL:     cfg.OpenAIBaseURL,
			Model:       cfg.OpenAIModel,
			Temperature: cfg.LLMTemperature,
		})
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.LLMProvider)
	}
	if err != nil {
		return nil, err
	}
	return openai.WithRetry(client, cfg.LLMMaxRetries), nil
}

// NewJudge loads the prompt template once and builds the shared rubric judge.
func NewJudge(cfg config.Config, logger zerolog.Logger) (*judge.LLMJudge, error) {
	llm, err := NewLLMClient(cfg)
	if err != nil {
		return nil, err
	}
	tpl, err := openai.LoadPromptTemplate(cfg.PromptTemplatePath)
	if err != nil {
		return nil, err
	}
	return judge.New(judge.Config{
		LLM:      llm,
		Template: tpl,
		Model:    cfg.Model(),
		Timeout:  cfg.LLMTimeout,
		Logger:   logger,
	}), nil
}
