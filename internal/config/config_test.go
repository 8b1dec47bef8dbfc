package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.HTTPAddress())
	require.Equal(t, ExecutionInProcess, cfg.ExecutionMode)
	require.Equal(t, ProviderAzure, cfg.LLMProvider)
	require.Equal(t, "2024-12-01-preview", cfg.AzureAPIVersion)
	require.InDelta(t, 0.1, cfg.LLMTemperature, 1e-9)
	require.Equal(t, 60*time.Second, cfg.LLMTimeout)
	require.Equal(t, 2, cfg.LLMMaxRetries)
	require.Equal(t, 24*time.Hour, cfg.CacheTTL)
	require.Equal(t, "essay.evaluation.completed", cfg.NATSSubject)
	require.Equal(t, "essay-eval", cfg.WorkflowIDPrefix)
	require.Empty(t, cfg.PostgresDSN)
	require.Empty(t, cfg.AllowedOrigins)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("HTTP_PORT", ":9090")
	t.Setenv("EXECUTION_MODE", "Temporal")
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("OPENAI_MODEL", "gpt-4.1-mini")
	t.Setenv("LLM_TIMEOUT", "15s")
	t.Setenv("LLM_MAX_RETRIES", "4")
	t.Setenv("AZURE_OPENAI_DEPLOYMENT_NAME", "essay-judge")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://essays.example.com, http://localhost:3000,")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddress())
	require.Equal(t, ExecutionTemporal, cfg.ExecutionMode)
	require.Equal(t, "gpt-4.1-mini", cfg.Model())
	require.Equal(t, 15*time.Second, cfg.LLMTimeout)
	require.Equal(t, 4, cfg.LLMMaxRetries)
	require.Equal(t, []string{"https://essays.example.com", "http://localhost:3000"}, cfg.AllowedOrigins)

	t.Setenv("LLM_PROVIDER", "azure")
	cfg, err = Load()
	require.NoError(t, err)
	require.Equal(t, "essay-judge", cfg.Model())
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := map[string]map[string]string{
		"execution mode": {"EXECUTION_MODE": "lambda"},
		"provider":       {"LLM_PROVIDER": "anthropic"},
		"timeout":        {"LLM_TIMEOUT": "soon"},
		"cache ttl":      {"CACHE_TTL": "forever"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
		})
	}
}
