package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	ExecutionInProcess = "inprocess"
	ExecutionTemporal  = "temporal"

	ProviderAzure  = "azure"
	ProviderOpenAI = "openai"
)

type Config struct {
	HTTPPort       string
	LogLevel       string
	ExecutionMode  string
	AllowedOrigins []string

	LLMProvider         string
	AzureEndpoint       string
	AzureAPIKey         string
	AzureAPIVersion     string
	AzureDeploymentName string
	OpenAIAPIKey        string
	OpenAIBaseURL       string
	OpenAIModel         string
	LLMTemperature      float64
	LLMTimeout          time.Duration
	LLMMaxRetries       int
	PromptTemplatePath  string
	EvaluationTimeout   time.Duration
	MaxBodyBytes        int64

	PostgresDSN string
	RedisURL    string
	CacheTTL    time.Duration
	NATSURL     string
	NATSSubject string

	TemporalAddress   string
	TemporalNamespace string
	TemporalTaskQueue string
	WorkflowIDPrefix  string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
}

func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.HTTPPort, ":") {
		return c.HTTPPort
	}
	return ":" + c.HTTPPort
}

// Model is the model or deployment name sent with each completion request.
func (c Config) Model() string {
	if c.LLMProvider == ProviderAzure {
		return c.AzureDeploymentName
	}
	return c.OpenAIModel
}

// Load reads configuration from the environment and an optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("http_port", "8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("execution_mode", ExecutionInProcess)
	v.SetDefault("llm_provider", ProviderAzure)
	v.SetDefault("azure_openai_api_version", "2024-12-01-preview")
	v.SetDefault("openai_model", "gpt-4o-mini")
	v.SetDefault("llm_temperature", 0.1)
	v.SetDefault("llm_timeout", "60s")
	v.SetDefault("llm_max_retries", 2)
	v.SetDefault("evaluation_timeout", "5m")
	v.SetDefault("max_body_bytes", 1<<20)
	v.SetDefault("cache_ttl", "24h")
	v.SetDefault("nats_subject", "essay.evaluation.completed")
	v.SetDefault("temporal_address", "localhost:7233")
	v.SetDefault("temporal_namespace", "default")
	v.SetDefault("temporal_task_queue", "essay-evaluation-task-queue")
	v.SetDefault("workflow_id_prefix", "essay-eval")
	v.SetDefault("minio_endpoint", "localhost:9000")
	v.SetDefault("minio_bucket", "essays")
	v.SetDefault("minio_use_ssl", false)

	llmTimeout, err := parseDuration(v, "llm_timeout")
	if err != nil {
		return Config{}, err
	}
	evalTimeout, err := parseDuration(v, "evaluation_timeout")
	if err != nil {
		return Config{}, err
	}
	cacheTTL, err := parseDuration(v, "cache_ttl")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		HTTPPort:            v.GetString("http_port"),
		LogLevel:            strings.ToLower(v.GetString("log_level")),
		AllowedOrigins:      splitList(v.GetString("cors_allowed_origins")),
		ExecutionMode:       strings.ToLower(v.GetString("execution_mode")),
		LLMProvider:         strings.ToLower(v.GetString("llm_provider")),
		AzureEndpoint:       v.GetString("azure_openai_endpoint"),
		AzureAPIKey:         v.GetString("azure_openai_api_key"),
		AzureAPIVersion:     v.GetString("azure_openai_api_version"),
		AzureDeploymentName: v.GetString("azure_openai_deployment_name"),
		OpenAIAPIKey:        v.GetString("openai_api_key"),
		OpenAIBaseURL:       v.GetString("openai_base_url"),
		OpenAIModel:         v.GetString("openai_model"),
		LLMTemperature:      v.GetFloat64("llm_temperature"),
		LLMTimeout:          llmTimeout,
		LLMMaxRetries:       v.GetInt("llm_max_retries"),
		PromptTemplatePath:  v.GetString("prompt_template_path"),
		EvaluationTimeout:   evalTimeout,
		MaxBodyBytes:        v.GetInt64("max_body_bytes"),
		PostgresDSN:         v.GetString("postgres_dsn"),
		RedisURL:            v.GetString("redis_url"),
		CacheTTL:            cacheTTL,
		NATSURL:             v.GetString("nats_url"),
		NATSSubject:         v.GetString("nats_subject"),
		TemporalAddress:     v.GetString("temporal_address"),
		TemporalNamespace:   v.GetString("temporal_namespace"),
		TemporalTaskQueue:   v.GetString("temporal_task_queue"),
		WorkflowIDPrefix:    v.GetString("workflow_id_prefix"),
		MinioEndpoint:       v.GetString("minio_endpoint"),
		MinioAccessKey:      v.GetString("minio_access_key"),
		MinioSecretKey:      v.GetString("minio_secret_key"),
		MinioBucket:         v.GetString("minio_bucket"),
		MinioUseSSL:         v.GetBool("minio_use_ssl"),
	}

	switch cfg.ExecutionMode {
	case ExecutionInProcess, ExecutionTemporal:
	default:
		return Config{}, fmt.Errorf("unsupported EXECUTION_MODE %q", cfg.ExecutionMode)
	}
	switch cfg.LLMProvider {
	case ProviderAzure, ProviderOpenAI:
	default:
		return Config{}, fmt.Errorf("unsupported LLM_PROVIDER %q", cfg.LLMProvider)
	}
	if cfg.LLMMaxRetries < 0 {
		cfg.LLMMaxRetries = 0
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", strings.ToUpper(key), err)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
