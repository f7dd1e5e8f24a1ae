package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	ModeQueued = "queued"
	ModeSync   = "sync"
)

// MaxProviderCallsPerJob is the provider call budget of one pipeline run.
// JOB_STALE_AFTER must outlast that many inference timeouts plus staleMargin.
const MaxProviderCallsPerJob = 9

const staleMargin = time.Minute

// Config holds all configuration for the bloodwork server and worker.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Queue    QueueConfig
	Staging  StagingConfig
	AI       AIConfig
}

type ServerConfig struct {
	Port           int
	Env            string
	Mode           string
	MaxUploadBytes int64
	RateLimit      int
}

type DatabaseConfig struct {
	URL             string
	MigrationsDir   string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type QueueConfig struct {
	Name              string
	JobTTL            time.Duration
	WorkerConcurrency int
	StaleAfter        time.Duration
}

type StagingConfig struct {
	Dir           string
	MaxAge        time.Duration
	SweepSchedule string
}

type AIConfig struct {
	Provider         string
	InferenceTimeout time.Duration
	Temperature      float64
	Ollama           OllamaConfig
	VLLM             VLLMConfig
	OpenAI           OpenAIConfig
	Anthropic        AnthropicConfig
}

type OllamaConfig struct {
	BaseURL string
	Model   string
}

type VLLMConfig struct {
	BaseURL string
	Model   string
}

type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

type AnthropicConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

var validProviders = map[string]bool{
	"ollama":    true,
	"vllm":      true,
	"openai":    true,
	"anthropic": true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:           envInt("PORT", 8000),
			Env:            envString("APP_ENV", "development"),
			Mode:           envString("ANALYZE_MODE", ModeQueued),
			MaxUploadBytes: int64(envInt("MAX_UPLOAD_BYTES", 20<<20)),
			RateLimit:      envInt("RATE_LIMIT_PER_MIN", 60),
		},
		Database: DatabaseConfig{
			URL:             envString("DATABASE_URL", "sqlite://./reports.db"),
			MigrationsDir:   envString("MIGRATIONS_DIR", "migrations"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: envString("REDIS_URL", "redis://localhost:6379/0"),
		},
		Queue: QueueConfig{
			Name:              envString("QUEUE_NAME", "analysis"),
			JobTTL:            envDuration("JOB_TTL", 24*time.Hour),
			WorkerConcurrency: envInt("WORKER_CONCURRENCY", 2),
			StaleAfter:        envDuration("JOB_STALE_AFTER", 30*time.Minute),
		},
		Staging: StagingConfig{
			Dir:           envString("STAGING_DIR", "data"),
			MaxAge:        envDuration("STAGING_MAX_AGE", time.Hour),
			SweepSchedule: envString("STAGING_SWEEP_SCHEDULE", "@every 10m"),
		},
		AI: AIConfig{
			Provider:         os.Getenv("AI_PROVIDER"),
			InferenceTimeout: envDurationSecs("AI_INFERENCE_TIMEOUT_SECS", 60*time.Second),
			Temperature:      envFloat("AI_TEMPERATURE", 0.7),
			Ollama: OllamaConfig{
				BaseURL: envString("OLLAMA_BASE_URL", "http://localhost:11434"),
				Model:   envString("OLLAMA_MODEL", "llama3"),
			},
			VLLM: VLLMConfig{
				BaseURL: envString("VLLM_BASE_URL", "http://localhost:8001"),
				Model:   envString("VLLM_MODEL", ""),
			},
			OpenAI: OpenAIConfig{
				BaseURL: envString("OPENAI_BASE_URL", "https://api.openai.com"),
				APIKey:  os.Getenv("OPENAI_API_KEY"),
				Model:   envString("OPENAI_MODEL", "gpt-3.5-turbo"),
			},
			Anthropic: AnthropicConfig{
				BaseURL: envString("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
				APIKey:  os.Getenv("ANTHROPIC_API_KEY"),
				Model:   envString("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
			},
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Mode != ModeQueued && c.Server.Mode != ModeSync {
		return fmt.Errorf("ANALYZE_MODE must be one of queued, sync; got %q", c.Server.Mode)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.Server.MaxUploadBytes)
	}

	if !strings.HasPrefix(c.Database.URL, "postgres://") &&
		!strings.HasPrefix(c.Database.URL, "postgresql://") &&
		!strings.HasPrefix(c.Database.URL, "sqlite://") {
		return fmt.Errorf("DATABASE_URL must start with postgres://, postgresql:// or sqlite://, got %q", c.Database.URL)
	}

	if !strings.HasPrefix(c.Redis.URL, "redis://") && !strings.HasPrefix(c.Redis.URL, "rediss://") {
		return fmt.Errorf("REDIS_URL must start with redis:// or rediss://, got %q", c.Redis.URL)
	}
	if c.Queue.Name == "" {
		return fmt.Errorf("QUEUE_NAME must not be empty")
	}
	if c.Queue.WorkerConcurrency < 0 {
		return fmt.Errorf("WORKER_CONCURRENCY must not be negative, got %d", c.Queue.WorkerConcurrency)
	}
	if c.AI.InferenceTimeout <= 0 {
		return fmt.Errorf("AI_INFERENCE_TIMEOUT_SECS must be positive, got %s", c.AI.InferenceTimeout)
	}
	if minStale := MaxProviderCallsPerJob*c.AI.InferenceTimeout + staleMargin; c.Queue.StaleAfter <= minStale {
		return fmt.Errorf("JOB_STALE_AFTER must exceed %s (%d inference timeouts of %s plus %s), got %s",
			minStale, MaxProviderCallsPerJob, c.AI.InferenceTimeout, staleMargin, c.Queue.StaleAfter)
	}

	if c.Staging.Dir == "" {
		return fmt.Errorf("STAGING_DIR must not be empty")
	}
	if _, err := cron.ParseStandard(c.Staging.SweepSchedule); err != nil {
		return fmt.Errorf("STAGING_SWEEP_SCHEDULE %q: %w", c.Staging.SweepSchedule, err)
	}

	if c.AI.Provider == "" {
		return fmt.Errorf("AI_PROVIDER is required")
	}
	if !validProviders[c.AI.Provider] {
		return fmt.Errorf("AI_PROVIDER must be one of ollama, vllm, openai, anthropic; got %q", c.AI.Provider)
	}

	if c.AI.Provider == "openai" && c.AI.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when AI_PROVIDER is openai")
	}
	if c.AI.Provider == "anthropic" && c.AI.Anthropic.APIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required when AI_PROVIDER is anthropic")
	}
	if c.AI.Provider == "vllm" && c.AI.VLLM.Model == "" {
		return fmt.Errorf("VLLM_MODEL is required when AI_PROVIDER is vllm")
	}

	return nil
}

// IsSQLite reports whether the database URL selects the embedded SQLite store.
func (c DatabaseConfig) IsSQLite() bool {
	return strings.HasPrefix(c.URL, "sqlite://")
}

// SQLitePath strips the sqlite:// scheme, leaving the file path gorm expects.
func (c DatabaseConfig) SQLitePath() string {
	return strings.TrimPrefix(c.URL, "sqlite://")
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
