package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the Prospector server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Search   SearchConfig
	AI       AIConfig
	Pipeline PipelineConfig
	Jobs     JobsConfig
	Stream   StreamConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type SearchConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxResults int
	ExtractTop int
}

type AIConfig struct {
	Provider         string
	InferenceTimeout time.Duration
	Anthropic        AnthropicConfig
	OpenAI           OpenAIConfig
}

type AnthropicConfig struct {
	APIKey string
	Model  string
}

type OpenAIConfig struct {
	APIKey string
	Model  string
}

// PipelineConfig bounds the stage executor. The retry and validation budgets are
// deliberately configuration values, not constants.
type PipelineConfig struct {
	TotalSteps            int
	MaxSources            int
	ExtractionTimeout     time.Duration
	InterCallDelay        time.Duration
	StageMaxRetries       int
	RetryBackoff          time.Duration
	ValidationMaxAttempts int
}

type JobsConfig struct {
	TTL           time.Duration
	SweepInterval time.Duration
}

type StreamConfig struct {
	PollInterval       time.Duration
	HeartbeatInterval  time.Duration
	MaxSessionDuration time.Duration
}

var validProviders = map[string]bool{
	"anthropic": true,
	"openai":    true,
	"mock":      true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("PROSPECTOR_PORT", 8080),
			Env:  envString("PROSPECTOR_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Search: SearchConfig{
			BaseURL:    envString("TAVILY_BASE_URL", "https://api.tavily.com"),
			APIKey:     os.Getenv("TAVILY_API_KEY"),
			Timeout:    envDuration("TAVILY_TIMEOUT", 30*time.Second),
			MaxResults: envInt("TAVILY_MAX_RESULTS", 10),
			ExtractTop: envInt("TAVILY_EXTRACT_TOP", 3),
		},
		AI: AIConfig{
			Provider:         os.Getenv("AI_PROVIDER"),
			InferenceTimeout: envDurationSecs("AI_INFERENCE_TIMEOUT_SECS", 120*time.Second),
			Anthropic: AnthropicConfig{
				APIKey: os.Getenv("ANTHROPIC_API_KEY"),
				Model:  envString("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
			},
			OpenAI: OpenAIConfig{
				APIKey: os.Getenv("OPENAI_API_KEY"),
				Model:  envString("OPENAI_MODEL", "o4-mini-deep-research"),
			},
		},
		Pipeline: PipelineConfig{
			TotalSteps:            envInt("PROSPECTOR_TOTAL_STEPS", 38),
			MaxSources:            envInt("PROSPECTOR_MAX_SOURCES", 50),
			ExtractionTimeout:     envDuration("PROSPECTOR_EXTRACTION_TIMEOUT", 30*time.Second),
			InterCallDelay:        envDuration("PROSPECTOR_INTER_CALL_DELAY", 2*time.Second),
			StageMaxRetries:       envInt("PROSPECTOR_STAGE_MAX_RETRIES", 2),
			RetryBackoff:          envDuration("PROSPECTOR_STAGE_RETRY_BACKOFF", 2*time.Second),
			ValidationMaxAttempts: envInt("PROSPECTOR_VALIDATION_MAX_ATTEMPTS", 3),
		},
		Jobs: JobsConfig{
			TTL:           envDuration("PROSPECTOR_JOB_TTL", 30*time.Minute),
			SweepInterval: envDuration("PROSPECTOR_JOB_SWEEP_INTERVAL", 5*time.Minute),
		},
		Stream: StreamConfig{
			PollInterval:       envDuration("PROSPECTOR_STREAM_POLL_INTERVAL", 2*time.Second),
			HeartbeatInterval:  envDuration("PROSPECTOR_STREAM_HEARTBEAT_INTERVAL", 15*time.Second),
			MaxSessionDuration: envDuration("PROSPECTOR_STREAM_MAX_SESSION", 50*time.Minute),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if !strings.HasPrefix(c.Search.BaseURL, "http://") && !strings.HasPrefix(c.Search.BaseURL, "https://") {
		return fmt.Errorf("TAVILY_BASE_URL must start with http:// or https://, got %q", c.Search.BaseURL)
	}

	if c.AI.Provider == "" {
		return fmt.Errorf("AI_PROVIDER is required")
	}
	if !validProviders[c.AI.Provider] {
		return fmt.Errorf("AI_PROVIDER must be one of anthropic, openai, mock; got %q", c.AI.Provider)
	}

	if c.AI.Provider == "anthropic" && c.AI.Anthropic.APIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required when AI_PROVIDER is anthropic")
	}
	if c.AI.Provider == "openai" && c.AI.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when AI_PROVIDER is openai")
	}

	if c.Pipeline.TotalSteps < 1 {
		return fmt.Errorf("PROSPECTOR_TOTAL_STEPS must be at least 1")
	}
	if c.Pipeline.ValidationMaxAttempts < 1 {
		return fmt.Errorf("PROSPECTOR_VALIDATION_MAX_ATTEMPTS must be at least 1")
	}
	if c.Stream.PollInterval <= 0 || c.Stream.HeartbeatInterval <= 0 {
		return fmt.Errorf("stream poll and heartbeat intervals must be positive")
	}

	return nil
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
