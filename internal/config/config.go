// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrOpenAIAPIKeyRequired is returned when OPENAI_API_KEY is not set.
	ErrOpenAIAPIKeyRequired = errors.New("config: OPENAI_API_KEY is required")
	// ErrFirecrawlAPIKeyRequired is returned when FIRECRAWL_API_KEY is not set.
	ErrFirecrawlAPIKeyRequired = errors.New("config: FIRECRAWL_API_KEY is required")
	// ErrInvalidLimit is returned when a depth or concurrency limit is below one.
	ErrInvalidLimit = errors.New("config: limits must be at least 1")
)

// DefaultEnvFile is the dotenv file read before the environment is processed.
const DefaultEnvFile = ".env"

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port        int      `env:"PORT, default=8080" json:"port"`
	CORSOrigins []string `env:"CORS_ORIGINS, default=http://localhost:5173" json:"cors_origins"`

	// LLM settings
	OpenAIAPIKey  string        `env:"OPENAI_API_KEY, required" json:"-"` // Masked in JSON
	OpenAIModel   string        `env:"OPENAI_MODEL, default=gpt-4o" json:"openai_model"`
	OpenAIBaseURL string        `env:"OPENAI_BASE_URL" json:"openai_base_url,omitempty"`
	LLMTimeout    time.Duration `env:"LLM_TIMEOUT, default=120s" json:"llm_timeout"`

	// Search settings
	FirecrawlAPIKey  string `env:"FIRECRAWL_API_KEY, required" json:"-"` // Masked in JSON
	FirecrawlBaseURL string `env:"FIRECRAWL_BASE_URL" json:"firecrawl_base_url,omitempty"`

	// Research settings
	MaxResearchDepth         int `env:"MAX_RESEARCH_DEPTH, default=3" json:"max_research_depth"`
	MaxConcurrentLLMCalls    int `env:"MAX_CONCURRENT_LLM_CALLS, default=10" json:"max_concurrent_llm_calls"`
	MaxConcurrentSearchCalls int `env:"MAX_CONCURRENT_SEARCH_CALLS, default=10" json:"max_concurrent_search_calls"`

	// Job retention. Zero disables the janitor.
	JobRetention     time.Duration `env:"JOB_RETENTION, default=24h" json:"job_retention"`
	JobSweepSchedule string        `env:"JOB_SWEEP_SCHEDULE, default=@every 10m" json:"job_sweep_schedule"`

	// Report storage
	ReportsDir string `env:"REPORTS_DIR, default=local_reports" json:"reports_dir"`

	// Optional S3 settings
	S3Bucket           string        `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string        `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string        `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	S3Prefix           string        `env:"S3_PREFIX" json:"s3_prefix,omitempty"`
	ReportURLTTL       time.Duration `env:"REPORT_URL_TTL, default=24h" json:"report_url_ttl"`
	AWSAccessKeyID     string        `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string        `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Load reads an optional dotenv file and then the environment using
// go-envconfig. Variables already set in the environment win over the file.
// A missing file is not an error. An empty envFile skips the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: load %s: %w", envFile, err)
		}
	}

	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		// Map envconfig errors to our domain errors for required fields
		if strings.Contains(err.Error(), "OPENAI_API_KEY") {
			return nil, ErrOpenAIAPIKeyRequired
		}
		if strings.Contains(err.Error(), "FIRECRAWL_API_KEY") {
			return nil, ErrFirecrawlAPIKeyRequired
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	if c.OpenAIAPIKey == "" {
		return ErrOpenAIAPIKeyRequired
	}
	if c.FirecrawlAPIKey == "" {
		return ErrFirecrawlAPIKeyRequired
	}
	if c.MaxResearchDepth < 1 || c.MaxConcurrentLLMCalls < 1 || c.MaxConcurrentSearchCalls < 1 {
		return ErrInvalidLimit
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	return c.NewLoggerTo(os.Stdout)
}

// NewLoggerTo is NewLogger writing to w.
func (c *Config) NewLoggerTo(w io.Writer) *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, OpenAIModel: %s, OpenAIAPIKey: %s, FirecrawlAPIKey: %s, MaxResearchDepth: %d, MaxConcurrentLLMCalls: %d, MaxConcurrentSearchCalls: %d, JobRetention: %s, ReportsDir: %s, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.OpenAIModel,
		mask(c.OpenAIAPIKey),
		mask(c.FirecrawlAPIKey),
		c.MaxResearchDepth,
		c.MaxConcurrentLLMCalls,
		c.MaxConcurrentSearchCalls,
		c.JobRetention,
		c.ReportsDir,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "****"
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
