// Package config defines the application configuration, loaded from
// environment variables and an optional YAML file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/mkantor-dev/research_agent/pkg/config"
	"github.com/mkantor-dev/research_agent/pkg/logger"
)

// AppConfig holds all application configuration.
type AppConfig struct {
	// Service configuration
	ServiceName string `env:"SERVICE_NAME" yaml:"service_name" default:"research-agent"`
	Version     string `env:"VERSION" yaml:"version" default:"dev"`
	Environment string `env:"ENVIRONMENT" yaml:"environment" default:"development"`

	// Server configuration
	Port            int           `env:"PORT" yaml:"port" default:"8080"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" yaml:"request_timeout" default:"120s"`
	IdleTimeout     time.Duration `env:"IDLE_TIMEOUT" yaml:"idle_timeout" default:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" yaml:"shutdown_timeout" default:"15s"`

	// LLM provider selection
	LLM LLMConfig `yaml:"llm,inline"`

	// Agent loop and memory configuration
	Agent AgentConfig `yaml:"agent,inline"`

	// Paper search configuration
	Search SearchConfig `yaml:"search,inline"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging,inline"`

	// Database configuration (optional; in-memory store when unset)
	Database DatabaseConfig `yaml:"database,inline"`

	// Security configuration
	Security SecurityConfig `yaml:"security,inline"`
}

// LLMConfig selects and configures the chat model provider.
type LLMConfig struct {
	Provider string `env:"LLM_PROVIDER" yaml:"provider" default:"openai"`

	OpenAIAPIKey string `env:"OPENAI_API_KEY" yaml:"openai_api_key"`
	OpenAIModel  string `env:"OPENAI_MODEL" yaml:"openai_model" default:"gpt-4o"`

	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY" yaml:"anthropic_api_key"`
	AnthropicModel  string `env:"CLAUDE_MODEL" yaml:"anthropic_model" default:"claude-3-5-sonnet-20241022"`

	Timeout time.Duration `env:"LLM_TIMEOUT" yaml:"timeout" default:"60s"`
}

// AgentConfig bounds the loop, memory compression, and the session
// lifecycle.
type AgentConfig struct {
	MaxIterations        int           `env:"MAX_ITERATIONS" yaml:"max_iterations" default:"8"`
	CompressionThreshold int           `env:"COMPRESSION_THRESHOLD" yaml:"compression_threshold" default:"25"`
	RecentBufferSize     int           `env:"RECENT_BUFFER_SIZE" yaml:"recent_buffer_size" default:"10"`
	SessionTTL           time.Duration `env:"SESSION_TTL" yaml:"session_ttl" default:"30m"`
	SweepInterval        time.Duration `env:"SWEEP_INTERVAL" yaml:"sweep_interval" default:"5m"`
}

// SearchConfig configures the arXiv search tool.
type SearchConfig struct {
	ArxivBaseURL  string        `env:"ARXIV_BASE_URL" yaml:"arxiv_base_url" default:"https://export.arxiv.org"`
	Timeout       time.Duration `env:"SEARCH_TIMEOUT" yaml:"timeout" default:"30s"`
	MaxResultsCap int           `env:"SEARCH_MAX_RESULTS_CAP" yaml:"max_results_cap" default:"25"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" yaml:"level" default:"info"`
	Format string `env:"LOG_FORMAT" yaml:"format" default:"json"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	URL             string        `env:"DATABASE_URL" yaml:"url"`
	MaxConnections  int           `env:"DATABASE_MAX_CONNECTIONS" yaml:"max_connections" default:"25"`
	ConnMaxLifetime time.Duration `env:"DATABASE_CONN_MAX_LIFETIME" yaml:"conn_max_lifetime" default:"5m"`
	ConnMaxIdleTime time.Duration `env:"DATABASE_CONN_MAX_IDLE_TIME" yaml:"conn_max_idle_time" default:"5m"`
}

// SecurityConfig holds security-related configuration.
type SecurityConfig struct {
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" yaml:"cors_allowed_origins" default:"http://localhost:3000,http://localhost:8080"`
	MaxRequestSize     int64    `env:"MAX_REQUEST_SIZE" yaml:"max_request_size" default:"1048576"` // 1MB default
}

// Load reads configuration from an optional YAML file plus environment
// variables, then validates it.
func Load(configPath string) (*AppConfig, error) {
	var cfg AppConfig
	if err := config.GetConfig(&cfg, configPath, true); err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate validates the configuration and returns an error if invalid.
func (c *AppConfig) Validate() error {
	var result error

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		result = multierror.Append(result, fmt.Errorf("log_level must be one of [debug, info, warn, error], got %q", c.Logging.Level))
	}

	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		result = multierror.Append(result, fmt.Errorf("log_format must be either 'json' or 'text', got %q", c.Logging.Format))
	}

	if c.Port < 1 || c.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf("port must be between 1 and 65535, got %d", c.Port))
	}

	if c.RequestTimeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("request_timeout must be greater than 0"))
	}

	switch strings.ToLower(c.LLM.Provider) {
	case "openai":
		if c.LLM.OpenAIAPIKey == "" {
			result = multierror.Append(result, fmt.Errorf("OPENAI_API_KEY is required when llm provider is openai"))
		}
	case "anthropic", "claude":
		if c.LLM.AnthropicAPIKey == "" {
			result = multierror.Append(result, fmt.Errorf("ANTHROPIC_API_KEY is required when llm provider is anthropic"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("llm provider must be 'openai' or 'anthropic', got %q", c.LLM.Provider))
	}

	if c.Agent.MaxIterations < 1 {
		result = multierror.Append(result, fmt.Errorf("max_iterations must be at least 1, got %d", c.Agent.MaxIterations))
	}

	if c.Agent.CompressionThreshold <= c.Agent.RecentBufferSize {
		result = multierror.Append(result, fmt.Errorf("compression_threshold (%d) must be greater than recent_buffer_size (%d)", c.Agent.CompressionThreshold, c.Agent.RecentBufferSize))
	}

	if c.Agent.RecentBufferSize < 1 {
		result = multierror.Append(result, fmt.Errorf("recent_buffer_size must be at least 1, got %d", c.Agent.RecentBufferSize))
	}

	if c.Agent.SessionTTL <= 0 {
		result = multierror.Append(result, fmt.Errorf("session_ttl must be greater than 0"))
	}

	if c.Agent.SweepInterval <= 0 {
		result = multierror.Append(result, fmt.Errorf("sweep_interval must be greater than 0"))
	}

	if c.Security.MaxRequestSize <= 0 {
		result = multierror.Append(result, fmt.Errorf("max_request_size must be greater than 0"))
	}

	if c.Database.URL != "" && c.Database.MaxConnections <= 0 {
		result = multierror.Append(result, fmt.Errorf("database_max_connections must be greater than 0 when database is configured"))
	}

	return result
}

// GetLogLevel returns the parsed logger level.
func (c *AppConfig) GetLogLevel() logger.Level {
	switch strings.ToLower(c.Logging.Level) {
	case "debug":
		return logger.DebugLevel
	case "warn", "warning":
		return logger.WarnLevel
	case "error":
		return logger.ErrorLevel
	default:
		return logger.InfoLevel
	}
}

// IsProduction returns true if running in a production environment.
func (c *AppConfig) IsProduction() bool {
	return strings.ToLower(c.Environment) == "production"
}

// LogConfig logs the current configuration (without sensitive data).
func (c *AppConfig) LogConfig(log logger.Logger) {
	log.Info("Application configuration loaded",
		logger.StringField("service_name", c.ServiceName),
		logger.StringField("version", c.Version),
		logger.StringField("environment", c.Environment),
		logger.IntField("port", c.Port),
		logger.StringField("llm_provider", c.LLM.Provider),
		logger.IntField("max_iterations", c.Agent.MaxIterations),
		logger.IntField("compression_threshold", c.Agent.CompressionThreshold),
		logger.IntField("recent_buffer_size", c.Agent.RecentBufferSize),
		logger.DurationField("session_ttl", c.Agent.SessionTTL),
		logger.DurationField("sweep_interval", c.Agent.SweepInterval),
		logger.StringField("log_level", c.Logging.Level),
		logger.StringField("log_format", c.Logging.Format),
		logger.BoolField("database_configured", c.Database.URL != ""),
	)
}
