// Package config loads application configuration from file and
// environment and initializes the global logger.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/scholium/extract-cli/internal/resilience"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Chunking   ChunkingConfig   `yaml:"chunking" mapstructure:"chunking"`
	Extraction ExtractionConfig `yaml:"extraction" mapstructure:"extraction"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Circuit    CircuitConfig    `yaml:"circuit" mapstructure:"circuit"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the run database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key               string  `yaml:"key" mapstructure:"key"`
	Model             string  `yaml:"model" mapstructure:"model"`
	MaxTokens         int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
}

// ChunkingConfig bounds how section text is split for model calls.
type ChunkingConfig struct {
	MaxChars       int `yaml:"max_chars" mapstructure:"max_chars"`
	OverlapChars   int `yaml:"overlap_chars" mapstructure:"overlap_chars"`
	BoundaryWindow int `yaml:"boundary_window" mapstructure:"boundary_window"`
}

// ExtractionConfig tunes confidence filtering, fuzzy validation, and
// section concurrency.
type ExtractionConfig struct {
	MinConfidence         float64 `yaml:"min_confidence" mapstructure:"min_confidence"`
	FuzzyThreshold        float64 `yaml:"fuzzy_threshold" mapstructure:"fuzzy_threshold"`
	MaxConcurrentSections int     `yaml:"max_concurrent_sections" mapstructure:"max_concurrent_sections"`
	CallTimeoutSecs       int     `yaml:"call_timeout_secs" mapstructure:"call_timeout_secs"`
}

// CallTimeout returns the per-call timeout as a duration.
func (c ExtractionConfig) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutSecs) * time.Second
}

// RetryConfig configures the retry coordinator.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// ToRetryConfig converts to the resilience package's config.
func (c RetryConfig) ToRetryConfig() resilience.RetryConfig {
	return resilience.FromRetryConfig(c.MaxAttempts, c.InitialBackoffMs, c.MaxBackoffMs, c.Multiplier, c.JitterFraction)
}

// CircuitConfig configures the model-call circuit breaker.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// ToCircuitConfig converts to the resilience package's config.
func (c CircuitConfig) ToCircuitConfig() resilience.CircuitBreakerConfig {
	return resilience.FromCircuitConfig(c.FailureThreshold, c.ResetTimeoutSecs)
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("EXTRACT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "extract.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.requests_per_second", 2.0)
	v.SetDefault("anthropic.burst", 2)
	v.SetDefault("chunking.max_chars", 6000)
	v.SetDefault("chunking.overlap_chars", 200)
	v.SetDefault("chunking.boundary_window", 400)
	v.SetDefault("extraction.min_confidence", 0.5)
	v.SetDefault("extraction.fuzzy_threshold", 0.9)
	v.SetDefault("extraction.max_concurrent_sections", 3)
	v.SetDefault("extraction.call_timeout_secs", 60)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 30000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.25)
	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.reset_timeout_secs", 30)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks construction-level constraints.
func (c *Config) Validate() error {
	if c.Chunking.MaxChars <= 0 {
		return eris.New("config: chunking.max_chars must be positive")
	}
	if c.Chunking.OverlapChars < 0 || c.Chunking.OverlapChars >= c.Chunking.MaxChars {
		return eris.New("config: chunking.overlap_chars must be in [0, max_chars)")
	}
	if c.Extraction.MinConfidence < 0 || c.Extraction.MinConfidence > 1 {
		return eris.New("config: extraction.min_confidence must be in [0, 1]")
	}
	if c.Extraction.FuzzyThreshold <= 0 || c.Extraction.FuzzyThreshold > 1 {
		return eris.New("config: extraction.fuzzy_threshold must be in (0, 1]")
	}
	if c.Extraction.MaxConcurrentSections <= 0 {
		return eris.New("config: extraction.max_concurrent_sections must be positive")
	}
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return eris.New("config: store.driver must be sqlite or postgres")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
