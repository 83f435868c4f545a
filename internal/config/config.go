// Package config loads application configuration from file and environment
// and initializes the global logger.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/fintora/counsel/internal/domain"
)

// Config holds the full application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Providers ProvidersConfig `yaml:"providers" mapstructure:"providers"`
	Engine    EngineConfig    `yaml:"engine" mapstructure:"engine"`
	Guard     GuardConfig     `yaml:"guard" mapstructure:"guard"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ProvidersConfig holds per-provider API credentials. A key left empty falls
// back to the provider's conventional environment variable.
type ProvidersConfig struct {
	AnthropicKey string `yaml:"anthropic_key" mapstructure:"anthropic_key"`
	OpenAIKey    string `yaml:"openai_key" mapstructure:"openai_key"`
	GoogleKey    string `yaml:"google_key" mapstructure:"google_key"`
}

// EngineConfig configures the consolidation pipeline.
type EngineConfig struct {
	// Targets are the provider/model pairs queried in the answer round.
	Targets []domain.Target `yaml:"targets" mapstructure:"targets"`
	// Judge is the provider/model used for consolidation and rating.
	Judge domain.Target `yaml:"judge" mapstructure:"judge"`

	SystemPrompt string  `yaml:"system_prompt" mapstructure:"system_prompt"`
	Temperature  float64 `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens    int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	TokenBudget  int     `yaml:"token_budget" mapstructure:"token_budget"`

	AnswerTimeoutSecs int `yaml:"answer_timeout_secs" mapstructure:"answer_timeout_secs"`
	RatingTimeoutSecs int `yaml:"rating_timeout_secs" mapstructure:"rating_timeout_secs"`
	MaxConcurrency    int `yaml:"max_concurrency" mapstructure:"max_concurrency"`

	Retry     RetryConfig     `yaml:"retry" mapstructure:"retry"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// RetryConfig configures optional per-call retries around backend clients.
// Disabled by default; the fan-out orchestrator itself never retries.
type RetryConfig struct {
	Enabled      bool `yaml:"enabled" mapstructure:"enabled"`
	MaxRetries   int  `yaml:"max_retries" mapstructure:"max_retries"`
	BaseDelayMs  int  `yaml:"base_delay_ms" mapstructure:"base_delay_ms"`
	MaxDelaySecs int  `yaml:"max_delay_secs" mapstructure:"max_delay_secs"`
}

// RateLimitConfig configures optional request pacing per provider client.
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
}

// GuardConfig configures the topic guard vocabulary. Keywords and the file's
// contents are merged.
type GuardConfig struct {
	Keywords     []string `yaml:"keywords" mapstructure:"keywords"`
	KeywordsFile string   `yaml:"keywords_file" mapstructure:"keywords_file"`
}

// AnswerTimeout returns the answer/consolidation call budget.
func (c EngineConfig) AnswerTimeout() time.Duration {
	return time.Duration(c.AnswerTimeoutSecs) * time.Second
}

// RatingTimeout returns the rating call budget.
func (c EngineConfig) RatingTimeout() time.Duration {
	return time.Duration(c.RatingTimeoutSecs) * time.Second
}

// defaultKeywords covers the personal-finance domain the service answers.
var defaultKeywords = []string{
	"money", "finance", "financial", "invest", "investment", "investing",
	"savings", "saving", "budget", "budgeting", "debt", "loan", "mortgage",
	"credit", "interest", "rate", "bank", "banking", "account", "retirement",
	"401k", "ira", "pension", "stock", "stocks", "bond", "bonds", "fund",
	"etf", "portfolio", "dividend", "tax", "taxes", "income", "expense",
	"insurance", "annuity", "inflation", "salary", "wage", "apr", "apy",
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("COUNSEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "counsel.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("engine.targets", []map[string]string{
		{"provider": "anthropic", "model": "claude-3-5-sonnet-20241022"},
		{"provider": "openai", "model": "gpt-4o-mini"},
		{"provider": "google", "model": "gemini-2.0-flash-exp"},
	})
	v.SetDefault("engine.judge.provider", "anthropic")
	v.SetDefault("engine.judge.model", "claude-3-5-sonnet-20241022")
	v.SetDefault("engine.system_prompt",
		"You are a careful personal finance assistant. Answer clearly and concisely, "+
			"and note when professional advice is needed.")
	v.SetDefault("engine.temperature", 0.3)
	v.SetDefault("engine.max_tokens", 1024)
	v.SetDefault("engine.token_budget", 4096)
	v.SetDefault("engine.answer_timeout_secs", 30)
	v.SetDefault("engine.rating_timeout_secs", 15)
	v.SetDefault("engine.max_concurrency", 0)
	v.SetDefault("engine.retry.enabled", false)
	v.SetDefault("engine.retry.max_retries", 2)
	v.SetDefault("engine.retry.base_delay_ms", 200)
	v.SetDefault("engine.retry.max_delay_secs", 5)
	v.SetDefault("engine.rate_limit.enabled", false)
	v.SetDefault("engine.rate_limit.requests_per_second", 5.0)
	v.SetDefault("engine.rate_limit.burst", 10)

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

	return &cfg, nil
}

// GuardKeywords resolves the topic guard vocabulary: explicit keywords plus
// any loaded from the keywords file, falling back to the built-in
// personal-finance set when neither is configured.
func (c *Config) GuardKeywords() ([]string, error) {
	keywords := append([]string{}, c.Guard.Keywords...)

	if c.Guard.KeywordsFile != "" {
		data, err := os.ReadFile(c.Guard.KeywordsFile)
		if err != nil {
			return nil, eris.Wrapf(err, "config: read keywords file %s", c.Guard.KeywordsFile)
		}
		var fromFile []string
		if err := yaml.Unmarshal(data, &fromFile); err != nil {
			return nil, eris.Wrap(err, "config: parse keywords file")
		}
		keywords = append(keywords, fromFile...)
	}

	if len(keywords) == 0 {
		keywords = append(keywords, defaultKeywords...)
	}
	return keywords, nil
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
