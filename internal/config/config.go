package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	AI        AIConfig        `yaml:"ai" mapstructure:"ai"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI    OpenAIConfig    `yaml:"openai" mapstructure:"openai"`
	Insights  InsightsConfig  `yaml:"insights" mapstructure:"insights"`
	RateLimit RateLimitConfig `yaml:"ratelimit" mapstructure:"ratelimit"`
	Sanitize  SanitizeConfig  `yaml:"sanitize" mapstructure:"sanitize"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Auth      AuthConfig      `yaml:"auth" mapstructure:"auth"`
	Pricing   PricingConfig   `yaml:"pricing" mapstructure:"pricing"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AIConfig configures the completion-backed advisor.
type AIConfig struct {
	// Provider is "anthropic", "openai" or "none".
	Provider      string        `yaml:"provider" mapstructure:"provider"`
	TimeoutSecs   int           `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxTokens     int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	MaxPromptJobs int           `yaml:"max_prompt_jobs" mapstructure:"max_prompt_jobs"`
	GlobalRPM     int           `yaml:"global_rpm" mapstructure:"global_rpm"`
	Circuit       CircuitConfig `yaml:"circuit" mapstructure:"circuit"`
}

// CircuitConfig configures the AI circuit breaker.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	Model   string `yaml:"model" mapstructure:"model"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// OpenAIConfig holds settings for any OpenAI-compatible endpoint.
type OpenAIConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	Model   string `yaml:"model" mapstructure:"model"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// InsightsConfig configures the aggregation and fallback rules.
type InsightsConfig struct {
	// Timezone is the IANA zone "today" is computed in.
	Timezone     string  `yaml:"timezone" mapstructure:"timezone"`
	BurnAlertPct float64 `yaml:"burn_alert_pct" mapstructure:"burn_alert_pct"`
}

// RateLimitConfig configures the per-identity limiter.
type RateLimitConfig struct {
	// Backend is "memory" or "postgres".
	Backend    string `yaml:"backend" mapstructure:"backend"`
	Limit      int    `yaml:"limit" mapstructure:"limit"`
	WindowSecs int    `yaml:"window_secs" mapstructure:"window_secs"`
}

// SanitizeConfig configures the prompt-injection guard.
type SanitizeConfig struct {
	MaxFieldLen int `yaml:"max_field_len" mapstructure:"max_field_len"`
	// PatternsFile replaces the embedded pattern list when set.
	PatternsFile string `yaml:"patterns_file" mapstructure:"patterns_file"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port               int      `yaml:"port" mapstructure:"port"`
	RequestTimeoutSecs int      `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
	CORSOrigins        []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// AuthConfig holds the static bearer token table.
type AuthConfig struct {
	Tokens []TokenConfig `yaml:"tokens" mapstructure:"tokens"`
}

// TokenConfig maps one bearer token to an identity.
type TokenConfig struct {
	Token  string `yaml:"token" mapstructure:"token"`
	UserID string `yaml:"user_id" mapstructure:"user_id"`
	OrgID  string `yaml:"org_id" mapstructure:"org_id"`
}

// PricingConfig holds per-provider pricing rates (USD per million tokens).
type PricingConfig struct {
	Anthropic map[string]ModelPricing `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI    map[string]ModelPricing `yaml:"openai" mapstructure:"openai"`
}

// ModelPricing holds per-model token pricing.
type ModelPricing struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
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
	v.SetEnvPrefix("ROOFING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("ai.provider", "anthropic")
	v.SetDefault("ai.timeout_secs", 20)
	v.SetDefault("ai.max_tokens", 1024)
	v.SetDefault("ai.max_prompt_jobs", 25)
	v.SetDefault("ai.global_rpm", 60)
	v.SetDefault("ai.circuit.failure_threshold", 5)
	v.SetDefault("ai.circuit.reset_timeout_secs", 60)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("openai.key", "")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("insights.timezone", "UTC")
	v.SetDefault("insights.burn_alert_pct", 85.0)
	v.SetDefault("ratelimit.backend", "memory")
	v.SetDefault("ratelimit.limit", 10)
	v.SetDefault("ratelimit.window_secs", 60)
	v.SetDefault("sanitize.max_field_len", 120)
	v.SetDefault("sanitize.patterns_file", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_secs", 60)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate checks the settings a command needs. mode is "serve",
// "insights" or "migrate".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for postgres")
		}
	case "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not supported", c.Store.Driver))
	}

	switch c.RateLimit.Backend {
	case "memory":
	case "postgres":
		if c.Store.Driver != "postgres" {
			errs = append(errs, "ratelimit.backend postgres requires store.driver postgres")
		}
	default:
		errs = append(errs, fmt.Sprintf("ratelimit.backend %q is not supported", c.RateLimit.Backend))
	}

	if mode == "migrate" {
		return joinErrors(errs)
	}

	switch c.AI.Provider {
	case "anthropic":
		if c.Anthropic.Key == "" {
			errs = append(errs, "anthropic.key is required when ai.provider is anthropic")
		}
	case "openai":
		if c.OpenAI.Key == "" {
			errs = append(errs, "openai.key is required when ai.provider is openai")
		}
	case "none", "":
	default:
		errs = append(errs, fmt.Sprintf("ai.provider %q is not supported", c.AI.Provider))
	}

	if c.RateLimit.Limit <= 0 {
		errs = append(errs, "ratelimit.limit must be positive")
	}
	if c.RateLimit.WindowSecs <= 0 {
		errs = append(errs, "ratelimit.window_secs must be positive")
	}
	if c.AI.GlobalRPM < 0 {
		errs = append(errs, "ai.global_rpm must not be negative")
	}
	if c.Insights.BurnAlertPct <= 0 {
		errs = append(errs, "insights.burn_alert_pct must be positive")
	}

	if mode == "serve" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
		}
		if len(c.Auth.Tokens) == 0 {
			errs = append(errs, "auth.tokens must contain at least one token")
		}
		for i, t := range c.Auth.Tokens {
			if t.Token == "" || t.UserID == "" {
				errs = append(errs, fmt.Sprintf("auth.tokens[%d] needs token and user_id", i))
			}
		}
	}

	return joinErrors(errs)
}

func joinErrors(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return eris.Errorf("config: %s", strings.Join(errs, "; "))
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
