package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.Equal(t, "anthropic", cfg.AI.Provider)
	assert.Equal(t, 20, cfg.AI.TimeoutSecs)
	assert.Equal(t, 1024, cfg.AI.MaxTokens)
	assert.Equal(t, 25, cfg.AI.MaxPromptJobs)
	assert.Equal(t, 60, cfg.AI.GlobalRPM)
	assert.Equal(t, 5, cfg.AI.Circuit.FailureThreshold)
	assert.Equal(t, 60, cfg.AI.Circuit.ResetTimeoutSecs)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
	assert.Equal(t, "UTC", cfg.Insights.Timezone)
	assert.InDelta(t, 85.0, cfg.Insights.BurnAlertPct, 0.001)
	assert.Equal(t, "memory", cfg.RateLimit.Backend)
	assert.Equal(t, 10, cfg.RateLimit.Limit)
	assert.Equal(t, 60, cfg.RateLimit.WindowSecs)
	assert.Equal(t, 120, cfg.Sanitize.MaxFieldLen)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 60, cfg.Server.RequestTimeoutSecs)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
  database_url: roofing.db
ai:
  provider: openai
log:
  level: debug
  format: console
auth:
  tokens:
    - token: tok-1
      user_id: u1
      org_id: org-1
pricing:
  openai:
    gpt-4o-mini:
      input: 0.15
      output: 0.60
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "roofing.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "openai", cfg.AI.Provider)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	require.Len(t, cfg.Auth.Tokens, 1)
	assert.Equal(t, TokenConfig{Token: "tok-1", UserID: "u1", OrgID: "org-1"}, cfg.Auth.Tokens[0])
	assert.InDelta(t, 0.60, cfg.Pricing.OpenAI["gpt-4o-mini"].Output, 0.0001)
	// Defaults still apply for unset values
	assert.Equal(t, 10, cfg.RateLimit.Limit)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("ROOFING_STORE_DRIVER", "postgres")
	t.Setenv("ROOFING_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("ROOFING_SERVER_PORT", "3000")
	t.Setenv("ROOFING_RATELIMIT_LIMIT", "25")
	t.Setenv("ROOFING_ANTHROPIC_KEY", "sk-ant-test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 25, cfg.RateLimit.Limit)
	assert.Equal(t, "sk-ant-test", cfg.Anthropic.Key)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0644))

	_, err := Load()
	assert.Error(t, err)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.AI.Provider = "none"
	cfg.AI.GlobalRPM = 60
	cfg.Insights.BurnAlertPct = 85
	cfg.RateLimit.Backend = "memory"
	cfg.RateLimit.Limit = 10
	cfg.RateLimit.WindowSecs = 60
	cfg.Server.Port = 8080
	cfg.Auth.Tokens = []TokenConfig{{Token: "tok", UserID: "u1"}}
	return cfg
}

func TestValidate_AllPresent(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("serve"))
	assert.NoError(t, cfg.Validate("insights"))
	assert.NoError(t, cfg.Validate("migrate"))
}

func TestValidate_PostgresNeedsURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "postgres"

	err := cfg.Validate("migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	cfg.Store.DatabaseURL = "postgres://localhost/roofing"
	assert.NoError(t, cfg.Validate("migrate"))
}

func TestValidate_UnknownDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"

	err := cfg.Validate("insights")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `store.driver "mysql"`)
}

func TestValidate_ProviderKeys(t *testing.T) {
	tests := []struct {
		provider string
		want     string
	}{
		{"anthropic", "anthropic.key is required"},
		{"openai", "openai.key is required"},
		{"gemini", `ai.provider "gemini" is not supported`},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			cfg := validDefaults()
			cfg.AI.Provider = tt.provider

			err := cfg.Validate("insights")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_MigrateSkipsAIChecks(t *testing.T) {
	cfg := validDefaults()
	cfg.AI.Provider = "anthropic"

	assert.NoError(t, cfg.Validate("migrate"))
}

func TestValidate_PostgresLimiterNeedsPostgresStore(t *testing.T) {
	cfg := validDefaults()
	cfg.RateLimit.Backend = "postgres"

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires store.driver postgres")
}

func TestValidate_Limits(t *testing.T) {
	cfg := validDefaults()
	cfg.RateLimit.Limit = 0
	cfg.RateLimit.WindowSecs = -1
	cfg.Insights.BurnAlertPct = 0

	err := cfg.Validate("insights")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ratelimit.limit must be positive")
	assert.Contains(t, err.Error(), "ratelimit.window_secs must be positive")
	assert.Contains(t, err.Error(), "insights.burn_alert_pct must be positive")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
}

func TestValidateServe_Tokens(t *testing.T) {
	cfg := validDefaults()
	cfg.Auth.Tokens = nil

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth.tokens")

	cfg.Auth.Tokens = []TokenConfig{{Token: "tok"}}
	err = cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth.tokens[0]")

	// Tokens are only needed by the server.
	cfg.Auth.Tokens = nil
	assert.NoError(t, cfg.Validate("insights"))
}
