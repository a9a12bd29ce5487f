package main

import (
	"context"
	"os"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/roofing-insights/internal/advisor"
	"github.com/sells-group/roofing-insights/internal/cost"
	"github.com/sells-group/roofing-insights/internal/db"
	"github.com/sells-group/roofing-insights/internal/ratelimit"
	"github.com/sells-group/roofing-insights/internal/sanitize"
	"github.com/sells-group/roofing-insights/internal/store"
	anthropicpkg "github.com/sells-group/roofing-insights/pkg/anthropic"
	openaipkg "github.com/sells-group/roofing-insights/pkg/openai"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "roofing.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		if cfg.Store.DatabaseURL == "" {
			return nil, eris.New("store.database_url is required for postgres (ROOFING_STORE_DATABASE_URL)")
		}
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &db.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initCounterStore picks the limiter backend. The Postgres backend shares
// the store's pool so every instance sees the same windows.
func initCounterStore(st store.Store) (ratelimit.CounterStore, error) {
	switch cfg.RateLimit.Backend {
	case "", "memory":
		return ratelimit.NewMemoryStore(), nil
	case "postgres":
		pg, ok := st.(*store.PostgresStore)
		if !ok {
			return nil, eris.New("ratelimit backend postgres requires the postgres store")
		}
		return ratelimit.NewPostgresStore(pg.Pool()), nil
	default:
		return nil, eris.Errorf("unsupported ratelimit backend: %s", cfg.RateLimit.Backend)
	}
}

func initGuard() (*sanitize.Guard, error) {
	if cfg.Sanitize.PatternsFile == "" {
		return sanitize.Default(), nil
	}
	data, err := os.ReadFile(cfg.Sanitize.PatternsFile)
	if err != nil {
		return nil, eris.Wrap(err, "read sanitize patterns")
	}
	patterns, err := sanitize.ParsePatterns(data)
	if err != nil {
		return nil, err
	}
	return sanitize.New(patterns)
}

// initCompleter returns nil when no provider is configured; the pipeline
// then always answers from the fallback rules.
func initCompleter() advisor.Completer {
	switch cfg.AI.Provider {
	case "anthropic":
		if cfg.Anthropic.Key == "" {
			return nil
		}
		var opts []anthropicpkg.ClientOption
		if cfg.Anthropic.BaseURL != "" {
			opts = append(opts, anthropicpkg.WithBaseURL(cfg.Anthropic.BaseURL))
		}
		return advisor.NewAnthropicCompleter(anthropicpkg.NewClient(cfg.Anthropic.Key, opts...), cfg.Anthropic.Model)
	case "openai":
		if cfg.OpenAI.Key == "" {
			return nil
		}
		return advisor.NewOpenAICompleter(openaipkg.NewClient(cfg.OpenAI.Key, cfg.OpenAI.BaseURL), cfg.OpenAI.Model)
	default:
		return nil
	}
}

// pricingRates overlays configured pricing on the built-in table.
func pricingRates() cost.Rates {
	rates := cost.DefaultRates()
	for name, p := range cfg.Pricing.Anthropic {
		rates.Anthropic[name] = cost.ModelRate{Input: p.Input, Output: p.Output}
	}
	for name, p := range cfg.Pricing.OpenAI {
		rates.OpenAI[name] = cost.ModelRate{Input: p.Input, Output: p.Output}
	}
	return rates
}

func aiConfig() advisor.AIConfig {
	return advisor.AIConfig{
		MaxTokens:     cfg.AI.MaxTokens,
		Timeout:       time.Duration(cfg.AI.TimeoutSecs) * time.Second,
		MaxPromptJobs: cfg.AI.MaxPromptJobs,
		GlobalRPM:     cfg.AI.GlobalRPM,
		Breaker:       resilienceConfig(),
	}
}
