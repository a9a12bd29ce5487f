package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/roofing-insights/internal/advisor"
	"github.com/sells-group/roofing-insights/internal/aggregate"
	"github.com/sells-group/roofing-insights/internal/cost"
	"github.com/sells-group/roofing-insights/internal/insight"
	"github.com/sells-group/roofing-insights/internal/ratelimit"
	"github.com/sells-group/roofing-insights/internal/resilience"
	"github.com/sells-group/roofing-insights/internal/store"
)

// pipelineEnv holds the store, limiter and pipeline shared by the serve and
// insights commands.
type pipelineEnv struct {
	Store    store.Store
	Counters ratelimit.CounterStore
	AI       *advisor.AI
	Pipeline *insight.Pipeline
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

func resilienceConfig() resilience.Config {
	return resilience.FromConfig(cfg.AI.Circuit.FailureThreshold, cfg.AI.Circuit.ResetTimeoutSecs)
}

// initPipeline validates config for mode, opens the store and builds the
// Pipeline. Callers should defer env.Close().
func initPipeline(ctx context.Context, mode string) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(cfg.Insights.Timezone)
	if err != nil {
		return nil, eris.Wrapf(err, "load timezone %q", cfg.Insights.Timezone)
	}

	guard, err := initGuard()
	if err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	counters, err := initCounterStore(st)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	if pg, ok := counters.(*ratelimit.PostgresStore); ok {
		if n, err := pg.Sweep(ctx, time.Now()); err != nil {
			zap.L().Warn("ratelimit: sweep failed", zap.Error(err))
		} else if n > 0 {
			zap.L().Info("ratelimit: swept expired windows", zap.Int64("removed", n))
		}
	}

	limiter := ratelimit.New(counters, cfg.RateLimit.Limit, time.Duration(cfg.RateLimit.WindowSecs)*time.Second)

	completer := initCompleter()
	if completer == nil {
		zap.L().Info("ai provider not configured, using fallback rules only", zap.String("provider", cfg.AI.Provider))
	}
	ai := advisor.NewAI(completer, guard, cost.NewCalculator(pricingRates()), aiConfig())

	p := insight.New(
		limiter,
		aggregate.New(st),
		ai,
		advisor.NewFallback(cfg.Insights.BurnAlertPct),
		guard,
		insight.Config{Location: loc, MaxFieldLen: cfg.Sanitize.MaxFieldLen},
	)

	return &pipelineEnv{
		Store:    st,
		Counters: counters,
		AI:       ai,
		Pipeline: p,
	}, nil
}
