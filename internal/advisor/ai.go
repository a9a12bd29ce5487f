// Package advisor produces business insights from an org cost snapshot,
// either through a completion service or through deterministic rules.
package advisor

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/roofing-insights/internal/cost"
	"github.com/sells-group/roofing-insights/internal/model"
	"github.com/sells-group/roofing-insights/internal/resilience"
	"github.com/sells-group/roofing-insights/internal/sanitize"
)

// ErrAIFailure marks every way the AI path can fail. Callers treat all of
// them the same and fall back.
var ErrAIFailure = eris.New("advisor: ai path failed")

// FailureError carries the cause of an AI failure. errors.Is(err,
// ErrAIFailure) holds for every FailureError.
type FailureError struct {
	Cause error
}

func (e *FailureError) Error() string {
	return ErrAIFailure.Error() + ": " + e.Cause.Error()
}

func (e *FailureError) Unwrap() []error {
	return []error{ErrAIFailure, e.Cause}
}

func fail(cause error) error {
	return &FailureError{Cause: cause}
}

// AIConfig tunes the AI path.
type AIConfig struct {
	MaxTokens     int
	Timeout       time.Duration
	MaxPromptJobs int
	// GlobalRPM caps outbound completion calls per minute across all callers.
	GlobalRPM int
	Breaker   resilience.Config
}

// AI is the completion-backed advisor.
type AI struct {
	completer Completer
	guard     *sanitize.Guard
	calc      *cost.Calculator
	throttle  *rate.Limiter
	breaker   *resilience.Breaker
	cfg       AIConfig
}

// NewAI creates an AI advisor. A nil completer is allowed; every Summarize
// then fails immediately.
func NewAI(completer Completer, guard *sanitize.Guard, calc *cost.Calculator, cfg AIConfig) *AI {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.MaxPromptJobs <= 0 {
		cfg.MaxPromptJobs = 25
	}
	if cfg.GlobalRPM <= 0 {
		cfg.GlobalRPM = 60
	}
	if cfg.Breaker.OnStateChange == nil {
		cfg.Breaker.OnStateChange = func(from, to resilience.State) {
			zap.L().Warn("advisor: circuit state change",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		}
	}
	if guard == nil {
		guard = sanitize.Default()
	}
	if calc == nil {
		calc = cost.NewCalculator(cost.DefaultRates())
	}

	return &AI{
		completer: completer,
		guard:     guard,
		calc:      calc,
		throttle:  rate.NewLimiter(rate.Limit(float64(cfg.GlobalRPM)/60), cfg.GlobalRPM),
		breaker:   resilience.NewBreaker(cfg.Breaker),
		cfg:       cfg,
	}
}

// Enabled reports whether a completer is configured.
func (a *AI) Enabled() bool {
	return a != nil && a.completer != nil
}

// CircuitState exposes the breaker state for health reporting.
func (a *AI) CircuitState() resilience.State {
	return a.breaker.State()
}

// Summarize asks the completion service for insights on orgCtx and jobs. Job
// free text must already be sanitized. Every error is a *FailureError.
func (a *AI) Summarize(ctx context.Context, orgCtx model.OrgContext, jobs []model.JobCostRecord, locale model.Locale) (*model.InsightResponse, error) {
	if !a.Enabled() {
		return nil, fail(eris.New("no completer configured"))
	}
	if !a.throttle.Allow() {
		return nil, fail(eris.New("global completion throttle exceeded"))
	}

	prompt := BuildPrompt(orgCtx, jobs, locale, a.cfg.MaxPromptJobs)

	callCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	start := time.Now()
	completion, err := resilience.Call(callCtx, a.breaker, func(ctx context.Context) (*Completion, error) {
		return a.completer.Complete(ctx, CompletionRequest{
			System:    prompt.System,
			User:      prompt.User,
			MaxTokens: a.cfg.MaxTokens,
		})
	})
	if err != nil {
		return nil, fail(err)
	}

	zap.L().Info("advisor: completion",
		zap.String("provider", completion.Provider),
		zap.String("model", completion.Model),
		zap.Int("input_tokens", completion.InputTokens),
		zap.Int("output_tokens", completion.OutputTokens),
		zap.Float64("estimated_cost_usd", a.calc.Completion(completion.Provider, completion.Model, completion.InputTokens, completion.OutputTokens)),
		zap.Duration("elapsed", time.Since(start)),
	)

	parsed, err := parseAdvice(completion.Text, a.guard)
	if err != nil {
		return nil, fail(err)
	}
	if parsed.Dropped > 0 {
		zap.L().Debug("advisor: dropped unusable insights", zap.Int("dropped", parsed.Dropped))
	}

	return &model.InsightResponse{
		Insights: parsed.Insights,
		Summary:  parsed.Summary,
		Source:   model.SourceAI,
		Locale:   locale,
	}, nil
}
