// Package insight orchestrates one insight request: rate check, aggregation,
// the AI attempt and the deterministic fallback.
package insight

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/roofing-insights/internal/advisor"
	"github.com/sells-group/roofing-insights/internal/aggregate"
	"github.com/sells-group/roofing-insights/internal/model"
	"github.com/sells-group/roofing-insights/internal/ratelimit"
	"github.com/sells-group/roofing-insights/internal/sanitize"
)

// Identity is the already-authenticated caller.
type Identity struct {
	UserID string
	OrgID  string
}

// Key is the rate-limit identity: the user id.
func (i Identity) Key() string {
	return i.UserID
}

// DefaultScope is the org id, or the user id for accounts with no org.
func (i Identity) DefaultScope() model.Scope {
	if i.OrgID != "" {
		return model.Scope(i.OrgID)
	}
	return model.Scope(i.UserID)
}

// CanRead reports whether the identity may read scope.
func (i Identity) CanRead(scope model.Scope) bool {
	s := string(scope)
	return s != "" && (s == i.OrgID || s == i.UserID)
}

// Request is one insight request.
type Request struct {
	Identity *Identity
	Scope    model.Scope
	Locale   model.Locale
}

// Aggregator builds the cost snapshot.
type Aggregator interface {
	Build(ctx context.Context, scope model.Scope, today time.Time) (*aggregate.Result, error)
}

// Summarizer is the AI path.
type Summarizer interface {
	Enabled() bool
	Summarize(ctx context.Context, orgCtx model.OrgContext, jobs []model.JobCostRecord, locale model.Locale) (*model.InsightResponse, error)
}

// Limiter gates requests per identity.
type Limiter interface {
	Allow(ctx context.Context, identity string) (ratelimit.Decision, error)
}

// Config holds pipeline settings.
type Config struct {
	// Location is the time zone "today" is computed in.
	Location    *time.Location
	MaxFieldLen int
}

// Pipeline composes the components. It is safe for concurrent use.
type Pipeline struct {
	limiter    Limiter
	aggregator Aggregator
	ai         Summarizer
	fallback   *advisor.Fallback
	guard      *sanitize.Guard
	cfg        Config

	nowFunc func() time.Time
	newID   func() string
}

// New creates a Pipeline. ai may be nil.
func New(limiter Limiter, agg Aggregator, ai Summarizer, fallback *advisor.Fallback, guard *sanitize.Guard, cfg Config) *Pipeline {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.MaxFieldLen <= 0 {
		cfg.MaxFieldLen = 120
	}
	if fallback == nil {
		fallback = advisor.NewFallback(advisor.DefaultBurnAlertPct)
	}
	if guard == nil {
		guard = sanitize.Default()
	}
	return &Pipeline{
		limiter:    limiter,
		aggregator: agg,
		ai:         ai,
		fallback:   fallback,
		guard:      guard,
		cfg:        cfg,
		nowFunc:    time.Now,
		newID:      uuid.NewString,
	}
}

// Run executes one request. Errors are ErrUnauthenticated, ErrForbidden,
// *ValidationError, *RateLimitedError, *AggregationError, a context error
// when the caller went away, or a wrapped limiter store error. AI failures
// never surface; they degrade to the fallback.
func (p *Pipeline) Run(ctx context.Context, req Request) (*model.InsightResponse, error) {
	if req.Identity == nil || strings.TrimSpace(req.Identity.UserID) == "" {
		return nil, ErrUnauthenticated
	}
	scope := model.Scope(strings.TrimSpace(string(req.Scope)))
	if scope == "" {
		return nil, &ValidationError{Field: "scope", Message: "required"}
	}
	if !req.Identity.CanRead(scope) {
		return nil, ErrForbidden
	}
	locale := model.ParseLocale(string(req.Locale))

	log := zap.L().With(
		zap.String("user_id", req.Identity.UserID),
		zap.String("scope", string(scope)),
		zap.String("locale", string(locale)),
	)

	decision, err := p.limiter.Allow(ctx, req.Identity.Key())
	if err != nil {
		return nil, eris.Wrap(err, "insight: rate check")
	}
	if !decision.Allowed {
		log.Info("insight: rate limited", zap.Duration("retry_after", decision.RetryAfter))
		return nil, &RateLimitedError{RetryAfterSeconds: decision.RetryAfterSeconds()}
	}

	now := p.nowFunc()
	res, err := p.aggregator.Build(ctx, scope, now.In(p.cfg.Location))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		log.Error("insight: aggregation failed", zap.Error(err))
		return nil, &AggregationError{Err: err}
	}

	resp := p.advise(ctx, log, res, locale)
	if resp == nil {
		return nil, ctx.Err()
	}

	resp.ID = p.newID()
	resp.GeneratedAt = now.UTC()
	resp.Locale = locale
	resp.Context = res.Context
	resp.Jobs = res.Jobs
	if resp.Jobs == nil {
		resp.Jobs = []model.JobCostRecord{}
	}

	log.Info("insight: generated",
		zap.String("id", resp.ID),
		zap.String("source", string(resp.Source)),
		zap.Int("insights", len(resp.Insights)),
		zap.Int("active_jobs", res.Context.ActiveJobs),
	)
	return resp, nil
}

// advise runs the AI attempt and falls back on any failure. It returns nil
// only when the caller's context is done.
func (p *Pipeline) advise(ctx context.Context, log *zap.Logger, res *aggregate.Result, locale model.Locale) *model.InsightResponse {
	if p.ai != nil && p.ai.Enabled() && res.Context.ActiveJobs > 0 {
		jobs := make([]model.JobCostRecord, len(res.Jobs))
		for i, j := range res.Jobs {
			jobs[i] = p.guard.CleanJob(j, p.cfg.MaxFieldLen)
		}

		resp, err := p.ai.Summarize(ctx, res.Context, jobs, locale)
		if err == nil && resp != nil && len(resp.Insights) > 0 && strings.TrimSpace(resp.Summary) != "" {
			resp.Source = model.SourceAI
			return resp
		}
		if ctx.Err() != nil {
			return nil
		}
		log.Warn("insight: ai path failed, using fallback", zap.Error(err))
	}

	return p.fallback.Compute(res.Context, locale)
}
