package advisor

import (
	"github.com/shopspring/decimal"

	"github.com/sells-group/roofing-insights/internal/model"
)

// DefaultBurnAlertPct is the burn rate above which the budget alert fires.
const DefaultBurnAlertPct = 85

// Fallback is the deterministic rule engine. It never fails.
type Fallback struct {
	burnAlertPct decimal.Decimal
}

// NewFallback creates a Fallback with the given burn-rate alert threshold in
// percent. Non-positive thresholds use DefaultBurnAlertPct.
func NewFallback(burnAlertPct float64) *Fallback {
	if burnAlertPct <= 0 {
		burnAlertPct = DefaultBurnAlertPct
	}
	return &Fallback{burnAlertPct: decimal.NewFromFloat(burnAlertPct)}
}

// Compute returns 1 to 3 insights and a summary for orgCtx. The response has
// Source fallback; the caller fills identity, timestamps and context.
func (f *Fallback) Compute(orgCtx model.OrgContext, locale model.Locale) *model.InsightResponse {
	p := printer(locale)
	burn := orgCtx.BurnRatePct.InexactFloat64()

	if orgCtx.ActiveJobs == 0 {
		return &model.InsightResponse{
			Insights: []model.Insight{{
				Kind:  model.InsightOpportunity,
				Title: p.Sprintf(msgNoJobsTitle),
				Body:  p.Sprintf(msgNoJobsBody),
			}},
			Summary: p.Sprintf(msgSummaryNoJobs),
			Source:  model.SourceFallback,
			Locale:  locale,
		}
	}

	var out []model.Insight
	if orgCtx.ExactBurnRatePct().GreaterThan(f.burnAlertPct) {
		out = append(out, model.Insight{
			Kind:  model.InsightRisk,
			Title: p.Sprintf(msgBudgetAlertTitle),
			Body:  p.Sprintf(msgBudgetAlertBody, burn),
		})
	}
	if orgCtx.JobsOverBudget > 0 {
		out = append(out, model.Insight{
			Kind:  model.InsightRisk,
			Title: p.Sprintf(msgOverBudgetTitle),
			Body:  p.Sprintf(msgOverBudgetBody, orgCtx.JobsOverBudget),
		})
	}
	if orgCtx.PendingMilestonesToday > 0 {
		out = append(out, model.Insight{
			Kind:  model.InsightAction,
			Title: p.Sprintf(msgMilestonesTitle),
			Body:  p.Sprintf(msgMilestonesBody, orgCtx.PendingMilestonesToday),
		})
	}
	if len(out) == 0 {
		out = append(out, model.Insight{
			Kind:  model.InsightOpportunity,
			Title: p.Sprintf(msgFollowUpTitle),
			Body:  p.Sprintf(msgFollowUpBody, orgCtx.ActiveJobs),
		})
	}
	if len(out) < model.MaxInsights {
		out = append(out, model.Insight{
			Kind:  model.InsightOpportunity,
			Title: p.Sprintf(msgUpsellTitle),
			Body:  p.Sprintf(msgUpsellBody),
		})
	}

	return &model.InsightResponse{
		Insights: model.NormalizeInsights(out),
		Summary:  p.Sprintf(msgSummary, orgCtx.ActiveJobs, burn, orgCtx.JobsOverBudget),
		Source:   model.SourceFallback,
		Locale:   locale,
	}
}
