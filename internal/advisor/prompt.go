package advisor

import (
	"sort"
	"strings"

	"github.com/sells-group/roofing-insights/internal/model"
)

// Prompt is a localized system and user instruction pair.
type Prompt struct {
	System string
	User   string
}

// BuildPrompt renders the instructions for one org snapshot. Job free text
// must already be sanitized. At most maxJobs jobs are listed, over-budget jobs
// first.
func BuildPrompt(orgCtx model.OrgContext, jobs []model.JobCostRecord, locale model.Locale, maxJobs int) Prompt {
	p := printer(locale)

	var b strings.Builder
	line := func(key string, args ...any) {
		b.WriteString(p.Sprintf(key, args...))
		b.WriteByte('\n')
	}

	line(msgPromptHeader, orgCtx.Date)
	line(msgPromptActive, orgCtx.ActiveJobs, orgCtx.JobsOnTrack, orgCtx.JobsOverBudget)
	line(msgPromptContract, orgCtx.TotalContractValue.StringFixed(2))
	line(msgPromptBudget, orgCtx.TotalBudget.StringFixed(2))
	line(msgPromptActual, orgCtx.TotalActualCost.StringFixed(2))
	line(msgPromptBurn, orgCtx.BurnRatePct.StringFixed(1))
	line(msgPromptPending, orgCtx.PendingMilestonesToday)

	listed := promptJobs(jobs, maxJobs)
	if len(listed) > 0 {
		b.WriteByte('\n')
		line(msgPromptJobs)
		for _, j := range listed {
			over := p.Sprintf(msgNo)
			if j.IsOverBudget {
				over = p.Sprintf(msgYes)
			}
			due := p.Sprintf(msgNone)
			if len(j.PendingStages) > 0 {
				due = strings.Join(j.PendingStages, ", ")
			}
			stage := j.Stage
			if stage == "" {
				stage = "-"
			}
			line(msgPromptJobLine, j.ClientName, stage, j.ContractValue.StringFixed(2), j.ActualCost.StringFixed(2), over, due)
		}
		if rest := len(jobs) - len(listed); rest > 0 {
			line(msgPromptMore, rest)
		}
	}

	return Prompt{
		System: p.Sprintf(msgSystemPrompt),
		User:   strings.TrimRight(b.String(), "\n"),
	}
}

// promptJobs orders jobs over-budget first (stable) and caps the list.
func promptJobs(jobs []model.JobCostRecord, maxJobs int) []model.JobCostRecord {
	out := make([]model.JobCostRecord, len(jobs))
	copy(out, jobs)
	sort.SliceStable(out, func(i, k int) bool {
		return out[i].IsOverBudget && !out[k].IsOverBudget
	})
	if maxJobs > 0 && len(out) > maxJobs {
		out = out[:maxJobs]
	}
	return out
}
