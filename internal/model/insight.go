package model

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MaxInsights is the most insights a response may carry.
const MaxInsights = 3

// JobCostRecord is the per-job cost view computed on every pipeline run.
type JobCostRecord struct {
	JobID                  string          `json:"jobId"`
	ClientName             string          `json:"clientName"`
	JobType                JobType         `json:"jobType"`
	Stage                  string          `json:"stage"`
	ContractValue          decimal.Decimal `json:"contractValue"`
	Budget                 decimal.Decimal `json:"budget"`
	MaterialsCost          decimal.Decimal `json:"materialsCost"`
	LaborCost              decimal.Decimal `json:"laborCost"`
	ExpenseCost            decimal.Decimal `json:"expenseCost"`
	ActualCost             decimal.Decimal `json:"actualCost"`
	IsOverBudget           bool            `json:"isOverBudget"`
	PendingMilestonesToday int             `json:"pendingMilestonesToday"`
	PendingStages          []string        `json:"pendingStages,omitempty"`
}

// OrgContext is the organization-wide aggregate for one day.
type OrgContext struct {
	Date                   string          `json:"date"`
	ActiveJobs             int             `json:"activeJobs"`
	JobsOnTrack            int             `json:"jobsOnTrack"`
	JobsOverBudget         int             `json:"jobsOverBudget"`
	TotalContractValue     decimal.Decimal `json:"totalContractValue"`
	TotalBudget            decimal.Decimal `json:"totalBudget"`
	TotalActualCost        decimal.Decimal `json:"totalActualCost"`
	BurnRatePct            decimal.Decimal `json:"burnRatePct"`
	PendingMilestonesToday int             `json:"pendingMilestonesToday"`
}

// ExactBurnRatePct is the unrounded burn rate derived from the totals.
// BurnRatePct is rounded for display and only used when the totals are
// absent.
func (c OrgContext) ExactBurnRatePct() decimal.Decimal {
	if c.TotalContractValue.IsPositive() {
		return Ratio(c.TotalActualCost, c.TotalContractValue)
	}
	return c.BurnRatePct
}

// Insight is one prioritized, human-readable finding.
type Insight struct {
	Kind  InsightKind `json:"kind"`
	Title string      `json:"title"`
	Body  string      `json:"body"`
}

// InsightResponse is the payload returned to the UI and handed to the report
// renderers. Its shape is a contract with downstream consumers.
type InsightResponse struct {
	ID          string          `json:"id"`
	Insights    []Insight       `json:"insights"`
	Summary     string          `json:"summary"`
	GeneratedAt time.Time       `json:"generatedAt"`
	Source      Source          `json:"source"`
	Locale      Locale          `json:"locale"`
	Context     OrgContext      `json:"context"`
	Jobs        []JobCostRecord `json:"jobs"`
}

// NormalizeInsights orders insights by kind priority (stable within a kind),
// drops duplicate kind+title pairs and truncates to MaxInsights.
func NormalizeInsights(in []Insight) []Insight {
	out := make([]Insight, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, ins := range in {
		key := string(ins.Kind) + "|" + strings.ToLower(strings.TrimSpace(ins.Title))
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, ins)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Kind.Priority() < out[j].Kind.Priority()
	})
	if len(out) > MaxInsights {
		out = out[:MaxInsights]
	}
	return out
}
