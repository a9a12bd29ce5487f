package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// JobStatus is the workflow status stored on a job row.
type JobStatus string

const (
	JobStatusLead       JobStatus = "lead"
	JobStatusEstimating JobStatus = "estimating"
	JobStatusScheduled  JobStatus = "scheduled"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
)

// Scope identifies whose jobs are aggregated: an organization id, or a user id
// for accounts that have no organization.
type Scope string

// Job is one row of the jobs table as read by the insight pipeline.
type Job struct {
	ID               string          `json:"id"`
	OrgID            string          `json:"org_id,omitempty"`
	UserID           string          `json:"user_id"`
	ClientName       string          `json:"client_name"`
	JobType          JobType         `json:"job_type"`
	Stage            string          `json:"stage"`
	Status           JobStatus       `json:"status"`
	RejectedByClient bool            `json:"rejected_by_client"`
	ContractValue    decimal.Decimal `json:"contract_value"`
	BudgetMaterials  decimal.Decimal `json:"budget_materials"`
	BudgetLabor      decimal.Decimal `json:"budget_labor"`
	BudgetOther      decimal.Decimal `json:"budget_other"`
}

// Excluded reports whether the job falls outside the active set. The two
// flags are set independently by different screens, so either one excludes.
func (j Job) Excluded() bool {
	return j.RejectedByClient || JobStatus(strings.ToLower(string(j.Status))) == JobStatusCompleted
}

// Budget is the sum of the three planning buckets.
func (j Job) Budget() decimal.Decimal {
	return NonNegative(j.BudgetMaterials).
		Add(NonNegative(j.BudgetLabor)).
		Add(NonNegative(j.BudgetOther))
}

// ChecklistItem is a material line on a job's checklist. ActualCost is the raw
// text entered by the crew and may be empty or non-numeric.
type ChecklistItem struct {
	JobID        string       `json:"job_id"`
	Name         string       `json:"name"`
	MaterialType MaterialType `json:"material_type"`
	Checked      bool         `json:"checked"`
	ActualCost   *string      `json:"actual_cost,omitempty"`
}

// Cost returns the parsed actual cost, or zero when missing or unparseable.
func (c ChecklistItem) Cost() decimal.Decimal {
	return ParseMoney(c.ActualCost)
}

// TimeEntry is a logged block of crew time.
type TimeEntry struct {
	JobID      string          `json:"job_id"`
	WorkerName string          `json:"worker_name"`
	Hours      decimal.Decimal `json:"hours"`
	HourlyRate decimal.Decimal `json:"hourly_rate"`
}

// Cost is hours multiplied by the hourly rate.
func (t TimeEntry) Cost() decimal.Decimal {
	return NonNegative(t.Hours).Mul(NonNegative(t.HourlyRate))
}

// Expense is a miscellaneous cost logged against a job.
type Expense struct {
	JobID       string          `json:"job_id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

// ScheduleEntry is a milestone on a job's schedule. Dates are YYYY-MM-DD.
type ScheduleEntry struct {
	JobID         string  `json:"job_id"`
	StageName     string  `json:"stage_name"`
	ScheduledDate string  `json:"scheduled_date"`
	CompletedDate *string `json:"completed_date,omitempty"`
}

// PendingOn reports whether the milestone is due on day and not yet completed.
func (s ScheduleEntry) PendingOn(day string) bool {
	return s.ScheduledDate == day && (s.CompletedDate == nil || strings.TrimSpace(*s.CompletedDate) == "")
}
