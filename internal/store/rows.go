package store

import (
	"github.com/sells-group/roofing-insights/internal/model"
)

// jobRow is the raw scan target for a jobs row. Money columns arrive as text
// so both backends share one parser.
type jobRow struct {
	ID         string
	OrgID      string
	UserID     string
	ClientName string
	JobType    string
	Stage      string
	Status     string
	Rejected   bool
	Contract   string
	Materials  string
	Labor      string
	Other      string
}

func (r jobRow) toJob() model.Job {
	return model.Job{
		ID:               r.ID,
		OrgID:            r.OrgID,
		UserID:           r.UserID,
		ClientName:       r.ClientName,
		JobType:          model.ParseJobType(r.JobType),
		Stage:            r.Stage,
		Status:           model.JobStatus(r.Status),
		RejectedByClient: r.Rejected,
		ContractValue:    model.ParseMoney(&r.Contract),
		BudgetMaterials:  model.ParseMoney(&r.Materials),
		BudgetLabor:      model.ParseMoney(&r.Labor),
		BudgetOther:      model.ParseMoney(&r.Other),
	}
}

// Group keys for the ledger queries.
func checklistJobID(it model.ChecklistItem) string { return it.JobID }
func timeEntryJobID(e model.TimeEntry) string { return e.JobID }
func expenseJobID(e model.Expense) string { return e.JobID }
func scheduleJobID(e model.ScheduleEntry) string { return e.JobID }
