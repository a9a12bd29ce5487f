package store

import (
	"context"

	"github.com/sells-group/roofing-insights/internal/model"
)

// Store defines the read-only queries the insight pipeline runs against the
// back-office database. Ledger queries return rows grouped by job id; a job
// with no rows is simply absent from the map.
type Store interface {
	// Jobs
	ActiveJobs(ctx context.Context, scope model.Scope) ([]model.Job, error)

	// Ledgers
	ChecklistItems(ctx context.Context, jobIDs []string) (map[string][]model.ChecklistItem, error)
	TimeEntries(ctx context.Context, jobIDs []string) (map[string][]model.TimeEntry, error)
	Expenses(ctx context.Context, jobIDs []string) (map[string][]model.Expense, error)
	ScheduleEntries(ctx context.Context, jobIDs []string) (map[string][]model.ScheduleEntry, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
