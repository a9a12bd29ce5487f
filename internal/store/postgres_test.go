package store

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/roofing-insights/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresFromPool(mock), mock
}

var jobColumns = []string{
	"id", "org_id", "user_id", "client_name", "job_type", "stage", "status", "rejected_by_client",
	"contract_value", "budget_materials", "budget_labor", "budget_other",
}

func TestPostgresStore_ActiveJobs(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, .* FROM jobs WHERE \(org_id = \$1 OR \(org_id IS NULL AND user_id = \$1\)\) AND NOT rejected_by_client AND lower\(status\) <> 'completed'`).
		WithArgs("org-1").
		WillReturnRows(pgxmock.NewRows(jobColumns).
			AddRow("j1", "org-1", "u1", "Miller Residence", "Residential Reroof", "tear-off", "in_progress", false,
				"18500.00", "6000.00", "4000.00", "500.00").
			AddRow("j2", "org-1", "u2", "Hill Plaza", "unknown", "estimate", "estimating", false,
				"0", "-10", "0", "0"))

	jobs, err := s.ActiveJobs(context.Background(), "org-1")
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	assert.Equal(t, "j1", jobs[0].ID)
	assert.Equal(t, model.JobTypeResidentialReroof, jobs[0].JobType)
	assert.Equal(t, model.JobStatusInProgress, jobs[0].Status)
	assert.True(t, decimal.RequireFromString("18500").Equal(jobs[0].ContractValue))
	assert.True(t, decimal.RequireFromString("10500").Equal(jobs[0].Budget()))

	assert.Equal(t, model.JobTypeOther, jobs[1].JobType)
	assert.True(t, jobs[1].BudgetMaterials.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ActiveJobs_QueryError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM jobs`).
		WithArgs("org-1").
		WillReturnError(errors.New("connection reset"))

	_, err := s.ActiveJobs(context.Background(), "org-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "active jobs org-1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ChecklistItems(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	ids := []string{"j1", "j2"}
	cost := "$1,200.50"

	mock.ExpectQuery(`FROM job_checklist_items WHERE job_id = ANY\(\$1\)`).
		WithArgs(ids).
		WillReturnRows(pgxmock.NewRows([]string{"job_id", "name", "material_type", "checked", "actual_cost"}).
			AddRow("j1", "Shingles", "Asphalt Shingle", true, &cost).
			AddRow("j1", "Drip edge", "flashing", false, nil).
			AddRow("j2", "Membrane", "TPO", true, nil))

	items, err := s.ChecklistItems(context.Background(), ids)
	require.NoError(t, err)
	require.Len(t, items["j1"], 2)
	require.Len(t, items["j2"], 1)
	assert.Len(t, items, 2)

	assert.Equal(t, model.MaterialAsphaltShingle, items["j1"][0].MaterialType)
	assert.True(t, decimal.RequireFromString("1200.50").Equal(items["j1"][0].Cost()))
	assert.Nil(t, items["j1"][1].ActualCost)
	assert.Equal(t, model.MaterialTPO, items["j2"][0].MaterialType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LedgersSkipEmptyIDs(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	ctx := context.Background()

	items, err := s.ChecklistItems(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, items)

	entries, err := s.TimeEntries(ctx, []string{})
	require.NoError(t, err)
	assert.Empty(t, entries)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_TimeEntries(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	ids := []string{"j1"}

	mock.ExpectQuery(`FROM time_entries WHERE job_id = ANY\(\$1\)`).
		WithArgs(ids).
		WillReturnRows(pgxmock.NewRows([]string{"job_id", "worker_name", "hours", "hourly_rate"}).
			AddRow("j1", "Luis", "7.50", "42.00"))

	entries, err := s.TimeEntries(context.Background(), ids)
	require.NoError(t, err)
	require.Len(t, entries["j1"], 1)
	assert.True(t, decimal.RequireFromString("315").Equal(entries["j1"][0].Cost()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Expenses(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	ids := []string{"j1"}

	mock.ExpectQuery(`FROM job_expenses WHERE job_id = ANY\(\$1\)`).
		WithArgs(ids).
		WillReturnRows(pgxmock.NewRows([]string{"job_id", "description", "amount"}).
			AddRow("j1", "Dumpster", "450.00"))

	exp, err := s.Expenses(context.Background(), ids)
	require.NoError(t, err)
	require.Len(t, exp["j1"], 1)
	assert.Equal(t, "Dumpster", exp["j1"][0].Description)
	assert.True(t, decimal.RequireFromString("450").Equal(exp["j1"][0].Amount))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ScheduleEntries(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	ids := []string{"j1"}
	day := "2026-10-16"
	done := "2026-10-15"

	mock.ExpectQuery(`FROM job_schedule WHERE job_id = ANY\(\$1\)`).
		WithArgs(ids).
		WillReturnRows(pgxmock.NewRows([]string{"job_id", "stage_name", "scheduled_date", "completed_date"}).
			AddRow("j1", "Tear-off", &day, nil).
			AddRow("j1", "Inspection", &done, &done))

	sched, err := s.ScheduleEntries(context.Background(), ids)
	require.NoError(t, err)
	require.Len(t, sched["j1"], 2)
	assert.True(t, sched["j1"][0].PendingOn(day))
	assert.False(t, sched["j1"][1].PendingOn(done))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LedgerQueryError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM job_expenses`).
		WithArgs([]string{"j1"}).
		WillReturnError(errors.New("timeout"))

	_, err := s.Expenses(context.Background(), []string{"j1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query expenses")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS jobs`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Ping(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`SELECT 1`).WillReturnResult(pgxmock.NewResult("SELECT", 1))

	require.NoError(t, s.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CloseFromPool(t *testing.T) {
	s, _ := newMockPostgresStore(t)
	assert.NoError(t, s.Close())
	assert.NotNil(t, s.Pool())
}
