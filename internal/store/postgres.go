package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/roofing-insights/internal/db"
	"github.com/sells-group/roofing-insights/internal/model"
)

// PostgresStore implements Store using a pgx pool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres connects to PostgreSQL and returns a PostgresStore.
func NewPostgres(ctx context.Context, connString string, poolCfg *db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, connString, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. The caller keeps ownership.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying database pool for subsystems that share the
// connection (e.g., the rate limiter).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	id                 TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	org_id             TEXT,
	user_id            TEXT NOT NULL,
	client_name        TEXT NOT NULL DEFAULT '',
	job_type           TEXT NOT NULL DEFAULT 'other',
	stage              TEXT NOT NULL DEFAULT '',
	status             TEXT NOT NULL DEFAULT 'lead',
	rejected_by_client BOOLEAN NOT NULL DEFAULT false,
	contract_value     NUMERIC(14,2) NOT NULL DEFAULT 0,
	budget_materials   NUMERIC(14,2) NOT NULL DEFAULT 0,
	budget_labor       NUMERIC(14,2) NOT NULL DEFAULT 0,
	budget_other       NUMERIC(14,2) NOT NULL DEFAULT 0,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS job_checklist_items (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	job_id        TEXT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
	name          TEXT NOT NULL DEFAULT '',
	material_type TEXT NOT NULL DEFAULT 'other',
	checked       BOOLEAN NOT NULL DEFAULT false,
	actual_cost   TEXT
);

CREATE TABLE IF NOT EXISTS time_entries (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	job_id      TEXT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
	worker_name TEXT NOT NULL DEFAULT '',
	hours       NUMERIC(8,2) NOT NULL DEFAULT 0,
	hourly_rate NUMERIC(10,2) NOT NULL DEFAULT 0,
	logged_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS job_expenses (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	job_id      TEXT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
	description TEXT NOT NULL DEFAULT '',
	amount      NUMERIC(14,2) NOT NULL DEFAULT 0,
	spent_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS job_schedule (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	job_id         TEXT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
	stage_name     TEXT NOT NULL DEFAULT '',
	scheduled_date DATE,
	completed_date DATE
);

CREATE INDEX IF NOT EXISTS idx_jobs_org_id ON jobs(org_id);
CREATE INDEX IF NOT EXISTS idx_jobs_user_id ON jobs(user_id);
CREATE INDEX IF NOT EXISTS idx_job_checklist_items_job_id ON job_checklist_items(job_id);
CREATE INDEX IF NOT EXISTS idx_time_entries_job_id ON time_entries(job_id);
CREATE INDEX IF NOT EXISTS idx_job_expenses_job_id ON job_expenses(job_id);
CREATE INDEX IF NOT EXISTS idx_job_schedule_job_date ON job_schedule(job_id, scheduled_date);
`

// Both exclusion flags are checked independently.
const pgActiveJobsSQL = `SELECT id, COALESCE(org_id, ''), user_id, client_name, job_type, stage, status, rejected_by_client,
	contract_value::text, budget_materials::text, budget_labor::text, budget_other::text
FROM jobs
WHERE (org_id = $1 OR (org_id IS NULL AND user_id = $1))
	AND NOT rejected_by_client
	AND lower(status) <> 'completed'
ORDER BY created_at, id`

const pgChecklistSQL = `SELECT job_id, name, material_type, checked, actual_cost FROM job_checklist_items WHERE job_id = ANY($1)`

const pgTimeEntriesSQL = `SELECT job_id, worker_name, hours::text, hourly_rate::text FROM time_entries WHERE job_id = ANY($1)`

const pgExpensesSQL = `SELECT job_id, description, amount::text FROM job_expenses WHERE job_id = ANY($1)`

const pgScheduleSQL = `SELECT job_id, stage_name, to_char(scheduled_date, 'YYYY-MM-DD'), to_char(completed_date, 'YYYY-MM-DD') FROM job_schedule WHERE job_id = ANY($1)`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) ActiveJobs(ctx context.Context, scope model.Scope) ([]model.Job, error) {
	rows, err := s.pool.Query(ctx, pgActiveJobsSQL, string(scope))
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: active jobs %s", scope)
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		var r jobRow
		if err := rows.Scan(&r.ID, &r.OrgID, &r.UserID, &r.ClientName, &r.JobType, &r.Stage, &r.Status,
			&r.Rejected, &r.Contract, &r.Materials, &r.Labor, &r.Other); err != nil {
			return nil, eris.Wrap(err, "postgres: scan job")
		}
		jobs = append(jobs, r.toJob())
	}
	return jobs, eris.Wrap(rows.Err(), "postgres: iterate jobs")
}

func (s *PostgresStore) ChecklistItems(ctx context.Context, jobIDs []string) (map[string][]model.ChecklistItem, error) {
	return pgGrouped(ctx, s.pool, pgChecklistSQL, jobIDs, "checklist items", checklistJobID, func(rows pgx.Rows) (model.ChecklistItem, error) {
		var it model.ChecklistItem
		var material string
		err := rows.Scan(&it.JobID, &it.Name, &material, &it.Checked, &it.ActualCost)
		it.MaterialType = model.ParseMaterialType(material)
		return it, err
	})
}

func (s *PostgresStore) TimeEntries(ctx context.Context, jobIDs []string) (map[string][]model.TimeEntry, error) {
	return pgGrouped(ctx, s.pool, pgTimeEntriesSQL, jobIDs, "time entries", timeEntryJobID, func(rows pgx.Rows) (model.TimeEntry, error) {
		var e model.TimeEntry
		var hours, rate string
		err := rows.Scan(&e.JobID, &e.WorkerName, &hours, &rate)
		e.Hours = model.ParseMoney(&hours)
		e.HourlyRate = model.ParseMoney(&rate)
		return e, err
	})
}

func (s *PostgresStore) Expenses(ctx context.Context, jobIDs []string) (map[string][]model.Expense, error) {
	return pgGrouped(ctx, s.pool, pgExpensesSQL, jobIDs, "expenses", expenseJobID, func(rows pgx.Rows) (model.Expense, error) {
		var e model.Expense
		var amount string
		err := rows.Scan(&e.JobID, &e.Description, &amount)
		e.Amount = model.ParseMoney(&amount)
		return e, err
	})
}

func (s *PostgresStore) ScheduleEntries(ctx context.Context, jobIDs []string) (map[string][]model.ScheduleEntry, error) {
	return pgGrouped(ctx, s.pool, pgScheduleSQL, jobIDs, "schedule", scheduleJobID, func(rows pgx.Rows) (model.ScheduleEntry, error) {
		var e model.ScheduleEntry
		var scheduled *string
		err := rows.Scan(&e.JobID, &e.StageName, &scheduled, &e.CompletedDate)
		if scheduled != nil {
			e.ScheduledDate = *scheduled
		}
		return e, err
	})
}

// pgGrouped runs a job-id filtered ledger query and groups rows by job id.
func pgGrouped[T any](ctx context.Context, pool db.Pool, sql string, jobIDs []string, what string, key func(T) string, scan func(pgx.Rows) (T, error)) (map[string][]T, error) {
	out := make(map[string][]T, len(jobIDs))
	if len(jobIDs) == 0 {
		return out, nil
	}

	rows, err := pool.Query(ctx, sql, jobIDs)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: query %s", what)
	}
	defer rows.Close()

	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: scan %s", what)
		}
		id := key(v)
		out[id] = append(out[id], v)
	}
	return out, eris.Wrapf(rows.Err(), "postgres: iterate %s", what)
}
