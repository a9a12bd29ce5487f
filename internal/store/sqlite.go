package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/roofing-insights/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It backs local runs
// of the CLI and tests.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Money columns are TEXT so amounts round-trip without float conversion.
const sqliteMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	id                 TEXT PRIMARY KEY,
	org_id             TEXT,
	user_id            TEXT NOT NULL,
	client_name        TEXT NOT NULL DEFAULT '',
	job_type           TEXT NOT NULL DEFAULT 'other',
	stage              TEXT NOT NULL DEFAULT '',
	status             TEXT NOT NULL DEFAULT 'lead',
	rejected_by_client INTEGER NOT NULL DEFAULT 0,
	contract_value     TEXT NOT NULL DEFAULT '0',
	budget_materials   TEXT NOT NULL DEFAULT '0',
	budget_labor       TEXT NOT NULL DEFAULT '0',
	budget_other       TEXT NOT NULL DEFAULT '0',
	created_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS job_checklist_items (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id        TEXT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
	name          TEXT NOT NULL DEFAULT '',
	material_type TEXT NOT NULL DEFAULT 'other',
	checked       INTEGER NOT NULL DEFAULT 0,
	actual_cost   TEXT
);

CREATE TABLE IF NOT EXISTS time_entries (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id      TEXT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
	worker_name TEXT NOT NULL DEFAULT '',
	hours       TEXT NOT NULL DEFAULT '0',
	hourly_rate TEXT NOT NULL DEFAULT '0'
);

CREATE TABLE IF NOT EXISTS job_expenses (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id      TEXT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
	description TEXT NOT NULL DEFAULT '',
	amount      TEXT NOT NULL DEFAULT '0'
);

CREATE TABLE IF NOT EXISTS job_schedule (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id         TEXT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
	stage_name     TEXT NOT NULL DEFAULT '',
	scheduled_date TEXT,
	completed_date TEXT
);

CREATE INDEX IF NOT EXISTS idx_jobs_org_id ON jobs(org_id);
CREATE INDEX IF NOT EXISTS idx_jobs_user_id ON jobs(user_id);
CREATE INDEX IF NOT EXISTS idx_job_checklist_items_job_id ON job_checklist_items(job_id);
CREATE INDEX IF NOT EXISTS idx_time_entries_job_id ON time_entries(job_id);
CREATE INDEX IF NOT EXISTS idx_job_expenses_job_id ON job_expenses(job_id);
CREATE INDEX IF NOT EXISTS idx_job_schedule_job_date ON job_schedule(job_id, scheduled_date);
`

const sqliteActiveJobsSQL = `SELECT id, COALESCE(org_id, ''), user_id, client_name, job_type, stage, status, rejected_by_client,
	contract_value, budget_materials, budget_labor, budget_other
FROM jobs
WHERE (org_id = ? OR (org_id IS NULL AND user_id = ?))
	AND rejected_by_client = 0
	AND lower(status) <> 'completed'
ORDER BY created_at, id`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ActiveJobs(ctx context.Context, scope model.Scope) ([]model.Job, error) {
	rows, err := s.db.QueryContext(ctx, sqliteActiveJobsSQL, string(scope), string(scope))
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: active jobs %s", scope)
	}
	defer rows.Close() //nolint:errcheck

	var jobs []model.Job
	for rows.Next() {
		var r jobRow
		if err := rows.Scan(&r.ID, &r.OrgID, &r.UserID, &r.ClientName, &r.JobType, &r.Stage, &r.Status,
			&r.Rejected, &r.Contract, &r.Materials, &r.Labor, &r.Other); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan job")
		}
		jobs = append(jobs, r.toJob())
	}
	return jobs, eris.Wrap(rows.Err(), "sqlite: iterate jobs")
}

func (s *SQLiteStore) ChecklistItems(ctx context.Context, jobIDs []string) (map[string][]model.ChecklistItem, error) {
	const q = `SELECT job_id, name, material_type, checked, actual_cost FROM job_checklist_items WHERE job_id IN (%s) ORDER BY id`
	return sqliteGrouped(ctx, s.db, q, jobIDs, "checklist items", checklistJobID, func(rows *sql.Rows) (model.ChecklistItem, error) {
		var it model.ChecklistItem
		var material string
		err := rows.Scan(&it.JobID, &it.Name, &material, &it.Checked, &it.ActualCost)
		it.MaterialType = model.ParseMaterialType(material)
		return it, err
	})
}

func (s *SQLiteStore) TimeEntries(ctx context.Context, jobIDs []string) (map[string][]model.TimeEntry, error) {
	const q = `SELECT job_id, worker_name, hours, hourly_rate FROM time_entries WHERE job_id IN (%s) ORDER BY id`
	return sqliteGrouped(ctx, s.db, q, jobIDs, "time entries", timeEntryJobID, func(rows *sql.Rows) (model.TimeEntry, error) {
		var e model.TimeEntry
		var hours, rate string
		err := rows.Scan(&e.JobID, &e.WorkerName, &hours, &rate)
		e.Hours = model.ParseMoney(&hours)
		e.HourlyRate = model.ParseMoney(&rate)
		return e, err
	})
}

func (s *SQLiteStore) Expenses(ctx context.Context, jobIDs []string) (map[string][]model.Expense, error) {
	const q = `SELECT job_id, description, amount FROM job_expenses WHERE job_id IN (%s) ORDER BY id`
	return sqliteGrouped(ctx, s.db, q, jobIDs, "expenses", expenseJobID, func(rows *sql.Rows) (model.Expense, error) {
		var e model.Expense
		var amount string
		err := rows.Scan(&e.JobID, &e.Description, &amount)
		e.Amount = model.ParseMoney(&amount)
		return e, err
	})
}

func (s *SQLiteStore) ScheduleEntries(ctx context.Context, jobIDs []string) (map[string][]model.ScheduleEntry, error) {
	const q = `SELECT job_id, stage_name, scheduled_date, completed_date FROM job_schedule WHERE job_id IN (%s) ORDER BY id`
	return sqliteGrouped(ctx, s.db, q, jobIDs, "schedule", scheduleJobID, func(rows *sql.Rows) (model.ScheduleEntry, error) {
		var e model.ScheduleEntry
		var scheduled sql.NullString
		err := rows.Scan(&e.JobID, &e.StageName, &scheduled, &e.CompletedDate)
		e.ScheduledDate = scheduled.String
		return e, err
	})
}

// sqliteGrouped expands the IN (...) placeholder list for jobIDs, runs the
// query and groups rows by job id.
func sqliteGrouped[T any](ctx context.Context, db *sql.DB, query string, jobIDs []string, what string, key func(T) string, scan func(*sql.Rows) (T, error)) (map[string][]T, error) {
	out := make(map[string][]T, len(jobIDs))
	if len(jobIDs) == 0 {
		return out, nil
	}

	args := make([]any, len(jobIDs))
	for i, id := range jobIDs {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(jobIDs)), ", ")
	query = strings.Replace(query, "%s", placeholders, 1)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: query %s", what)
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: scan %s", what)
		}
		id := key(v)
		out[id] = append(out[id], v)
	}
	return out, eris.Wrapf(rows.Err(), "sqlite: iterate %s", what)
}
