// Package aggregate turns raw job and ledger rows into per-job cost records
// and the organization-wide daily context.
package aggregate

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/roofing-insights/internal/model"
	"github.com/sells-group/roofing-insights/internal/store"
)

// DateLayout is the calendar-day format used for schedule dates and "today".
const DateLayout = "2006-01-02"

// Result is one aggregation snapshot.
type Result struct {
	Context model.OrgContext
	Jobs    []model.JobCostRecord
}

// Aggregator computes cost records from a Store. It holds no state between
// calls; every Build reads fresh rows.
type Aggregator struct {
	store store.Store
}

// New creates an Aggregator.
func New(st store.Store) *Aggregator {
	return &Aggregator{store: st}
}

type ledgers struct {
	checklist map[string][]model.ChecklistItem
	time      map[string][]model.TimeEntry
	expenses  map[string][]model.Expense
	schedule  map[string][]model.ScheduleEntry
}

// Build loads the active jobs for scope and their ledgers, and computes the
// cost records and org context for the given day. Sparse or missing ledger
// data contributes zero; only store failures return an error.
func (a *Aggregator) Build(ctx context.Context, scope model.Scope, today time.Time) (*Result, error) {
	day := today.Format(DateLayout)

	all, err := a.store.ActiveJobs(ctx, scope)
	if err != nil {
		return nil, eris.Wrap(err, "aggregate: load jobs")
	}

	jobs := make([]model.Job, 0, len(all))
	ids := make([]string, 0, len(all))
	for _, j := range all {
		if j.Excluded() {
			continue
		}
		jobs = append(jobs, j)
		ids = append(ids, j.ID)
	}

	if len(jobs) == 0 {
		return &Result{
			Context: Summarize(day, nil),
			Jobs:    []model.JobCostRecord{},
		}, nil
	}

	l, err := a.loadLedgers(ctx, ids)
	if err != nil {
		return nil, err
	}

	records := make([]model.JobCostRecord, 0, len(jobs))
	for _, j := range jobs {
		records = append(records, Record(j, l.checklist[j.ID], l.time[j.ID], l.expenses[j.ID], l.schedule[j.ID], day))
	}

	orgCtx := Summarize(day, records)
	zap.L().Debug("aggregate: built context",
		zap.String("scope", string(scope)),
		zap.String("date", day),
		zap.Int("active_jobs", orgCtx.ActiveJobs),
		zap.Int("over_budget", orgCtx.JobsOverBudget),
		zap.String("burn_rate_pct", orgCtx.BurnRatePct.String()),
	)

	return &Result{Context: orgCtx, Jobs: records}, nil
}

// loadLedgers issues the four ledger queries concurrently.
func (a *Aggregator) loadLedgers(ctx context.Context, ids []string) (*ledgers, error) {
	var l ledgers
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		l.checklist, err = a.store.ChecklistItems(gctx, ids)
		return eris.Wrap(err, "aggregate: checklist items")
	})
	g.Go(func() error {
		var err error
		l.time, err = a.store.TimeEntries(gctx, ids)
		return eris.Wrap(err, "aggregate: time entries")
	})
	g.Go(func() error {
		var err error
		l.expenses, err = a.store.Expenses(gctx, ids)
		return eris.Wrap(err, "aggregate: expenses")
	})
	g.Go(func() error {
		var err error
		l.schedule, err = a.store.ScheduleEntries(gctx, ids)
		return eris.Wrap(err, "aggregate: schedule")
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &l, nil
}

// Record computes the cost record of one job from its own ledger rows.
func Record(j model.Job, items []model.ChecklistItem, entries []model.TimeEntry, expenses []model.Expense, schedule []model.ScheduleEntry, day string) model.JobCostRecord {
	materials := decimal.Zero
	for _, it := range items {
		if it.Checked {
			materials = materials.Add(it.Cost())
		}
	}

	labor := decimal.Zero
	for _, e := range entries {
		labor = labor.Add(e.Cost())
	}

	spent := decimal.Zero
	for _, e := range expenses {
		spent = spent.Add(model.NonNegative(e.Amount))
	}

	var pending []string
	for _, s := range schedule {
		if s.PendingOn(day) {
			pending = append(pending, s.StageName)
		}
	}

	budget := j.Budget()
	actual := materials.Add(labor).Add(spent)

	return model.JobCostRecord{
		JobID:                  j.ID,
		ClientName:             j.ClientName,
		JobType:                j.JobType,
		Stage:                  j.Stage,
		ContractValue:          model.NonNegative(j.ContractValue),
		Budget:                 budget,
		MaterialsCost:          materials,
		LaborCost:              labor,
		ExpenseCost:            spent,
		ActualCost:             actual,
		IsOverBudget:           budget.IsPositive() && actual.GreaterThan(budget),
		PendingMilestonesToday: len(pending),
		PendingStages:          pending,
	}
}

// Summarize folds cost records into the org context for day.
func Summarize(day string, records []model.JobCostRecord) model.OrgContext {
	c := model.OrgContext{
		Date:               day,
		ActiveJobs:         len(records),
		TotalContractValue: decimal.Zero,
		TotalBudget:        decimal.Zero,
		TotalActualCost:    decimal.Zero,
		BurnRatePct:        decimal.Zero,
	}
	for _, r := range records {
		c.TotalContractValue = c.TotalContractValue.Add(r.ContractValue)
		c.TotalBudget = c.TotalBudget.Add(r.Budget)
		c.TotalActualCost = c.TotalActualCost.Add(r.ActualCost)
		c.PendingMilestonesToday += r.PendingMilestonesToday
		if r.IsOverBudget {
			c.JobsOverBudget++
		}
	}
	c.JobsOnTrack = c.ActiveJobs - c.JobsOverBudget
	c.BurnRatePct = model.Percent(c.TotalActualCost, c.TotalContractValue)
	return c
}
