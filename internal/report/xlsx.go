// Package report renders an InsightResponse for download.
package report

import (
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/roofing-insights/internal/model"
)

const moneyFormat = "#,##0.00"

// Sheet names, in workbook order.
const (
	SheetSummary  = "Summary"
	SheetInsights = "Insights"
	SheetJobs     = "Jobs"
)

var jobHeader = []string{
	"Job ID", "Client", "Type", "Stage", "Contract Value", "Budget",
	"Materials", "Labor", "Expenses", "Actual Cost", "Over Budget",
	"Pending Today", "Pending Stages",
}

// WriteXLSX writes resp as a three-sheet workbook to w.
func WriteXLSX(w io.Writer, resp *model.InsightResponse) error {
	if resp == nil {
		return eris.New("xlsx: nil response")
	}

	f := xlsx.NewFile()
	if err := writeSummary(f, resp); err != nil {
		return err
	}
	if err := writeInsights(f, resp.Insights); err != nil {
		return err
	}
	if err := writeJobs(f, resp.Jobs); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "xlsx: write workbook")
	}
	return nil
}

func writeSummary(f *xlsx.File, resp *model.InsightResponse) error {
	sheet, err := f.AddSheet(SheetSummary)
	if err != nil {
		return eris.Wrap(err, "xlsx: add summary sheet")
	}

	c := resp.Context
	stringRow(sheet, "Report ID", resp.ID)
	stringRow(sheet, "Generated At", resp.GeneratedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	stringRow(sheet, "Date", c.Date)
	stringRow(sheet, "Source", string(resp.Source))
	stringRow(sheet, "Locale", string(resp.Locale))
	stringRow(sheet, "Summary", resp.Summary)
	intRow(sheet, "Active Jobs", c.ActiveJobs)
	intRow(sheet, "Jobs On Track", c.JobsOnTrack)
	intRow(sheet, "Jobs Over Budget", c.JobsOverBudget)
	moneyRow(sheet, "Total Contract Value", c.TotalContractValue)
	moneyRow(sheet, "Total Budget", c.TotalBudget)
	moneyRow(sheet, "Total Actual Cost", c.TotalActualCost)

	row := sheet.AddRow()
	row.AddCell().SetString("Burn Rate %")
	pct, _ := c.BurnRatePct.Float64()
	row.AddCell().SetFloatWithFormat(pct, "0.0")

	intRow(sheet, "Pending Milestones Today", c.PendingMilestonesToday)
	return nil
}

func writeInsights(f *xlsx.File, insights []model.Insight) error {
	sheet, err := f.AddSheet(SheetInsights)
	if err != nil {
		return eris.Wrap(err, "xlsx: add insights sheet")
	}

	header(sheet, "Priority", "Kind", "Title", "Body")
	for i, ins := range insights {
		row := sheet.AddRow()
		row.AddCell().SetInt(i + 1)
		row.AddCell().SetString(string(ins.Kind))
		row.AddCell().SetString(ins.Title)
		row.AddCell().SetString(ins.Body)
	}
	return nil
}

func writeJobs(f *xlsx.File, jobs []model.JobCostRecord) error {
	sheet, err := f.AddSheet(SheetJobs)
	if err != nil {
		return eris.Wrap(err, "xlsx: add jobs sheet")
	}

	header(sheet, jobHeader...)
	for _, j := range jobs {
		row := sheet.AddRow()
		row.AddCell().SetString(j.JobID)
		row.AddCell().SetString(j.ClientName)
		row.AddCell().SetString(string(j.JobType))
		row.AddCell().SetString(j.Stage)
		for _, d := range []decimal.Decimal{j.ContractValue, j.Budget, j.MaterialsCost, j.LaborCost, j.ExpenseCost, j.ActualCost} {
			moneyCell(row, d)
		}
		row.AddCell().SetBool(j.IsOverBudget)
		row.AddCell().SetInt(j.PendingMilestonesToday)
		row.AddCell().SetString(strings.Join(j.PendingStages, ", "))
	}
	return nil
}

func header(sheet *xlsx.Sheet, names ...string) {
	row := sheet.AddRow()
	for _, n := range names {
		cell := row.AddCell()
		cell.SetString(n)
		cell.GetStyle().Font.Bold = true
	}
}

func stringRow(sheet *xlsx.Sheet, label, value string) {
	row := sheet.AddRow()
	row.AddCell().SetString(label)
	row.AddCell().SetString(value)
}

func intRow(sheet *xlsx.Sheet, label string, value int) {
	row := sheet.AddRow()
	row.AddCell().SetString(label)
	row.AddCell().SetInt(value)
}

func moneyRow(sheet *xlsx.Sheet, label string, value decimal.Decimal) {
	row := sheet.AddRow()
	row.AddCell().SetString(label)
	moneyCell(row, value)
}

func moneyCell(row *xlsx.Row, d decimal.Decimal) {
	v, _ := d.Float64()
	row.AddCell().SetFloatWithFormat(v, moneyFormat)
}
