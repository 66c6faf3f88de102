package cli

import (
	"fmt"
	"math"
	"strings"

	"github.com/rpattn/kpiledger/internal/domain"
	"github.com/rpattn/kpiledger/internal/view"

	"github.com/shopspring/decimal"
)

// recordsMarkdown renders the ledger rows as a markdown table with 1-based row numbers.
func recordsMarkdown(records []domain.KpiRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# KPI Data\n\n")
	if len(records) == 0 {
		b.WriteString("_No rows._\n")
		return b.String()
	}

	b.WriteString("| # | " + strings.Join(domain.Columns, " | ") + " |\n")
	b.WriteString("|---" + strings.Repeat("|---", len(domain.Columns)) + "|\n")
	for i, r := range records {
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s | %s | %s | %s | %s | %s | %s |\n",
			i+1,
			r.Perspective, cell(r.Number), cell(r.Name), cell(r.PIC), r.BusinessUnit,
			r.MeasurementType, r.AggregationType, r.Month,
			number(r.YTDTarget), number(r.YTDActual))
	}
	fmt.Fprintf(&b, "\n%d rows\n", len(records))
	return b.String()
}

// viewMarkdown renders the dashboard model as markdown sections.
func viewMarkdown(model view.Model) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# KPI Dashboard\n\n%d rows\n\n", model.RowCount)

	barsMarkdown(&b, "By Perspective", model.Perspectives)
	barsMarkdown(&b, "By Business Unit", model.BusinessUnits)

	if len(model.Scorecards) > 0 {
		b.WriteString("## Scorecards\n\n")
		b.WriteString("| BU | KPI | Month | Achievement | Change | Rolled Actual |\n")
		b.WriteString("|---|---|---|---|---|---|\n")
		for _, card := range model.Scorecards {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
				card.BusinessUnit, cell(card.Name), card.Month,
				card.DisplayValue, card.DisplayChange, number(card.RolledActual))
		}
		b.WriteString("\n")
	}

	b.WriteString(changesMarkdown(model.Recent))
	return b.String()
}

func barsMarkdown(b *strings.Builder, title string, bars []view.Bar) {
	if len(bars) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s\n\n| Category | Target | Actual | Rows |\n|---|---|---|---|\n", title)
	for _, bar := range bars {
		fmt.Fprintf(b, "| %s | %s | %s | %d |\n", bar.Category, number(bar.Target), number(bar.Actual), bar.Count)
	}
	b.WriteString("\n")
}

// changesMarkdown lists change log entries in the order given.
func changesMarkdown(entries []domain.ChangeLogEntry) string {
	var b strings.Builder
	b.WriteString("## Recent Changes\n\n")
	if len(entries) == 0 {
		b.WriteString("_No changes yet._\n")
		return b.String()
	}
	for _, entry := range entries {
		fmt.Fprintf(&b, "- %s\n", entry.String())
	}
	return b.String()
}

func number(value float64) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return "N/A"
	}
	return decimal.NewFromFloat(value).StringFixed(2)
}

// cell keeps user text from breaking the table.
func cell(value string) string {
	return strings.ReplaceAll(value, "|", "\\|")
}
