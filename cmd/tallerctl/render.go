package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"

	"taller/internal/engine"
	"taller/internal/sheets"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#1D4ED8", Dark: "#93C5FD"})
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#FCD34D"})
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"})
	cellStyle  = lipgloss.NewStyle().Padding(0, 1)
	headStyle  = cellStyle.Bold(true)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(dimStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headStyle
			}
			if col > 0 {
				return cellStyle.Align(lipgloss.Right)
			}
			return cellStyle
		})
}

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func pct(d decimal.Decimal) string { return d.StringFixed(1) + "%" }

func renderReport(res engine.Result) string {
	var b strings.Builder
	q := res.Query

	scope := q.Ref.Format("January 2006")
	if q.Week > 0 {
		scope += fmt.Sprintf(", week %d", q.Week)
	}
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s · %s", scope, q.Division)))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("tables " + res.TableVersion + " · computed " + res.ComputedAt.Format("2006-01-02 15:04")))
	b.WriteString("\n\n")

	cur, prev := res.Period.Current.Totals, res.Period.Previous.Totals
	totals := newTable("", "Current", "Previous", "Trend").
		Row("Income", money(cur.Income), money(prev.Income), pct(res.Period.Trend.Income)).
		Row("Direct expense", money(cur.DirectExpense), money(prev.DirectExpense), "").
		Row("Payroll", money(cur.Payroll), money(prev.Payroll), "").
		Row("Fixed", money(cur.Fixed), money(prev.Fixed), "").
		Row("Design payroll", money(cur.DesignPayroll), money(prev.DesignPayroll), "").
		Row("Expense", money(cur.Expense), money(prev.Expense), pct(res.Period.Trend.Expense)).
		Row("Net", money(cur.Net), money(prev.Net), pct(res.Period.Trend.Net)).
		Row("Cancelled", money(cur.Cancelled), money(prev.Cancelled), "").
		Row("Orders", strconv.Itoa(cur.OrderCount), strconv.Itoa(prev.OrderCount), pct(res.Period.Trend.Orders))
	b.WriteString(totals.String())
	b.WriteString("\n\n")

	m := res.Metrics
	metrics := newTable("Metric", "Value").
		Row("Margin", pct(m.MarginPct)).
		Row("Break-even", pct(m.BreakEvenPct)).
		Row("Average ticket", money(m.AvgTicket)).
		Row("Revenue per staff", money(m.RevenuePerStaff)).
		Row("Net profit", money(m.NetProfit)).
		Row("Staff", strconv.Itoa(m.StaffCount))
	b.WriteString(metrics.String())
	b.WriteString("\n\n")

	b.WriteString(titleStyle.Render("Receivables"))
	b.WriteString("\n")
	debtTable := newTable("Client", "Orders", "Owed")
	for _, c := range res.Debt.Top(10) {
		debtTable.Row(c.Name, strconv.Itoa(len(c.Orders)), money(c.Total))
	}
	debtTable.Row("Current", "", money(res.Debt.CurrentTotal))
	debtTable.Row("Overdue", "", money(res.Debt.OverdueTotal))
	debtTable.Row("Total", "", money(res.Debt.Total))
	b.WriteString(debtTable.String())
	b.WriteString("\n\n")

	b.WriteString(titleStyle.Render("Wallets"))
	b.WriteString("\n")
	wallets := newTable("Wallet", "Currency", "Balance", "In primary")
	for _, w := range res.Ledger.Wallets {
		name := w.Name
		if w.DevaluationRisk {
			name += " !"
		}
		wallets.Row(name, string(w.Currency), money(w.Balance), money(w.BalancePrimary))
	}
	wallets.Row("Net worth", "", "", money(res.Ledger.NetWorth))
	b.WriteString(wallets.String())

	if n := res.NeedsClassification.Count; n > 0 {
		b.WriteString("\n\n")
		b.WriteString(warnStyle.Render(fmt.Sprintf("%d records need classification", n)))
	}
	for _, w := range res.Warnings {
		b.WriteString("\n")
		b.WriteString(warnStyle.Render("warning: " + w))
	}
	return b.String()
}

func renderImport(res sheets.ImportResult) string {
	var b strings.Builder
	t := newTable("Collection", "Stored").
		Row("Employees", strconv.Itoa(res.Employees)).
		Row("Expenses", strconv.Itoa(res.Expenses)).
		Row("Payroll", strconv.Itoa(res.Payroll))
	b.WriteString(t.String())
	for _, re := range res.RowErrors {
		b.WriteString("\n")
		b.WriteString(warnStyle.Render(re.Error()))
	}
	return b.String()
}
