// Package kpi derives ratios from period totals.
package kpi

import (
	"github.com/shopspring/decimal"

	"taller/internal/core"
	"taller/internal/period"
)

var hundred = decimal.NewFromInt(100)

type Metrics struct {
	MarginPct        decimal.Decimal `json:"margin_pct"`
	BreakEvenPct     decimal.Decimal `json:"break_even_pct"`
	AvgTicket        decimal.Decimal `json:"avg_ticket"`
	RevenuePerStaff  decimal.Decimal `json:"revenue_per_staff"`
	NetProfit        decimal.Decimal `json:"net_profit"`
	TotalExpense     decimal.Decimal `json:"total_expense"`
	OperatingExpense decimal.Decimal `json:"operating_expense"`
	StaffCount       int             `json:"staff_count"`
}

// OperatingExpense is the overhead a period must cover: payroll, fixed
// costs and design payroll. Direct supply costs are excluded.
func OperatingExpense(t period.Totals) decimal.Decimal {
	return t.Payroll.Add(t.Fixed).Add(t.DesignPayroll)
}

// TotalExpense adds direct supply costs to the operating expense.
func TotalExpense(t period.Totals) decimal.Decimal {
	return t.DirectExpense.Add(OperatingExpense(t))
}

// Calculate guards every zero denominator: margin is 0 without income,
// break-even is 100 without operating expense, avg ticket is 0 without
// orders and staff count is at least 1.
func Calculate(t period.Totals, staffCount int) Metrics {
	total := TotalExpense(t)
	op := OperatingExpense(t)
	staff := staffCount
	if staff < 1 {
		staff = 1
	}

	breakEven := core.Ratio(t.Income, op, hundred)
	if breakEven.GreaterThan(hundred) {
		breakEven = hundred
	}
	return Metrics{
		MarginPct:        core.Round2(core.Ratio(t.Income.Sub(total), t.Income, decimal.Zero)),
		BreakEvenPct:     core.Round2(breakEven),
		AvgTicket:        core.Round2(core.SafeDiv(t.Income, decimal.NewFromInt(int64(t.OrderCount)))),
		RevenuePerStaff:  core.Round2(t.Income.Div(decimal.NewFromInt(int64(staff)))),
		NetProfit:        core.Round2(t.Income.Sub(total)),
		TotalExpense:     core.Round2(total),
		OperatingExpense: core.Round2(op),
		StaffCount:       staffCount,
	}
}
