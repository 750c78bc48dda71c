package main

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"taller/internal/core"
	"taller/internal/debt"
	"taller/internal/engine"
	"taller/internal/ledger"
	"taller/internal/sheets"
)

func TestRenderReport(t *testing.T) {
	var res engine.Result
	res.Query = engine.Query{Ref: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), Week: 2, Division: core.DivisionLaser}
	res.TableVersion = "v1"
	res.Period.Current.Totals.Income = decimal.NewFromInt(150)
	res.Period.Current.Totals.OrderCount = 3
	res.Debt = debt.Report{
		Total:   decimal.NewFromInt(40),
		Clients: []debt.ClientDebt{{Key: "banner", Name: "Banner Co", Total: decimal.NewFromInt(40)}},
	}
	res.Ledger = ledger.Report{
		Wallets: []ledger.WalletBalance{{
			Wallet:          core.Wallet{ID: "cash-ves", Name: "Caja Bs", Currency: core.CurrencyVES},
			Balance:         decimal.NewFromInt(3600),
			BalancePrimary:  decimal.NewFromInt(100),
			DevaluationRisk: true,
		}},
	}
	res.NeedsClassification.Count = 2
	res.Warnings = []string{"exchange rate missing"}

	out := renderReport(res)

	assert.Contains(t, out, "March 2025, week 2")
	assert.Contains(t, out, "laser_cutting")
	assert.Contains(t, out, "150.00")
	assert.Contains(t, out, "Banner Co")
	assert.Contains(t, out, "Caja Bs !")
	assert.Contains(t, out, "3600.00")
	assert.Contains(t, out, "2 records need classification")
	assert.Contains(t, out, "warning: exchange rate missing")
}

func TestRenderImport(t *testing.T) {
	out := renderImport(sheets.ImportResult{
		Employees: 4,
		Expenses:  12,
		RowErrors: []sheets.RowError{{Sheet: "Gastos", Row: 7, Err: "invalid amount"}},
	})
	assert.Contains(t, out, "Expenses")
	assert.Contains(t, out, "12")
	assert.Contains(t, out, "Gastos row 7: invalid amount")
}
