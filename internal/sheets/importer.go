package sheets

import (
	"context"
	"fmt"
	"log/slog"
)

// ImportResult counts the records stored by Import.
type ImportResult struct {
	Employees int        `json:"employees"`
	Expenses  int        `json:"expenses"`
	Payroll   int        `json:"payroll"`
	RowErrors []RowError `json:"row_errors,omitempty"`
}

// Import copies employees, expenses and payroll from r into w. Employees go
// first so payroll rows can be matched to them. Bad rows are collected, a
// failed read or write aborts.
func Import(ctx context.Context, r SheetReader, w RecordWriter) (ImportResult, error) {
	var res ImportResult

	emps, rowErrs, err := r.ReadEmployees(ctx)
	if err != nil {
		return res, fmt.Errorf("read employees: %w", err)
	}
	res.RowErrors = append(res.RowErrors, rowErrs...)
	if err := w.SaveEmployees(ctx, emps); err != nil {
		return res, fmt.Errorf("save employees: %w", err)
	}
	res.Employees = len(emps)

	exps, rowErrs, err := r.ReadExpenses(ctx)
	if err != nil {
		return res, fmt.Errorf("read expenses: %w", err)
	}
	res.RowErrors = append(res.RowErrors, rowErrs...)
	if err := w.SaveExpenses(ctx, exps); err != nil {
		return res, fmt.Errorf("save expenses: %w", err)
	}
	res.Expenses = len(exps)

	pay, rowErrs, err := r.ReadPayroll(ctx, emps)
	if err != nil {
		return res, fmt.Errorf("read payroll: %w", err)
	}
	res.RowErrors = append(res.RowErrors, rowErrs...)
	if err := w.SavePayroll(ctx, pay); err != nil {
		return res, fmt.Errorf("save payroll: %w", err)
	}
	res.Payroll = len(pay)

	for _, re := range res.RowErrors {
		slog.WarnContext(ctx, "Row skipped or imported with warnings", "sheet", re.Sheet, "row", re.Row, "error", re.Err)
	}
	slog.InfoContext(ctx, "Sheets import complete",
		"employees", res.Employees, "expenses", res.Expenses, "payroll", res.Payroll, "row_errors", len(res.RowErrors))
	return res, nil
}
