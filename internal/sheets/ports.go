package sheets

import (
	"context"
	"fmt"

	"taller/internal/core"
)

// Ports for the collaborators that feed a computation pass.
type (
	OrderReader interface {
		ListOrders(ctx context.Context) ([]core.Order, error)
	}

	ExpenseReader interface {
		ListExpenses(ctx context.Context) ([]core.Expense, error)
	}

	PayrollReader interface {
		ListPayroll(ctx context.Context) ([]core.PayrollPayment, error)
	}

	DesignPaymentReader interface {
		ListDesignPayments(ctx context.Context) ([]core.DesignPayment, error)
	}

	EmployeeReader interface {
		ListEmployees(ctx context.Context) ([]core.Employee, error)
	}

	// RatesReader returns the latest known exchange rates.
	RatesReader interface {
		CurrentRates(ctx context.Context) (core.ExchangeRates, error)
	}

	// Source provides every collection of a snapshot.
	Source interface {
		OrderReader
		ExpenseReader
		PayrollReader
		DesignPaymentReader
		EmployeeReader
		RatesReader
	}

	// SheetReader reads the collections kept in a spreadsheet. Rows that
	// cannot be imported come back as row errors, not as a failed read.
	SheetReader interface {
		ReadEmployees(ctx context.Context) ([]core.Employee, []RowError, error)
		ReadExpenses(ctx context.Context) ([]core.Expense, []RowError, error)
		ReadPayroll(ctx context.Context, employees []core.Employee) ([]core.PayrollPayment, []RowError, error)
	}

	// RecordWriter stores imported records.
	RecordWriter interface {
		SaveOrders(ctx context.Context, orders []core.Order) error
		SaveExpenses(ctx context.Context, expenses []core.Expense) error
		SavePayroll(ctx context.Context, payroll []core.PayrollPayment) error
		SaveDesignPayments(ctx context.Context, payments []core.DesignPayment) error
		SaveEmployees(ctx context.Context, employees []core.Employee) error
	}
)

// RowError describes a source row that could not be imported.
type RowError struct {
	Sheet string `json:"sheet"`
	Row   int    `json:"row"`
	Err   string `json:"error"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("%s row %d: %s", e.Sheet, e.Row, e.Err)
}
