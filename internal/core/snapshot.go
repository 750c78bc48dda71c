package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExchangeRates holds local units per foreign unit.
type ExchangeRates struct {
	Primary         decimal.Decimal `json:"primary"`
	Secondary       decimal.Decimal `json:"secondary"`
	PreviousPrimary decimal.Decimal `json:"previous_primary"`
	AsOf            time.Time       `json:"as_of"`
	Source          string          `json:"source,omitempty"`
}

// Snapshot is the immutable input of one computation pass.
type Snapshot struct {
	Orders         []Order          `json:"orders"`
	Expenses       []Expense        `json:"expenses"`
	Payroll        []PayrollPayment `json:"payroll"`
	DesignPayments []DesignPayment  `json:"design_payments"`
	Employees      []Employee       `json:"employees"`
	Rates          ExchangeRates    `json:"rates"`
	FetchedAt      time.Time        `json:"fetched_at"`
	Stale          []string         `json:"stale,omitempty"`
}

// Collection names used in Snapshot.Stale.
const (
	CollectionOrders         = "orders"
	CollectionExpenses       = "expenses"
	CollectionPayroll        = "payroll"
	CollectionDesignPayments = "design_payments"
	CollectionEmployees      = "employees"
	CollectionRates          = "rates"
)

// EmployeeIndex maps employee IDs to employees.
func (s Snapshot) EmployeeIndex() map[string]Employee {
	idx := make(map[string]Employee, len(s.Employees))
	for _, e := range s.Employees {
		idx[e.ID] = e
	}
	return idx
}
