// Package engine runs one pure computation pass over a snapshot: classify,
// attribute, aggregate, age debt, rebuild wallets and derive metrics.
package engine

import (
	"fmt"
	"strings"
	"time"

	"taller/internal/attribution"
	"taller/internal/classify"
	"taller/internal/core"
	"taller/internal/debt"
	"taller/internal/kpi"
	"taller/internal/ledger"
	"taller/internal/period"
)

type Query struct {
	Ref      time.Time     `json:"ref"`
	Week     int           `json:"week"`
	Division core.Division `json:"division"`
	// Now is the reference instant for debt aging. It defaults to Ref.
	Now time.Time `json:"now"`
}

// Validate rejects queries a caller should fix rather than have clamped.
func (q Query) Validate() error {
	if q.Ref.IsZero() {
		return fmt.Errorf("query reference month: %w", core.ErrInvalidDate)
	}
	if q.Week < 0 || q.Week > period.MaxWeek {
		return fmt.Errorf("week %d: %w", q.Week, core.ErrInvalidWeek)
	}
	if !q.Division.Valid() {
		return fmt.Errorf("division %q: %w", q.Division, core.ErrUnknownDivision)
	}
	return nil
}

// Key identifies the query for caching.
func (q Query) Key() string {
	return fmt.Sprintf("%s|%d|%s|%s", q.Ref.Format("2006-01"), q.Week, q.Division, q.Now.Format("2006-01-02"))
}

type ItemRef struct {
	OrderID string `json:"order_id"`
	ItemID  string `json:"item_id"`
	Name    string `json:"name"`
}

type ExpenseRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NeedsClassification lists records that matched no tag or keyword.
type NeedsClassification struct {
	Items    []ItemRef    `json:"items"`
	Expenses []ExpenseRef `json:"expenses"`
	Count    int          `json:"count"`
}

type Result struct {
	Query               Query               `json:"query"`
	Period              period.Report       `json:"period"`
	Debt                debt.Report         `json:"debt"`
	Ledger              ledger.Report       `json:"ledger"`
	Metrics             kpi.Metrics         `json:"metrics"`
	PreviousMetrics     kpi.Metrics         `json:"previous_metrics"`
	NeedsClassification NeedsClassification `json:"needs_classification"`
	DefaultedOrders     []string            `json:"defaulted_orders,omitempty"`
	Stale               []string            `json:"stale,omitempty"`
	Warnings            []string            `json:"warnings,omitempty"`
	TableVersion        string              `json:"table_version"`
	ComputedAt          time.Time           `json:"computed_at"`
}

// Partial reports whether any input collection failed to load.
func (r Result) Partial() bool {
	return len(r.Stale) > 0
}

// Engine holds the immutable tables and wallet configuration. It is safe
// for concurrent use.
type Engine struct {
	version  string
	services *classify.ServiceClassifier
	expenses *classify.ExpenseClassifier
	roles    *classify.RoleDivision
	router   *classify.WalletRouter
	wallets  []core.Wallet
}

func New(tables classify.Tables, wallets []core.Wallet) *Engine {
	ws := make([]core.Wallet, len(wallets))
	copy(ws, wallets)
	return &Engine{
		version:  tables.Version,
		services: classify.NewServiceClassifier(tables),
		expenses: classify.NewExpenseClassifier(tables),
		roles:    classify.NewRoleDivision(tables),
		router:   classify.NewWalletRouter(tables),
		wallets:  ws,
	}
}

// Compute never fails: malformed records degrade to documented fallbacks and
// are listed in the result.
func (e *Engine) Compute(s core.Snapshot, q Query) Result {
	if !q.Division.Valid() {
		q.Division = core.DivisionGeneral
	}
	if q.Now.IsZero() {
		q.Now = q.Ref
	}
	res := Result{Query: q, TableVersion: e.version, ComputedAt: q.Now}

	attrs := attribution.All(s.Orders, e.services)
	for _, o := range s.Orders {
		if attrs[o.ID].Defaulted && len(o.Items) > 0 {
			res.DefaultedOrders = append(res.DefaultedOrders, o.ID)
		}
		for _, it := range o.Items {
			if e.services.Classify(it).NeedsReview() {
				res.NeedsClassification.Items = append(res.NeedsClassification.Items, ItemRef{OrderID: o.ID, ItemID: it.ID, Name: it.Name})
			}
		}
	}

	exps := make([]period.ClassifiedExpense, 0, len(s.Expenses))
	for _, x := range s.Expenses {
		c := e.expenses.Classify(x)
		if c.NeedsReview {
			res.NeedsClassification.Expenses = append(res.NeedsClassification.Expenses, ExpenseRef{ID: x.ID, Name: x.Name})
		}
		exps = append(exps, period.ClassifiedExpense{Expense: x, Class: c})
	}
	res.NeedsClassification.Count = len(res.NeedsClassification.Items) + len(res.NeedsClassification.Expenses)

	res.Period = period.Aggregate(period.Input{
		Orders:         s.Orders,
		Attributions:   attrs,
		Expenses:       exps,
		Payroll:        s.Payroll,
		DesignPayments: s.DesignPayments,
		Employees:      s.EmployeeIndex(),
		Roles:          e.roles,
	}, period.Query{Ref: q.Ref, Week: q.Week, Division: q.Division})

	res.Debt = debt.Compute(s.Orders, attrs, q.Division, q.Now)

	res.Ledger = ledger.Compute(ledger.Input{
		Wallets:        e.wallets,
		Payments:       ledger.Payments(s.Orders),
		Expenses:       s.Expenses,
		Payroll:        s.Payroll,
		DesignPayments: s.DesignPayments,
		Rates:          s.Rates,
	}, e.router)

	staff := e.roles.StaffCount(s.Employees, q.Division)
	res.Metrics = kpi.Calculate(res.Period.Current.Totals, staff)
	res.PreviousMetrics = kpi.Calculate(res.Period.Previous.Totals, staff)

	res.Stale = append(res.Stale, s.Stale...)
	if len(s.Stale) > 0 {
		res.Warnings = append(res.Warnings, "partial data, failed to load: "+strings.Join(s.Stale, ", "))
	}
	if res.Ledger.RateMissing || !s.Rates.Primary.IsPositive() {
		res.Warnings = append(res.Warnings, "exchange rate missing, local currency amounts converted at zero")
	}
	if n := len(res.Period.Skipped); n > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d records with malformed dates left out of period totals", n))
	}
	return res
}
