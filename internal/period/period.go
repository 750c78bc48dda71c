// Package period folds income and expense streams into calendar windows,
// daily and weekly buckets, and period-over-period trends.
package period

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"taller/internal/attribution"
	"taller/internal/classify"
	"taller/internal/core"
)

// RecordKind names the stream a record contributed to.
type RecordKind string

const (
	KindIncome        RecordKind = "income"
	KindCancelled     RecordKind = "cancelled"
	KindDirectExpense RecordKind = "direct_expense"
	KindPayroll       RecordKind = "payroll"
	KindFixed         RecordKind = "fixed"
	KindDesignPayroll RecordKind = "design_payroll"

	KindOrder   RecordKind = "order"
	KindExpense RecordKind = "expense"
)

// RecordRef points back at the raw record behind a bucket amount.
type RecordRef struct {
	Kind    RecordKind      `json:"kind"`
	ID      string          `json:"id"`
	OrderID string          `json:"order_id,omitempty"`
	Label   string          `json:"label"`
	Date    string          `json:"date"`
	Amount  decimal.Decimal `json:"amount"`
}

// Bucket sums one day (or one week) and keeps its contributing records.
type Bucket struct {
	Start     time.Time       `json:"start"`
	Week      int             `json:"week"`
	Income    decimal.Decimal `json:"income"`
	Expense   decimal.Decimal `json:"expense"`
	Cancelled decimal.Decimal `json:"cancelled"`
	Records   []RecordRef     `json:"records"`
}

type Totals struct {
	Income        decimal.Decimal `json:"income"`
	DirectExpense decimal.Decimal `json:"direct_expense"`
	Payroll       decimal.Decimal `json:"payroll"`
	Fixed         decimal.Decimal `json:"fixed"`
	DesignPayroll decimal.Decimal `json:"design_payroll"`
	Cancelled     decimal.Decimal `json:"cancelled"`
	Expense       decimal.Decimal `json:"expense"`
	Net           decimal.Decimal `json:"net"`
	OrderCount    int             `json:"order_count"`
}

// Period is one aggregated window.
type Period struct {
	Window
	Totals Totals   `json:"totals"`
	Daily  []Bucket `json:"daily"`
	Weekly []Bucket `json:"weekly"`
}

// Trend holds percentage variations, 0 when the previous value is 0.
type Trend struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
	Orders  decimal.Decimal `json:"orders"`
}

// Skipped is a record left out of every window because its date was malformed.
type Skipped struct {
	Kind RecordKind `json:"kind"`
	ID   string     `json:"id"`
}

type Report struct {
	Division core.Division `json:"division"`
	Week     int           `json:"week"`
	Current  Period        `json:"current"`
	Previous Period        `json:"previous"`
	Trend    Trend         `json:"trend"`
	Skipped  []Skipped     `json:"skipped,omitempty"`
}

// ClassifiedExpense pairs an expense with its classification.
type ClassifiedExpense struct {
	core.Expense
	Class classify.ExpenseClass
}

// RoleMapper resolves the division of an employee role.
type RoleMapper interface {
	Division(role string) core.Division
}

type Input struct {
	Orders         []core.Order
	Attributions   map[string]attribution.Attribution
	Expenses       []ClassifiedExpense
	Payroll        []core.PayrollPayment
	DesignPayments []core.DesignPayment
	Employees      map[string]core.Employee
	Roles          RoleMapper
}

type Query struct {
	Ref      time.Time
	Week     int
	Division core.Division
}

// Aggregate computes the current and previous periods for q. An out of range
// week is treated as the whole month.
func Aggregate(in Input, q Query) Report {
	if q.Week < 0 || q.Week > MaxWeek {
		q.Week = 0
	}
	if !q.Division.Valid() {
		q.Division = core.DivisionGeneral
	}
	cur, prev := Windows(q.Ref, q.Week)
	r := Report{
		Division: q.Division,
		Week:     q.Week,
		Current:  fold(in, q.Division, cur),
		Previous: fold(in, q.Division, prev),
		Skipped:  skipped(in),
	}
	c, pr := r.Current.Totals, r.Previous.Totals
	r.Trend = Trend{
		Income:  core.Variation(c.Income, pr.Income),
		Expense: core.Variation(c.Expense, pr.Expense),
		Net:     core.Variation(c.Net, pr.Net),
		Orders:  core.Variation(decimal.NewFromInt(int64(c.OrderCount)), decimal.NewFromInt(int64(pr.OrderCount))),
	}
	return r
}

// Bucket returns the daily bucket for day, if it lies in the period.
func (p Period) Bucket(day time.Time) (Bucket, bool) {
	i := p.index(day)
	if i < 0 {
		return Bucket{}, false
	}
	return p.Daily[i], true
}

func (p Period) index(day time.Time) int {
	y, m, d := day.Date()
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	if t.Before(p.From) || !t.Before(p.To) {
		return -1
	}
	return int(t.Sub(p.From).Hours() / 24)
}

func fold(in Input, div core.Division, w Window) Period {
	p := Period{Window: w, Daily: make([]Bucket, w.Days())}
	for i := range p.Daily {
		p.Daily[i].Start = w.From.AddDate(0, 0, i)
		p.Daily[i].Week = WeekOf(p.Daily[i].Start)
	}
	general := div == core.DivisionGeneral

	for _, o := range in.Orders {
		a, ok := in.Attributions[o.ID]
		if !ok {
			a = attribution.Attribution{Printing: decimal.NewFromInt(1), Defaulted: true}
		}
		if o.Cancelled {
			if w.Contains(o.Date) {
				p.add(o.Date, RecordRef{Kind: KindCancelled, ID: o.ID, OrderID: o.ID, Label: o.Client.Name, Amount: a.Scale(o.Total, div)})
			}
			continue
		}
		if w.Contains(o.Date) && a.Share(div).IsPositive() {
			p.Totals.OrderCount++
		}
		for _, pay := range o.Payments {
			if !w.Contains(pay.Date) {
				continue
			}
			p.add(pay.Date, RecordRef{Kind: KindIncome, ID: pay.ID, OrderID: o.ID, Label: pay.MethodLabel, Amount: a.Scale(pay.Amount, div)})
		}
	}

	for _, e := range in.Expenses {
		if !w.Contains(e.Date) {
			continue
		}
		ref := RecordRef{ID: e.ID, Label: e.Name, Amount: e.Amount}
		switch e.Class.Kind {
		case core.KindFixed:
			if !general {
				continue
			}
			ref.Kind = KindFixed
		case core.KindPayroll:
			if !general {
				continue
			}
			ref.Kind = KindPayroll
		default:
			if !general && e.Class.Department != div {
				continue
			}
			ref.Kind = KindDirectExpense
		}
		p.add(e.Date, ref)
	}

	for _, pp := range in.Payroll {
		if !w.Contains(pp.Date) {
			continue
		}
		emp := in.Employees[pp.EmployeeID]
		if !general {
			// Design staff payroll is only reported in the general view.
			if in.Roles == nil || div == core.DivisionDesign {
				continue
			}
			if in.Roles.Division(emp.RoleLabel) != div {
				continue
			}
		}
		label := emp.Name
		if label == "" {
			label = pp.EmployeeID
		}
		p.add(pp.Date, RecordRef{Kind: KindPayroll, ID: pp.ID, Label: label, Amount: pp.Amount})
	}

	if general {
		for _, dp := range in.DesignPayments {
			if !w.Contains(dp.Date) {
				continue
			}
			p.add(dp.Date, RecordRef{Kind: KindDesignPayroll, ID: dp.ID, OrderID: dp.OrderID, Label: dp.StaffID, Amount: dp.Amount})
		}
	}

	t := &p.Totals
	t.Expense = t.DirectExpense.Add(t.Payroll).Add(t.Fixed).Add(t.DesignPayroll)
	t.Net = t.Income.Sub(t.Expense)
	for i := range p.Daily {
		sortRecords(p.Daily[i].Records)
	}
	p.Weekly = weekly(p.Daily)
	return p
}

func (p *Period) add(day core.Date, ref RecordRef) {
	if ref.Amount.IsZero() {
		return
	}
	i := p.index(day.Time)
	if i < 0 {
		return
	}
	ref.Date = day.String()
	b := &p.Daily[i]
	t := &p.Totals
	switch ref.Kind {
	case KindIncome:
		b.Income = b.Income.Add(ref.Amount)
		t.Income = t.Income.Add(ref.Amount)
	case KindCancelled:
		b.Cancelled = b.Cancelled.Add(ref.Amount)
		t.Cancelled = t.Cancelled.Add(ref.Amount)
	case KindDirectExpense:
		b.Expense = b.Expense.Add(ref.Amount)
		t.DirectExpense = t.DirectExpense.Add(ref.Amount)
	case KindPayroll:
		b.Expense = b.Expense.Add(ref.Amount)
		t.Payroll = t.Payroll.Add(ref.Amount)
	case KindFixed:
		b.Expense = b.Expense.Add(ref.Amount)
		t.Fixed = t.Fixed.Add(ref.Amount)
	case KindDesignPayroll:
		b.Expense = b.Expense.Add(ref.Amount)
		t.DesignPayroll = t.DesignPayroll.Add(ref.Amount)
	}
	b.Records = append(b.Records, ref)
}

func weekly(daily []Bucket) []Bucket {
	var out []Bucket
	for _, d := range daily {
		if len(out) == 0 || out[len(out)-1].Week != d.Week {
			out = append(out, Bucket{Start: d.Start, Week: d.Week})
		}
		w := &out[len(out)-1]
		w.Income = w.Income.Add(d.Income)
		w.Expense = w.Expense.Add(d.Expense)
		w.Cancelled = w.Cancelled.Add(d.Cancelled)
		w.Records = append(w.Records, d.Records...)
	}
	return out
}

func sortRecords(rs []RecordRef) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].Kind != rs[j].Kind {
			return rs[i].Kind < rs[j].Kind
		}
		return rs[i].ID < rs[j].ID
	})
}

func skipped(in Input) []Skipped {
	var out []Skipped
	for _, o := range in.Orders {
		if !o.Date.Valid() {
			out = append(out, Skipped{Kind: KindOrder, ID: o.ID})
		}
		for _, p := range o.Payments {
			if !p.Date.Valid() {
				out = append(out, Skipped{Kind: KindIncome, ID: p.ID})
			}
		}
	}
	for _, e := range in.Expenses {
		if !e.Date.Valid() {
			out = append(out, Skipped{Kind: KindExpense, ID: e.ID})
		}
	}
	for _, pp := range in.Payroll {
		if !pp.Date.Valid() {
			out = append(out, Skipped{Kind: KindPayroll, ID: pp.ID})
		}
	}
	for _, dp := range in.DesignPayments {
		if !dp.Date.Valid() {
			out = append(out, Skipped{Kind: KindDesignPayroll, ID: dp.ID})
		}
	}
	return out
}
