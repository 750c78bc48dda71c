package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"taller/internal/core"
	ports "taller/internal/sheets"
)

// ErrNoRates is returned when no rates were seeded or saved.
var ErrNoRates = errors.New("no exchange rates in memory store")

// Seed file names read by NewFromFiles.
const (
	OrdersFile         = "orders.json"
	ExpensesFile       = "expenses.json"
	PayrollFile        = "payroll.json"
	DesignPaymentsFile = "design_payments.json"
	EmployeesFile      = "employees.json"
	RatesFile          = "rates.json"
)

var (
	_ ports.Source       = (*Store)(nil)
	_ ports.RecordWriter = (*Store)(nil)
)

// Store keeps every collection in memory. It is safe for concurrent use and
// hands out copies so callers cannot mutate stored records.
type Store struct {
	mu    sync.Mutex
	snap  core.Snapshot
	rates []core.ExchangeRates
}

func New(s core.Snapshot) *Store {
	st := &Store{snap: s}
	if s.Rates.Primary.IsPositive() {
		st.rates = append(st.rates, s.Rates)
	}
	return st
}

// NewFromFiles loads the JSON seed files found in dir. Missing files leave
// their collection empty; malformed files are an error.
func NewFromFiles(dir string) (*Store, error) {
	var s core.Snapshot
	for _, f := range []struct {
		name string
		dst  any
	}{
		{OrdersFile, &s.Orders},
		{ExpensesFile, &s.Expenses},
		{PayrollFile, &s.Payroll},
		{DesignPaymentsFile, &s.DesignPayments},
		{EmployeesFile, &s.Employees},
		{RatesFile, &s.Rates},
	} {
		b, err := os.ReadFile(filepath.Join(dir, f.name))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read seed %s: %w", f.name, err)
		}
		if err := json.Unmarshal(b, f.dst); err != nil {
			return nil, fmt.Errorf("parse seed %s: %w", f.name, err)
		}
	}
	return New(s), nil
}

func (s *Store) ListOrders(context.Context) ([]core.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Order, len(s.snap.Orders))
	for i, o := range s.snap.Orders {
		o.Items = append([]core.Item(nil), o.Items...)
		o.Payments = append([]core.Payment(nil), o.Payments...)
		out[i] = o
	}
	return out, nil
}

func (s *Store) ListExpenses(context.Context) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Expense(nil), s.snap.Expenses...), nil
}

func (s *Store) ListPayroll(context.Context) ([]core.PayrollPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.PayrollPayment(nil), s.snap.Payroll...), nil
}

func (s *Store) ListDesignPayments(context.Context) ([]core.DesignPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.DesignPayment(nil), s.snap.DesignPayments...), nil
}

func (s *Store) ListEmployees(context.Context) ([]core.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Employee(nil), s.snap.Employees...), nil
}

// CurrentRates returns the latest rates with the last rate of an earlier day
// as PreviousPrimary, unless the seed set one explicitly.
func (s *Store) CurrentRates(context.Context) (core.ExchangeRates, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.rates) == 0 {
		return core.ExchangeRates{}, ErrNoRates
	}
	cur := s.rates[len(s.rates)-1]
	if !cur.PreviousPrimary.IsZero() {
		return cur, nil
	}
	cur.PreviousPrimary = cur.Primary
	day := cur.AsOf.Format("2006-01-02")
	for i := len(s.rates) - 2; i >= 0; i-- {
		if s.rates[i].AsOf.Format("2006-01-02") < day {
			cur.PreviousPrimary = s.rates[i].Primary
			break
		}
	}
	return cur, nil
}

func (s *Store) SaveRates(_ context.Context, r core.ExchangeRates) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rates = append(s.rates, r)
	return nil
}

// SaveOrders replaces orders with the same ID and appends the rest.
func (s *Store) SaveOrders(_ context.Context, orders []core.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Orders = upsert(s.snap.Orders, orders, func(o core.Order) string { return o.ID })
	return nil
}

func (s *Store) SaveExpenses(_ context.Context, exps []core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Expenses = upsert(s.snap.Expenses, exps, func(e core.Expense) string { return e.ID })
	return nil
}

func (s *Store) SavePayroll(_ context.Context, pay []core.PayrollPayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Payroll = upsert(s.snap.Payroll, pay, func(p core.PayrollPayment) string { return p.ID })
	return nil
}

func (s *Store) SaveDesignPayments(_ context.Context, pay []core.DesignPayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.DesignPayments = upsert(s.snap.DesignPayments, pay, func(p core.DesignPayment) string { return p.ID })
	return nil
}

func (s *Store) SaveEmployees(_ context.Context, emps []core.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Employees = upsert(s.snap.Employees, emps, func(e core.Employee) string { return e.ID })
	return nil
}

// upsert replaces records by key, appending unknown or keyless ones.
func upsert[T any](dst, src []T, key func(T) string) []T {
	idx := make(map[string]int, len(dst))
	for i, v := range dst {
		if k := key(v); k != "" {
			idx[k] = i
		}
	}
	for _, v := range src {
		k := key(v)
		if i, ok := idx[k]; ok && k != "" {
			dst[i] = v
			continue
		}
		if k != "" {
			idx[k] = len(dst)
		}
		dst = append(dst, v)
	}
	return dst
}
