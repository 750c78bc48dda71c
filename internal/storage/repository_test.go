package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"taller/internal/core"
	"taller/internal/log"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "taller.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestSaveAndListOrders(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	orders := []core.Order{
		{
			ID: "o2", Number: 2, Client: core.Client{Name: "Luis"}, Date: core.NewDate(2025, 3, 5),
			Total: dec("40"), AmountPaid: dec("10.5"),
			Items: []core.Item{
				{ID: "i1", Name: "Banner", Quantity: dec("2"), UnitPrice: dec("5"), Dimensions: &core.Dimensions{WidthM: dec("1"), HeightM: dec("2")}},
				{ID: "i2", Name: "Corte", ServiceType: "laser", Quantity: dec("1"), UnitPrice: dec("0.5"), ElapsedMinutes: dec("40")},
			},
			Payments: []core.Payment{{ID: "p1", Amount: dec("10.5"), Date: core.NewDate(2025, 3, 6), MethodLabel: "pago movil", RateUsed: dec("39.5")}},
		},
		{ID: "o1", Number: 1, Client: core.Client{Name: "Ana"}, Total: dec("15"), Cancelled: true},
	}
	if err := repo.SaveOrders(ctx, orders); err != nil {
		t.Fatalf("save orders: %v", err)
	}
	// Saving again replaces items and payments instead of duplicating them.
	if err := repo.SaveOrders(ctx, orders); err != nil {
		t.Fatalf("save orders again: %v", err)
	}

	got, err := repo.ListOrders(ctx)
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(got))
	}
	if got[0].ID != "o1" || got[0].Date.Valid() || !got[0].Cancelled {
		t.Fatalf("expected undated cancelled o1 first, got %+v", got[0])
	}
	o := got[1]
	if len(o.Items) != 2 || len(o.Payments) != 1 {
		t.Fatalf("expected 2 items and 1 payment, got %d and %d", len(o.Items), len(o.Payments))
	}
	if o.Items[0].Dimensions == nil || !o.Items[0].Subtotal().Equal(dec("20")) {
		t.Fatalf("expected area priced item worth 20, got %s", o.Items[0].Subtotal())
	}
	if !o.Items[1].Subtotal().Equal(dec("20")) {
		t.Fatalf("expected time priced item worth 20, got %s", o.Items[1].Subtotal())
	}
	if p := o.Payments[0]; !p.RateUsed.Equal(dec("39.5")) || p.Date.String() != "2025-03-06" || p.OrderID != "o2" {
		t.Fatalf("unexpected payment %+v", p)
	}
}

func TestInvalidStoredAmountLogsAsStorage(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Level: slog.LevelWarn, Format: log.FormatJSON, Output: &buf})
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "taller.db"), WithLogger(logger))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	ctx := context.Background()

	if err := repo.SaveOrders(ctx, []core.Order{{ID: "o1", Number: 1, Total: dec("40")}}); err != nil {
		t.Fatalf("save orders: %v", err)
	}
	if _, err := repo.db.ExecContext(ctx, `UPDATE orders SET total = 'cuarenta' WHERE id = 'o1'`); err != nil {
		t.Fatalf("corrupt total: %v", err)
	}

	got, err := repo.ListOrders(ctx)
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(got) != 1 || !got[0].Total.IsZero() {
		t.Fatalf("expected one order with zero total, got %+v", got)
	}

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected a single JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["component"] != log.ComponentStorage {
		t.Fatalf("expected component %q, got %v", log.ComponentStorage, entry["component"])
	}
	if entry["column"] != "orders.total" || entry["id"] != "o1" {
		t.Fatalf("unexpected log fields %v", entry)
	}
}

func TestSaveAndListRecords(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.SaveExpenses(ctx, []core.Expense{
		{Date: core.NewDate(2025, 3, 2), Name: "Tinta", Amount: dec("12.3"), Department: "impresion", MethodLabel: "efectivo"},
		{ID: "e-bad", Name: "sin fecha", Amount: dec("1")},
	}); err != nil {
		t.Fatalf("save expenses: %v", err)
	}
	if err := repo.SaveEmployees(ctx, []core.Employee{{ID: "emp1", Name: "Pedro", RoleLabel: "impresor", Active: true}}); err != nil {
		t.Fatalf("save employees: %v", err)
	}
	if err := repo.SavePayroll(ctx, []core.PayrollPayment{{ID: "n1", EmployeeID: "emp1", Date: core.NewDate(2025, 3, 15), Amount: dec("200")}}); err != nil {
		t.Fatalf("save payroll: %v", err)
	}
	if err := repo.SaveDesignPayments(ctx, []core.DesignPayment{{ID: "d1", StaffID: "emp3", Date: core.NewDate(2025, 3, 20), Amount: dec("25")}}); err != nil {
		t.Fatalf("save design payments: %v", err)
	}

	exps, err := repo.ListExpenses(ctx)
	if err != nil || len(exps) != 2 {
		t.Fatalf("expected 2 expenses, got %d (err=%v)", len(exps), err)
	}
	if exps[0].ID != "e-bad" || exps[0].Date.Valid() {
		t.Fatalf("expected malformed date first, got %+v", exps[0])
	}
	if exps[1].ID == "" || !exps[1].Amount.Equal(dec("12.3")) {
		t.Fatalf("expected generated id and amount 12.3, got %+v", exps[1])
	}

	emps, err := repo.ListEmployees(ctx)
	if err != nil || len(emps) != 1 || !emps[0].Active {
		t.Fatalf("unexpected employees %+v (err=%v)", emps, err)
	}
	pay, err := repo.ListPayroll(ctx)
	if err != nil || len(pay) != 1 || !pay[0].Amount.Equal(dec("200")) {
		t.Fatalf("unexpected payroll %+v (err=%v)", pay, err)
	}
	dps, err := repo.ListDesignPayments(ctx)
	if err != nil || len(dps) != 1 || dps[0].StaffID != "emp3" {
		t.Fatalf("unexpected design payments %+v (err=%v)", dps, err)
	}
}

func TestRates(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.CurrentRates(ctx); !errors.Is(err, ErrNoRates) {
		t.Fatalf("expected ErrNoRates, got %v", err)
	}

	yesterday := time.Date(2025, 3, 13, 10, 0, 0, 0, time.UTC)
	today := yesterday.Add(24 * time.Hour)
	for _, r := range []core.ExchangeRates{
		{Primary: dec("37"), AsOf: yesterday.Add(-time.Hour)},
		{Primary: dec("38"), Secondary: dec("41"), AsOf: yesterday},
		{Primary: dec("40"), Secondary: dec("43"), AsOf: today, Source: "test"},
	} {
		if err := repo.SaveRates(ctx, r); err != nil {
			t.Fatalf("save rates: %v", err)
		}
	}

	got, err := repo.CurrentRates(ctx)
	if err != nil {
		t.Fatalf("current rates: %v", err)
	}
	if !got.Primary.Equal(dec("40")) || !got.Secondary.Equal(dec("43")) || !got.PreviousPrimary.Equal(dec("38")) {
		t.Fatalf("unexpected rates %+v", got)
	}
	if got.Source != "test" {
		t.Fatalf("expected source test, got %q", got.Source)
	}
}

func TestReports(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.LatestReport(ctx, "2025-03", 0, "general"); !errors.Is(err, ErrNoReport) {
		t.Fatalf("expected ErrNoReport, got %v", err)
	}

	base := time.Date(2025, 3, 20, 8, 0, 0, 0, time.UTC)
	for i, payload := range []string{`{"v":1}`, `{"v":2}`} {
		if _, err := repo.SaveReport(ctx, Report{
			Month: "2025-03", Division: "general", Reason: "test",
			Payload: []byte(payload), ComputedAt: base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("save report: %v", err)
		}
	}

	rep, err := repo.LatestReport(ctx, "2025-03", 0, "general")
	if err != nil {
		t.Fatalf("latest report: %v", err)
	}
	if string(rep.Payload) != `{"v":2}` {
		t.Fatalf("expected latest payload, got %s", rep.Payload)
	}

	n, err := repo.PruneReports(ctx, base.Add(30*time.Second))
	if err != nil || n != 1 {
		t.Fatalf("expected 1 pruned report, got %d (err=%v)", n, err)
	}
}

func TestSchemaVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v.db")
	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	defer repo.Close()

	v, dirty, err := SchemaVersion(path)
	if err != nil || v != 1 || dirty {
		t.Fatalf("expected clean version 1, got %d dirty=%v err=%v", v, dirty, err)
	}
}
