package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"taller/internal/core"
)

func TestNewFromFilesSeeds(t *testing.T) {
	dir := t.TempDir()
	mustWrite := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	mustWrite(OrdersFile, `[{"id":"o1","number":7,"client":{"name":"Ana"},"date":"2025-03-05","total":"50","amount_paid":20,
		"items":[{"id":"i1","name":"Banner","quantity":"1","unit_price":"50"}],
		"payments":[{"id":"p1","amount":"20","date":"not a date","method":"zelle"}]}]`)
	mustWrite(EmployeesFile, `[{"id":"emp1","name":"Pedro","role":"impresor","active":true}]`)
	mustWrite(RatesFile, `{"primary":"40","secondary":"43","as_of":"2025-03-14T09:00:00Z"}`)

	s, err := NewFromFiles(dir)
	if err != nil {
		t.Fatalf("NewFromFiles() error = %v", err)
	}
	ctx := context.Background()

	orders, _ := s.ListOrders(ctx)
	if len(orders) != 1 || orders[0].Number != 7 || !orders[0].AmountPaid.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("unexpected orders %+v", orders)
	}
	if orders[0].Payments[0].Date.Valid() {
		t.Errorf("malformed payment date should load as zero date")
	}
	exps, _ := s.ListExpenses(ctx)
	if len(exps) != 0 {
		t.Errorf("missing seed file should leave expenses empty, got %d", len(exps))
	}
	rates, err := s.CurrentRates(ctx)
	if err != nil || !rates.PreviousPrimary.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("unexpected rates %+v err=%v", rates, err)
	}
}

func TestNewFromFilesMalformed(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ExpensesFile), []byte(`{not json`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFromFiles(dir); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestListReturnsCopies(t *testing.T) {
	s := New(core.Snapshot{Orders: []core.Order{{ID: "o1", Items: []core.Item{{ID: "i1", Name: "Vinil"}}}}})
	ctx := context.Background()

	got, _ := s.ListOrders(ctx)
	got[0].Items[0].Name = "changed"

	again, _ := s.ListOrders(ctx)
	if again[0].Items[0].Name != "Vinil" {
		t.Fatalf("store was mutated through a listed order")
	}
}

func TestSaveUpserts(t *testing.T) {
	s := New(core.Snapshot{Expenses: []core.Expense{{ID: "e1", Name: "Tinta"}}})
	ctx := context.Background()

	if err := s.SaveExpenses(ctx, []core.Expense{{ID: "e1", Name: "Tinta cian"}, {ID: "e2", Name: "Lija"}}); err != nil {
		t.Fatal(err)
	}
	exps, _ := s.ListExpenses(ctx)
	if len(exps) != 2 || exps[0].Name != "Tinta cian" {
		t.Fatalf("unexpected expenses %+v", exps)
	}
}

func TestRatesHistory(t *testing.T) {
	s := New(core.Snapshot{})
	ctx := context.Background()
	if _, err := s.CurrentRates(ctx); !errors.Is(err, ErrNoRates) {
		t.Fatalf("expected ErrNoRates, got %v", err)
	}

	day := core.NewDate(2025, 3, 13).Time
	_ = s.SaveRates(ctx, core.ExchangeRates{Primary: decimal.NewFromInt(38), AsOf: day})
	_ = s.SaveRates(ctx, core.ExchangeRates{Primary: decimal.NewFromInt(39), AsOf: day.Add(2 * time.Hour)})
	_ = s.SaveRates(ctx, core.ExchangeRates{Primary: decimal.NewFromInt(40), AsOf: day.AddDate(0, 0, 1)})

	r, err := s.CurrentRates(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !r.Primary.Equal(decimal.NewFromInt(40)) || !r.PreviousPrimary.Equal(decimal.NewFromInt(39)) {
		t.Fatalf("unexpected rates %+v", r)
	}
}
