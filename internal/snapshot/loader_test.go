package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taller/internal/core"
)

type fakeSource struct {
	failOrders bool
	failRates  bool
	block      bool
}

var errDown = errors.New("source down")

func (f fakeSource) ListOrders(ctx context.Context) ([]core.Order, error) {
	if f.failOrders {
		return nil, errDown
	}
	return []core.Order{{ID: "o1"}}, nil
}

func (f fakeSource) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return []core.Expense{{ID: "e1"}, {ID: "e2"}}, nil
}

func (f fakeSource) ListPayroll(ctx context.Context) ([]core.PayrollPayment, error) {
	return []core.PayrollPayment{{ID: "n1"}}, nil
}

func (f fakeSource) ListDesignPayments(ctx context.Context) ([]core.DesignPayment, error) {
	return nil, nil
}

func (f fakeSource) ListEmployees(ctx context.Context) ([]core.Employee, error) {
	return []core.Employee{{ID: "emp1", Active: true}}, nil
}

func (f fakeSource) CurrentRates(ctx context.Context) (core.ExchangeRates, error) {
	r := core.ExchangeRates{Primary: decimal.NewFromInt(40)}
	if f.failRates {
		return r, errDown
	}
	return r, nil
}

func fixedClock() time.Time { return time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC) }

func TestLoadComplete(t *testing.T) {
	snap := NewLoader(fakeSource{}, WithClock(fixedClock)).Load(context.Background())

	assert.Empty(t, snap.Stale)
	assert.Len(t, snap.Orders, 1)
	assert.Len(t, snap.Expenses, 2)
	assert.Len(t, snap.Payroll, 1)
	assert.Len(t, snap.Employees, 1)
	assert.True(t, snap.Rates.Primary.Equal(decimal.NewFromInt(40)))
	assert.Equal(t, fixedClock(), snap.FetchedAt)
}

func TestLoadPartialFailure(t *testing.T) {
	snap := NewLoader(fakeSource{failOrders: true, failRates: true}).Load(context.Background())

	require.Equal(t, []string{core.CollectionOrders, core.CollectionRates}, snap.Stale)
	assert.Empty(t, snap.Orders)
	assert.Len(t, snap.Expenses, 2, "siblings of a failed collection still load")
	assert.True(t, snap.Rates.Primary.Equal(decimal.NewFromInt(40)), "last-known rates are kept")
}

func TestLoadTimeout(t *testing.T) {
	snap := NewLoader(fakeSource{block: true}, WithTimeout(20*time.Millisecond)).Load(context.Background())

	assert.Equal(t, []string{core.CollectionExpenses}, snap.Stale)
	assert.Len(t, snap.Orders, 1)
}

func TestWithRatesOverridesSource(t *testing.T) {
	snap := NewLoader(fakeSource{failRates: true}, WithRates(fakeSource{})).Load(context.Background())
	assert.Empty(t, snap.Stale)
}
