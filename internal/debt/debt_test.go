package debt

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taller/internal/attribution"
	"taller/internal/classify"
	"taller/internal/core"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var now = time.Date(2025, 3, 31, 12, 0, 0, 0, time.UTC)

func daysAgo(n int) core.Date {
	t := now.AddDate(0, 0, -n)
	return core.NewDate(t.Year(), int(t.Month()), t.Day())
}

func TestComputeAging(t *testing.T) {
	orders := []core.Order{
		{ID: "old", Number: 1, Client: core.Client{Name: "Ana"}, Date: daysAgo(45), Total: dec("100"), AmountPaid: dec("80")},
		{ID: "new", Number: 2, Client: core.Client{Name: "Luis"}, Date: daysAgo(10), Total: dec("50"), AmountPaid: dec("30")},
	}
	r := Compute(orders, nil, core.DivisionGeneral, now)

	require.Len(t, r.Clients, 2)
	assert.True(t, r.OverdueTotal.Equal(dec("20")))
	assert.True(t, r.CurrentTotal.Equal(dec("20")))
	assert.True(t, r.Total.Equal(dec("40")))

	for _, c := range r.Clients {
		switch c.Orders[0].OrderID {
		case "old":
			assert.Equal(t, Overdue, c.Orders[0].Bucket)
			assert.Equal(t, 45, c.Orders[0].AgeDays)
		case "new":
			assert.Equal(t, Current, c.Orders[0].Bucket)
		}
	}
}

func TestComputeBoundaryAndSkips(t *testing.T) {
	orders := []core.Order{
		{ID: "edge", Client: core.Client{Name: "A"}, Date: daysAgo(30), Total: dec("10")},
		{ID: "paid", Client: core.Client{Name: "B"}, Date: daysAgo(60), Total: dec("10"), AmountPaid: dec("10")},
		{ID: "overpaid", Client: core.Client{Name: "C"}, Date: daysAgo(60), Total: dec("10"), AmountPaid: dec("15")},
		{ID: "rounding", Client: core.Client{Name: "D"}, Date: daysAgo(60), Total: dec("10"), AmountPaid: dec("9.995")},
		{ID: "cancelled", Client: core.Client{Name: "E"}, Date: daysAgo(60), Total: dec("10"), Cancelled: true},
		{ID: "nodate", Client: core.Client{Name: "F"}, Total: dec("7")},
	}
	r := Compute(orders, nil, core.DivisionGeneral, now)

	require.Len(t, r.Clients, 2)
	assert.True(t, r.CurrentTotal.Equal(dec("10")), "30 days is still current")
	assert.True(t, r.OverdueTotal.Equal(dec("7")), "malformed dates count as overdue")
	for _, c := range r.Clients {
		for _, o := range c.Orders {
			assert.False(t, o.Amount.IsNegative())
			if o.OrderID == "nodate" {
				assert.True(t, o.UnknownAge)
			}
		}
	}
}

func TestComputeClientRollup(t *testing.T) {
	orders := []core.Order{
		{ID: "1", Number: 3, Client: core.Client{Name: "Ana Pérez"}, Date: daysAgo(5), Total: dec("30")},
		{ID: "2", Number: 1, Client: core.Client{Name: "  ana   pérez "}, Date: daysAgo(40), Total: dec("20")},
		{ID: "3", Number: 2, Client: core.Client{Name: "Bruno"}, Date: daysAgo(2), Total: dec("60")},
		{ID: "4", Number: 4, Client: core.Client{Name: ""}, Date: daysAgo(2), Total: dec("5")},
		{ID: "5", Number: 5, Client: core.Client{Name: "Carla"}, Date: daysAgo(2), Total: dec("50")},
	}
	r := Compute(orders, nil, core.DivisionGeneral, now)

	require.Len(t, r.Clients, 4)
	assert.Equal(t, "bruno", r.Clients[0].Key)
	assert.Equal(t, "ana pérez", r.Clients[1].Key)
	assert.Equal(t, "carla", r.Clients[2].Key, "ties break by key")
	assert.Equal(t, NoClient, r.Clients[3].Key)

	ana := r.Clients[1]
	assert.Equal(t, "Ana Pérez", ana.Name)
	require.Len(t, ana.Orders, 2)
	assert.Equal(t, "2", ana.Orders[0].OrderID, "oldest order first")

	sum := decimal.Zero
	for _, c := range r.Clients {
		sum = sum.Add(c.Total)
	}
	assert.True(t, sum.Equal(r.Total))
	assert.Len(t, r.Top(2), 2)
	assert.Len(t, r.Top(10), 4)
}

func TestComputeDivisionScaled(t *testing.T) {
	sc := classify.NewServiceClassifier(classify.DefaultTables())
	orders := []core.Order{{
		ID: "o1", Client: core.Client{Name: "Ana"}, Date: daysAgo(3), Total: dec("100"), AmountPaid: dec("80"),
		Items: []core.Item{
			{Name: "banner", Quantity: dec("1"), UnitPrice: dec("70")},
			{Name: "acrilico", Quantity: dec("1"), UnitPrice: dec("30")},
		},
	}, {
		ID: "o2", Client: core.Client{Name: "Luis"}, Date: daysAgo(3), Total: dec("10"),
		Items: []core.Item{{Name: "vinil", Quantity: dec("1"), UnitPrice: dec("10")}},
	}}
	attrs := attribution.All(orders, sc)

	pr := Compute(orders, attrs, core.DivisionPrinting, now)
	assert.True(t, pr.Total.Equal(dec("24")), "printing debt %s", pr.Total)

	la := Compute(orders, attrs, core.DivisionLaser, now)
	assert.True(t, la.Total.Equal(dec("6")), "laser debt %s", la.Total)
	require.Len(t, la.Clients, 1, "an order with no laser share carries no laser debt")
}

func TestComputeAgesByCalendarDayInLocalZone(t *testing.T) {
	caracas := time.FixedZone("VET", -4*3600)
	orders := []core.Order{
		{ID: "edge", Client: core.Client{Name: "A"}, Date: core.NewDate(2025, 3, 1), Total: dec("10")},
		{ID: "past", Client: core.Client{Name: "B"}, Date: core.NewDate(2025, 2, 28), Total: dec("5")},
	}
	late := time.Date(2025, 3, 31, 22, 0, 0, 0, caracas)
	r := Compute(orders, nil, core.DivisionGeneral, late)

	ages := map[string]int{}
	for _, c := range r.Clients {
		for _, o := range c.Orders {
			ages[o.OrderID] = o.AgeDays
		}
	}
	assert.Equal(t, 30, ages["edge"])
	assert.Equal(t, 31, ages["past"])
	assert.True(t, r.CurrentTotal.Equal(dec("10")))
	assert.True(t, r.OverdueTotal.Equal(dec("5")))
}
