// Package debt ages unpaid order balances and rolls them up per client.
package debt

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"taller/internal/attribution"
	"taller/internal/core"
)

// OverdueAfterDays is the age past which a balance is overdue.
const OverdueAfterDays = 30

// NoClient groups orders without a client name.
const NoClient = "sin cliente"

type Bucket string

const (
	Current Bucket = "current"
	Overdue Bucket = "overdue"
)

type OrderDebt struct {
	OrderID string          `json:"order_id"`
	Number  int             `json:"number"`
	Date    string          `json:"date"`
	AgeDays int             `json:"age_days"`
	Bucket  Bucket          `json:"bucket"`
	Amount  decimal.Decimal `json:"amount"`
	// UnknownAge marks orders whose date could not be parsed.
	UnknownAge bool `json:"unknown_age,omitempty"`

	date time.Time
}

type ClientDebt struct {
	Key    string          `json:"key"`
	Name   string          `json:"name"`
	Total  decimal.Decimal `json:"total"`
	Orders []OrderDebt     `json:"orders"`
}

type Report struct {
	CurrentTotal decimal.Decimal `json:"current_total"`
	OverdueTotal decimal.Decimal `json:"overdue_total"`
	Total        decimal.Decimal `json:"total"`
	Clients      []ClientDebt    `json:"clients"`
}

// ClientKey normalizes a client name for grouping.
func ClientKey(name string) string {
	k := strings.Join(strings.Fields(strings.ToLower(name)), " ")
	if k == "" {
		return NoClient
	}
	return k
}

// Compute ages every open, non-cancelled order as of now. Orders whose
// attribution is missing count fully toward printing.
func Compute(orders []core.Order, attrs map[string]attribution.Attribution, div core.Division, now time.Time) Report {
	r := Report{}
	byKey := map[string]*ClientDebt{}
	var keys []string

	for _, o := range orders {
		if o.Cancelled {
			continue
		}
		amt := o.Outstanding()
		if amt.LessThanOrEqual(core.Epsilon()) {
			continue
		}
		if div != core.DivisionGeneral {
			a, ok := attrs[o.ID]
			if !ok {
				a = attribution.Attribution{Printing: decimal.NewFromInt(1), Defaulted: true}
			}
			amt = a.Scale(amt, div)
			if amt.LessThanOrEqual(core.Epsilon()) {
				continue
			}
		}

		od := OrderDebt{OrderID: o.ID, Number: o.Number, Date: o.Date.String(), Amount: amt, date: o.Date.Time}
		if o.Date.Valid() {
			od.AgeDays = o.Date.DaysUntil(now)
		} else {
			od.UnknownAge = true
		}
		if od.UnknownAge || od.AgeDays > OverdueAfterDays {
			od.Bucket = Overdue
			r.OverdueTotal = r.OverdueTotal.Add(amt)
		} else {
			od.Bucket = Current
			r.CurrentTotal = r.CurrentTotal.Add(amt)
		}

		key := ClientKey(o.Client.Name)
		c, ok := byKey[key]
		if !ok {
			name := strings.TrimSpace(o.Client.Name)
			if name == "" {
				name = NoClient
			}
			c = &ClientDebt{Key: key, Name: name}
			byKey[key] = c
			keys = append(keys, key)
		}
		c.Total = c.Total.Add(amt)
		c.Orders = append(c.Orders, od)
	}

	r.Clients = make([]ClientDebt, 0, len(keys))
	for _, k := range keys {
		c := byKey[k]
		sortOrders(c.Orders)
		r.Clients = append(r.Clients, *c)
		r.Total = r.Total.Add(c.Total)
	}
	sort.SliceStable(r.Clients, func(i, j int) bool {
		if cmp := r.Clients[i].Total.Cmp(r.Clients[j].Total); cmp != 0 {
			return cmp > 0
		}
		return r.Clients[i].Key < r.Clients[j].Key
	})
	return r
}

// Top returns at most n clients with the largest balances.
func (r Report) Top(n int) []ClientDebt {
	if n < 0 || n >= len(r.Clients) {
		return r.Clients
	}
	return r.Clients[:n]
}

// oldest first; unknown dates lead since they are treated as oldest
func sortOrders(ods []OrderDebt) {
	sort.SliceStable(ods, func(i, j int) bool {
		a, b := ods[i], ods[j]
		if a.UnknownAge != b.UnknownAge {
			return a.UnknownAge
		}
		if !a.date.Equal(b.date) {
			return a.date.Before(b.date)
		}
		return a.Number < b.Number
	})
}
