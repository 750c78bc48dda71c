// Package attribution splits an order's value between the printing and
// laser-cutting divisions.
package attribution

import (
	"github.com/shopspring/decimal"

	"taller/internal/classify"
	"taller/internal/core"
)

// Attribution is the fractional split of one order. Printing+Laser is 1.
type Attribution struct {
	OrderID     string          `json:"order_id"`
	Printing    decimal.Decimal `json:"printing"`
	Laser       decimal.Decimal `json:"laser"`
	SumPrinting decimal.Decimal `json:"sum_printing"`
	SumLaser    decimal.Decimal `json:"sum_laser"`
	SumOther    decimal.Decimal `json:"sum_other"`
	// Defaulted is set when no value was classified and everything went to printing.
	Defaulted bool `json:"defaulted"`
}

// Classifier is the subset of the service classifier used here.
type Classifier interface {
	Classify(core.Item) classify.ItemClass
}

// Attribute sums item subtotals per domain and folds design and unclassified
// value into the two divisions in proportion to their classified sums.
// Negative subtotals, such as discount lines, count as zero so both shares
// stay in [0, 1].
func Attribute(o core.Order, c Classifier) Attribution {
	a := Attribution{OrderID: o.ID}
	for _, it := range o.Items {
		v := it.Subtotal()
		if v.IsNegative() {
			v = decimal.Zero
		}
		switch c.Classify(it).Domain {
		case core.Printing:
			a.SumPrinting = a.SumPrinting.Add(v)
		case core.LaserCutting:
			a.SumLaser = a.SumLaser.Add(v)
		default:
			a.SumOther = a.SumOther.Add(v)
		}
	}

	classified := a.SumPrinting.Add(a.SumLaser)
	if !classified.IsPositive() {
		a.Printing, a.Laser, a.Defaulted = decimal.NewFromInt(1), decimal.Zero, true
		return a
	}
	printing := a.SumPrinting.Add(a.SumOther.Mul(a.SumPrinting).Div(classified))
	total := classified.Add(a.SumOther)
	if !total.IsPositive() {
		a.Printing, a.Laser, a.Defaulted = decimal.NewFromInt(1), decimal.Zero, true
		return a
	}
	a.Printing = printing.Div(total)
	a.Laser = decimal.NewFromInt(1).Sub(a.Printing)
	return a
}

// All attributes every order, keyed by order ID.
func All(orders []core.Order, c Classifier) map[string]Attribution {
	out := make(map[string]Attribution, len(orders))
	for _, o := range orders {
		out[o.ID] = Attribute(o, c)
	}
	return out
}

// Share returns the fraction of the order credited to div.
func (a Attribution) Share(div core.Division) decimal.Decimal {
	switch div {
	case core.DivisionPrinting:
		return a.Printing
	case core.DivisionLaser:
		return a.Laser
	case core.DivisionGeneral:
		return decimal.NewFromInt(1)
	}
	return decimal.Zero
}

// Scale applies the division share to an amount tied to the order.
func (a Attribution) Scale(amount decimal.Decimal, div core.Division) decimal.Decimal {
	if div == core.DivisionGeneral {
		return amount
	}
	return amount.Mul(a.Share(div))
}
