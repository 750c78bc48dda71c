package attribution

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taller/internal/classify"
	"taller/internal/core"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func item(name, price string) core.Item {
	return core.Item{Name: name, Quantity: dec("1"), UnitPrice: dec(price)}
}

func TestAttributeProportionalSplit(t *testing.T) {
	c := classify.NewServiceClassifier(classify.DefaultTables())
	o := core.Order{ID: "o1", Total: dec("100"), Items: []core.Item{
		item("Banner 2x1", "70"),
		item("Trofeo acrílico", "30"),
	}}

	a := Attribute(o, c)
	assert.True(t, a.Printing.Equal(dec("0.7")), "printing %s", a.Printing)
	assert.True(t, a.Laser.Equal(dec("0.3")), "laser %s", a.Laser)
	assert.False(t, a.Defaulted)

	assert.True(t, a.Scale(dec("50"), core.DivisionPrinting).Equal(dec("35")))
	assert.True(t, a.Scale(dec("50"), core.DivisionLaser).Equal(dec("15")))
	assert.True(t, a.Scale(dec("50"), core.DivisionGeneral).Equal(dec("50")))
	assert.True(t, a.Scale(dec("50"), core.DivisionDesign).IsZero())
}

func TestAttributeRedistributesUnclassified(t *testing.T) {
	c := classify.NewServiceClassifier(classify.DefaultTables())
	o := core.Order{ID: "o2", Items: []core.Item{
		item("vinil", "30"),
		item("grabado", "10"),
		item("asesoria", "40"),
		{ServiceType: "diseño", Name: "logo", Quantity: dec("1"), UnitPrice: dec("20")},
	}}

	a := Attribute(o, c)
	assert.True(t, a.SumOther.Equal(dec("60")))
	assert.True(t, a.Printing.Equal(dec("0.75")), "printing %s", a.Printing)
	assert.True(t, a.Laser.Equal(dec("0.25")), "laser %s", a.Laser)
}

func TestAttributeDefaultsToPrinting(t *testing.T) {
	c := classify.NewServiceClassifier(classify.DefaultTables())
	cases := map[string]core.Order{
		"all other":  {ID: "o3", Total: dec("100"), Items: []core.Item{item("asesoria", "60"), item("instalacion", "40")}},
		"no items":   {ID: "o4", Total: dec("100")},
		"zero value": {ID: "o5", Items: []core.Item{item("banner", "0")}},
	}
	for name, o := range cases {
		t.Run(name, func(t *testing.T) {
			a := Attribute(o, c)
			assert.True(t, a.Defaulted)
			assert.True(t, a.Printing.Equal(dec("1")))
			assert.True(t, a.Laser.IsZero())
		})
	}
}

func TestAttributeSharesSumToOne(t *testing.T) {
	c := classify.NewServiceClassifier(classify.DefaultTables())
	prices := [][3]string{
		{"1", "2", "0"}, {"7", "3", "11"}, {"0.01", "999", "3.33"}, {"13", "0", "1"},
		{"50", "50", "-100"}, {"50", "-80", "10"}, {"-5", "-5", "-5"}, {"0", "0", "-1"},
	}
	for _, p := range prices {
		o := core.Order{Items: []core.Item{item("banner", p[0]), item("mdf", p[1]), item("otro", p[2])}}
		a := Attribute(o, c)
		require.True(t, a.Printing.Add(a.Laser).Equal(dec("1")), "shares %s + %s", a.Printing, a.Laser)
		assert.False(t, a.Printing.IsNegative() || a.Laser.IsNegative(), "prices %v", p)
	}
}

func TestAttributeIgnoresDiscountLines(t *testing.T) {
	c := classify.NewServiceClassifier(classify.DefaultTables())
	o := core.Order{ID: "o6", Items: []core.Item{
		item("banner", "50"),
		item("llavero mdf", "50"),
		item("descuento cortesia", "-100"),
	}}

	a := Attribute(o, c)
	assert.False(t, a.Defaulted)
	assert.True(t, a.Printing.Equal(dec("0.5")), "printing %s", a.Printing)
	assert.True(t, a.Laser.Equal(dec("0.5")), "laser %s", a.Laser)

	only := Attribute(core.Order{ID: "o7", Items: []core.Item{item("banner", "-20")}}, c)
	assert.True(t, only.Defaulted)
	assert.True(t, only.Printing.Equal(dec("1")))
}
