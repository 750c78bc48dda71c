// Package classify maps loosely tagged records onto service domains,
// expense kinds, departments and wallets using ordered keyword tables.
package classify

import (
	"fmt"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// DefaultVersion identifies the built-in tables.
const DefaultVersion = "2024.1"

// Rule assigns Label to text containing any of Keywords.
type Rule struct {
	Label    string   `yaml:"label" json:"label"`
	Keywords []string `yaml:"keywords" json:"keywords"`
}

// Table is evaluated in slice order; the first matching rule wins.
type Table []Rule

// Tables is the full, versioned keyword configuration.
type Tables struct {
	Version      string `yaml:"version" json:"version"`
	ServiceTags  Table  `yaml:"service_tags" json:"service_tags"`
	Services     Table  `yaml:"services" json:"services"`
	ExpenseTypes Table  `yaml:"expense_types" json:"expense_types"`
	Departments  Table  `yaml:"departments" json:"departments"`
	Roles        Table  `yaml:"roles" json:"roles"`
	Wallets      Table  `yaml:"wallets" json:"wallets"`
}

// DefaultTables returns the built-in tables. Design tags precede the others
// and laser keywords precede print keywords; both orders are tie-breaks.
func DefaultTables() Tables {
	return Tables{
		Version: DefaultVersion,
		ServiceTags: Table{
			{Label: "design", Keywords: []string{"diseno", "design", "disenos"}},
			{Label: "printing", Keywords: []string{"impresion", "printing", "print", "imprenta", "impresiones"}},
			{Label: "laser_cutting", Keywords: []string{"laser", "corte laser", "laser_cutting", "laser cutting", "grabado", "corte"}},
		},
		Services: Table{
			{Label: "laser_cutting", Keywords: []string{
				"madera", "mdf", "acrilico", "grabado", "grabar", "trofeo", "llavero", "letras corporeas",
				"letra corporea", "medalla", "placa", "corte laser", "laser", "wood", "acrylic", "engrav",
				"trophy", "trophies", "keychain", "signage", "plaque",
			}},
			{Label: "printing", Keywords: []string{
				"vinil", "vinilo", "banner", "pendon", "laminado", "laminacion", "sticker", "etiqueta",
				"afiche", "poster", "calcomania", "lona", "volante", "tarjeta", "vinyl", "lamination",
				"decal", "flyer", "print",
			}},
		},
		ExpenseTypes: Table{
			{Label: "fixed", Keywords: []string{"fijo", "fija", "fixed", "servicio", "public service", "public-service", "alquiler"}},
			{Label: "payroll", Keywords: []string{"nomina", "payroll", "sueldo", "salario"}},
		},
		Departments: Table{
			{Label: "printing", Keywords: []string{"tinta", "ink", "vinil", "vinyl", "banner", "papel", "paper", "laminado", "laminate", "lona", "toner"}},
			{Label: "laser_cutting", Keywords: []string{"mdf", "acrilico", "acrylic", "madera", "wood", "laser", "pintura", "paint", "thinner"}},
		},
		Roles: Table{
			{Label: "design", Keywords: []string{"disenador", "disenadora", "diseno", "design"}},
			{Label: "laser_cutting", Keywords: []string{"laser", "corte", "grabado", "cnc", "carpinter"}},
			{Label: "printing", Keywords: []string{"impresor", "impresion", "print", "plotter", "instalador", "rotulista"}},
		},
		Wallets: Table{
			{Label: "crypto_usdt", Keywords: []string{"usdt", "binance", "tether", "cripto", "crypto"}},
			{Label: "remittance_usd", Keywords: []string{"zelle", "remesa", "paypal", "western union", "zinli"}},
			{Label: "bank_ves", Keywords: []string{"pago movil", "transferencia", "bs", "bolivar", "ves", "punto de venta", "pos", "biopago"}},
		},
	}
}

// LoadTables returns the defaults overridden by any section present in the
// YAML file at path. An empty path yields the defaults.
func LoadTables(path string) (Tables, error) {
	t := DefaultTables()
	if path == "" {
		return t, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return t, fmt.Errorf("read tables %s: %w", path, err)
	}
	var over Tables
	if err := yaml.Unmarshal(b, &over); err != nil {
		return t, fmt.Errorf("parse tables %s: %w", path, err)
	}
	if over.Version != "" {
		t.Version = over.Version
	}
	for _, s := range []struct{ dst, src *Table }{
		{&t.ServiceTags, &over.ServiceTags},
		{&t.Services, &over.Services},
		{&t.ExpenseTypes, &over.ExpenseTypes},
		{&t.Departments, &over.Departments},
		{&t.Roles, &over.Roles},
		{&t.Wallets, &over.Wallets},
	} {
		if len(*s.src) > 0 {
			*s.dst = *s.src
		}
	}
	return t, nil
}

// Match returns the first rule with a keyword starting a word of text.
func (t Table) Match(text string) (label, keyword string, ok bool) {
	folded := " " + Fold(text) + " "
	if strings.TrimSpace(folded) == "" {
		return "", "", false
	}
	for _, r := range t {
		for _, kw := range r.Keywords {
			k := Fold(kw)
			if k != "" && strings.Contains(folded, " "+k) {
				return r.Label, kw, true
			}
		}
	}
	return "", "", false
}

// MatchExact returns the first rule with a keyword equal to the folded text.
func (t Table) MatchExact(text string) (label, keyword string, ok bool) {
	folded := Fold(text)
	if folded == "" {
		return "", "", false
	}
	for _, r := range t {
		for _, kw := range r.Keywords {
			if Fold(kw) == folded {
				return r.Label, kw, true
			}
		}
	}
	return "", "", false
}

// Fold lower-cases s, strips accents and reduces every run of
// non-alphanumerics to a single space.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(out) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space && b.Len() > 0 {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}
