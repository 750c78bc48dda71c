package classify

import (
	"strings"

	"taller/internal/core"
)

// Reserved name prefixes that mark a recurring service payment.
var serviceMarkers = []string{"[SERVICE PAYMENT]", "[PAGO SERVICIO]"}

// ExpenseClass is the explainable result of classifying one expense.
type ExpenseClass struct {
	Kind        core.ExpenseKind `json:"kind"`
	Department  core.Division    `json:"department"`
	Source      Source           `json:"source"`
	Keyword     string           `json:"keyword,omitempty"`
	NeedsReview bool             `json:"needs_review"`
}

// ExpenseClassifier separates fixed and payroll expenses from supplies and
// assigns supplies to a department.
type ExpenseClassifier struct {
	types       Table
	tags        Table
	departments Table
}

func NewExpenseClassifier(t Tables) *ExpenseClassifier {
	return &ExpenseClassifier{types: t.ExpenseTypes, tags: t.ServiceTags, departments: t.Departments}
}

func (c *ExpenseClassifier) Classify(e core.Expense) ExpenseClass {
	name := strings.ToUpper(strings.TrimSpace(e.Name))
	for _, m := range serviceMarkers {
		if strings.HasPrefix(name, m) {
			return ExpenseClass{Kind: core.KindFixed, Department: core.DivisionGeneral, Source: SourceMarker, Keyword: m}
		}
	}
	if label, kw, ok := c.types.Match(e.Type); ok {
		return ExpenseClass{Kind: core.ExpenseKind(label), Department: core.DivisionGeneral, Source: SourceTag, Keyword: kw}
	}

	out := ExpenseClass{Kind: core.KindSupply}
	if dept, ok := c.explicitDepartment(e.Department); ok {
		out.Department, out.Source = dept, SourceTag
		return out
	}
	if label, kw, ok := c.departments.Match(e.Name + " " + e.Description); ok {
		out.Department, out.Source, out.Keyword = core.Division(label), SourceKeyword, kw
		return out
	}
	out.Department, out.Source, out.NeedsReview = core.DivisionGeneral, SourceNone, true
	return out
}

// explicitDepartment maps a department tag. Design or general tags are an
// explicit general assignment, not a missing one.
func (c *ExpenseClassifier) explicitDepartment(tag string) (core.Division, bool) {
	f := Fold(tag)
	if f == "" {
		return "", false
	}
	if f == "general" {
		return core.DivisionGeneral, true
	}
	label, _, ok := c.tags.MatchExact(tag)
	if !ok {
		return "", false
	}
	switch core.ServiceDomain(label) {
	case core.Printing:
		return core.DivisionPrinting, true
	case core.LaserCutting:
		return core.DivisionLaser, true
	}
	return core.DivisionGeneral, true
}
