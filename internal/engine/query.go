package engine

import (
	"fmt"
	"strings"
	"time"

	"taller/internal/core"
)

// ParseQuery builds a query from request-style parameters. An empty month
// means the month of now; an empty division means general. now is also the
// aging reference, converted to loc.
func ParseQuery(month string, week int, division string, now time.Time, loc *time.Location) (Query, error) {
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)
	q := Query{Ref: now, Week: week, Division: core.DivisionGeneral, Now: now}

	if month = strings.TrimSpace(month); month != "" {
		m, err := time.ParseInLocation("2006-01", month, loc)
		if err != nil {
			return Query{}, fmt.Errorf("month %q: %w", month, core.ErrInvalidDate)
		}
		if m.Year() != now.Year() || m.Month() != now.Month() {
			q.Ref = m
		}
	}
	if division = strings.TrimSpace(division); division != "" {
		d, err := core.ParseDivision(division)
		if err != nil {
			return Query{}, err
		}
		q.Division = d
	}
	if err := q.Validate(); err != nil {
		return Query{}, err
	}
	return q, nil
}

// Month returns the queried month as YYYY-MM.
func (q Query) Month() string {
	return q.Ref.Format("2006-01")
}
