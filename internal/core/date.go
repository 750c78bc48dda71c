package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Date is a calendar day. The zero value marks a source date that could not
// be parsed; such records are kept but left out of period aggregates.
type Date struct {
	time.Time
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts ISO dates, RFC3339 timestamps and day-first local dates.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, fmt.Errorf("parse date: empty: %w", ErrInvalidDate)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Date{Time: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}, nil
		}
	}
	return Date{}, fmt.Errorf("parse date %q: %w", s, ErrInvalidDate)
}

// LenientDate returns the parsed date or the zero Date.
func LenientDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		return Date{}
	}
	return d
}

// Valid reports whether the date was parsed successfully.
func (d Date) Valid() bool {
	return !d.IsZero()
}

// String renders the date as YYYY-MM-DD, or "" when malformed.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format("2006-01-02")
}

// Within reports whether d falls in [from, to).
func (d Date) Within(from, to time.Time) bool {
	if d.IsZero() {
		return false
	}
	return !d.Before(from) && d.Before(to)
}

// DaysUntil returns the calendar days from d to the date of now, taken in
// now's own location.
func (d Date) DaysUntil(now time.Time) int {
	y, m, day := now.Date()
	today := time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
	return int(today.Sub(d.Time).Hours() / 24)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON never fails on a bad date; it leaves d as the zero Date.
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		*d = Date{}
		return nil
	}
	*d = LenientDate(s)
	return nil
}
