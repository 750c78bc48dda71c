package period

import (
	"time"

	"taller/internal/core"
)

// MaxWeek is the last week-of-month; it runs from day 29 to month end.
const MaxWeek = 5

// Window is the half-open day range [From, To) in UTC calendar days.
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// MonthWindow returns the calendar month containing ref, taking the calendar
// date in ref's own location.
func MonthWindow(ref time.Time) Window {
	y, m, _ := ref.Date()
	from := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	return Window{From: from, To: from.AddDate(0, 1, 0)}
}

// Previous returns the calendar month before the one starting at w.From.
func (w Window) Previous() Window {
	return MonthWindow(w.From.AddDate(0, 0, -1))
}

// Week narrows a month window to days 1-7, 8-14, 15-21, 22-28 or 29-end.
// Week 0 returns the month unchanged.
func (w Window) Week(week int) Window {
	if week <= 0 || week > MaxWeek {
		return w
	}
	from := w.From.AddDate(0, 0, 7*(week-1))
	to := from.AddDate(0, 0, 7)
	if week == MaxWeek || to.After(w.To) {
		to = w.To
	}
	if from.After(to) {
		from = to
	}
	return Window{From: from, To: to}
}

// Contains reports whether a parsed date falls inside the window.
func (w Window) Contains(d core.Date) bool {
	return d.Within(w.From, w.To)
}

// Days returns the number of calendar days covered.
func (w Window) Days() int {
	return int(w.To.Sub(w.From).Hours() / 24)
}

// Windows returns the current and previous windows for a query. When a week
// is selected both narrow to the same week-of-month.
func Windows(ref time.Time, week int) (cur, prev Window) {
	month := MonthWindow(ref)
	return month.Week(week), month.Previous().Week(week)
}

// WeekOf returns the week-of-month (1..5) of a day.
func WeekOf(t time.Time) int {
	w := (t.Day()-1)/7 + 1
	if w > MaxWeek {
		return MaxWeek
	}
	return w
}
