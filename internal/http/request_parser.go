package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"taller/internal/core"
	"taller/internal/engine"
)

// parseQuery reads month=YYYY-MM, week=0..5 and division from the URL.
func (s *Server) parseQuery(r *http.Request) (engine.Query, error) {
	v := r.URL.Query()
	week := 0
	if raw := strings.TrimSpace(v.Get("week")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return engine.Query{}, fmt.Errorf("week %q: %w", raw, core.ErrInvalidWeek)
		}
		week = n
	}
	return engine.ParseQuery(v.Get("month"), week, v.Get("division"), s.deps.Now(), s.deps.Location)
}

// parseDay reads a required calendar day parameter.
func parseDay(r *http.Request, name string) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return time.Time{}, fmt.Errorf("missing %s: %w", name, core.ErrInvalidDate)
	}
	d, err := core.ParseDate(raw)
	if err != nil {
		return time.Time{}, err
	}
	return d.Time, nil
}
