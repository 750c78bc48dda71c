package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"taller/internal/amqp"
	"taller/internal/debt"
	"taller/internal/engine"
	"taller/internal/kpi"
	"taller/internal/ledger"
	"taller/internal/log"
	"taller/internal/period"
	"taller/internal/storage"
)

// envelope carries the fields every computed response shares.
type envelope struct {
	Query      engine.Query `json:"query"`
	Partial    bool         `json:"partial"`
	Stale      []string     `json:"stale,omitempty"`
	Warnings   []string     `json:"warnings,omitempty"`
	ComputedAt time.Time    `json:"computed_at"`
}

func newEnvelope(res engine.Result) envelope {
	return envelope{
		Query:      res.Query,
		Partial:    res.Partial(),
		Stale:      res.Stale,
		Warnings:   res.Warnings,
		ComputedAt: res.ComputedAt,
	}
}

type statsResponse struct {
	envelope
	Period          period.Report `json:"period"`
	Metrics         kpi.Metrics   `json:"metrics"`
	PreviousMetrics kpi.Metrics   `json:"previous_metrics"`
}

type bucketResponse struct {
	envelope
	Day    string        `json:"day"`
	Window string        `json:"window"`
	Bucket period.Bucket `json:"bucket"`
}

type debtResponse struct {
	envelope
	debt.Report
}

type walletsResponse struct {
	envelope
	ledger.Report
}

type classificationResponse struct {
	envelope
	engine.NeedsClassification
	DefaultedOrders []string         `json:"defaulted_orders"`
	Skipped         []period.Skipped `json:"skipped"`
	TableVersion    string           `json:"table_version"`
}

// resolve parses the request query and computes, writing the error response
// itself when it fails.
func (s *Server) resolve(w http.ResponseWriter, r *http.Request) (engine.Result, bool) {
	q, err := s.parseQuery(r)
	if err != nil {
		writeError(w, statusFor(err), err)
		return engine.Result{}, false
	}
	res, hit := s.compute(r.Context(), q)
	markCache(w, hit)
	return res, true
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	res, ok := s.resolve(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		envelope:        newEnvelope(res),
		Period:          res.Period,
		Metrics:         res.Metrics,
		PreviousMetrics: res.PreviousMetrics,
	})
}

// handleBucket returns the records behind one day of the current or
// previous window.
func (s *Server) handleBucket(w http.ResponseWriter, r *http.Request) {
	day, err := parseDay(r, "day")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, ok := s.resolve(w, r)
	if !ok {
		return
	}

	resp := bucketResponse{envelope: newEnvelope(res), Day: day.Format("2006-01-02")}
	if b, found := res.Period.Current.Bucket(day); found {
		resp.Window, resp.Bucket = "current", b
	} else if b, found := res.Period.Previous.Bucket(day); found {
		resp.Window, resp.Bucket = "previous", b
	} else {
		writeError(w, http.StatusNotFound, fmt.Errorf("day %s is outside the queried periods", resp.Day))
		return
	}
	if resp.Bucket.Records == nil {
		resp.Bucket.Records = []period.RecordRef{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDebt(w http.ResponseWriter, r *http.Request) {
	res, ok := s.resolve(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, debtResponse{envelope: newEnvelope(res), Report: res.Debt})
}

func (s *Server) handleWallets(w http.ResponseWriter, r *http.Request) {
	res, ok := s.resolve(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, walletsResponse{envelope: newEnvelope(res), Report: res.Ledger})
}

func (s *Server) handleClassification(w http.ResponseWriter, r *http.Request) {
	res, ok := s.resolve(w, r)
	if !ok {
		return
	}
	resp := classificationResponse{
		envelope:            newEnvelope(res),
		NeedsClassification: res.NeedsClassification,
		DefaultedOrders:     res.DefaultedOrders,
		Skipped:             res.Period.Skipped,
		TableVersion:        res.TableVersion,
	}
	if resp.Items == nil {
		resp.Items = []engine.ItemRef{}
	}
	if resp.Expenses == nil {
		resp.Expenses = []engine.ExpenseRef{}
	}
	if resp.DefaultedOrders == nil {
		resp.DefaultedOrders = []string{}
	}
	if resp.Skipped == nil {
		resp.Skipped = []period.Skipped{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleLatestReport serves the last report stored by the worker verbatim.
func (s *Server) handleLatestReport(w http.ResponseWriter, r *http.Request) {
	if s.deps.Reports == nil {
		writeError(w, http.StatusNotImplemented, errors.New("report history is not configured"))
		return
	}
	q, err := s.parseQuery(r)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	rep, err := s.deps.Reports.LatestReport(r.Context(), q.Month(), q.Week, string(q.Division))
	if errors.Is(err, storage.ErrNoReport) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Latest report lookup failed", log.FieldError, err.Error())
		writeError(w, http.StatusInternalServerError, errors.New("report lookup failed"))
		return
	}
	writeJSON(w, http.StatusOK, struct {
		ID         string          `json:"id"`
		Reason     string          `json:"reason"`
		Partial    bool            `json:"partial"`
		ComputedAt time.Time       `json:"computed_at"`
		Result     json.RawMessage `json:"result"`
	}{rep.ID, rep.Reason, rep.Partial, rep.ComputedAt, json.RawMessage(rep.Payload)})
}

// handleRecompute drops cached results and, when a broker is configured,
// asks the worker to store a fresh report.
func (s *Server) handleRecompute(w http.ResponseWriter, r *http.Request) {
	q, err := s.parseQuery(r)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	purged := s.deps.Cache.Purge()

	queued := false
	if s.deps.Publisher != nil {
		reason := strings.TrimSpace(r.URL.Query().Get("reason"))
		if reason == "" {
			reason = amqp.ReasonManual
		}
		req := amqp.NewRecomputeRequest(q.Month(), q.Week, string(q.Division), reason)
		if err := s.deps.Publisher.PublishRecompute(r.Context(), req); err != nil {
			log.NewStructuredLogger(log.FromContext(r.Context())).LogError(r.Context(), "Recompute publish failed",
				err, log.ComponentHTTP, log.OpPublish, log.NewFields().WithQuery(q.Month(), q.Week, string(q.Division)))
			writeError(w, http.StatusServiceUnavailable, errors.New("recompute queue unavailable"))
			return
		}
		queued = true
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"purged": purged,
		"queued": queued,
		"month":  q.Month(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	total, inFlight := s.tracer.Counts()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"uptime":      time.Since(s.started).Round(time.Second).String(),
		"requests":    total,
		"in_flight":   inFlight,
		"cache_items": s.deps.Cache.Size(),
	})
}

// handleReady checks the snapshot source.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	if err := s.deps.Ready.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
