package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"taller/internal/amqp"
	"taller/internal/core"
	"taller/internal/engine"
	"taller/internal/log"
	"taller/internal/metrics"
	"taller/internal/storage"
)

// SnapshotLoader fetches the inputs of one pass.
type SnapshotLoader interface {
	Load(ctx context.Context) core.Snapshot
}

// ReportStore persists computed reports.
type ReportStore interface {
	SaveReport(ctx context.Context, rep storage.Report) (string, error)
	PruneReports(ctx context.Context, cutoff time.Time) (int64, error)
}

// ScheduledDivisions are recomputed on every tick.
var ScheduledDivisions = []core.Division{
	core.DivisionGeneral,
	core.DivisionPrinting,
	core.DivisionLaser,
	core.DivisionDesign,
}

// RecomputeWorker runs computation passes and stores their results.
type RecomputeWorker struct {
	loader    SnapshotLoader
	engine    *engine.Engine
	store     ReportStore
	metrics   *metrics.Registry
	loc       *time.Location
	retention time.Duration
	now       func() time.Time
	logger    *log.Logger
}

type Option func(*RecomputeWorker)

func WithMetrics(m *metrics.Registry) Option {
	return func(w *RecomputeWorker) { w.metrics = m }
}

// WithLocation sets the zone that decides which month "now" falls in.
func WithLocation(loc *time.Location) Option {
	return func(w *RecomputeWorker) { w.loc = loc }
}

// WithRetention sets how long stored reports are kept. Zero keeps them all.
func WithRetention(d time.Duration) Option {
	return func(w *RecomputeWorker) { w.retention = d }
}

func WithClock(now func() time.Time) Option {
	return func(w *RecomputeWorker) { w.now = now }
}

func WithLogger(logger *log.Logger) Option {
	return func(w *RecomputeWorker) { w.logger = logger.WithComponent(log.ComponentWorker) }
}

func NewRecomputeWorker(loader SnapshotLoader, eng *engine.Engine, store ReportStore, opts ...Option) *RecomputeWorker {
	w := &RecomputeWorker{
		loader: loader,
		engine: eng,
		store:  store,
		loc:    time.UTC,
		now:    time.Now,
		logger: log.New(log.DefaultConfig()).WithComponent(log.ComponentWorker),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// HandleRecompute processes a single recompute request from AMQP.
func (w *RecomputeWorker) HandleRecompute(ctx context.Context, msg *amqp.RecomputeRequest) error {
	w.logger.InfoContext(ctx, "Processing recompute request",
		log.FieldMonth, msg.Month,
		log.FieldWeek, msg.Week,
		log.FieldDivision, msg.Division,
		log.FieldReason, msg.Reason)

	_, err := w.Recompute(ctx, msg.Month, msg.Week, msg.Division, msg.Reason, metrics.TriggerMessage)
	return err
}

// Recompute runs one pass and stores its result.
func (w *RecomputeWorker) Recompute(ctx context.Context, month string, week int, division, reason, trigger string) (storage.Report, error) {
	q, err := engine.ParseQuery(month, week, division, w.now(), w.loc)
	if err != nil {
		return storage.Report{}, fmt.Errorf("build query: %w", err)
	}

	start := time.Now()
	snap := w.loader.Load(ctx)
	res := w.engine.Compute(snap, q)
	took := time.Since(start)
	w.metrics.ObservePass(trigger, res, took)

	payload, err := json.Marshal(res)
	if err != nil {
		return storage.Report{}, fmt.Errorf("marshal result: %w", err)
	}
	rep := storage.Report{
		Month:      q.Month(),
		Week:       q.Week,
		Division:   string(q.Division),
		Reason:     reason,
		Partial:    res.Partial(),
		Payload:    payload,
		ComputedAt: w.now(),
	}
	if rep.ID, err = w.store.SaveReport(ctx, rep); err != nil {
		return storage.Report{}, fmt.Errorf("store report: %w", err)
	}
	if w.metrics != nil {
		w.metrics.ReportsStored.Inc()
	}

	fields := log.NewFields().
		WithOperation(log.OpCompute).
		WithQuery(rep.Month, rep.Week, rep.Division).
		WithDuration(took)
	args := append(fields.ToSlice(),
		log.FieldReason, reason,
		"needs_classification", res.NeedsClassification.Count,
		log.FieldStale, res.Stale)
	if res.Partial() {
		w.logger.WarnContext(ctx, "Stored partial report", args...)
	} else {
		w.logger.InfoContext(ctx, "Stored report", args...)
	}
	return rep, nil
}

// Prune deletes reports older than the retention window.
func (w *RecomputeWorker) Prune(ctx context.Context) (int64, error) {
	if w.retention <= 0 {
		return 0, nil
	}
	n, err := w.store.PruneReports(ctx, w.now().Add(-w.retention))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		if w.metrics != nil {
			w.metrics.ReportsPruned.Add(float64(n))
		}
		w.logger.InfoContext(ctx, "Pruned old reports", log.FieldCount, n)
	}
	return n, nil
}

// Tick recomputes the current month for every scheduled division and prunes
// old reports. Failures are logged and joined; one division failing does not
// skip the others.
func (w *RecomputeWorker) Tick(ctx context.Context) error {
	var errs []error
	for _, d := range ScheduledDivisions {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := w.Recompute(ctx, "", 0, string(d), amqp.ReasonSchedule, metrics.TriggerSchedule); err != nil {
			w.logger.ErrorContext(ctx, "Scheduled recompute failed", log.FieldDivision, d, log.FieldError, err.Error())
			errs = append(errs, err)
		}
	}
	if _, err := w.Prune(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Report pruning failed", log.FieldError, err.Error())
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Run ticks once immediately and then every interval until ctx is done.
func (w *RecomputeWorker) Run(ctx context.Context, interval time.Duration) {
	_ = w.Tick(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "Periodic recompute stopped")
			return
		case <-ticker.C:
			_ = w.Tick(ctx)
		}
	}
}
