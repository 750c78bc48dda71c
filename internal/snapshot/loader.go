// Package snapshot assembles the input of a computation pass from its
// collaborators. A failing collection leaves that slice empty and is listed
// in Snapshot.Stale; the other collections still load.
package snapshot

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"taller/internal/core"
	"taller/internal/log"
	ports "taller/internal/sheets"
)

// Loader fetches every collection of a snapshot concurrently.
type Loader struct {
	src     ports.Source
	rates   ports.RatesReader
	timeout time.Duration
	now     func() time.Time
	logger  *log.Logger
}

type Option func(*Loader)

// WithRates reads exchange rates from r instead of the record source.
func WithRates(r ports.RatesReader) Option {
	return func(l *Loader) { l.rates = r }
}

// WithTimeout bounds each collection fetch.
func WithTimeout(d time.Duration) Option {
	return func(l *Loader) { l.timeout = d }
}

// WithClock replaces time.Now for FetchedAt.
func WithClock(now func() time.Time) Option {
	return func(l *Loader) { l.now = now }
}

func WithLogger(logger *log.Logger) Option {
	return func(l *Loader) { l.logger = logger.WithComponent(log.ComponentSheets) }
}

func NewLoader(src ports.Source, opts ...Option) *Loader {
	l := &Loader{
		src:     src,
		rates:   src,
		timeout: 30 * time.Second,
		now:     time.Now,
		logger:  log.New(log.DefaultConfig()).WithComponent(log.ComponentSheets),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Load never fails. Callers inspect Snapshot.Stale to tell a partial
// snapshot from a complete one.
func (l *Loader) Load(ctx context.Context) core.Snapshot {
	var (
		snap core.Snapshot
		mu   sync.Mutex
		g    errgroup.Group
	)

	fetch := func(name string, fn func(context.Context) error) {
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(ctx, l.timeout)
			defer cancel()
			if err := fn(fctx); err != nil {
				l.logger.WarnContext(ctx, "Collection failed to load",
					log.FieldCollection, name, log.FieldError, err.Error())
				mu.Lock()
				snap.Stale = append(snap.Stale, name)
				mu.Unlock()
			}
			// Never propagate: one failing collection must not cancel the rest.
			return nil
		})
	}

	fetch(core.CollectionOrders, func(ctx context.Context) error {
		v, err := l.src.ListOrders(ctx)
		if err == nil {
			mu.Lock()
			snap.Orders = v
			mu.Unlock()
		}
		return err
	})
	fetch(core.CollectionExpenses, func(ctx context.Context) error {
		v, err := l.src.ListExpenses(ctx)
		if err == nil {
			mu.Lock()
			snap.Expenses = v
			mu.Unlock()
		}
		return err
	})
	fetch(core.CollectionPayroll, func(ctx context.Context) error {
		v, err := l.src.ListPayroll(ctx)
		if err == nil {
			mu.Lock()
			snap.Payroll = v
			mu.Unlock()
		}
		return err
	})
	fetch(core.CollectionDesignPayments, func(ctx context.Context) error {
		v, err := l.src.ListDesignPayments(ctx)
		if err == nil {
			mu.Lock()
			snap.DesignPayments = v
			mu.Unlock()
		}
		return err
	})
	fetch(core.CollectionEmployees, func(ctx context.Context) error {
		v, err := l.src.ListEmployees(ctx)
		if err == nil {
			mu.Lock()
			snap.Employees = v
			mu.Unlock()
		}
		return err
	})
	fetch(core.CollectionRates, func(ctx context.Context) error {
		// Providers may return last-known rates together with an error.
		v, err := l.rates.CurrentRates(ctx)
		mu.Lock()
		snap.Rates = v
		mu.Unlock()
		return err
	})

	_ = g.Wait()

	sort.Strings(snap.Stale)
	snap.FetchedAt = l.now()
	l.logger.InfoContext(ctx, "Snapshot loaded",
		"orders", len(snap.Orders),
		"expenses", len(snap.Expenses),
		"payroll", len(snap.Payroll),
		"design_payments", len(snap.DesignPayments),
		"employees", len(snap.Employees),
		log.FieldStale, snap.Stale)
	return snap
}
