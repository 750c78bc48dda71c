// Package metrics exposes Prometheus collectors for computation passes and
// the result cache on a private registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"taller/internal/engine"
)

// Pass triggers.
const (
	TriggerHTTP     = "http"
	TriggerMessage  = "message"
	TriggerSchedule = "schedule"
	TriggerCLI      = "cli"
)

type Registry struct {
	reg *prometheus.Registry

	Passes              *prometheus.CounterVec
	PartialPasses       prometheus.Counter
	PassSeconds         prometheus.Histogram
	NeedsClassification prometheus.Gauge
	StaleCollections    prometheus.Gauge
	SkippedRecords      prometheus.Gauge
	CacheHits           prometheus.Counter
	CacheMisses         prometheus.Counter
	CacheEvictions      prometheus.Counter
	ReportsStored       prometheus.Counter
	ReportsPruned       prometheus.Counter
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	m := &Registry{
		reg: r,
		Passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taller_compute_passes_total",
			Help: "Computation passes by trigger.",
		}, []string{"trigger"}),
		PartialPasses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taller_compute_partial_passes_total",
			Help: "Passes that ran with at least one stale collection.",
		}),
		PassSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "taller_compute_pass_seconds",
			Help:    "Wall time of a computation pass.",
			Buckets: prometheus.DefBuckets,
		}),
		NeedsClassification: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "taller_needs_classification",
			Help: "Items and expenses that matched no keyword in the last pass.",
		}),
		StaleCollections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "taller_stale_collections",
			Help: "Collections served from the last good snapshot in the last pass.",
		}),
		SkippedRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "taller_skipped_records",
			Help: "Records dropped for malformed fields in the last pass.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taller_cache_hits_total",
			Help: "Result cache lookups that found a stored result.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taller_cache_misses_total",
			Help: "Result cache lookups that forced a recomputation.",
		}),
		CacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taller_cache_evictions_total",
			Help: "Result cache entries evicted or expired.",
		}),
		ReportsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taller_reports_stored_total",
			Help: "Computed reports persisted to storage.",
		}),
		ReportsPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taller_reports_pruned_total",
			Help: "Stored reports removed by retention.",
		}),
	}
	r.MustRegister(
		m.Passes, m.PartialPasses, m.PassSeconds,
		m.NeedsClassification, m.StaleCollections, m.SkippedRecords,
		m.CacheHits, m.CacheMisses, m.CacheEvictions,
		m.ReportsStored, m.ReportsPruned,
	)
	return m
}

// ObservePass records one finished pass. A nil registry is a no-op.
func (r *Registry) ObservePass(trigger string, res engine.Result, took time.Duration) {
	if r == nil {
		return
	}
	r.Passes.WithLabelValues(trigger).Inc()
	if res.Partial() {
		r.PartialPasses.Inc()
	}
	r.PassSeconds.Observe(took.Seconds())
	r.NeedsClassification.Set(float64(res.NeedsClassification.Count))
	r.StaleCollections.Set(float64(len(res.Stale)))
	r.SkippedRecords.Set(float64(len(res.Period.Skipped)))
}

// CacheObserver adapts the cache counters to cache.Observer.
func (r *Registry) CacheObserver() CacheObserver { return CacheObserver{r} }

type CacheObserver struct{ r *Registry }

func (o CacheObserver) Hit()   { o.r.CacheHits.Inc() }
func (o CacheObserver) Miss()  { o.r.CacheMisses.Inc() }
func (o CacheObserver) Evict() { o.r.CacheEvictions.Inc() }

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
