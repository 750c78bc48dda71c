package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"taller/internal/amqp"
	"taller/internal/cache"
	"taller/internal/core"
	"taller/internal/engine"
	"taller/internal/log"
	"taller/internal/metrics"
	"taller/internal/middleware/ratelimit"
	"taller/internal/middleware/security"
	"taller/internal/middleware/trace"
	"taller/internal/storage"
)

// computeTimeout bounds snapshot loading for a request.
const computeTimeout = 7 * time.Second

// SnapshotLoader fetches the inputs of one pass.
type SnapshotLoader interface {
	Load(ctx context.Context) core.Snapshot
}

// Publisher queues a recompute for the worker.
type Publisher interface {
	PublishRecompute(ctx context.Context, req *amqp.RecomputeRequest) error
}

// ReportReader returns reports stored by the worker.
type ReportReader interface {
	LatestReport(ctx context.Context, month string, week int, division string) (storage.Report, error)
}

// Pinger checks a dependency for readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of the API. Engine and Loader are required;
// the rest may be nil.
type Deps struct {
	Engine    *engine.Engine
	Loader    SnapshotLoader
	Cache     cache.Cache[engine.Result]
	Metrics   *metrics.Registry
	Publisher Publisher
	Reports   ReportReader
	Ready     Pinger
	Limiter   *ratelimit.Limiter
	Location  *time.Location
	Now       func() time.Time
	Logger    *log.Logger
}

type Server struct {
	http.Server
	deps    Deps
	logger  *log.Logger
	tracer  *trace.Middleware
	started time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, d Deps) *Server {
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Logger == nil {
		d.Logger = log.New(log.DefaultConfig())
	}
	if d.Cache == nil {
		d.Cache = cache.NewLRUCache[engine.Result](64, time.Minute)
	}

	s := &Server{
		deps:    d,
		logger:  d.Logger.WithComponent(log.ComponentHTTP),
		tracer:  trace.NewMiddleware(d.Logger, trace.ClientIP),
		started: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/stats/bucket", s.handleBucket)
	mux.HandleFunc("GET /api/debt", s.handleDebt)
	mux.HandleFunc("GET /api/wallets", s.handleWallets)
	mux.HandleFunc("GET /api/classification", s.handleClassification)
	mux.HandleFunc("GET /api/reports/latest", s.handleLatestReport)

	var recompute http.Handler = http.HandlerFunc(s.handleRecompute)
	if d.Limiter != nil {
		recompute = d.Limiter.Middleware(trace.ClientIP, func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusTooManyRequests, errors.New("too many recompute requests"))
		})(recompute)
	}
	mux.Handle("POST /api/recompute", recompute)

	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics.Handler())
	}

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.tracer.Handler(headers.Middleware(mux)),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      computeTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Shutdown stops the listener and the rate limiter cleanup.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		if s.deps.Limiter != nil {
			s.deps.Limiter.Stop()
		}
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// compute returns the result for q, from the cache when possible. Partial
// results are served but never cached.
func (s *Server) compute(ctx context.Context, q engine.Query) (engine.Result, bool) {
	key := q.Key()
	if res, ok := s.deps.Cache.Get(key); ok {
		return res, true
	}

	cctx, cancel := context.WithTimeout(ctx, computeTimeout)
	defer cancel()

	start := time.Now()
	snap := s.deps.Loader.Load(cctx)
	res := s.deps.Engine.Compute(snap, q)
	took := time.Since(start)
	s.deps.Metrics.ObservePass(metrics.TriggerHTTP, res, took)

	if !res.Partial() {
		s.deps.Cache.Set(key, res)
	}
	log.FromContext(ctx).DebugContext(ctx, "Computed result",
		append(log.NewFields().WithQuery(q.Month(), q.Week, string(q.Division)).WithDuration(took).ToSlice(),
			log.FieldStale, res.Stale)...)
	return res, false
}
