package http

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ledger/internal/core"
	applog "ledger/internal/log"
	"ledger/internal/middleware/ratelimit"
	"ledger/internal/middleware/security"
	"ledger/internal/middleware/trace"
)

// Ledger is the transaction surface the handlers depend on.
type Ledger interface {
	ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error)
	CreateTransaction(ctx context.Context, n core.NewTransaction) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, id int64) (core.Transaction, error)
	Summary(ctx context.Context, userID string) (core.Summary, error)
	Ping(ctx context.Context) error
}

// Options tunes a Server. Zero values fall back to defaults.
type Options struct {
	Logger             *applog.Logger
	RateLimitPerMinute int
}

type Server struct {
	http.Server
	ledger      Ledger
	logger      *applog.Logger
	registry    *prometheus.Registry
	rateLimiter *ratelimit.Limiter
	trace       *trace.Middleware
	started     time.Time

	transactionsCreated prometheus.Counter
	transactionsDeleted prometheus.Counter
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, ledger Ledger, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	rlConfig := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		rlConfig.RequestsPerMinute = opts.RateLimitPerMinute
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := &Server{
		ledger:      ledger,
		logger:      logger,
		registry:    reg,
		rateLimiter: ratelimit.NewLimiter(rlConfig),
		trace:       trace.NewMiddleware(extractClientIP, reg),
		started:     time.Now(),
		transactionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "transactions_created_total",
			Help:      "Transactions created through the API.",
		}),
		transactionsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "transactions_deleted_total",
			Help:      "Transactions deleted through the API.",
		}),
	}
	reg.MustRegister(s.transactionsCreated, s.transactionsDeleted)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	mux.HandleFunc("GET /api/transactions/{userId}", s.handleListTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)
	mux.HandleFunc("GET /api/transactions/summary/{userId}", s.handleSummary)

	// Outermost first. Nothing between trace and the mux may clone the
	// request, or the route label is lost.
	var handler http.Handler = mux
	handler = s.rateLimiter.Middleware(extractClientIP, s.handleRateLimited)(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.trace.Middleware(handler)
	handler = applog.Middleware(logger)(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return s
}

// Shutdown stops background workers, then drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.rateLimiter.Stop()
	return s.Server.Shutdown(ctx)
}
