// Package http exposes the planner as a JSON API.
package http

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"nozze/internal/core"
	applog "nozze/internal/log"
	"nozze/internal/middleware/ratelimit"
	"nozze/internal/middleware/security"
	"nozze/internal/middleware/trace"
	"nozze/internal/planner"
	"nozze/internal/services"
	"nozze/internal/sources"
	"nozze/internal/storage"
)

const maxBodyBytes = 1 << 20

// ScenarioService is the part of services.ScenarioService the API needs.
type ScenarioService interface {
	Submit(ctx context.Context, budget, cut core.Money, weights map[string]float64) (int64, error)
	Get(ctx context.Context, id int64) (*storage.Scenario, error)
}

var _ ScenarioService = (*services.ScenarioService)(nil)

// Options wires the server to its collaborators. Weights and Scenarios are
// optional; the endpoints that need them answer 501 when they are nil.
type Options struct {
	Catalog   sources.CatalogReader
	Weights   sources.WeightWriter
	Planner   *planner.Planner
	Scenarios ScenarioService

	DefaultBudget core.Money
	DefaultCut    core.Money

	RequestsPerMinute int
	// TrustedProxies are CIDRs whose forwarding headers are believed, in
	// addition to loopback and private networks.
	TrustedProxies []string
	Logger         *applog.Logger

	// Ready is an extra readiness probe, e.g. a database ping.
	Ready func(ctx context.Context) error
}

type Server struct {
	http.Server
	catalog   sources.CatalogReader
	weights   sources.WeightWriter
	planner   *planner.Planner
	scenarios ScenarioService
	ready     func(ctx context.Context) error

	defaultBudget core.Money
	defaultCut    core.Money

	rateLimiter *ratelimit.Limiter
	tracer      *trace.Middleware
	clients     *security.ClientIPResolver
	started     time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, opts Options) (*Server, error) {
	clients, err := security.NewClientIPResolver(opts.TrustedProxies...)
	if err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	if opts.Planner == nil {
		opts.Planner = planner.New(nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}

	s := &Server{
		catalog:       opts.Catalog,
		weights:       opts.Weights,
		planner:       opts.Planner,
		scenarios:     opts.Scenarios,
		ready:         opts.Ready,
		defaultBudget: opts.DefaultBudget,
		defaultCut:    opts.DefaultCut,
		rateLimiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RequestsPerMinute}),
		tracer:        trace.NewMiddleware(),
		clients:       clients,
		started:       time.Now(),
	}

	limited := s.rateLimiter.Middleware(s.clients.ClientIP, s.handleRateLimited)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /api/catalog", s.handleCatalog)
	mux.HandleFunc("PUT /api/weights", s.handleSaveWeights)
	mux.Handle("POST /api/plan", limited(http.HandlerFunc(s.handlePlan)))
	mux.Handle("POST /api/compare", limited(http.HandlerFunc(s.handleCompare)))
	mux.Handle("POST /api/scenarios", limited(http.HandlerFunc(s.handleSubmitScenario)))
	mux.HandleFunc("GET /api/scenarios/{id}", s.handleGetScenario)

	var h http.Handler = mux
	h = applog.AccessLog(s.clients.ClientIP)(h)
	h = applog.RequestIDMiddleware(trace.RequestID)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.tracer.Middleware(h)
	h = applog.Middleware(logger.WithComponent(applog.ComponentHTTP))(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}
	return s, nil
}

// Shutdown stops the rate limiter and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
