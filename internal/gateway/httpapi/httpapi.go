// Package httpapi implements the HTTP API gateway for soko.
//
// Every route is a handler.Endpoint run through the shared pipeline; this
// package only adapts okapi requests to it and writes the envelope back.
//
// Outside the pipeline:
//   - CORS pre-flight answered before routing and authentication
//   - Request body size limits (default 1 MB)
//   - Correlation IDs assigned to every request
//   - TLS expected via reverse proxy (not handled here)
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jkaninda/okapi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/jkaninda/soko/internal/accounts"
	"github.com/jkaninda/soko/internal/apierr"
	"github.com/jkaninda/soko/internal/calendar"
	"github.com/jkaninda/soko/internal/catalog"
	"github.com/jkaninda/soko/internal/dashboard"
	"github.com/jkaninda/soko/internal/envelope"
	"github.com/jkaninda/soko/internal/fleet"
	"github.com/jkaninda/soko/internal/handler"
	"github.com/jkaninda/soko/internal/observability"
	"github.com/jkaninda/soko/internal/ordering"
	"github.com/jkaninda/soko/internal/otp"
	"github.com/jkaninda/soko/internal/security"
	"github.com/jkaninda/soko/internal/tenancy"
)

const defaultMaxRequestSize = 1 << 20 // 1 MB

// ErrorBody is the failure envelope used in OpenAPI documentation.
type ErrorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// CORS configures the pre-flight response.
type CORS struct {
	Origins []string
	Methods []string
	Headers []string
	MaxAge  time.Duration
}

// Config configures the HTTP API gateway.
type Config struct {
	ListenAddr     string // e.g., ":8080"
	EnableDocs     bool
	MaxRequestSize int64 // 0 = 1 MB default.
	CORS           CORS

	// Observability
	MetricsRegistry *prometheus.Registry            // Custom Prometheus registry for /metrics.
	MetricsPath     string                          // Default: "/metrics".
	HealthChecker   *observability.HealthChecker    // Health checker for /readyz.
	Metrics         *observability.MetricsCollector // Metrics collector for HTTP middleware.
	Tracer          trace.Tracer                    // OTel tracer for HTTP middleware.
}

// Services are the operations exposed over HTTP. OTP and Payments-backed
// routes answer UpstreamFailure when their collaborator is not configured.
type Services struct {
	Tenants   tenancy.Store
	Accounts  *accounts.Service
	OTP       *otp.Service // nil = OTP routes not mounted
	Catalog   *catalog.Service
	Calendar  *calendar.Service
	Ordering  *ordering.Service
	Fleet     *fleet.Service
	Dashboard *dashboard.Service
}

// Gateway is the HTTP API gateway.
type Gateway struct {
	config   Config
	pipeline *handler.Pipeline
	svc      Services
	logger   *slog.Logger
	server   *http.Server

	okapi   *okapi.Okapi
	v1      *okapi.Group
	once    sync.Once
	handler http.Handler
}

// NewGateway creates an HTTP API gateway.
func NewGateway(cfg Config, pipeline *handler.Pipeline, svc Services, logger *slog.Logger) *Gateway {
	if cfg.MaxRequestSize <= 0 {
		cfg.MaxRequestSize = defaultMaxRequestSize
	}
	return &Gateway{
		config:   cfg,
		pipeline: pipeline,
		svc:      svc,
		logger:   logger,
		okapi:    okapi.New(okapi.WithMaxMultipartMemory(defaultMaxRequestSize)),
	}
}

// WithOpenAPIDocs serves the generated OpenAPI document.
func (g *Gateway) WithOpenAPIDocs() *Gateway {
	g.okapi.WithOpenAPIDocs(
		okapi.OpenAPI{
			Title:   "Soko",
			Version: "v1",
		},
	)
	return g
}

// Handler mounts every route on first use and returns the root handler.
func (g *Gateway) Handler() http.Handler {
	g.once.Do(func() {
		g.mount()
		var h http.Handler = g.okapi
		h = g.requestContext(h)
		h = g.cors(h)
		if g.config.Metrics != nil || g.config.Tracer != nil {
			h = observability.HTTPMetricsMiddleware(g.config.Metrics, g.config.Tracer, h)
		}
		g.handler = h
	})
	return g.handler
}

func (g *Gateway) mount() {
	g.v1 = g.okapi.Group("/v1")

	g.mountAccounts()
	g.mountCatalog()
	g.mountCalendar()
	g.mountOrders()
	g.mountFleet()

	// Observability endpoints (unauthenticated).
	g.okapi.Get("/healthz", g.handleLiveness,
		okapi.DocSummary("Liveness probe"),
		okapi.DocTags("Health"),
		okapi.DocResponse(observability.HealthStatus{}),
	)
	g.okapi.Get("/readyz", g.handleReadiness,
		okapi.DocSummary("Readiness probe"),
		okapi.DocTags("Health"),
		okapi.DocResponse(observability.HealthStatus{}),
		okapi.DocResponse(http.StatusServiceUnavailable, observability.HealthStatus{}),
	)
	if g.config.MetricsRegistry != nil {
		path := g.config.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		g.okapi.HandleStd("GET", path, promhttp.HandlerFor(g.config.MetricsRegistry, promhttp.HandlerOpts{}).ServeHTTP)
	}
	if g.config.EnableDocs {
		g.WithOpenAPIDocs()
	}
}

// Start launches the HTTP server and blocks until it exits or ctx is canceled.
func (g *Gateway) Start(ctx context.Context) error {
	g.server = &http.Server{
		Addr:              g.config.ListenAddr,
		Handler:           g.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	g.logger.Info("http api gateway starting", slog.String("addr", g.config.ListenAddr))

	err := g.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully shuts down the HTTP server.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}
	g.logger.Info("http api gateway stopping")
	return g.server.Shutdown(ctx)
}

// handle adapts an endpoint to okapi.
func handle[Req any](g *Gateway, ep handler.Endpoint[Req]) okapi.HandlerFunc {
	return func(c *okapi.Context) error {
		r := c.Request()
		body, err := io.ReadAll(r.Body)
		if err != nil {
			status, env := envelope.Failure(apierr.InvalidInput("request body too large or unreadable", "body"))
			return c.JSON(status, env)
		}
		in := &handler.Inbound{
			Method: r.Method,
			Header: r.Header,
			Query:  r.URL.Query(),
			Body:   body,
		}
		if ep.IDParam != "" {
			in.Params = map[string]string{ep.IDParam: c.Param(ep.IDParam)}
		}
		resp := handler.Run(c.Context(), g.pipeline, ep, in)
		return c.JSON(resp.Status, resp.Body)
	}
}

// cors answers pre-flight requests before routing, so no route, store or
// authenticator is touched, and adds the allow-origin header to every
// other response.
func (g *Gateway) cors(next http.Handler) http.Handler {
	cfg := g.config.CORS
	methods := strings.Join(cfg.Methods, ", ")
	headers := strings.Join(cfg.Headers, ", ")
	maxAge := strconv.Itoa(int(cfg.MaxAge.Seconds()))
	preflight, _ := json.Marshal(envelope.Empty())

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := allowOrigin(cfg.Origins, r.Header.Get("Origin")); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			if origin != "*" {
				w.Header().Add("Vary", "Origin")
			}
		}
		if r.Method != http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.Header().Set("Access-Control-Allow-Headers", headers)
		w.Header().Set("Access-Control-Max-Age", maxAge)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(preflight)
	})
}

func allowOrigin(allowed []string, origin string) string {
	if slices.Contains(allowed, "*") {
		return "*"
	}
	if origin != "" && slices.Contains(allowed, origin) {
		return origin
	}
	return ""
}

// requestContext limits the body size and assigns a correlation ID.
func (g *Gateway) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, g.config.MaxRequestSize)
		id := r.Header.Get(handler.HeaderCorrelationID)
		if id == "" {
			id = security.NewCorrelationID()
			r.Header.Set(handler.HeaderCorrelationID, id)
		}
		w.Header().Set(handler.HeaderCorrelationID, id)
		next.ServeHTTP(w, r)
	})
}

// handleLiveness is the Kubernetes liveness probe
func (g *Gateway) handleLiveness(c *okapi.Context) error {
	return c.OK(observability.HealthStatus{Status: "ok"})
}

// handleReadiness checks all registered dependencies. Only a failing
// critical dependency answers 503.
func (g *Gateway) handleReadiness(c *okapi.Context) error {
	if g.config.HealthChecker == nil {
		return c.OK(observability.HealthStatus{Status: "ok"})
	}
	status := g.config.HealthChecker.CheckReady(c.Context())
	code := http.StatusOK
	if status.Status == observability.StatusUnavailable {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, status)
}
