package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jkaninda/soko/internal/auth"
	"github.com/jkaninda/soko/internal/calendar"
	"github.com/jkaninda/soko/internal/catalog"
	"github.com/jkaninda/soko/internal/config"
	"github.com/jkaninda/soko/internal/dashboard"
	"github.com/jkaninda/soko/internal/domain"
	"github.com/jkaninda/soko/internal/fleet"
	"github.com/jkaninda/soko/internal/gateway"
	"github.com/jkaninda/soko/internal/gateway/httpapi"
	"github.com/jkaninda/soko/internal/handler"
	"github.com/jkaninda/soko/internal/observability"
	"github.com/jkaninda/soko/internal/ordering"
	"github.com/jkaninda/soko/internal/otp"
	"github.com/jkaninda/soko/internal/payment"
	"github.com/jkaninda/soko/internal/ratelimit"
	"github.com/jkaninda/soko/internal/scheduler"
	"github.com/jkaninda/soko/internal/security"
	"github.com/jkaninda/soko/internal/sms"
	"github.com/jkaninda/soko/internal/tenancy"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

func init() {
	// Registered on both root and serve so `soko --port` works too.
	for _, cmd := range []*cobra.Command{rootCmd, serveCmd} {
		cmd.Flags().StringVar(&listenAddr, "port", "", "override HTTP listen address (e.g. :8080)")
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	logger := newLogger()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.Server.ListenAddr = listenAddr
	}

	sc, err := initShared(cfg, logger)
	if err != nil {
		return err
	}
	defer sc.Cleanup()

	auditor, err := security.NewAuditLogger(cfg.AuditLogPath(), logger)
	if err != nil {
		return err
	}
	defer auditor.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc := buildServices(cfg, sc)

	if cfg.Scheduler != nil && cfg.Scheduler.Enabled {
		cancelScheduler, err := startScheduler(ctx, cfg, sc, svc.OTP, auditor)
		if err != nil {
			return err
		}
		defer cancelScheduler()
	}

	pipeline := &handler.Pipeline{
		Auth:     auth.NewService(sc.Tokens, sc.Store.Principals(), sc.RBAC, logger),
		Resolver: tenancy.NewResolver(sc.Store.Tenants()),
		Auditor:  auditor,
		Logger:   logger,
	}
	if rl := cfg.Server.RateLimit; rl.RequestsPerMinute > 0 {
		pipeline.Limiter = ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: rl.RequestsPerMinute,
			BurstSize:         rl.BurstSize,
		})
	}
	if m := sc.Obs.MetricsOrNil(); m != nil {
		pipeline.Metrics = m
	}

	httpCfg := httpapi.Config{
		ListenAddr:     cfg.Server.Addr(),
		EnableDocs:     cfg.Server.EnableDocs,
		MaxRequestSize: cfg.Server.MaxRequestSizeBytes,
		CORS: httpapi.CORS{
			Origins: cfg.Server.CORS.Origins(),
			Methods: cfg.Server.CORS.Methods(),
			Headers: cfg.Server.CORS.Headers(),
			MaxAge:  cfg.Server.CORS.MaxAge(),
		},
	}
	if sc.Obs != nil {
		httpCfg.HealthChecker = sc.Obs.Health
		httpCfg.Metrics = sc.Obs.Metrics
		if sc.Obs.Metrics != nil {
			httpCfg.MetricsRegistry = sc.Obs.Metrics.Registry
		}
		if sc.Obs.Tracer != nil {
			httpCfg.Tracer = sc.Obs.Tracer.Tracer()
		}
		if cfg.Observability.Metrics != nil {
			httpCfg.MetricsPath = cfg.Observability.Metrics.Path
		}
	}

	var gw gateway.Gateway = httpapi.NewGateway(httpCfg, pipeline, svc, logger)

	errs := make(chan error, 1)
	go func() { errs <- gw.Start(ctx) }()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errs:
		if err != nil {
			logger.Error("gateway exited with error", slog.String("error", err.Error()))
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := gw.Stop(shutdownCtx); err != nil {
		logger.Error("stopping gateway", slog.String("error", err.Error()))
	}
	return nil
}

// buildServices wires the operations served over HTTP. Upstream gateways
// are optional: without SMS config the OTP routes are not mounted, and
// without payment config payment calls fail as upstream errors.
func buildServices(cfg *config.Config, sc *SharedComponents) httpapi.Services {
	logger := sc.Logger
	store := sc.Store
	currency := cfg.Ordering.CurrencyCode()

	var gw ordering.Gateway
	if p := cfg.Payment; p != nil && p.Enabled {
		client := payment.New(payment.Config{
			BaseURL:   p.BaseURL,
			KeyID:     p.KeyID,
			KeySecret: p.KeySecret,
			Timeout:   p.Timeout(),
		}, logger)
		gw = observability.NewInstrumentedPaymentGateway(client, "payment", sc.Obs)
		if sc.Obs != nil && sc.Obs.Anomaly != nil {
			sc.Obs.Health.AddDependency("payment", false, sc.Obs.Anomaly.Check("payment"))
		}
		logger.Debug("payment gateway enabled", slog.String("base_url", p.BaseURL))
	}

	svc := httpapi.Services{
		Tenants:   store.Tenants(),
		Accounts:  sc.Accounts,
		Catalog:   catalog.NewService(store.Catalog(), logger),
		Calendar:  calendar.NewService(store.Calendar(), logger),
		Ordering:  ordering.NewService(store.Ordering(), gw, sc.Retry, ordering.Config{Currency: currency, DeliveryFee: cfg.Ordering.DeliveryFee}, logger),
		Fleet:     fleet.NewService(store.Fleet(), currency, logger),
		Dashboard: dashboard.NewService(store.Dashboard(), currency),
	}

	if senders := smsSenders(cfg.SMS, logger); len(senders) > 0 {
		issue := func(p *domain.Principal) (any, error) { return sc.Accounts.Issue(p) }
		var observer otp.Observer
		if sc.Obs != nil {
			observer = sc.Obs
		}
		svc.OTP = otp.NewService(store.OTP(), senders, issue, observer, otp.Config{
			TTL:          cfg.OTP.TTL(),
			MaxAttempts:  cfg.OTP.Attempts(),
			SendsPerHour: cfg.OTP.SendRate(),
			Template:     cfg.OTP.Template(),
		}, logger)
		if sc.Obs != nil && sc.Obs.Anomaly != nil {
			sc.Obs.Health.AddDependency("sms", false, sc.Obs.Anomaly.Check("sms"))
		}
		logger.Debug("otp enabled", slog.Int("sms_gateways", len(senders)))
	}
	return svc
}

func smsSenders(cfg *config.SMSConfig, logger *slog.Logger) []otp.Sender {
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	var senders []otp.Sender
	for _, p := range []*config.SMSProviderConfig{cfg.Primary, cfg.Fallback} {
		if p == nil {
			continue
		}
		senders = append(senders, sms.New(sms.Config{
			Name:    p.Name,
			BaseURL: p.BaseURL,
			Token:   p.Token,
			Sender:  p.Sender,
			Timeout: p.Timeout(),
		}, logger))
	}
	return senders
}

func startScheduler(ctx context.Context, cfg *config.Config, sc *SharedComponents, otpSvc *otp.Service, auditor security.Auditor) (func(), error) {
	var metrics *scheduler.Metrics
	if m := sc.Obs.MetricsOrNil(); m != nil {
		metrics = scheduler.NewMetrics(m.Registry)
	}
	s := scheduler.New(metrics, auditor, sc.Logger)
	if otpSvc != nil {
		if err := s.Add(scheduler.Job{
			Name: "otp-cleanup",
			Spec: cfg.Scheduler.OTPCleanupSchedule(),
			Run:  otpSvc.Cleanup,
		}); err != nil {
			return nil, fmt.Errorf("scheduling otp cleanup: %w", err)
		}
	}
	sc.Logger.Debug("scheduler started")
	return s.Start(ctx), nil
}
