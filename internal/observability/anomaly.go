package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jkaninda/soko/internal/config"
)

// minSamples is the number of calls in the window before a provider can be
// flagged.
const minSamples = 5

// AnomalyDetector tracks the error rate of each upstream provider (keyed
// "sms/<provider>" or "payment/<provider>") over a sliding window. A
// provider whose rate crosses the threshold is flagged until it drops back
// under it; both transitions are logged once.
type AnomalyDetector struct {
	mu        sync.Mutex
	providers map[string]*providerWindow
	failovers map[string]int // service -> failovers within the process lifetime
	cfg       *config.AnomalyConfig
	logger    *slog.Logger
	now       func() time.Time
}

type providerWindow struct {
	calls   []upstreamCall
	flagged bool
}

type upstreamCall struct {
	at     time.Time
	failed bool
}

// NewAnomalyDetector creates an anomaly detector from config.
func NewAnomalyDetector(cfg *config.AnomalyConfig, logger *slog.Logger) *AnomalyDetector {
	return &AnomalyDetector{
		providers: make(map[string]*providerWindow),
		failovers: make(map[string]int),
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

func (a *AnomalyDetector) window() time.Duration {
	secs := a.cfg.WindowSeconds
	if secs <= 0 {
		secs = 300
	}
	return time.Duration(secs) * time.Second
}

func providerKey(service, provider string) string {
	return service + "/" + provider
}

// Record adds one call to the provider's window and re-evaluates its flag.
func (a *AnomalyDetector) Record(service, provider string, err error) {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	key := providerKey(service, provider)
	w, ok := a.providers[key]
	if !ok {
		w = &providerWindow{}
		a.providers[key] = w
	}
	now := a.now()
	w.calls = append(w.calls, upstreamCall{at: now, failed: err != nil})
	w.prune(now.Add(-a.window()))
	a.evaluate(key, w)
}

// RecordFailover notes that a call to service moved from one provider to
// the next.
func (a *AnomalyDetector) RecordFailover(service, from, to string) {
	if a == nil {
		return
	}
	a.mu.Lock()
	a.failovers[service]++
	n := a.failovers[service]
	a.mu.Unlock()

	if a.logger != nil {
		a.logger.Warn("upstream provider failover",
			slog.String("service", service),
			slog.String("from", from),
			slog.String("to", to),
			slog.Int("failovers", n),
		)
	}
}

// Flagged returns the providers of service currently over the threshold.
func (a *AnomalyDetector) Flagged(service string) []string {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := a.now().Add(-a.window())
	prefix := service + "/"
	var out []string
	for key, w := range a.providers {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		w.prune(cutoff)
		a.evaluate(key, w)
		if w.flagged {
			out = append(out, strings.TrimPrefix(key, prefix))
		}
	}
	sort.Strings(out)
	return out
}

// Check returns a readiness check that fails while any provider of service
// is flagged.
func (a *AnomalyDetector) Check(service string) func(ctx context.Context) error {
	return func(context.Context) error {
		if flagged := a.Flagged(service); len(flagged) > 0 {
			return fmt.Errorf("%s providers over error threshold: %s", service, strings.Join(flagged, ", "))
		}
		return nil
	}
}

// evaluate updates the flag of one provider. Must be called with a.mu held.
func (a *AnomalyDetector) evaluate(key string, w *providerWindow) {
	threshold := a.cfg.ErrorRateThreshold
	if threshold <= 0 {
		return
	}
	failed, total := w.counts()
	if total < minSamples {
		if w.flagged {
			w.flagged = false
			a.log("upstream provider recovered", key, 0, total)
		}
		return
	}
	rate := float64(failed) / float64(total)
	switch {
	case rate > threshold && !w.flagged:
		w.flagged = true
		a.log("upstream provider degraded", key, rate, total)
	case rate <= threshold && w.flagged:
		w.flagged = false
		a.log("upstream provider recovered", key, rate, total)
	}
}

func (a *AnomalyDetector) log(msg, key string, rate float64, total int) {
	if a.logger == nil {
		return
	}
	a.logger.Warn(msg,
		slog.String("provider", key),
		slog.Float64("error_rate", rate),
		slog.Float64("threshold", a.cfg.ErrorRateThreshold),
		slog.Int("calls", total),
	)
}

func (w *providerWindow) counts() (failed, total int) {
	for _, c := range w.calls {
		if c.failed {
			failed++
		}
	}
	return failed, len(w.calls)
}

// prune drops calls made before cutoff.
func (w *providerWindow) prune(cutoff time.Time) {
	i := 0
	for i < len(w.calls) && w.calls[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		w.calls = w.calls[i:]
	}
}
