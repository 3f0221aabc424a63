package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const healthCheckTimeout = 3 * time.Second

// Readiness states. Only StatusUnavailable takes the instance out of
// rotation: a degraded instance still serves every route that does not
// need the failing upstream.
const (
	StatusOK          = "ok"
	StatusDegraded    = "degraded"
	StatusUnavailable = "unavailable"
)

// Dependency is a named readiness check. A critical dependency (the store)
// failing makes the instance unavailable; an optional one (SMS, payment)
// only degrades it.
type Dependency struct {
	Name     string
	Critical bool
	Check    func(ctx context.Context) error
}

// HealthChecker aggregates readiness of soko's dependencies.
type HealthChecker struct {
	mu     sync.RWMutex
	deps   []Dependency
	logger *slog.Logger
}

// HealthStatus is the JSON response for health/readiness endpoints.
type HealthStatus struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult is the outcome of one dependency check.
type CheckResult struct {
	Status    string `json:"status"` // "ok" or "fail"
	Critical  bool   `json:"critical"`
	LatencyMS int64  `json:"latencyMs"`
	Message   string `json:"message,omitempty"`
}

// NewHealthChecker creates a HealthChecker with no dependencies.
func NewHealthChecker(logger *slog.Logger) *HealthChecker {
	return &HealthChecker{logger: logger}
}

// AddDependency registers a readiness check.
func (h *HealthChecker) AddDependency(name string, critical bool, check func(ctx context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deps = append(h.deps, Dependency{Name: name, Critical: critical, Check: check})
}

// CheckReady runs every check concurrently under a shared timeout.
func (h *HealthChecker) CheckReady(ctx context.Context) HealthStatus {
	h.mu.RLock()
	deps := append([]Dependency(nil), h.deps...)
	h.mu.RUnlock()
	if len(deps) == 0 {
		return HealthStatus{Status: StatusOK}
	}

	checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	results := make([]CheckResult, len(deps))
	var wg sync.WaitGroup
	for i, d := range deps {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			err := d.Check(checkCtx)
			res := CheckResult{Status: "ok", Critical: d.Critical, LatencyMS: time.Since(start).Milliseconds()}
			if err != nil {
				res.Status = "fail"
				res.Message = err.Error()
			}
			results[i] = res
		}()
	}
	wg.Wait()

	status := HealthStatus{Status: StatusOK, Checks: make(map[string]CheckResult, len(deps))}
	for i, d := range deps {
		res := results[i]
		status.Checks[d.Name] = res
		if res.Status == "ok" {
			continue
		}
		switch {
		case d.Critical:
			status.Status = StatusUnavailable
		case status.Status == StatusOK:
			status.Status = StatusDegraded
		}
		if h.logger != nil {
			h.logger.Warn("readiness check failed",
				slog.String("dependency", d.Name),
				slog.Bool("critical", d.Critical),
				slog.String("error", res.Message),
			)
		}
	}
	return status
}
