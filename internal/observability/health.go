package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// readinessTimeout bounds one /readyz evaluation. A docker daemon that does
// not answer within it counts as down.
const readinessTimeout = 3 * time.Second

const (
	ReadyOK       = "ok"
	ReadyDegraded = "degraded"
	CheckFailed   = "fail"
)

// ReadinessFunc probes one dependency.
type ReadinessFunc func(ctx context.Context) error

type namedCheck struct {
	name  string
	check ReadinessFunc
}

// HealthChecker evaluates the dependencies a tool call needs: in practice the
// docker daemon and the recipe images.
type HealthChecker struct {
	mu     sync.RWMutex
	checks []namedCheck
	logger *slog.Logger
}

// HealthStatus is the /readyz body.
type HealthStatus struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult reports one dependency.
type CheckResult struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

// NewHealthChecker returns a checker with nothing registered; it reports ready.
func NewHealthChecker(logger *slog.Logger) *HealthChecker {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthChecker{logger: logger}
}

// AddCheck registers check under name. Registering a name twice replaces it.
func (h *HealthChecker) AddCheck(name string, check ReadinessFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range h.checks {
		if h.checks[i].name == name {
			h.checks[i].check = check
			return
		}
	}
	h.checks = append(h.checks, namedCheck{name: name, check: check})
}

// CheckReady runs every check in parallel under readinessTimeout. The result
// is ReadyOK only when all of them pass.
func (h *HealthChecker) CheckReady(ctx context.Context) HealthStatus {
	h.mu.RLock()
	checks := append([]namedCheck(nil), h.checks...)
	h.mu.RUnlock()

	if len(checks) == 0 {
		return HealthStatus{Status: ReadyOK}
	}

	ctx, cancel := context.WithTimeout(ctx, readinessTimeout)
	defer cancel()

	results := make([]CheckResult, len(checks))
	var wg sync.WaitGroup
	for i, c := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			err := c.check(ctx)
			results[i] = CheckResult{Status: ReadyOK, ElapsedMS: time.Since(start).Milliseconds()}
			if err != nil {
				results[i].Status = CheckFailed
				results[i].Message = err.Error()
			}
		}()
	}
	wg.Wait()

	status := HealthStatus{Status: ReadyOK, Checks: make(map[string]CheckResult, len(checks))}
	for i, c := range checks {
		status.Checks[c.name] = results[i]
		if results[i].Status == ReadyOK {
			continue
		}
		status.Status = ReadyDegraded
		h.logger.WarnContext(ctx, "readiness check failed",
			slog.String("check", c.name),
			slog.String("error", results[i].Message),
		)
	}
	return status
}
