package observability

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jkaninda/coderun/internal/config"
)

// minSamples is the number of outcomes a window needs before its rate is judged.
const minSamples = 5

// AnomalyDetector flags operations whose fault rate over a sliding window
// exceeds the configured threshold.
type AnomalyDetector struct {
	mu            sync.Mutex
	errorCounts   map[string]*slidingWindow
	successCounts map[string]*slidingWindow
	flagged       map[string]bool
	threshold     float64
	window        time.Duration
	logger        *slog.Logger
	now           func() time.Time
}

type slidingWindow struct {
	entries []time.Time
	window  time.Duration
}

// NewAnomalyDetector creates an anomaly detector from config.
func NewAnomalyDetector(cfg *config.AnomalyConfig, logger *slog.Logger) *AnomalyDetector {
	return &AnomalyDetector{
		errorCounts:   make(map[string]*slidingWindow),
		successCounts: make(map[string]*slidingWindow),
		flagged:       make(map[string]bool),
		threshold:     cfg.ErrorRateThreshold,
		window:        cfg.Window(),
		logger:        logger,
		now:           time.Now,
	}
}

// RecordError records a faulted operation.
func (a *AnomalyDetector) RecordError(operation string) {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.getOrCreateWindow(a.errorCounts, operation).add(a.now())
	a.checkErrorRate(operation)
}

// RecordSuccess records an operation that completed without a fault.
func (a *AnomalyDetector) RecordSuccess(operation string) {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.getOrCreateWindow(a.successCounts, operation).add(a.now())
	a.checkErrorRate(operation)
}

// Anomalous reports whether operation is currently above the threshold.
func (a *AnomalyDetector) Anomalous(operation string) bool {
	if a == nil {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.flagged[operation]
}

// checkErrorRate re-evaluates operation and logs on a transition.
// Must be called with a.mu held.
func (a *AnomalyDetector) checkErrorRate(operation string) {
	if a.threshold <= 0 {
		return
	}

	now := a.now()
	errs := float64(a.getOrCreateWindow(a.errorCounts, operation).count(now))
	successes := float64(a.getOrCreateWindow(a.successCounts, operation).count(now))
	total := errs + successes

	if total < minSamples {
		return
	}

	rate := errs / total
	above := rate > a.threshold
	if above == a.flagged[operation] {
		return
	}
	a.flagged[operation] = above

	if a.logger == nil {
		return
	}
	if above {
		a.logger.Warn("anomaly detected: high fault rate",
			slog.String("operation", operation),
			slog.Float64("fault_rate", rate),
			slog.Float64("threshold", a.threshold),
			slog.Float64("faults", errs),
			slog.Float64("total", total),
		)
	} else {
		a.logger.Info("fault rate back under threshold",
			slog.String("operation", operation),
			slog.Float64("fault_rate", rate),
		)
	}
}

func (a *AnomalyDetector) getOrCreateWindow(m map[string]*slidingWindow, key string) *slidingWindow {
	w, ok := m[key]
	if !ok {
		w = &slidingWindow{window: a.window}
		m[key] = w
	}
	return w
}

func (w *slidingWindow) add(now time.Time) {
	w.entries = append(w.entries, now)
	w.prune(now)
}

// count returns the number of entries within the window ending at now.
func (w *slidingWindow) count(now time.Time) int {
	w.prune(now)
	return len(w.entries)
}

// prune removes entries older than the window duration.
func (w *slidingWindow) prune(now time.Time) {
	cutoff := now.Add(-w.window)
	i := 0
	for i < len(w.entries) && w.entries[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		w.entries = w.entries[i:]
	}
}
