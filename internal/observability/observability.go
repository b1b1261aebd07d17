// Package observability instruments coderun's two hot paths, tool calls and
// container runs, with Prometheus metrics, OpenTelemetry spans and a
// fault-rate detector, and evaluates readiness of the docker dependency.
//
// Every component is optional. A nil *Observability, or a nil component
// inside one, records nothing.
package observability

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jkaninda/coderun/internal/config"
	"github.com/jkaninda/coderun/internal/sandbox"
)

// Observability bundles the enabled components.
type Observability struct {
	Metrics *MetricsCollector
	Tracer  *TracerSetup
	Anomaly *AnomalyDetector
	Health  *HealthChecker
}

// SandboxProbe is what readiness needs from the container runtime.
type SandboxProbe interface {
	Ping(ctx context.Context) error
	CheckImages(ctx context.Context, names []string) error
}

// New builds the components cfg enables. A nil cfg disables everything and
// yields a nil *Observability.
func New(cfg *config.ObservabilityConfig, logger *slog.Logger) (*Observability, error) {
	if cfg == nil {
		return nil, nil
	}

	obs := &Observability{Health: NewHealthChecker(logger)}

	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		obs.Metrics = NewMetricsCollector()
	}
	if cfg.Tracing != nil && cfg.Tracing.Enabled {
		ts, err := NewTracerSetup(cfg.Tracing)
		if err != nil {
			return nil, fmt.Errorf("initializing tracing: %w", err)
		}
		obs.Tracer = ts
	}
	if cfg.Anomaly != nil && cfg.Anomaly.Enabled {
		obs.Anomaly = NewAnomalyDetector(cfg.Anomaly, logger)
	}
	return obs, nil
}

// InstrumentRunner wraps inner so each container run is measured and traced.
// With observability off, inner is returned unchanged.
func (o *Observability) InstrumentRunner(inner sandbox.Runner) sandbox.Runner {
	if o == nil {
		return inner
	}
	return NewInstrumentedRunner(inner, o.Metrics, o.Tracer, o.Anomaly)
}

// RegisterSandboxChecks adds the "docker" and "images" readiness checks.
func (o *Observability) RegisterSandboxChecks(probe SandboxProbe, images []string) {
	if o == nil || o.Health == nil {
		return
	}
	o.Health.AddCheck("docker", probe.Ping)
	o.Health.AddCheck("images", func(ctx context.Context) error {
		return probe.CheckImages(ctx, images)
	})
}

// Shutdown flushes pending spans.
func (o *Observability) Shutdown(ctx context.Context) {
	if o == nil {
		return
	}
	_ = o.Tracer.Shutdown(ctx)
}

func (o *Observability) TracerOrNil() *TracerSetup {
	if o == nil {
		return nil
	}
	return o.Tracer
}

func (o *Observability) MetricsOrNil() *MetricsCollector {
	if o == nil {
		return nil
	}
	return o.Metrics
}

func (o *Observability) AnomalyOrNil() *AnomalyDetector {
	if o == nil {
		return nil
	}
	return o.Anomaly
}

func (o *Observability) HealthOrNil() *HealthChecker {
	if o == nil {
		return nil
	}
	return o.Health
}
