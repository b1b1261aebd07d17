package observability

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jkaninda/coderun/internal/sandbox"
)

// Outcome labels shared by tool and sandbox metrics.
const (
	StatusSuccess     = "success"
	StatusToolError   = "tool_error"   // Completed, result flagged is_error.
	StatusNonZeroExit = "nonzero_exit" // Container exited with a non-zero code.
	StatusFault       = "fault"        // Handler or runner returned an error.
)

// --- InstrumentedRunner ---

// InstrumentedRunner wraps a sandbox.Runner with metrics, tracing, and anomaly detection.
type InstrumentedRunner struct {
	inner   sandbox.Runner
	metrics *MetricsCollector
	tracer  trace.Tracer
	anomaly *AnomalyDetector
}

// NewInstrumentedRunner wraps a runner with observability.
func NewInstrumentedRunner(inner sandbox.Runner, metrics *MetricsCollector, ts *TracerSetup, anomaly *AnomalyDetector) *InstrumentedRunner {
	var tracer trace.Tracer
	if ts != nil {
		tracer = ts.Tracer()
	}
	return &InstrumentedRunner{
		inner:   inner,
		metrics: metrics,
		tracer:  tracer,
		anomaly: anomaly,
	}
}

func (r *InstrumentedRunner) Run(ctx context.Context, args []string) (*sandbox.ExecutionResult, error) {
	var span trace.Span
	if r.tracer != nil {
		ctx, span = r.tracer.Start(ctx, "sandbox.run",
			trace.WithAttributes(
				attribute.String("sandbox.image", imageFromArgs(args)),
				attribute.Int("sandbox.argc", len(args)),
			))
		defer span.End()
	}

	start := time.Now()
	result, err := r.inner.Run(ctx, args)
	duration := time.Since(start).Seconds()

	status := StatusSuccess
	switch {
	case err != nil:
		status = StatusFault
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	case result != nil && result.IsError:
		status = StatusNonZeroExit
		if span != nil {
			span.SetAttributes(attribute.Int("sandbox.exit_code", result.ExitCode))
		}
	}

	if r.metrics != nil {
		r.metrics.SandboxExecutionsTotal.WithLabelValues(status).Inc()
		r.metrics.SandboxExecutionDuration.Observe(duration)
	}

	if err != nil {
		r.anomaly.RecordError("sandbox")
	} else {
		r.anomaly.RecordSuccess("sandbox")
	}

	return result, err
}

// imageFromArgs returns the image operand of a "run" vector: the first
// argument after the last flag pair the invoker emits.
func imageFromArgs(args []string) string {
	for i := 1; i < len(args); i++ {
		switch args[i] {
		case "--rm":
		case "-v", "-e", "-w":
			i++
		default:
			return args[i]
		}
	}
	return ""
}

// --- Tool middleware ---

// ToolMiddleware instruments every MCP tool call with a span, call metrics,
// and per-tool fault tracking.
func ToolMiddleware(metrics *MetricsCollector, ts *TracerSetup, anomaly *AnomalyDetector) server.ToolHandlerMiddleware {
	var tracer trace.Tracer
	if ts != nil {
		tracer = ts.Tracer()
	}
	return func(next server.ToolHandlerFunc) server.ToolHandlerFunc {
		return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			tool := req.Params.Name

			var span trace.Span
			if tracer != nil {
				ctx, span = tracer.Start(ctx, "mcp.tool_call",
					trace.WithAttributes(attribute.String("mcp.tool", tool)))
				defer span.End()
			}

			if metrics != nil {
				metrics.ActiveCalls.Inc()
				defer metrics.ActiveCalls.Dec()
			}

			start := time.Now()
			result, err := next(ctx, req)
			duration := time.Since(start).Seconds()

			status := StatusSuccess
			switch {
			case err != nil:
				status = StatusFault
				if span != nil {
					span.RecordError(err)
					span.SetStatus(codes.Error, err.Error())
				}
			case result != nil && result.IsError:
				status = StatusToolError
			}

			if metrics != nil {
				metrics.ToolCallsTotal.WithLabelValues(tool, status).Inc()
				metrics.ToolCallDuration.WithLabelValues(tool).Observe(duration)
			}

			if err != nil {
				anomaly.RecordError("tool_" + tool)
			} else {
				anomaly.RecordSuccess("tool_" + tool)
			}

			return result, err
		}
	}
}

var _ sandbox.Runner = (*InstrumentedRunner)(nil)
