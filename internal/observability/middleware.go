package observability

import (
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// OtherRoute is the path label for requests that match no mounted route.
const OtherRoute = "other"

// HTTPMetricsMiddleware records request counts, latencies, and a server span
// for every request passing through next. Paths are labeled by route; anything
// outside routes collapses into OtherRoute.
func HTTPMetricsMiddleware(metrics *MetricsCollector, tracer trace.Tracer, routes []string, next http.Handler) http.Handler {
	known := make(map[string]struct{}, len(routes))
	for _, r := range routes {
		known[r] = struct{}{}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := OtherRoute
		if _, ok := known[r.URL.Path]; ok {
			route = r.URL.Path
		}

		if tracer != nil {
			ctx, span := tracer.Start(r.Context(), "http.request",
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.method", r.Method),
					attribute.String("http.route", route),
				))
			defer span.End()
			r = r.WithContext(ctx)
		}

		rec := &statusRecorder{ResponseWriter: w}
		start := time.Now()

		next.ServeHTTP(rec, r)

		if metrics != nil {
			code := rec.status
			if code == 0 {
				code = http.StatusOK
			}
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(code)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		}
	})
}

// statusRecorder captures the response status while keeping streaming intact.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

// Flush lets streamed MCP responses reach the client as they are written.
func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}
