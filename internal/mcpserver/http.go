package mcpserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/jkaninda/okapi"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jkaninda/coderun/internal/observability"
)

// HTTPConfig configures the streamable HTTP transport.
type HTTPConfig struct {
	ListenAddr   string // e.g. ":8080"
	EndpointPath string // MCP endpoint. Default: "/mcp".
	MetricsPath  string // Served only when metrics are enabled. Default: "/metrics".
}

// HealthResponse is the JSON body of the liveness probe.
type HealthResponse struct {
	Status string `json:"status"`
}

// StreamableHandler returns the MCP streamable HTTP handler mounted at path.
func (s *Server) StreamableHandler(path string) http.Handler {
	return server.NewStreamableHTTPServer(s.mcp,
		server.WithEndpointPath(path),
		server.WithHTTPContextFunc(withRequestInfo),
	)
}

// ServeHTTP serves MCP over streamable HTTP, alongside health and metrics
// endpoints, until ctx is canceled.
func (s *Server) ServeHTTP(ctx context.Context, cfg HTTPConfig) error {
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}

	o := okapi.New()
	obs := s.config.Obs

	if obs.MetricsOrNil() != nil || obs.TracerOrNil() != nil {
		metrics := obs.MetricsOrNil()
		tracer := obs.TracerOrNil().Tracer()
		routes := []string{cfg.EndpointPath, "/healthz", "/readyz", cfg.MetricsPath}
		o.UseMiddleware(func(next http.Handler) http.Handler {
			return observability.HTTPMetricsMiddleware(metrics, tracer, routes, next)
		})
	}

	mcpHandler := s.StreamableHandler(cfg.EndpointPath)
	for _, method := range []string{http.MethodPost, http.MethodGet, http.MethodDelete} {
		o.HandleStd(method, cfg.EndpointPath, mcpHandler.ServeHTTP)
	}

	o.Get("/healthz", s.handleLiveness)
	o.Get("/readyz", s.handleReadiness)
	if m := obs.MetricsOrNil(); m != nil {
		o.HandleStd(http.MethodGet, cfg.MetricsPath, promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}).ServeHTTP)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// No WriteTimeout: a tool call lasts as long as its container and
		// GET streams stay open for server notifications.
		IdleTimeout: 120 * time.Second,
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		s.logger.Info("mcp http server stopping")
		if err := o.Shutdown(srv); err != nil {
			s.logger.Error("mcp http server shutdown", slog.String("error", err.Error()))
		}
	}()

	s.logger.Info("mcp server listening",
		slog.String("transport", "http"),
		slog.String("addr", cfg.ListenAddr),
		slog.String("endpoint", cfg.EndpointPath),
		slog.String("protocol_version", ProtocolVersion),
	)

	err := o.StartServer(srv)
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// handleLiveness is the liveness probe.
func (s *Server) handleLiveness(c *okapi.Context) error {
	return c.OK(&HealthResponse{Status: "ok"})
}

// handleReadiness runs the registered dependency checks and returns 200 or 503.
func (s *Server) handleReadiness(c *okapi.Context) error {
	health := s.config.Obs.HealthOrNil()
	if health == nil {
		return c.OK(&HealthResponse{Status: "ok"})
	}

	status := health.CheckReady(c.Context())
	code := http.StatusOK
	if status.Status != observability.ReadyOK {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, status)
}
