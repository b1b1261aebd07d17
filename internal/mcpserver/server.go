// Package mcpserver hosts the coderun tool registry behind the Model Context
// Protocol, over stdio or streamable HTTP.
//
// The server object is immutable after New: tools are installed once and
// every call is dispatched on its own goroutine by the transport.
package mcpserver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jkaninda/coderun/internal/observability"
	"github.com/jkaninda/coderun/internal/tools"
)

// ProtocolVersion is the MCP revision advertised in every initialize
// result, whatever revision the client requested.
const ProtocolVersion = "2025-06-18"

const instructionsPrefix = "This server provides compilation and code execution tools. Tools: "

// Config configures the MCP server.
type Config struct {
	Name     string // Implementation name. Default: "coderun".
	Version  string // Implementation version, injected at build time.
	Registry *tools.Registry
	Obs      *observability.Observability // nil = no metrics, tracing, or anomaly detection.
}

// Server wraps the mcp-go server with coderun's hooks and transports.
type Server struct {
	config Config
	mcp    *server.MCPServer
	logger *slog.Logger
}

// New builds the MCP server and installs every registered tool.
func New(cfg Config, logger *slog.Logger) *Server {
	if cfg.Name == "" {
		cfg.Name = "coderun"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.Registry == nil {
		cfg.Registry = tools.NewRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{config: cfg, logger: logger}

	hooks := &server.Hooks{}
	hooks.AddBeforeInitialize(s.logInitialize)
	hooks.AddAfterInitialize(pinProtocolVersion)

	s.mcp = server.NewMCPServer(cfg.Name, cfg.Version,
		server.WithToolCapabilities(false),
		server.WithInstructions(Instructions(cfg.Registry)),
		server.WithHooks(hooks),
		server.WithRecovery(),
		server.WithToolHandlerMiddleware(observability.ToolMiddleware(
			cfg.Obs.MetricsOrNil(), cfg.Obs.TracerOrNil(), cfg.Obs.AnomalyOrNil(),
		)),
	)
	cfg.Registry.Install(s.mcp)

	return s
}

// Instructions returns the instruction string advertised at initialize.
func Instructions(reg *tools.Registry) string {
	return instructionsPrefix + strings.Join(reg.List(), ", ") + "."
}

// MCP exposes the underlying mcp-go server.
func (s *Server) MCP() *server.MCPServer { return s.mcp }

// ServeStdio serves MCP over in and out until ctx is canceled or in is closed.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))

	s.logger.Info("mcp server listening",
		slog.String("transport", "stdio"),
		slog.String("protocol_version", ProtocolVersion),
	)

	err := stdio.Listen(ctx, in, out)
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// logInitialize records the handshake. Over HTTP the request headers and URI
// are available from the context; stdio carries none.
func (s *Server) logInitialize(ctx context.Context, id any, msg *mcp.InitializeRequest) {
	attrs := []any{
		slog.Any("id", id),
		slog.String("client_name", msg.Params.ClientInfo.Name),
		slog.String("client_version", msg.Params.ClientInfo.Version),
		slog.String("requested_protocol_version", msg.Params.ProtocolVersion),
	}
	if info, ok := requestInfoFromContext(ctx); ok {
		attrs = append(attrs,
			slog.String("uri", info.URI),
			slog.Any("headers", info.Header),
		)
		s.logger.InfoContext(ctx, "initialize from http server", attrs...)
		return
	}
	s.logger.InfoContext(ctx, "initialize", attrs...)
}

func pinProtocolVersion(_ context.Context, _ any, _ *mcp.InitializeRequest, result *mcp.InitializeResult) {
	if result != nil {
		result.ProtocolVersion = ProtocolVersion
	}
}

// requestInfo is the part of the HTTP request kept for the initialize log.
type requestInfo struct {
	URI    string
	Header http.Header
}

type contextKey int

const requestInfoKey contextKey = iota

// sensitiveHeaders are masked before headers reach the logs.
var sensitiveHeaders = []string{"Authorization", "Cookie", "Proxy-Authorization"}

func withRequestInfo(ctx context.Context, r *http.Request) context.Context {
	header := r.Header.Clone()
	for _, h := range sensitiveHeaders {
		if header.Get(h) != "" {
			header.Set(h, "[redacted]")
		}
	}
	return context.WithValue(ctx, requestInfoKey, requestInfo{
		URI:    r.URL.RequestURI(),
		Header: header,
	})
}

func requestInfoFromContext(ctx context.Context) (requestInfo, bool) {
	info, ok := ctx.Value(requestInfoKey).(requestInfo)
	return info, ok
}
