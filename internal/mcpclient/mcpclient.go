// Package mcpclient connects to a running coderun server as an MCP client.
// It backs the `coderun call` command, which lists or invokes tools for
// smoke-testing a deployment.
package mcpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

// ErrToolFailed is returned by Call when the server flagged the result as an error.
var ErrToolFailed = errors.New("tool reported an error")

// Config selects how to reach the server.
type Config struct {
	Transport string            // "stdio" or "streamable_http".
	Command   string            // stdio: server executable.
	Args      []string          // stdio: server arguments.
	Env       map[string]string // stdio: extra environment, values expanded with os.ExpandEnv.
	URL       string            // streamable_http: endpoint URL.
	Headers   map[string]string // streamable_http: extra headers, values expanded with os.ExpandEnv.
}

// Client is an initialized MCP session.
type Client struct {
	c          *mcpclient.Client
	serverInfo mcp.Implementation
	protocol   string
	logger     *slog.Logger
}

// Result is a tool call outcome flattened to text.
type Result struct {
	Text    string
	IsError bool
}

// Connect opens the transport and performs the initialize handshake.
func Connect(ctx context.Context, cfg Config, version string, logger *slog.Logger) (*Client, error) {
	c, err := createClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating MCP client: %w", err)
	}
	if cfg.Transport == "streamable_http" {
		if err := c.Start(ctx); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("starting MCP transport: %w", err)
		}
	}
	client, err := handshake(ctx, c, version, logger)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	return client, nil
}

func handshake(ctx context.Context, c *mcpclient.Client, version string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "coderun-call",
		Version: version,
	}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	res, err := c.Initialize(ctx, initReq)
	if err != nil {
		return nil, fmt.Errorf("MCP initialize: %w", err)
	}

	logger.Debug("MCP server connected",
		slog.String("server", res.ServerInfo.Name),
		slog.String("server_version", res.ServerInfo.Version),
		slog.String("protocol_version", res.ProtocolVersion),
	)

	return &Client{
		c:          c,
		serverInfo: res.ServerInfo,
		protocol:   res.ProtocolVersion,
		logger:     logger,
	}, nil
}

// ServerInfo returns the implementation identity the server advertised.
func (c *Client) ServerInfo() mcp.Implementation { return c.serverInfo }

// ProtocolVersion returns the negotiated protocol revision.
func (c *Client) ProtocolVersion() string { return c.protocol }

// ListTools returns the advertised tools sorted by name.
func (c *Client) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	resp, err := c.c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("MCP list tools: %w", err)
	}
	sort.Slice(resp.Tools, func(i, j int) bool { return resp.Tools[i].Name < resp.Tools[j].Name })
	return resp.Tools, nil
}

// Call invokes a tool. A result flagged as an error is returned together
// with ErrToolFailed so callers can still print it.
func (c *Client) Call(ctx context.Context, name string, args map[string]any) (*Result, error) {
	callReq := mcp.CallToolRequest{}
	callReq.Params.Name = name
	callReq.Params.Arguments = args

	c.logger.DebugContext(ctx, "mcp tool call", slog.String("tool", name))

	callResult, err := c.c.CallTool(ctx, callReq)
	if err != nil {
		return nil, fmt.Errorf("MCP call to %s failed: %w", name, err)
	}

	result := &Result{
		Text:    FormatContent(callResult.Content),
		IsError: callResult.IsError,
	}
	if result.IsError {
		return result, fmt.Errorf("%w: %s", ErrToolFailed, name)
	}
	return result, nil
}

// Close shuts down the client connection.
func (c *Client) Close() error {
	return c.c.Close()
}

// FormatContent converts MCP content items to a single string.
func FormatContent(content []mcp.Content) string {
	var sb strings.Builder
	for i, item := range content {
		if i > 0 {
			sb.WriteString("\n")
		}
		if tc, ok := mcp.AsTextContent(item); ok {
			sb.WriteString(tc.Text)
		} else {
			// Non-text content (image, audio, resource) is printed as JSON.
			data, _ := json.Marshal(item)
			sb.Write(data)
		}
	}
	return sb.String()
}

// ParseArgs turns key=value pairs into tool arguments. Values stay strings;
// use a JSON object for anything structured.
func ParseArgs(pairs []string, jsonArgs string) (map[string]any, error) {
	args := make(map[string]any, len(pairs))
	if jsonArgs != "" {
		if err := json.Unmarshal([]byte(jsonArgs), &args); err != nil {
			return nil, fmt.Errorf("parsing JSON arguments: %w", err)
		}
	}
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("argument %q is not key=value", p)
		}
		args[key] = value
	}
	return args, nil
}

// createClient creates the appropriate MCP client based on transport type.
func createClient(cfg Config) (*mcpclient.Client, error) {
	switch cfg.Transport {
	case "stdio", "":
		if cfg.Command == "" {
			return nil, errors.New("stdio transport needs a command")
		}
		return mcpclient.NewStdioMCPClient(cfg.Command, expandEnvMap(cfg.Env), cfg.Args...)

	case "streamable_http":
		if cfg.URL == "" {
			return nil, errors.New("streamable_http transport needs a URL")
		}
		var opts []transport.StreamableHTTPCOption
		if len(cfg.Headers) > 0 {
			opts = append(opts, transport.WithHTTPHeaders(expandEnvToMap(cfg.Headers)))
		}
		return mcpclient.NewStreamableHttpClient(cfg.URL, opts...)

	default:
		return nil, fmt.Errorf("unsupported transport: %s", cfg.Transport)
	}
}

// expandEnvMap converts a map of key→value to a []string of "KEY=expanded_value".
func expandEnvMap(m map[string]string) []string {
	env := make([]string, 0, len(m))
	for k, v := range m {
		env = append(env, k+"="+os.ExpandEnv(v))
	}
	sort.Strings(env)
	return env
}

// expandEnvToMap returns a new map with values expanded via os.ExpandEnv.
func expandEnvToMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = os.ExpandEnv(v)
	}
	return out
}
