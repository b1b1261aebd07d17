// Package tools defines the MCP tools coderun exposes and the registry that
// installs them on a server. Each tool validates its own input and hands a
// per-call recipe to the sandbox; nothing is shared between calls.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jkaninda/coderun/internal/sandbox"
)

// ErrInvalidInput marks arguments that fail validation before any recipe runs.
var ErrInvalidInput = errors.New("invalid tool input")

// Tool is the interface every coderun tool implements.
type Tool interface {
	// Name returns the tool's unique identifier (e.g. "run_scripta").
	Name() string

	// Definition returns the MCP tool declaration: description and input schema.
	Definition() mcp.Tool

	// Handle serves one call. Returned errors are protocol faults; a child
	// that ran and failed is reported through the result's IsError flag.
	Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// Registry holds available tools keyed by name.
// Thread-safe for concurrent reads; writes should only happen at startup.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Panics on duplicate names (startup config error, not runtime).
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name()]; exists {
		panic("duplicate tool registration: " + t.Name())
	}
	r.tools[t.Name()] = t
}

// Get returns the tool by name, or nil if not found.
func (r *Registry) Get(name string) Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// List returns all registered tool names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns all registered tools ordered by name.
func (r *Registry) All() []Tool {
	names := r.List()
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Tool, 0, len(names))
	for _, name := range names {
		result = append(result, r.tools[name])
	}
	return result
}

// Install adds every registered tool to s.
func (r *Registry) Install(s *server.MCPServer) {
	for _, t := range r.All() {
		s.AddTool(t.Definition(), t.Handle)
	}
}

// ResultFromExecution wraps an ExecutionResult in a tool result: one text
// item holding its JSON, flagged as an error when the child failed.
func ResultFromExecution(res *sandbox.ExecutionResult) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("encoding execution result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(data))},
		IsError: res.IsError,
	}, nil
}
