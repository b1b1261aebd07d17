// Package sandbox runs container invocations on the host.
// Every recipe hands its synthesized argument vector to a Runner; nothing is
// executed on the host outside the container runtime.
package sandbox

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrSpawnFailed means the container binary could not be started
	// (not on PATH, permission denied, ...).
	ErrSpawnFailed = errors.New("container runtime could not be spawned")

	// ErrDecodeFailed means a captured stream was not valid UTF-8.
	ErrDecodeFailed = errors.New("container output is not valid UTF-8")
)

// Runner executes one container invocation and waits for it to exit.
type Runner interface {
	Run(ctx context.Context, args []string) (*ExecutionResult, error)
}

// ExecutionResult is the uniform record returned for every invocation.
// Only the three tagged fields are part of the wire shape.
type ExecutionResult struct {
	Stdout  string `json:"stdout"`
	Stderr  string `json:"stderr"`
	IsError bool   `json:"is_error"`

	ExitCode int           `json:"-"`
	Duration time.Duration `json:"-"`
}

// NewExecutionResult builds a result from decoded streams and an exit code.
func NewExecutionResult(stdout, stderr string, exitCode int) *ExecutionResult {
	return &ExecutionResult{
		Stdout:   stdout,
		Stderr:   stderr,
		IsError:  exitCode != 0,
		ExitCode: exitCode,
	}
}

// contextKey is an unexported type for context keys defined in this package.
type contextKey int

const callIDKey contextKey = iota

// ContextWithCallID returns a new context carrying the tool call's correlation ID.
func ContextWithCallID(ctx context.Context, callID string) context.Context {
	return context.WithValue(ctx, callIDKey, callID)
}

// CallIDFromContext extracts the call ID from context, or "" if not set.
func CallIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(callIDKey).(string); ok {
		return v
	}
	return ""
}
