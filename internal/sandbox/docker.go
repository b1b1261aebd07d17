package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

const defaultDockerBinary = "docker"

// DockerConfig configures the container invoker.
type DockerConfig struct {
	Binary       string // Container CLI. Default: "docker".
	KillOnCancel bool   // Send SIGTERM to the CLI when the request context ends.
}

// DockerInvoker spawns the container CLI once per call and captures its streams.
//
// Guarantees:
//   - Exactly one child process per Run, fully drained before returning
//   - stdout/stderr buffered in full, no size cap
//   - Streams decoded strictly; invalid UTF-8 is ErrDecodeFailed, never replaced
//   - Non-zero exit is a result (IsError), not an error
//   - Without KillOnCancel the child outlives a canceled request
type DockerInvoker struct {
	config DockerConfig
	logger *slog.Logger
}

// NewDockerInvoker creates a container invoker.
func NewDockerInvoker(cfg DockerConfig, logger *slog.Logger) *DockerInvoker {
	if cfg.Binary == "" {
		cfg.Binary = defaultDockerBinary
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DockerInvoker{
		config: cfg,
		logger: logger,
	}
}

// Binary returns the container CLI this invoker spawns.
func (d *DockerInvoker) Binary() string { return d.config.Binary }

// Run executes the container CLI with args and waits for it to exit.
func (d *DockerInvoker) Run(ctx context.Context, args []string) (*ExecutionResult, error) {
	cmd := d.command(ctx, args)
	logger := d.logger.With(slog.String("call_id", CallIDFromContext(ctx)))

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	logger.DebugContext(ctx, "container invocation starting",
		slog.String("binary", d.config.Binary),
		slog.Any("args", args),
	)

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return nil, fmt.Errorf("%w: %s: %v", ErrSpawnFailed, d.config.Binary, runErr)
		}
		// -1 when the child was killed by a signal.
		exitCode = exitErr.ExitCode()
	}

	stdout, err := decodeStrict(stdoutBuf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%w: stdout: %v", ErrDecodeFailed, err)
	}
	stderr, err := decodeStrict(stderrBuf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%w: stderr: %v", ErrDecodeFailed, err)
	}

	logger.InfoContext(ctx, "container invocation completed",
		slog.Int("exit_code", exitCode),
		slog.Duration("duration", duration),
		slog.Int("stdout_bytes", stdoutBuf.Len()),
		slog.Int("stderr_bytes", stderrBuf.Len()),
	)

	result := NewExecutionResult(stdout, stderr, exitCode)
	result.Duration = duration
	return result, nil
}

func (d *DockerInvoker) command(ctx context.Context, args []string) *exec.Cmd {
	if !d.config.KillOnCancel {
		return exec.Command(d.config.Binary, args...)
	}
	cmd := exec.CommandContext(ctx, d.config.Binary, args...)
	// The docker client forwards SIGTERM to the container before exiting.
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = 10 * time.Second
	return cmd
}

// decodeStrict converts b to a string, rejecting any invalid UTF-8 sequence.
func decodeStrict(b []byte) (string, error) {
	if len(b) == 0 {
		return "", nil
	}
	out, _, err := transform.Bytes(encoding.UTF8Validator, b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
