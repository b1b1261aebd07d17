package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/spf13/cobra"

	"github.com/jkaninda/coderun/internal/config"
	"github.com/jkaninda/coderun/internal/sandbox"
)

var (
	doctorConfigPath string
	doctorTimeout    time.Duration
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that the container runtime and recipe images are ready",
	Long: `Check the host before serving: the container CLI must be on PATH, the
Docker daemon must answer, and every recipe image must be tagged locally.

Exit status is non-zero when any check fails.`,
	RunE: runDoctor,
}

func init() {
	doctorCmd.Flags().StringVar(&doctorConfigPath, "config", config.DefaultConfigPath(), "path to config file")
	doctorCmd.Flags().DurationVar(&doctorTimeout, "timeout", 10*time.Second, "timeout for daemon checks")
}

// imageChecker is the part of sandbox.ImageProbe the doctor needs.
type imageChecker interface {
	Ping(ctx context.Context) error
	Images(ctx context.Context, names []string) ([]sandbox.ImageStatus, error)
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, doctorConfigPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Logging, os.Stderr)

	ctx, cancel := context.WithTimeout(cmd.Context(), doctorTimeout)
	defer cancel()

	probe, err := sandbox.NewImageProbe(logger)
	if err != nil {
		return err
	}
	defer func() { _ = probe.Close() }()

	failed := diagnose(ctx, os.Stdout, cfg, exec.LookPath, probe)
	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	return nil
}

// diagnose prints one line per check and returns the number of failures.
func diagnose(ctx context.Context, w io.Writer, cfg *config.Config, lookPath func(string) (string, error), probe imageChecker) int {
	failed := 0
	report := func(ok bool, format string, args ...any) {
		mark := "ok  "
		if !ok {
			mark = "FAIL"
			failed++
		}
		fmt.Fprintf(w, "[%s] %s\n", mark, fmt.Sprintf(format, args...))
	}

	if path, err := lookPath(cfg.Sandbox.Binary); err != nil {
		report(false, "container CLI %q not found: %v", cfg.Sandbox.Binary, err)
	} else {
		report(true, "container CLI %s", path)
	}

	if err := probe.Ping(ctx); err != nil {
		report(false, "%v", err)
		// Image checks need the daemon.
		return failed
	}
	report(true, "docker daemon reachable")

	statuses, err := probe.Images(ctx, imageNames(recipeImages(cfg)))
	if err != nil {
		report(false, "%v", err)
		return failed
	}
	for _, s := range statuses {
		if s.Present {
			report(true, "image %s", s.Name)
		} else {
			report(false, "image %s is not tagged locally", s.Name)
		}
	}

	return failed
}
