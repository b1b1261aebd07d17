package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	goutils "github.com/jkaninda/go-utils"

	"github.com/jkaninda/coderun/internal/compile/scripta"
	"github.com/jkaninda/coderun/internal/compile/scriptb"
	"github.com/jkaninda/coderun/internal/compile/systemsc"
	"github.com/jkaninda/coderun/internal/config"
	"github.com/jkaninda/coderun/internal/mcpserver"
	"github.com/jkaninda/coderun/internal/observability"
	"github.com/jkaninda/coderun/internal/sandbox"
	"github.com/jkaninda/coderun/internal/tools"
)

// SharedComponents holds the subsystems built once per process.
// Built by initShared, torn down by Cleanup.
type SharedComponents struct {
	Config   *config.Config
	Logger   *slog.Logger
	Obs      *observability.Observability
	Runner   sandbox.Runner
	ToolReg  *tools.Registry
	Server   *mcpserver.Server
	cleanups []func()
}

// Cleanup runs all deferred cleanup functions in reverse order.
func (sc *SharedComponents) Cleanup() {
	for i := len(sc.cleanups) - 1; i >= 0; i-- {
		sc.cleanups[i]()
	}
}

func (sc *SharedComponents) addCleanup(fn func()) {
	sc.cleanups = append(sc.cleanups, fn)
}

// envOr returns the value of key, or fallback when it is unset or empty.
func envOr(key, fallback string) string {
	if os.Getenv(key) == "" {
		return fallback
	}
	return goutils.Env(key, fallback)
}

// loadConfig resolves the config path (CODERUN_CONFIG wins over the flag).
// Only an explicitly requested file has to exist.
func loadConfig(cmd *cobra.Command, flagPath string) (*config.Config, error) {
	path := envOr("CODERUN_CONFIG", flagPath)
	explicit := os.Getenv("CODERUN_CONFIG") != "" || (cmd != nil && cmd.Flags().Changed("config"))
	if explicit {
		return config.Load(path)
	}
	return config.LoadOrDefault(path)
}

// newLogger builds the process logger. Logs always go to w (stderr in
// production) since stdout belongs to the stdio transport.
func newLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// recipeImages returns the configured image per recipe with defaults filled in.
func recipeImages(cfg *config.Config) tools.Images {
	images := tools.Images{
		ScriptA:  cfg.Sandbox.Images.ScriptA,
		ScriptB:  cfg.Sandbox.Images.ScriptB,
		SystemsC: cfg.Sandbox.Images.SystemsC,
	}
	if images.ScriptA == "" {
		images.ScriptA = scripta.DefaultImage
	}
	if images.ScriptB == "" {
		images.ScriptB = scriptb.DefaultImage
	}
	if images.SystemsC == "" {
		images.SystemsC = systemsc.DefaultImage
	}
	return images
}

func imageNames(images tools.Images) []string {
	return []string{images.ScriptA, images.ScriptB, images.SystemsC}
}

// initShared wires config into the runner, tool registry, and MCP server.
// Callers must call sc.Cleanup() when done.
func initShared(cfg *config.Config, logger *slog.Logger) (*SharedComponents, error) {
	sc := &SharedComponents{
		Config: cfg,
		Logger: logger,
	}

	obs, err := observability.New(cfg.Observability, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing observability: %w", err)
	}
	sc.Obs = obs
	sc.addCleanup(func() { obs.Shutdown(context.Background()) })

	invoker := sandbox.NewDockerInvoker(sandbox.DockerConfig{
		Binary:       cfg.Sandbox.Binary,
		KillOnCancel: cfg.Sandbox.KillOnCancel,
	}, logger)
	sc.Runner = obs.InstrumentRunner(invoker)
	logger.Debug("container invoker initialized",
		slog.String("binary", invoker.Binary()),
		slog.Bool("kill_on_cancel", cfg.Sandbox.KillOnCancel),
	)

	images := recipeImages(cfg)

	if obs != nil && cfg.Observability.Health != nil && cfg.Observability.Health.IncludeDocker {
		probe, err := sandbox.NewImageProbe(logger)
		if err != nil {
			sc.Cleanup()
			return nil, err
		}
		sc.addCleanup(func() { _ = probe.Close() })
		obs.RegisterSandboxChecks(probe, imageNames(images))
	}

	sc.ToolReg = tools.NewDefaultRegistry(images, sc.Runner, logger)
	sc.Server = mcpserver.New(mcpserver.Config{
		Name:     cfg.Server.Name,
		Version:  version,
		Registry: sc.ToolReg,
		Obs:      obs,
	}, logger)

	logger.Debug("tools registered", slog.Any("tools", sc.ToolReg.List()))

	return sc, nil
}
