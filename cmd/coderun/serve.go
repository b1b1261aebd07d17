package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jkaninda/coderun/internal/config"
	"github.com/jkaninda/coderun/internal/mcpserver"
)

var (
	serveConfigPath string
	serveTransport  string
	serveListen     string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the MCP tools over stdio (default) or streamable HTTP",
	RunE:  runServe,
}

func init() {
	// Register flags on both root and serve so that
	// `coderun --config path` and `coderun serve --config path` both work.
	for _, cmd := range []*cobra.Command{rootCmd, serveCmd} {
		cmd.Flags().StringVar(&serveConfigPath, "config", config.DefaultConfigPath(), "path to config file")
		cmd.Flags().StringVar(&serveTransport, "transport", "", "override transport (stdio or http)")
		cmd.Flags().StringVar(&serveListen, "listen", "", "override HTTP listen address (e.g. :8080)")
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, serveConfigPath)
	if err != nil {
		return err
	}

	// Apply CLI overrides.
	if serveTransport != "" {
		cfg.Server.Transport = serveTransport
	}
	if serveListen != "" {
		cfg.Server.ListenAddr = serveListen
	}

	logger := newLogger(cfg.Logging, os.Stderr)

	sc, err := initShared(cfg, logger)
	if err != nil {
		return err
	}
	defer sc.Cleanup()

	// Signal-aware context.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting coderun",
		slog.String("version", version),
		slog.String("transport", cfg.Server.TransportName()),
	)

	switch cfg.Server.TransportName() {
	case "stdio":
		err = sc.Server.ServeStdio(ctx, os.Stdin, os.Stdout)
	case "http":
		metricsPath := ""
		if cfg.Observability != nil {
			metricsPath = cfg.Observability.Metrics.MetricsPath()
		}
		err = sc.Server.ServeHTTP(ctx, mcpserver.HTTPConfig{
			ListenAddr:   cfg.Server.Addr(),
			EndpointPath: cfg.Server.Endpoint(),
			MetricsPath:  metricsPath,
		})
	default:
		err = fmt.Errorf("unsupported transport %q", cfg.Server.Transport)
	}
	if err != nil {
		return err
	}

	logger.Info("coderun stopped")
	return nil
}
