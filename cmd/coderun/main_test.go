package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jkaninda/coderun/internal/config"
	"github.com/jkaninda/coderun/internal/sandbox"
)

type fakeProbe struct {
	pingErr error
	present map[string]bool
}

func (f *fakeProbe) Ping(context.Context) error { return f.pingErr }

func (f *fakeProbe) Images(_ context.Context, names []string) ([]sandbox.ImageStatus, error) {
	out := make([]sandbox.ImageStatus, 0, len(names))
	for _, n := range names {
		out = append(out, sandbox.ImageStatus{Name: n, Present: f.present[n]})
	}
	return out, nil
}

func found(string) (string, error) { return "/usr/bin/docker", nil }

func TestDiagnose_AllGood(t *testing.T) {
	var out bytes.Buffer
	probe := &fakeProbe{present: map[string]bool{"scripta-no-root": true, "scriptb-no-root": true, "systemsc-no-root": true}}

	if failed := diagnose(context.Background(), &out, config.Default(), found, probe); failed != 0 {
		t.Errorf("failed = %d, want 0\n%s", failed, out.String())
	}
	if strings.Contains(out.String(), "FAIL") {
		t.Errorf("unexpected failure line:\n%s", out.String())
	}
}

func TestDiagnose_MissingImageAndBinary(t *testing.T) {
	var out bytes.Buffer
	probe := &fakeProbe{present: map[string]bool{"scripta-no-root": true}}
	missing := func(string) (string, error) { return "", errors.New("executable file not found in $PATH") }

	failed := diagnose(context.Background(), &out, config.Default(), missing, probe)
	if failed != 3 {
		t.Errorf("failed = %d, want 3 (binary + two images)\n%s", failed, out.String())
	}
	if !strings.Contains(out.String(), "image systemsc-no-root is not tagged locally") {
		t.Errorf("missing image not reported:\n%s", out.String())
	}
}

func TestDiagnose_DaemonDownSkipsImages(t *testing.T) {
	var out bytes.Buffer
	probe := &fakeProbe{pingErr: errors.New("docker daemon unreachable")}

	if failed := diagnose(context.Background(), &out, config.Default(), found, probe); failed != 1 {
		t.Errorf("failed = %d, want 1", failed)
	}
	if strings.Contains(out.String(), "image ") {
		t.Errorf("image checks should be skipped without a daemon:\n%s", out.String())
	}
}

func TestRecipeImages(t *testing.T) {
	cfg := config.Default()
	cfg.Sandbox.Images.ScriptB = "registry.local/node:22"

	images := recipeImages(cfg)
	if images.ScriptA != "scripta-no-root" || images.ScriptB != "registry.local/node:22" || images.SystemsC != "systemsc-no-root" {
		t.Errorf("images = %+v", images)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"info":  slog.LevelInfo,
		"":      slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewLogger_Format(t *testing.T) {
	var buf bytes.Buffer
	newLogger(config.LoggingConfig{Level: "info", Format: "json"}, &buf).Info("hello")
	if !strings.HasPrefix(buf.String(), "{") {
		t.Errorf("json logger wrote %q", buf.String())
	}

	buf.Reset()
	newLogger(config.LoggingConfig{Level: "info", Format: "text"}, &buf).Info("hello")
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Errorf("text logger wrote %q", buf.String())
	}
}

func TestLoadConfig_EnvPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coderun.yaml")
	if err := os.WriteFile(path, []byte("server:\n  transport: http\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CODERUN_CONFIG", path)

	cfg, err := loadConfig(nil, "/does/not/exist.yaml")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Server.Transport != "http" {
		t.Errorf("transport = %q, want http", cfg.Server.Transport)
	}
}

func TestLoadConfig_MissingDefaultFile(t *testing.T) {
	t.Setenv("CODERUN_CONFIG", "")
	cfg, err := loadConfig(nil, filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Server.Transport != "stdio" {
		t.Errorf("transport = %q, want stdio", cfg.Server.Transport)
	}
}

func TestInitShared(t *testing.T) {
	cfg := config.Default()
	cfg.Observability = &config.ObservabilityConfig{Metrics: &config.MetricsConfig{Enabled: true}}

	sc, err := initShared(cfg, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	if err != nil {
		t.Fatalf("initShared: %v", err)
	}
	defer sc.Cleanup()

	if sc.Server == nil || sc.ToolReg == nil {
		t.Fatal("server and registry should be built")
	}
	if len(sc.ToolReg.List()) != 4 {
		t.Errorf("tools = %q", sc.ToolReg.List())
	}
	if sc.Obs.Metrics == nil {
		t.Error("metrics should be enabled")
	}
}

func TestClientConfig(t *testing.T) {
	t.Setenv("CODERUN_URL", "")
	callURL, callHeaders = "http://localhost:8080/mcp", []string{"Authorization=Bearer $TOKEN"}
	defer func() { callURL, callHeaders = "", nil }()

	cfg, err := clientConfig()
	if err != nil {
		t.Fatalf("clientConfig: %v", err)
	}
	if cfg.Transport != "streamable_http" || cfg.Headers["Authorization"] != "Bearer $TOKEN" {
		t.Errorf("cfg = %+v", cfg)
	}

	callHeaders = []string{"broken"}
	if _, err := clientConfig(); err == nil {
		t.Error("expected error for malformed header")
	}
}

func TestEnvOr(t *testing.T) {
	t.Setenv("CODERUN_TEST_VALUE", "")
	if got := envOr("CODERUN_TEST_VALUE", "fallback"); got != "fallback" {
		t.Errorf("empty env: got %q, want fallback", got)
	}
	t.Setenv("CODERUN_TEST_VALUE", "set")
	if got := envOr("CODERUN_TEST_VALUE", "fallback"); got != "set" {
		t.Errorf("set env: got %q, want set", got)
	}
}

func TestLoadConfig_EmptyEnvUsesFlagPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coderun.yaml")
	if err := os.WriteFile(path, []byte("server:\n  transport: http\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CODERUN_CONFIG", "")

	cfg, err := loadConfig(nil, path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Server.Transport != "http" {
		t.Errorf("transport = %q, want http from the flag path", cfg.Server.Transport)
	}
}

func TestClientConfig_Stdio(t *testing.T) {
	t.Setenv("CODERUN_URL", "")
	callCommand, callEnv = "/usr/local/bin/coderun", []string{"CODERUN_LOG_LEVEL=debug"}
	defer func() { callCommand, callEnv = "", nil }()

	cfg, err := clientConfig()
	if err != nil {
		t.Fatalf("clientConfig: %v", err)
	}
	if cfg.Transport != "stdio" || cfg.Command != "/usr/local/bin/coderun" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Env["CODERUN_LOG_LEVEL"] != "debug" {
		t.Errorf("env = %v", cfg.Env)
	}
	if strings.Join(cfg.Args, " ") != "serve --transport stdio" {
		t.Errorf("args = %q", cfg.Args)
	}

	callEnv = []string{"=oops"}
	if _, err := clientConfig(); err == nil {
		t.Error("expected error for malformed env pair")
	}
}
