// Package config handles loading and validating coderun configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

func init() {
	// Load .env file if it exists
	_ = godotenv.Load()
}

// Config is the root configuration for coderun.
type Config struct {
	Server        ServerConfig         `json:"server" yaml:"server"`
	Logging       LoggingConfig        `json:"logging" yaml:"logging"`
	Sandbox       SandboxConfig        `json:"sandbox" yaml:"sandbox"`
	Observability *ObservabilityConfig `json:"observability,omitempty" yaml:"observability,omitempty"` // nil = observability disabled
}

// ServerConfig controls the MCP server identity and transport.
type ServerConfig struct {
	Name         string `json:"name" yaml:"name"`                   // Implementation name. Default: "coderun".
	Transport    string `json:"transport" yaml:"transport"`         // "stdio" (default) or "http".
	ListenAddr   string `json:"listen_addr" yaml:"listen_addr"`     // HTTP only. Default: ":8080".
	EndpointPath string `json:"endpoint_path" yaml:"endpoint_path"` // HTTP only. Default: "/mcp".
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`   // "debug", "info" (default), "warn", "error".
	Format string `json:"format" yaml:"format"` // "json" (default) or "text".
}

// SandboxConfig configures the container invoker and recipe images.
type SandboxConfig struct {
	Binary       string       `json:"binary" yaml:"binary"`                 // Container CLI. Default: "docker".
	KillOnCancel bool         `json:"kill_on_cancel" yaml:"kill_on_cancel"` // Terminate the child when a request is canceled.
	Images       ImagesConfig `json:"images" yaml:"images"`
}

// ImagesConfig names the pre-built image for each recipe. Empty = recipe default.
type ImagesConfig struct {
	ScriptA  string `json:"scripta" yaml:"scripta"`
	ScriptB  string `json:"scriptb" yaml:"scriptb"`
	SystemsC string `json:"systemsc" yaml:"systemsc"`
}

// ObservabilityConfig configures metrics, tracing, health checks, and anomaly detection.
// When nil, all observability features are disabled with zero overhead.
type ObservabilityConfig struct {
	Metrics *MetricsConfig `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Tracing *TracingConfig `json:"tracing,omitempty" yaml:"tracing,omitempty"`
	Health  *HealthConfig  `json:"health,omitempty" yaml:"health,omitempty"`
	Anomaly *AnomalyConfig `json:"anomaly,omitempty" yaml:"anomaly,omitempty"`
}

// MetricsConfig configures Prometheus metrics exposition.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"` // Default: "/metrics"
}

// TracingConfig configures OpenTelemetry distributed tracing.
type TracingConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled"`
	Endpoint    string  `json:"endpoint" yaml:"endpoint"`         // OTLP endpoint, e.g. "localhost:4317"
	Protocol    string  `json:"protocol" yaml:"protocol"`         // "grpc" or "http". Default: "grpc"
	ServiceName string  `json:"service_name" yaml:"service_name"` // Default: "coderun"
	SampleRate  float64 `json:"sample_rate" yaml:"sample_rate"`   // 0.0–1.0. Default: 1.0
	Insecure    bool    `json:"insecure" yaml:"insecure"`         // Skip TLS for dev
}

// HealthConfig configures dependency health checks for readiness probes.
type HealthConfig struct {
	IncludeDocker bool `json:"include_docker" yaml:"include_docker"` // Ping the daemon and check recipe images.
}

// AnomalyConfig configures threshold-based anomaly detection.
type AnomalyConfig struct {
	Enabled            bool    `json:"enabled" yaml:"enabled"`
	ErrorRateThreshold float64 `json:"error_rate_threshold" yaml:"error_rate_threshold"` // e.g. 0.5 = 50% faults
	WindowSeconds      int     `json:"window_seconds" yaml:"window_seconds"`             // Sliding window. Default: 300
}

// Window returns the anomaly sliding window.
func (a *AnomalyConfig) Window() time.Duration {
	if a != nil && a.WindowSeconds > 0 {
		return time.Duration(a.WindowSeconds) * time.Second
	}
	return 5 * time.Minute
}

// TransportName returns the configured transport, defaulting to "stdio".
func (s ServerConfig) TransportName() string {
	if s.Transport == "" {
		return "stdio"
	}
	return s.Transport
}

// Addr returns the HTTP listen address.
func (s ServerConfig) Addr() string {
	if s.ListenAddr == "" {
		return ":8080"
	}
	return s.ListenAddr
}

// Endpoint returns the HTTP path the MCP handler is mounted on.
func (s ServerConfig) Endpoint() string {
	if s.EndpointPath == "" {
		return "/mcp"
	}
	return s.EndpointPath
}

// MetricsPath returns the metrics endpoint path.
func (m *MetricsConfig) MetricsPath() string {
	if m != nil && m.Path != "" {
		return m.Path
	}
	return "/metrics"
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// DefaultConfigPath returns the default config file path (~/.coderun/config.yaml).
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "configs/coderun.yaml" // fallback for environments without a home dir
	}
	return filepath.Join(home, ".coderun", "config.yaml")
}

// Load reads a JSON or YAML config file and returns a validated Config.
// The format is detected by file extension: .yml/.yaml for YAML, everything else for JSON.
// Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path %s: %w", path, err)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", resolved, err)
	}

	var cfg Config
	switch ext := strings.ToLower(filepath.Ext(resolved)); ext {
	case ".yml", ".yaml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML config %s: %w", resolved, err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing JSON config %s: %w", resolved, err)
		}
	}

	return finish(&cfg)
}

// LoadOrDefault behaves like Load, except that a missing file yields the
// defaults (still subject to environment overrides).
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return finish(Default())
	}
	return cfg, err
}

func finish(cfg *Config) (*Config, error) {
	applyEnv(cfg)
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// applyEnv applies environment variable overrides.
func applyEnv(cfg *Config) {
	if v := os.Getenv("CODERUN_TRANSPORT"); v != "" {
		cfg.Server.Transport = v
	}
	if v := os.Getenv("CODERUN_LISTEN_ADDR"); v != "" {
		cfg.Server.ListenAddr = v
	}
	if v := os.Getenv("CODERUN_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CODERUN_DOCKER_BINARY"); v != "" {
		cfg.Sandbox.Binary = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Name == "" {
		c.Server.Name = "coderun"
	}
	if c.Server.Transport == "" {
		c.Server.Transport = "stdio"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Sandbox.Binary == "" {
		c.Sandbox.Binary = "docker"
	}
}

// resolvePath expands ~ to the user home directory and returns an absolute path.
func resolvePath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[1:])
	}
	return filepath.Abs(path)
}

func (c *Config) validate() error {
	switch c.Server.Transport {
	case "stdio", "http":
		// valid
	default:
		return fmt.Errorf("server.transport %q is not supported (use stdio or http)", c.Server.Transport)
	}
	if c.Server.Transport == "http" && c.Server.EndpointPath != "" && !strings.HasPrefix(c.Server.EndpointPath, "/") {
		return fmt.Errorf("server.endpoint_path must start with /")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return fmt.Errorf("logging.level %q is not supported", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "text":
		// valid
	default:
		return fmt.Errorf("logging.format %q is not supported (use json or text)", c.Logging.Format)
	}
	if o := c.Observability; o != nil {
		if o.Tracing != nil && o.Tracing.Enabled {
			if o.Tracing.Endpoint == "" {
				return fmt.Errorf("observability.tracing.endpoint is required when tracing is enabled")
			}
			switch o.Tracing.Protocol {
			case "", "grpc", "http":
			default:
				return fmt.Errorf("observability.tracing.protocol %q is not supported (use grpc or http)", o.Tracing.Protocol)
			}
			if o.Tracing.SampleRate < 0 || o.Tracing.SampleRate > 1 {
				return fmt.Errorf("observability.tracing.sample_rate must be within [0, 1]")
			}
		}
		if o.Anomaly != nil && o.Anomaly.Enabled {
			if o.Anomaly.ErrorRateThreshold <= 0 || o.Anomaly.ErrorRateThreshold > 1 {
				return fmt.Errorf("observability.anomaly.error_rate_threshold must be within (0, 1]")
			}
			if o.Anomaly.WindowSeconds < 0 {
				return fmt.Errorf("observability.anomaly.window_seconds must not be negative")
			}
		}
	}
	return nil
}
