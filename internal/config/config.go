// Package config handles configuration loading from YAML files and environment variables.
// Configuration precedence: CLI flags > environment variables > config file > embedded > defaults.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a wrapper around time.Duration that supports YAML unmarshaling
// from human-readable strings like "15s", "30s", "1m".
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements the yaml.Unmarshaler interface for Duration.
// It accepts both string formats ("15s", "1m30s") and bare integers, which
// are read as milliseconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("unsupported duration format: %v", value.Kind)
	}
	if ms, err := strconv.ParseInt(value.Value, 10, 64); err == nil {
		d.Duration = time.Duration(ms) * time.Millisecond
		return nil
	}
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML implements the yaml.Marshaler interface for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// Config holds all probe configuration.
type Config struct {
	Client    ClientConfig    `yaml:"client"`
	Server    ServerConfig    `yaml:"server"`
	Report    ReportConfig    `yaml:"report"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ClientConfig describes how this machine presents itself to the collector.
type ClientConfig struct {
	Name     string   `yaml:"name"`
	Tags     []string `yaml:"tags"`
	Purpose  string   `yaml:"purpose"`
	Location string   `yaml:"location"`
	Hostname string   `yaml:"hostname"`
}

// ServerConfig holds collector connection settings.
type ServerConfig struct {
	URL string `yaml:"url"`
}

// ReportConfig holds reporting cadence and backlog settings.
type ReportConfig struct {
	Interval    Duration `yaml:"interval"`
	MinInterval Duration `yaml:"min_interval"`
	MaxRetries  int      `yaml:"max_retries"`
	CacheSize   int      `yaml:"cache_size"`
	CacheDir    string   `yaml:"cache_dir"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// TelemetryConfig controls the probe's own OpenTelemetry metrics.
type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"` // "stdout" or "otlp-http"
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
}

const defaultCacheDir = ".cache"

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			URL: "http://localhost:3000",
		},
		Report: ReportConfig{
			Interval:    Duration{60 * time.Second},
			MinInterval: Duration{10 * time.Second},
			MaxRetries:  3,
			CacheSize:   100,
			CacheDir:    defaultCacheDir,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Telemetry: TelemetryConfig{
			Exporter: "stdout",
		},
	}
}

// Load reads configuration from a YAML file and merges with defaults.
// If path is empty or the file does not exist, only defaults and environment
// variables are used.
func Load(path string) (*Config, error) {
	return LoadLayered(CLIOverrides{}, nil, path)
}

// CLIOverrides holds values from command-line flags.
// Empty strings are treated as "not set" and skipped.
type CLIOverrides struct {
	URL  string
	Name string
}

// Locate searches standard config file paths and returns the first one found.
// Returns empty string if no config file exists.
func Locate() string {
	for _, p := range configSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// LoadLayered loads configuration with the full precedence chain:
// CLI flags > env vars > external YAML file > embedded bytes > defaults.
//
// An optional configPath argument controls external-file discovery:
//   - omitted        → auto-discover via Locate()
//   - explicit value  → use that path ("" means no external file)
//
// The returned config has been normalized but not validated.
func LoadLayered(cli CLIOverrides, embedded []byte, configPath ...string) (*Config, error) {
	cfg := DefaultConfig()

	if len(embedded) > 0 {
		if err := yaml.Unmarshal(embedded, cfg); err != nil {
			return nil, fmt.Errorf("parsing embedded config: %w", err)
		}
	}

	var filePath string
	if len(configPath) > 0 {
		filePath = configPath[0]
	} else {
		filePath = Locate()
	}
	if filePath != "" {
		data, err := os.ReadFile(filePath)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file %s: %w", filePath, err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if cli.URL != "" {
		cfg.Server.URL = cli.URL
	}
	if cli.Name != "" {
		cfg.Client.Name = cli.Name
	}

	cfg.Normalize()
	return cfg, nil
}

// WriteConfig serializes the config to a YAML file at the given path.
// Creates parent directories if needed.
func WriteConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0640)
}

// applyEnvOverrides applies VP_* environment variable overrides.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("VP_SERVER_URL"); v != "" {
		cfg.Server.URL = v
	}
	if v := os.Getenv("VP_CLIENT_NAME"); v != "" {
		cfg.Client.Name = v
	}
	if v := os.Getenv("VP_CLIENT_TAGS"); v != "" {
		cfg.Client.Tags = splitList(v)
	}
	if v := os.Getenv("VP_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("VP_REPORT_INTERVAL"); v != "" {
		var d Duration
		if err := yaml.Unmarshal([]byte(v), &d); err != nil {
			return fmt.Errorf("VP_REPORT_INTERVAL: %w", err)
		}
		cfg.Report.Interval = d
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Normalize applies defaults and bounds: the report interval is clamped to
// the minimum interval, negative limits become zero, and the hostname falls
// back to the OS hostname.
func (c *Config) Normalize() {
	if c.Report.MinInterval.Duration <= 0 {
		c.Report.MinInterval = DefaultConfig().Report.MinInterval
	}
	if c.Report.Interval.Duration < c.Report.MinInterval.Duration {
		c.Report.Interval = c.Report.MinInterval
	}
	if c.Report.MaxRetries < 0 {
		c.Report.MaxRetries = 0
	}
	if c.Report.CacheSize < 0 {
		c.Report.CacheSize = 0
	}
	if strings.TrimSpace(c.Report.CacheDir) == "" {
		c.Report.CacheDir = defaultCacheDir
	}

	if c.Client.Hostname == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "unknown"
		}
		c.Client.Hostname = host
	}
	if c.Client.Name == "" {
		c.Client.Name = c.Client.Hostname
	}
	if c.Client.Tags == nil {
		c.Client.Tags = []string{}
	}
	c.Server.URL = strings.TrimRight(c.Server.URL, "/")
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.URL == "" {
		return fmt.Errorf("server URL is required")
	}
	u, err := url.Parse(c.Server.URL)
	if err != nil {
		return fmt.Errorf("invalid server URL %q: %w", c.Server.URL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server URL must use http or https (got: %s)", c.Server.URL)
	}
	if u.Host == "" {
		return fmt.Errorf("server URL has no host (got: %s)", c.Server.URL)
	}
	if c.Telemetry.Enabled {
		switch c.Telemetry.Exporter {
		case "stdout", "otlp-http":
		default:
			return fmt.Errorf("unknown telemetry exporter %q", c.Telemetry.Exporter)
		}
	}
	return nil
}
