package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestLoadLayered_CLIOverridesEverything(t *testing.T) {
	embedded := []byte("server:\n  url: \"https://embedded.example.com\"\nclient:\n  name: \"embedded\"")
	t.Setenv("VP_SERVER_URL", "https://env.example.com")
	cli := CLIOverrides{URL: "https://cli.example.com", Name: "cli-name"}

	cfg, err := LoadLayered(cli, embedded, "")
	require.NoError(t, err)
	assert.Equal(t, "https://cli.example.com", cfg.Server.URL)
	assert.Equal(t, "cli-name", cfg.Client.Name)
}

func TestLoadLayered_EnvOverridesEmbed(t *testing.T) {
	embedded := []byte("server:\n  url: \"https://embedded.example.com\"\nclient:\n  name: \"embedded\"")
	t.Setenv("VP_SERVER_URL", "https://env.example.com")
	t.Setenv("VP_CLIENT_TAGS", "prod, eu ,,edge")

	cfg, err := LoadLayered(CLIOverrides{}, embedded, "")
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com", cfg.Server.URL)
	assert.Equal(t, "embedded", cfg.Client.Name)
	assert.Equal(t, []string{"prod", "eu", "edge"}, cfg.Client.Tags)
}

func TestLoadLayered_FileOverridesEmbed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "probe.yaml")
	require.NoError(t, os.WriteFile(path, []byte("client:\n  purpose: database\nreport:\n  max_retries: 7\n"), 0640))

	cfg, err := LoadLayered(CLIOverrides{}, []byte("client:\n  purpose: web\n"), path)
	require.NoError(t, err)
	assert.Equal(t, "database", cfg.Client.Purpose)
	assert.Equal(t, 7, cfg.Report.MaxRetries)
}

func TestLoadLayered_DefaultsWhenEmpty(t *testing.T) {
	cfg, err := LoadLayered(CLIOverrides{}, nil, "")
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, cfg.Report.Interval.Duration)
	assert.Equal(t, 10*time.Second, cfg.Report.MinInterval.Duration)
	assert.Equal(t, 3, cfg.Report.MaxRetries)
	assert.Equal(t, 100, cfg.Report.CacheSize)
	assert.Equal(t, ".cache", cfg.Report.CacheDir)
	assert.NotEmpty(t, cfg.Client.Hostname)
	assert.Equal(t, cfg.Client.Hostname, cfg.Client.Name)
	assert.NotNil(t, cfg.Client.Tags)
}

func TestLoadLayered_ClampsIntervalToMinimum(t *testing.T) {
	embedded := []byte("report:\n  interval: 5000\n  min_interval: 10000\n")

	cfg, err := LoadLayered(CLIOverrides{}, embedded, "")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.Report.Interval.Duration)
}

func TestLoadLayered_InvalidEnvInterval(t *testing.T) {
	t.Setenv("VP_REPORT_INTERVAL", "soon")

	_, err := LoadLayered(CLIOverrides{}, nil, "")
	assert.Error(t, err)
}

func TestLoadLayered_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000", cfg.Server.URL)
}

func TestDurationUnmarshal(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"15s", 15 * time.Second, false},
		{"1m30s", 90 * time.Second, false},
		{"2500", 2500 * time.Millisecond, false},
		{"later", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var out struct {
				D Duration `yaml:"d"`
			}
			err := yaml.Unmarshal([]byte("d: "+tt.input), &out)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.D.Duration)
		})
	}
}

func TestNormalize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Report.MaxRetries = -2
	cfg.Report.CacheSize = -1
	cfg.Report.CacheDir = "  "
	cfg.Client.Hostname = "node-7"
	cfg.Server.URL = "https://collector.example.com/"

	cfg.Normalize()
	assert.Zero(t, cfg.Report.MaxRetries)
	assert.Zero(t, cfg.Report.CacheSize)
	assert.Equal(t, ".cache", cfg.Report.CacheDir)
	assert.Equal(t, "node-7", cfg.Client.Name)
	assert.Equal(t, "https://collector.example.com", cfg.Server.URL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"https", func(c *Config) { c.Server.URL = "https://collector.example.com" }, false},
		{"empty url", func(c *Config) { c.Server.URL = "" }, true},
		{"bad scheme", func(c *Config) { c.Server.URL = "ftp://collector" }, true},
		{"no host", func(c *Config) { c.Server.URL = "http://" }, true},
		{"unknown exporter", func(c *Config) {
			c.Telemetry.Enabled = true
			c.Telemetry.Exporter = "carrier-pigeon"
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWriteConfig_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "probe.yaml")

	cfg := DefaultConfig()
	cfg.Server.URL = "https://test.example.com"
	cfg.Client.Tags = []string{"a", "b"}

	require.NoError(t, WriteConfig(cfg, path))

	loaded, err := LoadLayered(CLIOverrides{}, nil, path)
	require.NoError(t, err)
	assert.Equal(t, "https://test.example.com", loaded.Server.URL)
	assert.Equal(t, []string{"a", "b"}, loaded.Client.Tags)
	assert.Equal(t, cfg.Report.Interval, loaded.Report.Interval)
}
