package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadMainConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: "127.0.0.1:9000"
  read_timeout: 5s
  rate_limit:
    enabled: false
logging:
  level: debug
  format: json
paths:
  input_dir: /data/in
processing:
  max_concurrency: 2
  archive_on_success: false
  archive_by_date: true
  metrics_file: /var/lib/node_exporter/separador.prom
`)
	cfg, err := LoadMainConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 60*time.Second, cfg.Server.WriteTimeout)
	assert.False(t, cfg.Server.RateLimit.Enabled)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "/data/in", cfg.Paths.InputDir)
	assert.Equal(t, "./output", cfg.Paths.OutputDir)
	assert.Equal(t, 2, cfg.Processing.MaxConcurrency)
	assert.False(t, cfg.Processing.ArchiveOnSuccess)
	assert.True(t, cfg.Processing.ArchiveByDate)
	assert.Equal(t, "/var/lib/node_exporter/separador.prom", cfg.Processing.MetricsFile)
}

func TestLoadEnvironmentWins(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: debug\n")
	t.Setenv("SEPARADOR_LOGGING_LEVEL", "warn")
	t.Setenv("SEPARADOR_SERVER_MAX_UPLOAD_BYTES", "1024")
	t.Setenv("SEPARADOR_SERVER_RATE_LIMIT_BURST", "3")
	t.Setenv("SEPARADOR_OUTPUT_NAME_FORMAT", "{year}_{months}.xlsx")

	cfg, err := LoadMainConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, int64(1024), cfg.Server.MaxUploadBytes)
	assert.Equal(t, 3, cfg.Server.RateLimit.Burst)
	assert.Equal(t, "{year}_{months}.xlsx", cfg.Output.NameFormat)
}

func TestLoadBlankValuesFallBackToDefaults(t *testing.T) {
	path := writeConfig(t, "paths:\n  output_dir: \"\"\nprocessing:\n  max_concurrency: 0\n")
	cfg, err := LoadMainConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "./output", cfg.Paths.OutputDir)
	assert.Equal(t, 4, cfg.Processing.MaxConcurrency)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad level", "logging:\n  level: loud\n"},
		{"bad format", "logging:\n  format: xml\n"},
		{"rate limit without rps", "server:\n  rate_limit:\n    enabled: true\n    rps: 0\n"},
		{"name with directory", "output:\n  name_format: out/{year}.xlsx\n"},
		{"malformed yaml", "server: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadMainConfig(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}
