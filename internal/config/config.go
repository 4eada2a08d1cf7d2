// =============================================================================
// Separador - Configuration Module
// =============================================================================
//
// This module loads the application configuration used by the CLI and the
// HTTP server. The filter itself has no settings; everything here is about
// where files live, how the server behaves and how logs look.
//
// LOAD ORDER (later wins):
//   1. Built-in defaults
//   2. YAML file (config.yaml by default, optional)
//   3. Environment variables prefixed with SEPARADOR_,
//      e.g. SEPARADOR_SERVER_ADDR or SEPARADOR_LOGGING_LEVEL
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "SEPARADOR"

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
type MainConfig struct {
	Server     ServerConfig     `yaml:"server" split_words:"true"`
	Logging    LoggingConfig    `yaml:"logging" split_words:"true"`
	Paths      PathsConfig      `yaml:"paths" split_words:"true"`
	Output     OutputConfig     `yaml:"output" split_words:"true"`
	Processing ProcessingConfig `yaml:"processing" split_words:"true"`
}

// ServerConfig controls the upload server.
type ServerConfig struct {
	// Addr is the listen address.
	// Default: ":8080"
	Addr string `yaml:"addr" split_words:"true"`

	// MaxUploadBytes caps the multipart body of one upload.
	// Default: 32 MiB
	MaxUploadBytes int64 `yaml:"max_upload_bytes" split_words:"true"`

	// ReadTimeout, WriteTimeout and ShutdownTimeout bound the HTTP server.
	// Defaults: 30s, 60s, 15s
	ReadTimeout     time.Duration `yaml:"read_timeout" split_words:"true"`
	WriteTimeout    time.Duration `yaml:"write_timeout" split_words:"true"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" split_words:"true"`

	// RateLimit throttles uploads across all clients.
	RateLimit RateLimitConfig `yaml:"rate_limit" split_words:"true"`
}

// RateLimitConfig is a token bucket.
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" split_words:"true"`
	RPS     float64 `yaml:"rps" split_words:"true"`
	Burst   int     `yaml:"burst" split_words:"true"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level" split_words:"true"`

	// Format is "text" or "json".
	// Default: "text"
	Format string `yaml:"format" split_words:"true"`
}

// PathsConfig holds the batch directories.
type PathsConfig struct {
	// InputDir is scanned by the process command.
	// Default: "./input"
	InputDir string `yaml:"input_dir" split_words:"true"`

	// OutputDir receives the filtered workbooks.
	// Default: "./output"
	OutputDir string `yaml:"output_dir" split_words:"true"`

	// ArchiveDir receives inputs after a successful run.
	// Default: "./input_archive"
	ArchiveDir string `yaml:"archive_dir" split_words:"true"`
}

// OutputConfig controls batch output names.
type OutputConfig struct {
	// NameFormat is the output file name. Placeholders:
	//   {months}    - Requested months, e.g. "09-10"
	//   {year}      - Requested year
	//   {uuid}      - A random UUID
	//   {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
	//   {original}  - Input file name without extension
	//
	// Default: "{original}_filtrado_{months}_{year}.xlsx"
	NameFormat string `yaml:"name_format" split_words:"true"`
}

// ProcessingConfig controls batch runs.
type ProcessingConfig struct {
	// MaxConcurrency is the number of files processed at once.
	// Default: 4
	MaxConcurrency int `yaml:"max_concurrency" split_words:"true"`

	// ArchiveOnSuccess moves each input to the archive directory once its
	// output has been written.
	// Default: true
	ArchiveOnSuccess bool `yaml:"archive_on_success" split_words:"true"`

	// ArchiveByDate files archived inputs under YYYY/MM/DD subdirectories.
	// Default: false
	ArchiveByDate bool `yaml:"archive_by_date" split_words:"true"`

	// MetricsFile, when set, receives the run counters of each batch run in
	// the Prometheus text format (for the node_exporter textfile collector).
	// Default: "" (disabled)
	MetricsFile string `yaml:"metrics_file" split_words:"true"`
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// Default returns the built-in configuration.
func Default() *MainConfig {
	return &MainConfig{
		Server: ServerConfig{
			Addr:            ":8080",
			MaxUploadBytes:  32 << 20,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     5,
				Burst:   10,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Paths: PathsConfig{
			InputDir:   "./input",
			OutputDir:  "./output",
			ArchiveDir: "./input_archive",
		},
		Output: OutputConfig{
			NameFormat: "{original}_filtrado_{months}_{year}.xlsx",
		},
		Processing: ProcessingConfig{
			MaxConcurrency:   4,
			ArchiveOnSuccess: true,
		},
	}
}

// LoadMainConfig loads the configuration. A missing file at configPath is
// not an error; defaults and the environment still apply.
func LoadMainConfig(configPath string) (*MainConfig, error) {
	config := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// Defaults only.
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	if err := envconfig.Process(EnvPrefix, config); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	applyMainConfigDefaults(config)

	if err := validateMainConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// applyMainConfigDefaults restores defaults for values explicitly blanked
// in the file or the environment.
func applyMainConfigDefaults(config *MainConfig) {
	def := Default()

	if config.Server.Addr == "" {
		config.Server.Addr = def.Server.Addr
	}
	if config.Server.MaxUploadBytes == 0 {
		config.Server.MaxUploadBytes = def.Server.MaxUploadBytes
	}
	if config.Server.ReadTimeout == 0 {
		config.Server.ReadTimeout = def.Server.ReadTimeout
	}
	if config.Server.WriteTimeout == 0 {
		config.Server.WriteTimeout = def.Server.WriteTimeout
	}
	if config.Server.ShutdownTimeout == 0 {
		config.Server.ShutdownTimeout = def.Server.ShutdownTimeout
	}
	if config.Logging.Level == "" {
		config.Logging.Level = def.Logging.Level
	}
	if config.Logging.Format == "" {
		config.Logging.Format = def.Logging.Format
	}
	if config.Paths.InputDir == "" {
		config.Paths.InputDir = def.Paths.InputDir
	}
	if config.Paths.OutputDir == "" {
		config.Paths.OutputDir = def.Paths.OutputDir
	}
	if config.Paths.ArchiveDir == "" {
		config.Paths.ArchiveDir = def.Paths.ArchiveDir
	}
	if config.Output.NameFormat == "" {
		config.Output.NameFormat = def.Output.NameFormat
	}
	if config.Processing.MaxConcurrency == 0 {
		config.Processing.MaxConcurrency = def.Processing.MaxConcurrency
	}
}

// validateMainConfig rejects values no component can work with.
func validateMainConfig(config *MainConfig) error {
	switch strings.ToLower(config.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", config.Logging.Level)
	}
	switch strings.ToLower(config.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not text or json", config.Logging.Format)
	}
	if config.Server.MaxUploadBytes < 0 {
		return fmt.Errorf("server.max_upload_bytes must be positive")
	}
	if config.Server.RateLimit.Enabled && (config.Server.RateLimit.RPS <= 0 || config.Server.RateLimit.Burst <= 0) {
		return fmt.Errorf("server.rate_limit needs positive rps and burst when enabled")
	}
	if config.Processing.MaxConcurrency < 0 {
		return fmt.Errorf("processing.max_concurrency must be positive")
	}
	if strings.ContainsAny(config.Output.NameFormat, `/\`) {
		return fmt.Errorf("output.name_format must be a file name, got %q", config.Output.NameFormat)
	}
	return nil
}
