package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment variable read by Load.
const EnvPrefix = "ROTATION"

// Source modes
const (
	SourceLocal  = "local"
	SourceRemote = "remote"
)

// DefaultRemoteBaseURL is where published artifacts live in remote mode.
const DefaultRemoteBaseURL = "https://raw.githubusercontent.com/Ray-Yuan21/lundong-data/main"

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server" envconfig:"SERVER"`
	Logging       LoggingConfig       `yaml:"logging" envconfig:"LOGGING"`
	Project       ProjectConfig       `yaml:"project" envconfig:"PROJECT"`
	Source        SourceConfig        `yaml:"source" envconfig:"SOURCE"`
	Observability ObservabilityConfig `yaml:"observability" envconfig:"OBSERVABILITY"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL"`
	Output   string `yaml:"output" envconfig:"OUTPUT"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// ProjectConfig locates the data project whose stages are orchestrated.
// Root is an already-resolved absolute path; when empty, entry points call
// ResolveProjectRoot once at startup.
type ProjectConfig struct {
	Root        string `yaml:"root" envconfig:"ROOT"`
	Marker      string `yaml:"marker" envconfig:"MARKER"`
	Interpreter string `yaml:"interpreter" envconfig:"INTERPRETER"`
	CatalogFile string `yaml:"catalog_file" envconfig:"CATALOG_FILE"`
	PriceFile   string `yaml:"price_file" envconfig:"PRICE_FILE"`
}

// SourceConfig selects where artifacts are read from.
type SourceConfig struct {
	Mode        string        `yaml:"mode" envconfig:"MODE"`
	BaseURL     string        `yaml:"base_url" envconfig:"BASE_URL"`
	HTTPTimeout time.Duration `yaml:"http_timeout" envconfig:"HTTP_TIMEOUT"`
}

// ObservabilityConfig controls OpenTelemetry exporters.
type ObservabilityConfig struct {
	Environment    string  `yaml:"environment" envconfig:"ENVIRONMENT"`
	TraceExporter  string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER"`
	MetricExporter string  `yaml:"metric_exporter" envconfig:"METRIC_EXPORTER"`
	SampleRatio    float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// Remote reports whether artifacts are read from the remote base URL.
func (c *Config) Remote() bool {
	return c.Source.Mode == SourceRemote
}

// Load builds the configuration from defaults, then the optional YAML file,
// then environment variables. Later sources win.
func Load() (*Config, error) {
	return LoadFrom(getConfigFilePath())
}

// LoadFrom is Load with an explicit config file path. An empty path skips the
// file layer.
func LoadFrom(configFile string) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// validate validates the configuration and normalizes enum values
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	c.Source.Mode = strings.ToLower(strings.TrimSpace(c.Source.Mode))
	// "github" is the name the published-data mode has always gone by.
	if c.Source.Mode == "github" {
		c.Source.Mode = SourceRemote
	}

	switch c.Source.Mode {
	case SourceLocal:
	case SourceRemote:
		if c.Source.BaseURL == "" {
			return fmt.Errorf("source base url is required in remote mode")
		}
		c.Source.BaseURL = strings.TrimRight(c.Source.BaseURL, "/")
	default:
		return fmt.Errorf("invalid source mode: %q", c.Source.Mode)
	}

	if c.Source.HTTPTimeout <= 0 {
		return fmt.Errorf("source http timeout must be positive")
	}

	if c.Project.Interpreter == "" {
		return fmt.Errorf("project interpreter is required")
	}

	if c.RateLimit.Enabled && (c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("rate limit rps and burst must be positive")
	}

	if c.Observability.SampleRatio < 0 || c.Observability.SampleRatio > 1 {
		return fmt.Errorf("sample ratio must be within [0, 1]")
	}

	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if path := os.Getenv(EnvPrefix + "_CONFIG_FILE"); path != "" {
		return path
	}

	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    45 * time.Minute, // a full run blocks the request
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "console",
			FilePath: "logs/rotationdash.log",
		},
		Project: ProjectConfig{
			Marker:      "lundong",
			Interpreter: "python",
			PriceFile:   "relative_strength/prices.csv",
		},
		Source: SourceConfig{
			Mode:        SourceLocal,
			BaseURL:     DefaultRemoteBaseURL,
			HTTPTimeout: 30 * time.Second,
		},
		Observability: ObservabilityConfig{
			Environment:    "development",
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			SampleRatio:    1.0,
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			RPS:     20,
			Burst:   40,
		},
	}
}
