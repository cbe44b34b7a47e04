package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for the etlboard configuration.
const (
	DefaultHTTPPort        = 8501
	DefaultRecords         = 1000
	DefaultSeed            = 42
	DefaultInvalidEmailPct = 5.0
	DefaultInvalidPricePct = 2.0
	DefaultSampleRows      = 5
	DefaultStageDelay      = time.Second
)

// Config is the full etlboard configuration parsed from the YAML file.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Dataset  DatasetConfig  `yaml:"dataset"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Quality  QualityConfig  `yaml:"quality"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	// HTTPPort is the port the dashboard, REST API and WebSocket stream
	// listen on (default 8501).
	HTTPPort int `yaml:"http_port"`
}

// DatasetConfig controls the sample data generator.
type DatasetConfig struct {
	// Records is the number of sample orders generated per extract (default 1000).
	Records int `yaml:"records"`

	// Seed seeds the generator for reproducible demos. Zero or negative
	// means a fresh random dataset on every extract.
	Seed int64 `yaml:"seed"`

	// InvalidEmailPct is the share of records (0–100) given a malformed
	// email address so the transform stage has something to flag.
	InvalidEmailPct float64 `yaml:"invalid_email_pct"`

	// InvalidPricePct is the share of records (0–100) given a negative price.
	InvalidPricePct float64 `yaml:"invalid_price_pct"`

	// SampleRows is how many raw rows the preview endpoint returns (default 5).
	SampleRows int `yaml:"sample_rows"`
}

// PipelineConfig controls stage execution.
type PipelineConfig struct {
	// StageDelay is an artificial pause before each stage runs, so the
	// dashboard spinners are visible during a talk. Default 1s; set 0 to
	// run stages immediately.
	StageDelay time.Duration `yaml:"stage_delay"`
}

// QualityConfig holds quality alert rules and webhook delivery targets.
type QualityConfig struct {
	Rules    []QualityRule   `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// QualityRule defines one threshold-based alert on the transform stage's
// quality report.
type QualityRule struct {
	// Name is the human-readable alert identifier, used as the deduplication key.
	Name string `yaml:"name"`

	// Condition is a simple expression: "quality_score < 90",
	// "error_records > 25", "invalid_emails > 0".
	Condition string `yaml:"condition"`

	// Severity is one of: critical | warning | info.
	Severity string `yaml:"severity"`

	// Cooldown suppresses re-fires for this duration after an alert fires.
	// Defaults to 15 minutes if zero.
	Cooldown time.Duration `yaml:"cooldown"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: slack | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// Load reads and parses the config file at path. Missing fields are filled
// with sensible defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config pre-populated with default values. It is what the
// server runs with when no config file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort: DefaultHTTPPort,
		},
		Dataset: DatasetConfig{
			Records:         DefaultRecords,
			Seed:            DefaultSeed,
			InvalidEmailPct: DefaultInvalidEmailPct,
			InvalidPricePct: DefaultInvalidPricePct,
			SampleRows:      DefaultSampleRows,
		},
		Pipeline: PipelineConfig{
			StageDelay: DefaultStageDelay,
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", cfg.Server.HTTPPort)
	}
	if cfg.Dataset.Records <= 0 {
		return fmt.Errorf("dataset.records must be positive, got %d", cfg.Dataset.Records)
	}
	if cfg.Dataset.InvalidEmailPct < 0 || cfg.Dataset.InvalidEmailPct > 100 {
		return fmt.Errorf("dataset.invalid_email_pct %g is out of range [0, 100]", cfg.Dataset.InvalidEmailPct)
	}
	if cfg.Dataset.InvalidPricePct < 0 || cfg.Dataset.InvalidPricePct > 100 {
		return fmt.Errorf("dataset.invalid_price_pct %g is out of range [0, 100]", cfg.Dataset.InvalidPricePct)
	}
	if cfg.Dataset.SampleRows <= 0 {
		return fmt.Errorf("dataset.sample_rows must be positive, got %d", cfg.Dataset.SampleRows)
	}
	if cfg.Pipeline.StageDelay < 0 {
		return fmt.Errorf("pipeline.stage_delay must not be negative")
	}
	for _, r := range cfg.Quality.Rules {
		if r.Name == "" {
			return fmt.Errorf("quality rule with empty name")
		}
		switch r.Severity {
		case "critical", "warning", "info", "":
		default:
			return fmt.Errorf("quality rule %q: severity %q unknown: want critical|warning|info", r.Name, r.Severity)
		}
	}
	for _, w := range cfg.Quality.Webhooks {
		switch w.Type {
		case "slack", "http":
		default:
			return fmt.Errorf("webhook type %q unknown: want slack|http", w.Type)
		}
	}
	return nil
}
