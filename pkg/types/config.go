// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"time"
)

// DictionaryConfig locates the endpoint dictionary inputs.
type DictionaryConfig struct {
	// CanonicalPath is the canonical endpoint definition (YAML or JSON):
	// code → {name, synonyms}.
	CanonicalPath string `json:"canonical_path" yaml:"canonical_path" mapstructure:"canonical_path"`

	// AliasesPath is an optional flat alias → code (or display name) mapping.
	AliasesPath string `json:"aliases_path,omitempty" yaml:"aliases_path,omitempty" mapstructure:"aliases_path"`
}

// InputFormat selects the tabular input reader.
type InputFormat string

const (
	InputCSV   InputFormat = "csv"
	InputJSONL InputFormat = "jsonl"
)

// InputConfig locates the trial dataset.
type InputConfig struct {
	Path string `json:"path" yaml:"path" mapstructure:"path"`

	// Format is csv or jsonl. Empty selects by file extension.
	Format InputFormat `json:"format,omitempty" yaml:"format,omitempty" mapstructure:"format"`
}

// OutputConfig locates the enriched dataset and the durable store.
type OutputConfig struct {
	// Dir receives the flat exports (CSV, JSONL).
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`

	// StorePath is the SQLite database holding the authoritative enriched
	// table, checkpoint, cache, and audit log.
	StorePath string `json:"store_path" yaml:"store_path" mapstructure:"store_path"`

	// BaseName is the file stem for exports (default "trials_enriched").
	BaseName string `json:"base_name" yaml:"base_name" mapstructure:"base_name"`
}

// CheckpointConfig controls checkpoint frequency.
type CheckpointConfig struct {
	// Every is the number of committed records between checkpoints (default 100).
	Every int `json:"every" yaml:"every" mapstructure:"every"`
}

// Provider selects the adjudication service client.
type Provider string

const (
	ProviderNone      Provider = "none"
	ProviderAnthropic Provider = "anthropic"
	ProviderHTTP      Provider = "http"
)

// DefaultModel is the adjudication model used when none is configured.
const DefaultModel = "claude-sonnet-4-5-20250929"

// AIConfig holds settings for the external adjudication service.
type AIConfig struct {
	Provider Provider `json:"provider" yaml:"provider" mapstructure:"provider"`

	// Model is the model identifier passed to the service.
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey authenticates against the service.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// BaseURL is the endpoint for the generic HTTP provider.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	// MaxRetries is the number of attempts per adjudication (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// Timeout bounds a single attempt (default 60s).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// RequestsPerSecond limits outbound calls (default 2).
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// TelemetryConfig configures optional trace export.
type TelemetryConfig struct {
	// Endpoint is the OTLP/HTTP collector host:port. Empty disables export.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty" mapstructure:"endpoint"`
	Insecure bool   `json:"insecure" yaml:"insecure" mapstructure:"insecure"`
}

// PipelineConfig groups all settings for an enrichment run.
type PipelineConfig struct {
	Dictionary DictionaryConfig `json:"dictionary" yaml:"dictionary" mapstructure:"dictionary"`
	Input      InputConfig      `json:"input" yaml:"input" mapstructure:"input"`
	Output     OutputConfig     `json:"output" yaml:"output" mapstructure:"output"`
	Checkpoint CheckpointConfig `json:"checkpoint" yaml:"checkpoint" mapstructure:"checkpoint"`
	AI         AIConfig         `json:"ai" yaml:"ai" mapstructure:"ai"`
	Telemetry  TelemetryConfig  `json:"telemetry" yaml:"telemetry" mapstructure:"telemetry"`

	// Workers is the number of records processed concurrently (default 1).
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers"`
}

// WithDefaults returns a copy of cfg with zero values replaced by defaults.
func (cfg PipelineConfig) WithDefaults() PipelineConfig {
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "data/processed"
	}
	if cfg.Output.StorePath == "" {
		cfg.Output.StorePath = "data/interim/enrich.db"
	}
	if cfg.Output.BaseName == "" {
		cfg.Output.BaseName = "trials_enriched"
	}
	if cfg.Checkpoint.Every <= 0 {
		cfg.Checkpoint.Every = 100
	}
	if cfg.AI.Provider == "" {
		cfg.AI.Provider = ProviderNone
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = DefaultModel
	}
	if cfg.AI.MaxRetries <= 0 {
		cfg.AI.MaxRetries = 3
	}
	if cfg.AI.Timeout <= 0 {
		cfg.AI.Timeout = 60 * time.Second
	}
	if cfg.AI.RequestsPerSecond <= 0 {
		cfg.AI.RequestsPerSecond = 2
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return cfg
}

// Validate reports configuration errors that must abort the run before any
// record is processed.
func (cfg PipelineConfig) Validate() error {
	if cfg.Dictionary.CanonicalPath == "" {
		return fmt.Errorf("dictionary canonical path is required")
	}
	if cfg.Input.Path == "" {
		return fmt.Errorf("input path is required")
	}
	switch cfg.Input.Format {
	case "", InputCSV, InputJSONL:
	default:
		return fmt.Errorf("unsupported input format %q", cfg.Input.Format)
	}
	switch cfg.AI.Provider {
	case ProviderNone:
	case ProviderAnthropic:
		if cfg.AI.APIKey == "" {
			return fmt.Errorf("anthropic provider requires an API key")
		}
	case ProviderHTTP:
		if cfg.AI.BaseURL == "" {
			return fmt.Errorf("http provider requires a base URL")
		}
	default:
		return fmt.Errorf("unsupported adjudication provider %q", cfg.AI.Provider)
	}
	return nil
}
