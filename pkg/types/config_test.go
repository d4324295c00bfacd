// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWithDefaults(t *testing.T) {
	cfg := PipelineConfig{}.WithDefaults()

	assert.Equal(t, "data/processed", cfg.Output.Dir)
	assert.Equal(t, "data/interim/enrich.db", cfg.Output.StorePath)
	assert.Equal(t, "trials_enriched", cfg.Output.BaseName)
	assert.Equal(t, 100, cfg.Checkpoint.Every)
	assert.Equal(t, ProviderNone, cfg.AI.Provider)
	assert.Equal(t, DefaultModel, cfg.AI.Model)
	assert.Equal(t, 3, cfg.AI.MaxRetries)
	assert.Equal(t, 60*time.Second, cfg.AI.Timeout)
	assert.Equal(t, 2.0, cfg.AI.RequestsPerSecond)
	assert.Equal(t, 1, cfg.Workers)
}

func TestWithDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := PipelineConfig{
		Checkpoint: CheckpointConfig{Every: 7},
		AI:         AIConfig{Provider: ProviderHTTP, Model: "local", Timeout: time.Second},
		Workers:    4,
	}.WithDefaults()

	assert.Equal(t, 7, cfg.Checkpoint.Every)
	assert.Equal(t, ProviderHTTP, cfg.AI.Provider)
	assert.Equal(t, "local", cfg.AI.Model)
	assert.Equal(t, time.Second, cfg.AI.Timeout)
	assert.Equal(t, 4, cfg.Workers)
}

func TestValidate(t *testing.T) {
	valid := func() PipelineConfig {
		return PipelineConfig{
			Dictionary: DictionaryConfig{CanonicalPath: "configs/endpoint_dictionary.yaml"},
			Input:      InputConfig{Path: "trials.csv"},
		}.WithDefaults()
	}

	tests := []struct {
		name   string
		mutate func(*PipelineConfig)
		errMsg string
	}{
		{name: "defaults are valid", mutate: func(*PipelineConfig) {}},
		{name: "missing dictionary", mutate: func(c *PipelineConfig) { c.Dictionary.CanonicalPath = "" }, errMsg: "dictionary"},
		{name: "missing input", mutate: func(c *PipelineConfig) { c.Input.Path = "" }, errMsg: "input path"},
		{name: "unknown format", mutate: func(c *PipelineConfig) { c.Input.Format = "xlsx" }, errMsg: "xlsx"},
		{name: "jsonl format", mutate: func(c *PipelineConfig) { c.Input.Format = InputJSONL }},
		{
			name:   "anthropic without key",
			mutate: func(c *PipelineConfig) { c.AI.Provider = ProviderAnthropic },
			errMsg: "API key",
		},
		{
			name: "anthropic with key",
			mutate: func(c *PipelineConfig) {
				c.AI.Provider = ProviderAnthropic
				c.AI.APIKey = "k"
			},
		},
		{
			name:   "http without base URL",
			mutate: func(c *PipelineConfig) { c.AI.Provider = ProviderHTTP },
			errMsg: "base URL",
		},
		{name: "unknown provider", mutate: func(c *PipelineConfig) { c.AI.Provider = "oracle" }, errMsg: "oracle"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.errMsg)
			}
		})
	}
}
