// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"path/filepath"
	"time"
)

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "lit-pipeline/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// ResolutionConfig holds settings for the DOI resolution stage.
type ResolutionConfig struct {
	HTTPConfig `yaml:",inline"`

	// Concurrency caps simultaneous in-flight Crossref calls (default 20).
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// MaxRetries is the maximum attempt count per DOI (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// RetryBaseDelay is the first backoff delay; it doubles per attempt
	// (default 1.5s).
	RetryBaseDelay time.Duration `json:"retry_base_delay" yaml:"retry_base_delay"`

	// Mailto is sent to Crossref for polite-pool access.
	Mailto string `json:"mailto,omitempty" yaml:"mailto,omitempty"`
}

// Provider identifies an extraction backend.
type Provider string

const (
	ProviderGemini Provider = "gemini"
	ProviderOpenAI Provider = "openai"
)

// ExtractionConfig holds settings for the LLM extraction stage.
type ExtractionConfig struct {
	// Provider selects the backend: gemini or openai.
	Provider Provider `json:"provider" yaml:"provider"`

	// Model is the provider model identifier (default gemini-2.5-flash or
	// gpt-4o-mini depending on provider).
	Model string `json:"model" yaml:"model"`

	// APIKey authenticates against the provider.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// Workers caps simultaneous in-flight extraction calls (default 8).
	Workers int `json:"workers" yaml:"workers"`

	// Timeout is the per-call request timeout (default 60s).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// Temperature is the inference temperature (default 0).
	Temperature float64 `json:"temperature" yaml:"temperature"`

	// Overwrite forces fresh calls even when a cached result exists.
	Overwrite bool `json:"overwrite" yaml:"overwrite"`

	// PromptTemplatePath overrides the built-in prompt template.
	PromptTemplatePath string `json:"prompt_template_path,omitempty" yaml:"prompt_template_path,omitempty"`
}

// LoggingConfig controls diagnostic log output.
type LoggingConfig struct {
	// Level is the minimum level: trace, debug, info, warn, error (default info).
	Level string `json:"level" yaml:"level"`

	// Format is "console" or "json" (default console).
	Format string `json:"format" yaml:"format"`

	// Output is "stdout", "stderr", or a file path (default stderr).
	Output string `json:"output" yaml:"output"`
}

// PipelineConfig groups all stage configurations.
type PipelineConfig struct {
	// OutputDir is the base directory for snapshots, logs, and the cache
	// (default "output").
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	Resolution ResolutionConfig `json:"resolution" yaml:"resolution"`
	Extraction ExtractionConfig `json:"extraction" yaml:"extraction"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging"`
}

// LogsDir returns the directory holding failure logs and run metadata.
func (c PipelineConfig) LogsDir() string {
	return filepath.Join(c.OutputDir, "logs")
}

// CachePath returns the result cache database path.
func (c PipelineConfig) CachePath() string {
	return filepath.Join(c.OutputDir, "llm_responses.db")
}

// DOIFailureLogPath returns the resolution failure log path.
func (c PipelineConfig) DOIFailureLogPath() string {
	return filepath.Join(c.LogsDir(), "failed_doi_log.json")
}

// LLMFailureLogPath returns the extraction failure log path.
func (c PipelineConfig) LLMFailureLogPath() string {
	return filepath.Join(c.LogsDir(), "failed_llm_log.json")
}

// WithDefaults fills unset fields with the documented defaults.
func (c PipelineConfig) WithDefaults() PipelineConfig {
	out := c
	if out.OutputDir == "" {
		out.OutputDir = "output"
	}
	if out.Resolution.Timeout <= 0 {
		out.Resolution.Timeout = 30 * time.Second
	}
	if out.Resolution.UserAgent == "" {
		out.Resolution.UserAgent = "lit-pipeline/0.1 (research-automation)"
	}
	if out.Resolution.Concurrency <= 0 {
		out.Resolution.Concurrency = 20
	}
	if out.Resolution.MaxRetries <= 0 {
		out.Resolution.MaxRetries = 3
	}
	if out.Resolution.RetryBaseDelay <= 0 {
		out.Resolution.RetryBaseDelay = 1500 * time.Millisecond
	}
	if out.Extraction.Provider == "" {
		out.Extraction.Provider = ProviderGemini
	}
	if out.Extraction.Model == "" {
		switch out.Extraction.Provider {
		case ProviderOpenAI:
			out.Extraction.Model = "gpt-4o-mini"
		default:
			out.Extraction.Model = "gemini-2.5-flash"
		}
	}
	if out.Extraction.Workers <= 0 {
		out.Extraction.Workers = 8
	}
	if out.Extraction.Timeout <= 0 {
		out.Extraction.Timeout = 60 * time.Second
	}
	if out.Logging.Level == "" {
		out.Logging.Level = "info"
	}
	if out.Logging.Format == "" {
		out.Logging.Format = "console"
	}
	if out.Logging.Output == "" {
		out.Logging.Output = "stderr"
	}
	return out
}
