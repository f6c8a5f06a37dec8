// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract derives the structured annotation fields from record
// abstracts via an LLM provider, under a bounded worker pool with per-key
// result caching.
package extract

import (
	"context"
	"fmt"

	"github.com/pdiddy/lit-pipeline/pkg/types"
)

// Client abstracts the LLM provider so the engine never branches on a
// concrete type and tests can supply a mock. Generate returns the raw text
// completion for one prompt.
type Client interface {
	Provider() string
	Model() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// NewClient builds the configured provider client. Unknown providers and
// missing credentials are configuration errors, fatal before any work is
// dispatched.
func NewClient(cfg types.ExtractionConfig) (Client, error) {
	switch cfg.Provider {
	case types.ProviderGemini:
		return newGeminiClient(cfg)
	case types.ProviderOpenAI:
		return newOpenAIClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", cfg.Provider)
	}
}
