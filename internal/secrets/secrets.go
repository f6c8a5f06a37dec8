// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads credentials from a directory of plain-text files.
// Each file holds one secret: the filename is the key and the trimmed file
// contents are the value.
//
// Recognized key files: gemini-api-key, openai-api-key, crossref-mailto.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/lit-pipeline/pkg/types"
)

// Key files consumed by the pipeline stages.
const (
	GeminiAPIKey   = "gemini-api-key"
	OpenAIAPIKey   = "openai-api-key"
	CrossrefMailto = "crossref-mailto"
)

// Store holds loaded secrets keyed by filename.
type Store map[string]string

// Load reads all files in dir into a Store. A missing directory or missing
// files are not errors; Load returns an empty Store. Unreadable files produce
// a warning on stderr but do not abort.
func Load(dir string) (Store, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Store{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	store := make(Store)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", name, err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			store[name] = value
		}
	}

	return store, nil
}

// APIKey returns the key file value for the given LLM provider, empty when
// absent or the provider is unknown.
func (s Store) APIKey(provider types.Provider) string {
	switch provider {
	case types.ProviderGemini:
		return s[GeminiAPIKey]
	case types.ProviderOpenAI:
		return s[OpenAIAPIKey]
	default:
		return ""
	}
}

// Mailto returns the Crossref polite-pool contact address, empty when absent.
func (s Store) Mailto() string {
	return s[CrossrefMailto]
}
