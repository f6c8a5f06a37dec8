// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/lit-pipeline/internal/cache"
	"github.com/pdiddy/lit-pipeline/pkg/types"
)

// codeFence strips leading/trailing Markdown code fences some models wrap
// around JSON output.
var codeFence = regexp.MustCompile("^```(?:json)?\\s*|\\s*```$")

// Result is the per-record outcome of one extraction attempt.
type Result struct {
	RecordKey string

	// Structured is the normalized schema value; the blank schema when the
	// attempt failed.
	Structured types.StructuredFields

	// Err is the failure reason, empty on success.
	Err string

	// FromCache reports whether the result was served without a network call.
	FromCache bool
}

// Engine drives concurrent extraction calls under the configured worker
// ceiling, consulting the result cache first. Failed records are logged and
// left to a later recovery pass; nothing is retried within a run.
type Engine struct {
	client Client
	store  *cache.Store
	cfg    types.ExtractionConfig
	log    zerolog.Logger
	tmpl   *template.Template
}

// NewEngine builds an Engine around the given client and cache store. A
// bad prompt-template override fails here, before any work is dispatched.
func NewEngine(client Client, store *cache.Store, cfg types.ExtractionConfig, log zerolog.Logger) (*Engine, error) {
	tmpl, err := loadPromptTemplate(cfg.PromptTemplatePath)
	if err != nil {
		return nil, err
	}
	return &Engine{client: client, store: store, cfg: cfg, log: log, tmpl: tmpl}, nil
}

// Provider returns the underlying client's provider identifier.
func (e *Engine) Provider() string { return e.client.Provider() }

// Model returns the underlying client's model identifier.
func (e *Engine) Model() string { return e.client.Model() }

// Outcome holds per-key extraction results and the failure entries
// accumulated during a run.
type Outcome struct {
	ByKey    map[string]Result
	Failures []types.FailureEntry
}

// FromCache counts results served from the cache.
func (o Outcome) FromCache() int {
	n := 0
	for _, r := range o.ByKey {
		if r.FromCache {
			n++
		}
	}
	return n
}

// ExtractAll processes every record with an abstract, at most Workers calls
// in flight. A cached result short-circuits the network call unless
// overwrite is set. Each record is dispatched exactly once, so no two
// workers ever write the same key. Cancellation stops dispatch; records
// never attempted are recorded as failures.
func (e *Engine) ExtractAll(ctx context.Context, records []types.KeyedRecord, overwrite bool) Outcome {
	outcome := Outcome{ByKey: make(map[string]Result, len(records))}

	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for _, rec := range records {
		if !rec.HasAbstract {
			continue
		}
		if gctx.Err() != nil {
			break
		}
		rec := rec
		g.Go(func() error {
			result := e.extractOne(gctx, rec, overwrite)
			mu.Lock()
			outcome.ByKey[rec.RecordKey] = result
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	now := time.Now().UTC()
	for _, rec := range records {
		if !rec.HasAbstract {
			continue
		}
		result, attempted := outcome.ByKey[rec.RecordKey]
		if !attempted {
			result = Result{
				RecordKey:  rec.RecordKey,
				Structured: types.BlankStructured(),
				Err:        "run cancelled before attempt",
			}
			outcome.ByKey[rec.RecordKey] = result
		}
		if result.Err == "" {
			continue
		}
		outcome.Failures = append(outcome.Failures, types.FailureEntry{
			RecordKey: rec.RecordKey,
			SourceID:  rec.SourceID,
			Stage:     types.StageExtraction,
			Error:     result.Err,
			Attempts:  1,
			Timestamp: now,
		})
	}

	e.log.Info().
		Int("records", len(outcome.ByKey)).
		Int("from_cache", outcome.FromCache()).
		Int("failed", len(outcome.Failures)).
		Msg("extraction finished")
	return outcome
}

// extractOne resolves one record: cache hit, or a single LLM call followed
// by parse, normalization, and persistence. Failures never write a cache
// entry.
func (e *Engine) extractOne(ctx context.Context, rec types.KeyedRecord, overwrite bool) Result {
	if !overwrite {
		if entry, err := e.store.Get(rec.RecordKey); err == nil {
			return Result{RecordKey: rec.RecordKey, Structured: entry.Structured, FromCache: true}
		} else if !errors.Is(err, cache.ErrNotFound) {
			e.log.Warn().Str("record", rec.RecordKey).Err(err).Msg("cache read failed, re-extracting")
		}
	}

	failed := func(err error) Result {
		return Result{RecordKey: rec.RecordKey, Structured: types.BlankStructured(), Err: err.Error()}
	}

	prompt, err := renderPrompt(e.tmpl, rec)
	if err != nil {
		return failed(err)
	}

	raw, err := e.client.Generate(ctx, prompt)
	if err != nil {
		return failed(err)
	}

	structured, err := parseStructured(raw)
	if err != nil {
		return failed(err)
	}

	err = e.store.Put(cache.Entry{
		RecordKey:   rec.RecordKey,
		SourceID:    rec.SourceID,
		Provider:    e.client.Provider(),
		Model:       e.client.Model(),
		ProcessedAt: time.Now().UTC(),
		Structured:  structured,
		RawResponse: raw,
	})
	if err != nil {
		return failed(fmt.Errorf("persisting result: %w", err))
	}

	return Result{RecordKey: rec.RecordKey, Structured: structured}
}

// parseStructured cleans code fences, parses the completion as a JSON
// object, and normalizes it against the fixed schema.
func parseStructured(raw string) (types.StructuredFields, error) {
	cleaned := codeFence.ReplaceAllString(strings.TrimSpace(raw), "")

	var payload map[string]any
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return types.BlankStructured(), fmt.Errorf("parsing LLM output as JSON object: %w", err)
	}
	return types.NormalizeStructured(payload), nil
}
