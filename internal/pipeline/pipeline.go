// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline orchestrates a full enrichment run: ingest, preprocess,
// key assignment, concurrent DOI resolution and LLM extraction, then the
// snapshot, failure logs, and run metadata.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/lit-pipeline/internal/cache"
	"github.com/pdiddy/lit-pipeline/internal/dataset"
	"github.com/pdiddy/lit-pipeline/internal/extract"
	"github.com/pdiddy/lit-pipeline/internal/identity"
	"github.com/pdiddy/lit-pipeline/internal/ingest"
	"github.com/pdiddy/lit-pipeline/internal/resolve"
	"github.com/pdiddy/lit-pipeline/internal/runlog"
	"github.com/pdiddy/lit-pipeline/pkg/types"
)

// nowFunc is overridden in tests for deterministic run IDs.
var nowFunc = time.Now

// runIDFormat stamps run artifacts; lexicographic order matches time order.
const runIDFormat = "20060102T150405Z"

// Pipeline wires the two enrichment stages around a shared result cache.
type Pipeline struct {
	cfg      types.PipelineConfig
	resolver *resolve.Resolver
	engine   *extract.Engine
	store    *cache.Store
	log      zerolog.Logger
}

// New builds a Pipeline from explicit stage clients, opening the result
// cache under the configured output directory. Callers own Close.
func New(cfg types.PipelineConfig, resolveClient resolve.Client, llmClient extract.Client, log zerolog.Logger) (*Pipeline, error) {
	store, err := cache.Open(cfg.CachePath())
	if err != nil {
		return nil, fmt.Errorf("opening result cache: %w", err)
	}
	engine, err := extract.NewEngine(llmClient, store, cfg.Extraction, log)
	if err != nil {
		store.Close()
		return nil, err
	}
	return &Pipeline{
		cfg:      cfg,
		resolver: resolve.NewResolver(resolveClient, cfg.Resolution, log),
		engine:   engine,
		store:    store,
		log:      log,
	}, nil
}

// Close releases the result cache.
func (p *Pipeline) Close() error {
	return p.store.Close()
}

// Run executes one full enrichment pass over the input file and returns the
// run metadata. Both stages run concurrently; neither blocks the other since
// they touch disjoint columns and join only at the final merge.
func (p *Pipeline) Run(ctx context.Context, inputPath string) (types.RunMetadata, error) {
	started := nowFunc().UTC()
	runID := started.Format(runIDFormat)
	log := p.log.With().Str("run_id", runID).Logger()

	records, err := ingest.Load(inputPath)
	if err != nil {
		return types.RunMetadata{}, err
	}
	keyed := identity.Assign(ingest.Preprocess(records))
	log.Info().Int("ingested", len(records)).Int("usable", len(keyed)).Msg("input loaded")

	var resolution resolve.Outcome
	var extraction extract.Outcome
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		resolution = p.resolver.ResolveAll(gctx, keyed)
		return nil
	})
	g.Go(func() error {
		extraction = p.engine.ExtractAll(gctx, keyed, p.cfg.Extraction.Overwrite)
		return nil
	})
	g.Wait()

	rows := mergeRows(keyed, resolution, extraction, p.engine.Provider(), p.engine.Model())

	outputCSV := filepath.Join(p.cfg.OutputDir, dataset.Filename(runID))
	if err := dataset.Write(outputCSV, rows); err != nil {
		return types.RunMetadata{}, err
	}
	if err := runlog.WriteFailures(p.cfg.DOIFailureLogPath(), resolution.Failures); err != nil {
		return types.RunMetadata{}, err
	}
	if err := runlog.WriteFailures(p.cfg.LLMFailureLogPath(), extraction.Failures); err != nil {
		return types.RunMetadata{}, err
	}

	meta := types.RunMetadata{
		RunID:         runID,
		InputPath:     inputPath,
		OutputCSV:     outputCSV,
		StartedAt:     started,
		CompletedAt:   nowFunc().UTC(),
		Provider:      p.engine.Provider(),
		Model:         p.engine.Model(),
		Temperature:   p.cfg.Extraction.Temperature,
		DOIFailureLog: p.cfg.DOIFailureLogPath(),
		LLMFailureLog: p.cfg.LLMFailureLogPath(),
		Counts: types.RunCounts{
			Ingested:        len(records),
			AfterPreprocess: len(keyed),
			DOIsResolved:    len(resolution.ByDOI) - len(resolution.Failures),
			DOIsFailed:      len(resolution.Failures),
			Extracted:       len(extraction.ByKey) - len(extraction.Failures),
			FromCache:       extraction.FromCache(),
			ExtractFailed:   len(extraction.Failures),
		},
	}
	if _, err := runlog.WriteRunMetadata(p.cfg.LogsDir(), meta); err != nil {
		return types.RunMetadata{}, err
	}

	log.Info().
		Str("snapshot", outputCSV).
		Int("rows", len(rows)).
		Int("dois_failed", meta.Counts.DOIsFailed).
		Int("extract_failed", meta.Counts.ExtractFailed).
		Msg("run complete")
	return meta, nil
}

// mergeRows joins both stage outcomes back onto the keyed records. Rows keep
// input order; a record missing from either outcome keeps that stage's zero
// columns.
func mergeRows(keyed []types.KeyedRecord, resolution resolve.Outcome, extraction extract.Outcome, provider, model string) []types.Row {
	rows := make([]types.Row, 0, len(keyed))
	for _, rec := range keyed {
		row := types.Row{KeyedRecord: rec, Structured: types.BlankStructured()}

		if rec.DOI != "" {
			if res, ok := resolution.ByDOI[rec.DOI]; ok {
				row.DOIResolved = res.Resolved
				row.DOIError = res.Error
				row.DOIMetadata = res.Metadata
			}
		}

		if result, ok := extraction.ByKey[rec.RecordKey]; ok {
			row.Structured = result.Structured
			row.ExtractionError = result.Err
			if result.Err == "" {
				row.Provider = provider
				row.Model = model
			}
		}

		rows = append(rows, row)
	}
	return rows
}
