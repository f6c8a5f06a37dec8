// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package recovery retries failed LLM extractions from a previous run and
// merges the recovered rows into a fresh snapshot. Only rows named in the
// extraction failure log are retried; everything else is carried over
// untouched, so recovery never costs a call for a row that already succeeded.
package recovery

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/lit-pipeline/internal/cache"
	"github.com/pdiddy/lit-pipeline/internal/dataset"
	"github.com/pdiddy/lit-pipeline/internal/extract"
	"github.com/pdiddy/lit-pipeline/internal/runlog"
	"github.com/pdiddy/lit-pipeline/pkg/types"
)

// nowFunc is overridden in tests for deterministic stamps.
var nowFunc = time.Now

const stampFormat = "20060102T150405Z"

// Engine drives one recovery pass.
type Engine struct {
	cfg    types.PipelineConfig
	engine *extract.Engine
	store  *cache.Store
	log    zerolog.Logger
}

// New builds a recovery Engine around the given LLM client, sharing the
// result cache with regular runs. Callers own Close.
func New(cfg types.PipelineConfig, client extract.Client, log zerolog.Logger) (*Engine, error) {
	store, err := cache.Open(cfg.CachePath())
	if err != nil {
		return nil, fmt.Errorf("opening result cache: %w", err)
	}
	engine, err := extract.NewEngine(client, store, cfg.Extraction, log)
	if err != nil {
		store.Close()
		return nil, err
	}
	return &Engine{cfg: cfg, engine: engine, store: store, log: log}, nil
}

// Close releases the result cache.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Run retries the failures recorded in the extraction failure log against
// the latest snapshot and writes a recovered snapshot, a refreshed failure
// log, and a recovery report. Rows in the log but absent from the snapshot
// are counted as requested but not retried.
func (e *Engine) Run(ctx context.Context) (types.RecoveryReport, error) {
	stamp := nowFunc().UTC().Format(stampFormat)
	log := e.log.With().Str("stamp", stamp).Logger()

	failures, err := runlog.ReadFailures(e.cfg.LLMFailureLogPath())
	if err != nil {
		return types.RecoveryReport{}, err
	}

	snapshotPath, err := dataset.Latest(e.cfg.OutputDir)
	if err != nil {
		return types.RecoveryReport{}, err
	}

	// Nothing to retry: report a no-op against the latest snapshot instead of
	// rewriting it, so back-to-back recoveries are idempotent.
	if len(failures) == 0 {
		report := types.RecoveryReport{
			Stamp:          stamp,
			SourceSnapshot: snapshotPath,
			OutputCSV:      snapshotPath,
		}
		if _, err := runlog.WriteRecoveryReport(e.cfg.LogsDir(), report); err != nil {
			return types.RecoveryReport{}, err
		}
		log.Info().Str("snapshot", snapshotPath).Msg("no extraction failures recorded, nothing to recover")
		return report, nil
	}

	rows, err := dataset.Read(snapshotPath)
	if err != nil {
		return types.RecoveryReport{}, err
	}

	failedKeys := make(map[string]bool, len(failures))
	for _, f := range failures {
		failedKeys[f.RecordKey] = true
	}

	// Rebuild extraction inputs from the snapshot itself; recovery does not
	// need the original input file.
	var retry []types.KeyedRecord
	rowIndex := make(map[string]int, len(rows))
	for i, row := range rows {
		rowIndex[row.RecordKey] = i
		if failedKeys[row.RecordKey] {
			retry = append(retry, row.KeyedRecord)
		}
	}

	log.Info().
		Str("snapshot", snapshotPath).
		Int("failed_logged", len(failures)).
		Int("rows_retried", len(retry)).
		Msg("recovery started")

	// Overwrite so the cached failure-era entries (if any) never shadow the
	// fresh attempt.
	outcome := e.engine.ExtractAll(ctx, retry, true)

	recovered := 0
	for key, result := range outcome.ByKey {
		i, ok := rowIndex[key]
		if !ok {
			continue
		}
		if result.Err == "" {
			rows[i].Structured = result.Structured
			rows[i].ExtractionError = ""
			rows[i].Provider = e.engine.Provider()
			rows[i].Model = e.engine.Model()
			recovered++
		} else {
			rows[i].ExtractionError = result.Err
		}
	}

	outputCSV := filepath.Join(e.cfg.OutputDir, recoveredFilename(stamp))
	if err := dataset.Write(outputCSV, rows); err != nil {
		return types.RecoveryReport{}, err
	}
	if err := runlog.WriteFailures(e.cfg.LLMFailureLogPath(), outcome.Failures); err != nil {
		return types.RecoveryReport{}, err
	}

	report := types.RecoveryReport{
		Stamp:           stamp,
		FailedRequested: len(failures),
		RowsRetried:     len(retry),
		Recovered:       recovered,
		StillFailing:    len(outcome.Failures),
		SourceSnapshot:  snapshotPath,
		OutputCSV:       outputCSV,
	}
	if _, err := runlog.WriteRecoveryReport(e.cfg.LogsDir(), report); err != nil {
		return types.RecoveryReport{}, err
	}

	log.Info().
		Int("recovered", report.Recovered).
		Int("still_failing", report.StillFailing).
		Str("snapshot", outputCSV).
		Msg("recovery complete")
	return report, nil
}

// recoveredFilename marks recovery snapshots apart from run snapshots while
// keeping the final_dataset_ prefix Latest scans for.
func recoveredFilename(stamp string) string {
	name := dataset.Filename(stamp)
	return strings.TrimSuffix(name, ".csv") + "_recovered.csv"
}
