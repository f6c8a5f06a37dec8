// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package recovery

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/lit-pipeline/internal/dataset"
	"github.com/pdiddy/lit-pipeline/internal/runlog"
	"github.com/pdiddy/lit-pipeline/pkg/types"
)

const recoveredJSON = `{"use_cases": ["quality inspection"], "ai_category": "computer vision", "confidence_score": 0.7, "concise_summary": "Recovered."}`

// flakyLLM fails prompts mentioning titles in fail, succeeding otherwise.
type flakyLLM struct {
	mu    sync.Mutex
	fail  map[string]bool
	calls []string
}

func (c *flakyLLM) Provider() string { return "gemini" }
func (c *flakyLLM) Model() string    { return "gemini-2.5-flash" }

func (c *flakyLLM) Generate(_ context.Context, prompt string) (string, error) {
	c.mu.Lock()
	c.calls = append(c.calls, prompt)
	c.mu.Unlock()
	for title := range c.fail {
		if strings.Contains(prompt, title) {
			return "", fmt.Errorf("model unavailable")
		}
	}
	return recoveredJSON, nil
}

func snapshotRow(key, title string, failed bool) types.Row {
	row := types.Row{
		KeyedRecord: types.KeyedRecord{
			Record: types.Record{
				SourceID:        key,
				Title:           title,
				Abstract:        "An abstract about " + title + ".",
				PublicationYear: 2022,
				Type:            "article",
				HasAbstract:     true,
			},
			RecordKey: key,
		},
		Structured: types.BlankStructured(),
	}
	if failed {
		row.ExtractionError = "model unavailable"
	} else {
		row.Structured = types.NormalizeStructured(map[string]any{
			"use_cases":       []any{"original result"},
			"concise_summary": "Kept from the first run.",
		})
		row.Provider = "gemini"
		row.Model = "gemini-2.5-flash"
	}
	return row
}

// seedRun lays down the artifacts of a prior run: a snapshot and an
// extraction failure log naming the failed keys.
func seedRun(t *testing.T, cfg types.PipelineConfig, rows []types.Row, failedKeys []string) string {
	t.Helper()
	path := filepath.Join(cfg.OutputDir, dataset.Filename("20260301T120000Z"))
	require.NoError(t, dataset.Write(path, rows))

	var failures []types.FailureEntry
	for _, key := range failedKeys {
		failures = append(failures, types.FailureEntry{
			RecordKey: key,
			Stage:     types.StageExtraction,
			Error:     "model unavailable",
			Attempts:  1,
			Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		})
	}
	require.NoError(t, runlog.WriteFailures(cfg.LLMFailureLogPath(), failures))
	return path
}

func newTestEngine(t *testing.T, cfg types.PipelineConfig, llm *flakyLLM) *Engine {
	t.Helper()
	e, err := New(cfg, llm, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func testConfig(t *testing.T) types.PipelineConfig {
	t.Helper()
	return types.PipelineConfig{OutputDir: t.TempDir()}.WithDefaults()
}

func TestRun_RecoversFailedRowsOnly(t *testing.T) {
	restore := nowFunc
	nowFunc = func() time.Time { return time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC) }
	defer func() { nowFunc = restore }()

	cfg := testConfig(t)
	rows := []types.Row{
		snapshotRow("W1", "Predictive Maintenance", false),
		snapshotRow("W2", "Quality Inspection", true),
		snapshotRow("W3", "Job Scheduling", true),
	}
	source := seedRun(t, cfg, rows, []string{"W2", "W3"})

	llm := &flakyLLM{}
	e := newTestEngine(t, cfg, llm)

	report, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "20260302T080000Z", report.Stamp)
	assert.Equal(t, 2, report.FailedRequested)
	assert.Equal(t, 2, report.RowsRetried)
	assert.Equal(t, 2, report.Recovered)
	assert.Equal(t, 0, report.StillFailing)
	assert.Equal(t, source, report.SourceSnapshot)

	// Only the two failed rows cost a call.
	assert.Len(t, llm.calls, 2)

	got, err := dataset.Read(report.OutputCSV)
	require.NoError(t, err)
	require.Len(t, got, 3)

	byKey := make(map[string]types.Row, len(got))
	for _, row := range got {
		byKey[row.RecordKey] = row
	}
	assert.Equal(t, []string{"original result"}, byKey["W1"].Structured.UseCases, "healthy rows carry over unchanged")
	assert.Equal(t, []string{"quality inspection"}, byKey["W2"].Structured.UseCases)
	assert.Empty(t, byKey["W2"].ExtractionError)
	assert.Equal(t, "gemini", byKey["W2"].Provider)
	assert.Empty(t, byKey["W3"].ExtractionError)

	// The failure log is refreshed to empty.
	failures, err := runlog.ReadFailures(cfg.LLMFailureLogPath())
	require.NoError(t, err)
	assert.Empty(t, failures)
}

func TestRun_StillFailingRowsStayLogged(t *testing.T) {
	cfg := testConfig(t)
	rows := []types.Row{
		snapshotRow("W1", "Predictive Maintenance", false),
		snapshotRow("W2", "Quality Inspection", true),
		snapshotRow("W3", "Job Scheduling", true),
	}
	seedRun(t, cfg, rows, []string{"W2", "W3"})

	llm := &flakyLLM{fail: map[string]bool{"Job Scheduling": true}}
	e := newTestEngine(t, cfg, llm)

	report, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Recovered)
	assert.Equal(t, 1, report.StillFailing)

	failures, err := runlog.ReadFailures(cfg.LLMFailureLogPath())
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, "W3", failures[0].RecordKey)

	got, err := dataset.Read(report.OutputCSV)
	require.NoError(t, err)
	byKey := make(map[string]types.Row, len(got))
	for _, row := range got {
		byKey[row.RecordKey] = row
	}
	assert.NotEmpty(t, byKey["W3"].ExtractionError)
	assert.Empty(t, byKey["W3"].Structured.UseCases)
}

func TestRun_SecondRecoveryIsIdempotent(t *testing.T) {
	cfg := testConfig(t)
	rows := []types.Row{
		snapshotRow("W1", "Predictive Maintenance", false),
		snapshotRow("W2", "Quality Inspection", true),
	}
	seedRun(t, cfg, rows, []string{"W2"})

	llm := &flakyLLM{}
	e := newTestEngine(t, cfg, llm)

	first, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Recovered)

	// Everything recovered, so a second pass costs nothing and changes nothing.
	second, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, second.FailedRequested)
	assert.Zero(t, second.RowsRetried)
	assert.Zero(t, second.Recovered)
	assert.Zero(t, second.StillFailing)
	assert.Equal(t, second.SourceSnapshot, second.OutputCSV, "no new snapshot is written")
	assert.Equal(t, first.OutputCSV, second.SourceSnapshot)
	assert.Len(t, llm.calls, 1)
}

func TestRun_FailureLogNamesUnknownKey(t *testing.T) {
	cfg := testConfig(t)
	rows := []types.Row{snapshotRow("W1", "Predictive Maintenance", false)}
	seedRun(t, cfg, rows, []string{"W_GONE"})

	e := newTestEngine(t, cfg, &flakyLLM{})

	report, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.FailedRequested)
	assert.Equal(t, 0, report.RowsRetried)
	assert.Equal(t, 0, report.Recovered)
}

func TestRun_NoFailureLogReportsNoOp(t *testing.T) {
	cfg := testConfig(t)
	rows := []types.Row{snapshotRow("W1", "Predictive Maintenance", false)}
	path := filepath.Join(cfg.OutputDir, dataset.Filename("20260301T120000Z"))
	require.NoError(t, dataset.Write(path, rows))

	llm := &flakyLLM{}
	e := newTestEngine(t, cfg, llm)

	report, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.FailedRequested)
	assert.Equal(t, path, report.OutputCSV)
	assert.Empty(t, llm.calls)
}

func TestRun_NoSnapshot(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, runlog.WriteFailures(cfg.LLMFailureLogPath(), []types.FailureEntry{{RecordKey: "W1"}}))

	e := newTestEngine(t, cfg, &flakyLLM{})
	_, err := e.Run(context.Background())
	assert.Error(t, err)
}
