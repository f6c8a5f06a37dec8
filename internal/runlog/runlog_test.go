// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package runlog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/lit-pipeline/pkg/types"
)

func TestFailures_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "failed_llm_log.json")
	entries := []types.FailureEntry{
		{
			RecordKey: "W1",
			SourceID:  "W1",
			DOI:       "10.1000/x",
			Stage:     types.StageExtraction,
			Error:     "response was not JSON",
			Attempts:  1,
			Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		},
		{
			RecordKey:  "W2",
			Stage:      types.StageResolution,
			Error:      "crossref returned 503",
			StatusCode: 503,
			Attempts:   3,
			Retryable:  true,
			Timestamp:  time.Date(2026, 3, 1, 12, 0, 1, 0, time.UTC),
		},
	}

	require.NoError(t, WriteFailures(path, entries))

	got, err := ReadFailures(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "W1", got[0].RecordKey)
	assert.Equal(t, types.StageExtraction, got[0].Stage)
	assert.Equal(t, 503, got[1].StatusCode)
	assert.True(t, got[1].Retryable)
	assert.True(t, got[1].Timestamp.Equal(entries[1].Timestamp))
}

func TestFailures_EmptyRunWritesEmptyLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failed_doi_log.json")
	require.NoError(t, WriteFailures(path, nil))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(raw))

	got, err := ReadFailures(path)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFailures_ReplacesPreviousLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failed_llm_log.json")
	require.NoError(t, WriteFailures(path, []types.FailureEntry{{RecordKey: "W1"}, {RecordKey: "W2"}}))
	require.NoError(t, WriteFailures(path, []types.FailureEntry{{RecordKey: "W2"}}))

	got, err := ReadFailures(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "W2", got[0].RecordKey)
}

func TestReadFailures_MissingFile(t *testing.T) {
	got, err := ReadFailures(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestReadFailures_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failed_llm_log.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := ReadFailures(path)
	assert.Error(t, err)
}

func TestWriteRunMetadata(t *testing.T) {
	dir := t.TempDir()
	meta := types.RunMetadata{
		RunID:       "20260301T120000Z",
		InputPath:   "works.csv",
		OutputCSV:   "final_dataset_20260301T120000Z.csv",
		StartedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		CompletedAt: time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC),
		Provider:    "gemini",
		Model:       "gemini-2.5-flash",
		Counts: types.RunCounts{
			Ingested:        100,
			AfterPreprocess: 90,
			DOIsResolved:    80,
			DOIsFailed:      5,
			Extracted:       88,
			FromCache:       40,
			ExtractFailed:   2,
		},
	}

	path, err := WriteRunMetadata(dir, meta)
	require.NoError(t, err)
	assert.Equal(t, "run_metadata_20260301T120000Z.yaml", filepath.Base(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var got types.RunMetadata
	require.NoError(t, yaml.Unmarshal(raw, &got))
	assert.Equal(t, meta.RunID, got.RunID)
	assert.Equal(t, meta.Counts, got.Counts)
	assert.Equal(t, "gemini", got.Provider)
}

func TestWriteRecoveryReport(t *testing.T) {
	dir := t.TempDir()
	report := types.RecoveryReport{
		Stamp:           "20260302T080000Z",
		FailedRequested: 5,
		RowsRetried:     5,
		Recovered:       3,
		StillFailing:    2,
		SourceSnapshot:  "final_dataset_20260301T120000Z.csv",
		OutputCSV:       "final_dataset_20260302T080000Z_recovered.csv",
	}

	path, err := WriteRecoveryReport(dir, report)
	require.NoError(t, err)
	assert.Equal(t, "recovery_report_20260302T080000Z.yaml", filepath.Base(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var got types.RecoveryReport
	require.NoError(t, yaml.Unmarshal(raw, &got))
	assert.Equal(t, report, got)
}
