// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/lit-pipeline/pkg/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "llm_responses.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleEntry(key string) Entry {
	summary := "a summary"
	return Entry{
		RecordKey:   key,
		SourceID:    "W1",
		Provider:    "gemini",
		Model:       "gemini-2.5-flash",
		ProcessedAt: time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC),
		Structured: types.StructuredFields{
			UseCases:       []string{"scheduling"},
			ConciseSummary: &summary,
		},
		RawResponse: `{"use_cases": ["scheduling"]}`,
	}
}

func TestStore_PutGetRoundtrip(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Put(sampleEntry("W1__1")))

	got, err := s.Get("W1__1")
	require.NoError(t, err)
	assert.Equal(t, "gemini", got.Provider)
	assert.Equal(t, []string{"scheduling"}, got.Structured.UseCases)
	require.NotNil(t, got.Structured.ConciseSummary)
	assert.Equal(t, "a summary", *got.Structured.ConciseSummary)
	assert.True(t, got.ProcessedAt.Equal(time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)))
}

func TestStore_GetMissing(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get("absent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_PutReplacesExisting(t *testing.T) {
	s := openTestStore(t)

	first := sampleEntry("W1")
	require.NoError(t, s.Put(first))

	second := sampleEntry("W1")
	second.Model = "gpt-4o-mini"
	second.Provider = "openai"
	require.NoError(t, s.Put(second))

	got, err := s.Get("W1")
	require.NoError(t, err)
	assert.Equal(t, "openai", got.Provider)

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
}

func TestStore_Stats(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Put(sampleEntry("W1")))
	require.NoError(t, s.Put(sampleEntry("W2")))

	other := sampleEntry("W3")
	other.Provider = "openai"
	other.Model = "gpt-4o-mini"
	require.NoError(t, s.Put(other))

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.ByModel["gemini/gemini-2.5-flash"])
	assert.Equal(t, 1, stats.ByModel["openai/gpt-4o-mini"])
}

func TestStore_ReopenPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "llm_responses.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(sampleEntry("W1")))
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get("W1")
	require.NoError(t, err)
	assert.Equal(t, "W1", got.RecordKey)
}
