// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeInput(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_CSV(t *testing.T) {
	path := writeInput(t, "export.csv",
		"id,title,abstract,doi,publication_year,type\n"+
			"W1,First Paper,Some abstract,https://doi.org/10.1000/xyz,2021,article\n"+
			"W2,Second Paper,,doi: 10.1000/abc,2022.0,book-chapter\n")

	records, err := Load(path)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "W1", records[0].SourceID)
	assert.Equal(t, "10.1000/xyz", records[0].DOI)
	assert.Equal(t, 2021, records[0].PublicationYear)

	assert.Equal(t, "10.1000/abc", records[1].DOI)
	assert.Equal(t, 2022, records[1].PublicationYear)
	assert.Empty(t, records[1].Abstract)
}

func TestLoad_CSVIgnoresExtraColumns(t *testing.T) {
	path := writeInput(t, "export.csv",
		"id,cited_by_count,title,abstract,doi,publication_year,type\n"+
			"W1,42,Paper,Text,,2020,article\n")

	records, err := Load(path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Paper", records[0].Title)
	assert.Empty(t, records[0].DOI)
}

func TestLoad_JSONArray(t *testing.T) {
	path := writeInput(t, "export.json",
		`[{"id": "W1", "title": "Paper", "abstract": "Text", "doi": "10.1/a", "publication_year": 2019, "type": "article"}]`)

	records, err := Load(path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 2019, records[0].PublicationYear)
	assert.Equal(t, "10.1/a", records[0].DOI)
}

func TestLoad_JSONResultsEnvelope(t *testing.T) {
	path := writeInput(t, "export.json",
		`{"results": [{"id": "W1", "title": "Paper"}, {"id": "W2", "title": "Other"}]}`)

	records, err := Load(path)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "W2", records[1].SourceID)
}

func TestLoad_JSONInvertedIndexAbstract(t *testing.T) {
	path := writeInput(t, "export.json",
		`[{"id": "W1", "abstract_inverted_index": {"learning": [1], "deep": [0], "works": [2]}}]`)

	records, err := Load(path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "deep learning works", records[0].Abstract)
}

func TestLoad_RejectsUnknownExtension(t *testing.T) {
	path := writeInput(t, "export.parquet", "binary")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}

func TestNormalizeDOI(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"10.1000/xyz", "10.1000/xyz"},
		{"https://doi.org/10.1000/xyz", "10.1000/xyz"},
		{"HTTP://DOI.ORG/10.1000/xyz", "10.1000/xyz"},
		{"doi: 10.1000/xyz", "10.1000/xyz"},
		{"  10.1000/xyz  ", "10.1000/xyz"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeDOI(tt.in), "input %q", tt.in)
	}
}
