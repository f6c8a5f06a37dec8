// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ingest loads OpenAlex exports and prepares records for
// enrichment: schema normalization, text cleanup, abstract filtering, and
// deterministic ordering.
package ingest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pdiddy/lit-pipeline/pkg/types"
)

var (
	doiURLPrefix = regexp.MustCompile(`(?i)^https?://doi\.org/`)
	doiScheme    = regexp.MustCompile(`(?i)^doi:\s*`)
)

// Load reads an OpenAlex export (.csv or .json) into records. JSON inputs
// may be a top-level array, a single object, or an API-style envelope with
// a "results" array. Abstracts are reconstructed from
// abstract_inverted_index when no plain abstract field exists.
func Load(path string) ([]types.Record, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("input file does not exist: %s", path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return loadCSV(path)
	case ".json":
		return loadJSON(path)
	default:
		return nil, fmt.Errorf("input file must be .csv or .json, got %s", path)
	}
}

func loadCSV(path string) ([]types.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing CSV %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	col := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		col[strings.TrimSpace(strings.ToLower(name))] = i
	}

	cell := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	records := make([]types.Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		records = append(records, types.Record{
			SourceID:        cell(row, "id"),
			Title:           cell(row, "title"),
			Abstract:        cell(row, "abstract"),
			DOI:             NormalizeDOI(cell(row, "doi")),
			PublicationYear: parseYear(cell(row, "publication_year")),
			Type:            cell(row, "type"),
		})
	}
	return records, nil
}

func loadJSON(path string) ([]types.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var objects []map[string]any

	var asList []map[string]any
	if err := json.Unmarshal(data, &asList); err == nil {
		objects = asList
	} else {
		var asObject map[string]any
		if err := json.Unmarshal(data, &asObject); err != nil {
			return nil, fmt.Errorf("unsupported JSON structure in %s: %w", path, err)
		}
		if results, ok := asObject["results"].([]any); ok {
			for _, item := range results {
				if obj, ok := item.(map[string]any); ok {
					objects = append(objects, obj)
				}
			}
		} else {
			objects = []map[string]any{asObject}
		}
	}

	records := make([]types.Record, 0, len(objects))
	for _, obj := range objects {
		rec := types.Record{
			SourceID:        jsonString(obj["id"]),
			Title:           jsonString(obj["title"]),
			Abstract:        jsonString(obj["abstract"]),
			DOI:             NormalizeDOI(jsonString(obj["doi"])),
			PublicationYear: jsonYear(obj["publication_year"]),
			Type:            jsonString(obj["type"]),
		}
		if rec.Abstract == "" {
			if idx, ok := obj["abstract_inverted_index"].(map[string]any); ok {
				rec.Abstract = invertedIndexText(idx)
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// invertedIndexText converts an OpenAlex abstract inverted index (term →
// token positions) back to plain text by ordering terms by position.
func invertedIndexText(index map[string]any) string {
	type posWord struct {
		pos  int
		word string
	}
	var pairs []posWord
	for word, positions := range index {
		list, ok := positions.([]any)
		if !ok {
			continue
		}
		for _, p := range list {
			if f, ok := p.(float64); ok {
				pairs = append(pairs, posWord{pos: int(f), word: word})
			}
		}
	}
	if len(pairs) == 0 {
		return ""
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].pos < pairs[j].pos })

	words := make([]string, len(pairs))
	for i, p := range pairs {
		words[i] = p.word
	}
	return strings.Join(words, " ")
}

// NormalizeDOI strips https://doi.org/ and doi: prefixes and surrounding
// whitespace, yielding the bare DOI or an empty string.
func NormalizeDOI(raw string) string {
	doi := strings.TrimSpace(raw)
	doi = doiURLPrefix.ReplaceAllString(doi, "")
	doi = doiScheme.ReplaceAllString(doi, "")
	return strings.TrimSpace(doi)
}

func parseYear(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	// Exports sometimes carry years as floats ("2021.0").
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return 0
}

func jsonString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return ""
	}
}

func jsonYear(v any) int {
	switch val := v.(type) {
	case float64:
		return int(val)
	case string:
		return parseYear(val)
	default:
		return 0
	}
}
