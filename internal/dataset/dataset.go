// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dataset writes and reads final dataset snapshots. A snapshot is a
// CSV file named final_dataset_<stamp>.csv whose rows join the input records
// with both enrichment stages. Snapshots are append-only artifacts: a run or
// recovery always writes a new file and never rewrites an existing one.
package dataset

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pdiddy/lit-pipeline/pkg/types"
)

// snapshotPrefix and snapshotExt bound the filenames Latest considers.
const (
	snapshotPrefix = "final_dataset_"
	snapshotExt    = ".csv"
)

// baseColumns precede the structured schema columns in every snapshot.
var baseColumns = []string{
	"record_id",
	"id",
	"title",
	"abstract",
	"doi",
	"publication_year",
	"type",
	"has_abstract",
	"manufacturing_context",
	"doi_resolved",
	"doi_resolution_error",
	"doi_metadata",
}

// tailColumns follow the structured schema columns.
var tailColumns = []string{
	"llm_provider",
	"llm_model",
	"llm_extraction_error",
}

// Header returns the full snapshot column list in canonical order.
func Header() []string {
	header := make([]string, 0, len(baseColumns)+len(types.StructuredFieldNames)+len(tailColumns))
	header = append(header, baseColumns...)
	header = append(header, types.StructuredFieldNames...)
	header = append(header, tailColumns...)
	return header
}

// Filename returns the snapshot filename for a run stamp.
func Filename(stamp string) string {
	return snapshotPrefix + stamp + snapshotExt
}

// Write persists rows as a snapshot CSV at path. The file is written to a
// temporary sibling and renamed into place so readers never observe a
// partial snapshot.
func Write(path string, rows []types.Row) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("creating temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(Header()); err != nil {
		tmp.Close()
		return fmt.Errorf("writing snapshot header: %w", err)
	}
	for _, row := range rows {
		record, err := encodeRow(row)
		if err != nil {
			tmp.Close()
			return fmt.Errorf("encoding row %s: %w", row.RecordKey, err)
		}
		if err := w.Write(record); err != nil {
			tmp.Close()
			return fmt.Errorf("writing row %s: %w", row.RecordKey, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flushing snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming snapshot into place: %w", err)
	}
	return nil
}

// Read loads a snapshot back into rows. Columns added by later versions are
// ignored; missing structured columns take their schema defaults.
func Read(path string) ([]types.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading snapshot %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("snapshot %s has no header", path)
	}

	cols := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		cols[name] = i
	}
	for _, required := range []string{"record_id", "title"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("snapshot %s missing column %q", path, required)
		}
	}

	rows := make([]types.Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		row, err := decodeRow(rec, cols)
		if err != nil {
			return nil, fmt.Errorf("decoding snapshot %s: %w", path, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Latest returns the path of the most recent snapshot under dir, by the
// lexicographic order of the timestamp-stamped filenames.
func Latest(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("listing snapshot directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, snapshotPrefix) && strings.HasSuffix(name, snapshotExt) {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no snapshots found in %s", dir)
	}
	sort.Strings(names)
	return filepath.Join(dir, names[len(names)-1]), nil
}

func encodeRow(row types.Row) ([]string, error) {
	metadata := ""
	if row.DOIMetadata != nil {
		raw, err := json.Marshal(row.DOIMetadata)
		if err != nil {
			return nil, fmt.Errorf("marshaling DOI metadata: %w", err)
		}
		metadata = string(raw)
	}

	out := []string{
		row.RecordKey,
		row.SourceID,
		row.Title,
		row.Abstract,
		row.DOI,
		formatYear(row.PublicationYear),
		row.Type,
		strconv.FormatBool(row.HasAbstract),
		strconv.FormatBool(row.ManufacturingContext),
		strconv.FormatBool(row.DOIResolved),
		row.DOIError,
		metadata,
	}

	structured, err := encodeStructured(row.Structured)
	if err != nil {
		return nil, err
	}
	out = append(out, structured...)
	out = append(out, row.Provider, row.Model, row.ExtractionError)
	return out, nil
}

// encodeStructured renders the schema fields in StructuredFieldNames order.
// List cells hold JSON arrays so they survive the CSV round trip.
func encodeStructured(s types.StructuredFields) ([]string, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshaling structured fields: %w", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("reshaping structured fields: %w", err)
	}

	out := make([]string, 0, len(types.StructuredFieldNames))
	for _, name := range types.StructuredFieldNames {
		out = append(out, encodeStructuredCell(fields[name]))
	}
	return out, nil
}

func encodeStructuredCell(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	// Bare strings are unquoted in cells; arrays and numbers stay as JSON.
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func decodeRow(rec []string, cols map[string]int) (types.Row, error) {
	cell := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	row := types.Row{
		KeyedRecord: types.KeyedRecord{
			Record: types.Record{
				SourceID:             cell("id"),
				Title:                cell("title"),
				Abstract:             cell("abstract"),
				DOI:                  cell("doi"),
				PublicationYear:      parseYear(cell("publication_year")),
				Type:                 cell("type"),
				HasAbstract:          cell("has_abstract") == "true",
				ManufacturingContext: cell("manufacturing_context") == "true",
			},
			RecordKey: cell("record_id"),
		},
		DOIResolved:     cell("doi_resolved") == "true",
		DOIError:        cell("doi_resolution_error"),
		Provider:        cell("llm_provider"),
		Model:           cell("llm_model"),
		ExtractionError: cell("llm_extraction_error"),
	}

	if raw := cell("doi_metadata"); raw != "" {
		var meta types.WorkMetadata
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			return types.Row{}, fmt.Errorf("row %s: parsing DOI metadata: %w", row.RecordKey, err)
		}
		row.DOIMetadata = &meta
	}

	payload := make(map[string]any, len(types.StructuredFieldNames))
	for _, name := range types.StructuredFieldNames {
		raw := cell(name)
		if raw == "" {
			continue
		}
		payload[name] = decodeStructuredCell(name, raw)
	}
	row.Structured = types.NormalizeStructured(payload)
	return row, nil
}

// decodeStructuredCell inverts encodeStructuredCell: JSON arrays and the
// confidence number parse as themselves, everything else is a bare string.
func decodeStructuredCell(name, raw string) any {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "[") {
		var list []any
		if err := json.Unmarshal([]byte(trimmed), &list); err == nil {
			return list
		}
	}
	if name == "confidence_score" {
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return f
		}
	}
	return raw
}

func formatYear(year int) string {
	if year == 0 {
		return ""
	}
	return strconv.Itoa(year)
}

func parseYear(s string) int {
	if s == "" {
		return 0
	}
	year, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return year
}
