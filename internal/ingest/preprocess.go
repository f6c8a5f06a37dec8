// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/pdiddy/lit-pipeline/pkg/types"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// manufacturingKeywords drives the manufacturing-context heuristic flag.
var manufacturingKeywords = []string{
	"manufacturing",
	"factory",
	"production line",
	"industrial",
	"supply chain",
	"assembly",
	"shop floor",
	"predictive maintenance",
	"quality control",
	"process optimization",
}

// NormalizeText applies NFKC normalization and collapses whitespace runs to
// single spaces, yielding stable comparable strings.
func NormalizeText(value string) string {
	normalized := strings.TrimSpace(norm.NFKC.String(value))
	return whitespaceRun.ReplaceAllString(normalized, " ")
}

// HasManufacturingContext reports whether the combined title and abstract
// mention any manufacturing keyword.
func HasManufacturingContext(title, abstract string) bool {
	combined := strings.ToLower(title + " " + abstract)
	for _, kw := range manufacturingKeywords {
		if strings.Contains(combined, kw) {
			return true
		}
	}
	return false
}

// Preprocess cleans and filters loaded records:
//
//   - normalizes id, title, abstract, and type text
//   - drops rows without an abstract (HasAbstract=false rows never reach
//     the enrichment stages)
//   - computes the manufacturing-context flag
//   - sorts deterministically by (id, publication_year, title) with a
//     stable sort so repeated runs see identical ordering
func Preprocess(records []types.Record) []types.Record {
	out := make([]types.Record, 0, len(records))
	for _, rec := range records {
		rec.SourceID = NormalizeText(rec.SourceID)
		rec.Title = NormalizeText(rec.Title)
		rec.Abstract = NormalizeText(rec.Abstract)
		rec.Type = NormalizeText(rec.Type)

		rec.HasAbstract = rec.Abstract != ""
		if !rec.HasAbstract {
			continue
		}
		rec.ManufacturingContext = HasManufacturingContext(rec.Title, rec.Abstract)
		out = append(out, rec)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SourceID != out[j].SourceID {
			return out[i].SourceID < out[j].SourceID
		}
		if out[i].PublicationYear != out[j].PublicationYear {
			return out[i].PublicationYear < out[j].PublicationYear
		}
		return out[i].Title < out[j].Title
	})
	return out
}
