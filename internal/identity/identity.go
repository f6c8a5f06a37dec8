// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package identity assigns deterministic, unique record keys to an ordered
// batch of records. Keys are a pure function of input order and source
// identifiers: re-running over the same input yields identical keys.
package identity

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"strings"

	"github.com/pdiddy/lit-pipeline/pkg/types"
)

// unsafeChars matches characters stripped from source identifiers so keys
// stay filesystem- and column-safe.
var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// Assign derives a RecordKey for every record, in input order.
//
// The base key is the sanitized source identifier, or a fingerprint hash of
// (title, year, type, row index) when the identifier is empty. A base that
// occurs once is used as-is; a duplicated base gets ordinal suffixes
// base__1, base__2, ... in input order. A candidate that would collide with
// another row's base (e.g. an input literally containing "W1__1" alongside
// two "W1" rows) is skipped by advancing the ordinal until the candidate is
// globally fresh, so keys are collision-free by construction.
func Assign(records []types.Record) []types.KeyedRecord {
	bases := make([]string, len(records))
	baseCount := make(map[string]int, len(records))
	for i, rec := range records {
		bases[i] = baseKey(rec, i)
		baseCount[bases[i]]++
	}

	issued := make(map[string]bool, len(records))
	ordinal := make(map[string]int, len(records))

	out := make([]types.KeyedRecord, len(records))
	for i, rec := range records {
		base := bases[i]

		var key string
		if baseCount[base] == 1 && !issued[base] {
			key = base
		} else {
			for {
				ordinal[base]++
				key = fmt.Sprintf("%s__%d", base, ordinal[base])
				if !issued[key] && baseCount[key] == 0 {
					break
				}
			}
		}
		issued[key] = true

		out[i] = types.KeyedRecord{Record: rec, RecordKey: key}
	}
	return out
}

// baseKey returns the sanitized source identifier, falling back to a
// deterministic fingerprint when the row has no usable identifier.
func baseKey(rec types.Record, rowIndex int) string {
	if safe := sanitize(rec.SourceID); safe != "" {
		return safe
	}

	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%s|%d", rec.Title, rec.PublicationYear, rec.Type, rowIndex)
	return fmt.Sprintf("record_%x", h.Sum(nil))[:23]
}

// sanitize collapses unsafe characters to underscores and trims leading and
// trailing underscores.
func sanitize(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	return strings.Trim(unsafeChars.ReplaceAllString(id, "_"), "_")
}
