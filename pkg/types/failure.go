// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Stage identifies the pipeline stage a failure belongs to.
type Stage string

const (
	StageResolution Stage = "resolution"
	StageExtraction Stage = "extraction"
)

// FailureEntry is one record in a failure log. Logs are write-once-per-run
// artifacts; recovery reads them and produces a new snapshot rather than
// editing history.
type FailureEntry struct {
	// RecordKey identifies the failed record for extraction failures. DOI
	// failures are keyed by DOI instead, since resolution deduplicates DOIs
	// across rows.
	RecordKey string `json:"record_id,omitempty"`

	// SourceID is the raw identifier of the failed record, when known.
	SourceID string `json:"source_id,omitempty"`

	// DOI is set for resolution failures.
	DOI string `json:"doi,omitempty"`

	Stage Stage  `json:"stage"`
	Error string `json:"error"`

	// StatusCode is the final HTTP status for resolution failures, zero for
	// transport errors.
	StatusCode int `json:"status_code,omitempty"`

	// Attempts is the number of attempts spent before giving up.
	Attempts int `json:"attempts,omitempty"`

	// Retryable records the final classification of the failure.
	Retryable bool `json:"retryable"`

	Timestamp time.Time `json:"timestamp_utc"`
}
