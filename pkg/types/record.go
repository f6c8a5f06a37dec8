// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types holds the shared data model and stage configurations for
// the literature-review enrichment pipeline.
package types

import "time"

// Record is one bibliographic entry from an OpenAlex export, immutable
// once loaded. Text fields are normalized during preprocessing.
type Record struct {
	// SourceID is the raw identifier column from the export. It may repeat
	// across rows; RecordKey disambiguates.
	SourceID string `json:"id" yaml:"id"`

	// Title is the work title.
	Title string `json:"title" yaml:"title"`

	// Abstract is the plain-text abstract, possibly reconstructed from an
	// OpenAlex inverted index.
	Abstract string `json:"abstract" yaml:"abstract"`

	// DOI is the bare DOI (no https://doi.org/ prefix), empty when unknown.
	DOI string `json:"doi" yaml:"doi"`

	// PublicationYear is zero when the export did not carry a year.
	PublicationYear int `json:"publication_year" yaml:"publication_year"`

	// Type is the work type (e.g. "article", "book-chapter").
	Type string `json:"type" yaml:"type"`

	// HasAbstract records whether the row carried a non-empty abstract.
	HasAbstract bool `json:"has_abstract" yaml:"has_abstract"`

	// ManufacturingContext is a keyword heuristic over title+abstract.
	ManufacturingContext bool `json:"manufacturing_context" yaml:"manufacturing_context"`
}

// KeyedRecord pairs a Record with its assigned RecordKey. The key is the
// join key for every downstream artifact (cache entries, failure logs,
// snapshot rows).
type KeyedRecord struct {
	Record

	// RecordKey is deterministic for a fixed input ordering.
	RecordKey string `json:"record_id" yaml:"record_id"`
}

// WorkMetadata is the subset of Crossref work metadata merged into
// resolved records.
type WorkMetadata struct {
	Title          string   `json:"title,omitempty" yaml:"title,omitempty"`
	ContainerTitle string   `json:"container_title,omitempty" yaml:"container_title,omitempty"`
	Publisher      string   `json:"publisher,omitempty" yaml:"publisher,omitempty"`
	Type           string   `json:"type,omitempty" yaml:"type,omitempty"`
	IssuedYear     int      `json:"issued_year,omitempty" yaml:"issued_year,omitempty"`
	CitedByCount   int      `json:"cited_by_count" yaml:"cited_by_count"`
	Subjects       []string `json:"subjects,omitempty" yaml:"subjects,omitempty"`
	URL            string   `json:"url,omitempty" yaml:"url,omitempty"`
}

// ResolutionResult is the outcome of resolving one DOI.
type ResolutionResult struct {
	DOI        string        `json:"doi"`
	Resolved   bool          `json:"resolved"`
	Metadata   *WorkMetadata `json:"metadata,omitempty"`
	Error      string        `json:"error,omitempty"`
	StatusCode int           `json:"status_code,omitempty"`
	Attempts   int           `json:"attempts"`

	// Retryable records the final failure classification: true when the
	// last error was transient (transport, timeout, 429, 5xx).
	Retryable bool `json:"retryable,omitempty"`
}

// Row is one line of the final dataset snapshot: the input record, its key,
// and the enrichment columns from both stages.
type Row struct {
	KeyedRecord

	// DOIResolved reports whether Crossref resolution succeeded for the
	// record's DOI. Always false for records without a DOI.
	DOIResolved bool `json:"doi_resolved"`

	// DOIError holds the final resolution failure reason, empty on success.
	DOIError string `json:"doi_resolution_error,omitempty"`

	// DOIMetadata holds resolved Crossref metadata, nil when unresolved.
	DOIMetadata *WorkMetadata `json:"doi_metadata,omitempty"`

	// Structured holds the normalized 23-field annotation.
	Structured StructuredFields `json:"structured"`

	// Provider and Model identify the LLM that produced Structured.
	Provider string `json:"llm_provider,omitempty"`
	Model    string `json:"llm_model,omitempty"`

	// ExtractionError holds the extraction failure reason, empty on success.
	ExtractionError string `json:"llm_extraction_error,omitempty"`
}

// RunMetadata summarizes one pipeline run. Immutable after the run completes.
type RunMetadata struct {
	RunID       string    `yaml:"run_id"`
	InputPath   string    `yaml:"input_path"`
	OutputCSV   string    `yaml:"output_csv"`
	StartedAt   time.Time `yaml:"started_at_utc"`
	CompletedAt time.Time `yaml:"completed_at_utc"`
	Provider    string    `yaml:"llm_provider"`
	Model       string    `yaml:"llm_model"`
	Temperature float64   `yaml:"llm_temperature"`

	Counts RunCounts `yaml:"row_counts"`

	DOIFailureLog string `yaml:"doi_failure_log"`
	LLMFailureLog string `yaml:"llm_failure_log"`
}

// RunCounts holds per-stage row counts for a run.
type RunCounts struct {
	Ingested        int `yaml:"ingested"`
	AfterPreprocess int `yaml:"after_preprocess"`
	DOIsResolved    int `yaml:"dois_resolved"`
	DOIsFailed      int `yaml:"dois_failed"`
	Extracted       int `yaml:"extracted"`
	FromCache       int `yaml:"from_cache"`
	ExtractFailed   int `yaml:"extract_failed"`
}

// RecoveryReport summarizes one recovery invocation.
type RecoveryReport struct {
	Stamp           string `yaml:"stamp"`
	FailedRequested int    `yaml:"failed_rows_requested"`
	RowsRetried     int    `yaml:"rows_retried"`
	Recovered       int    `yaml:"recovered_rows"`
	StillFailing    int    `yaml:"still_failing"`
	SourceSnapshot  string `yaml:"source_snapshot"`
	OutputCSV       string `yaml:"output_csv"`
}
