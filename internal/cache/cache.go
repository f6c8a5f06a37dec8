// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache is the durable per-record store of completed extraction
// results. It is the source of truth for "already done": a cached entry for
// a record key means no further LLM call is spent on that record unless an
// overwrite is explicitly requested.
package cache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/lit-pipeline/pkg/types"
)

// Entry is one persisted extraction result.
type Entry struct {
	RecordKey   string                 `json:"record_id"`
	SourceID    string                 `json:"source_id"`
	Provider    string                 `json:"provider"`
	Model       string                 `json:"model"`
	ProcessedAt time.Time              `json:"processed_at_utc"`
	Structured  types.StructuredFields `json:"structured"`
	RawResponse string                 `json:"raw_response"`
}

// ErrNotFound is returned by Get when no entry exists for the key.
var ErrNotFound = errors.New("cache entry not found")

// Store is a SQLite-backed key-value store of extraction results. Writes
// are upserts keyed by record key, so a partially written entry is never
// observable and the last writer for a key wins.
type Store struct {
	db *sql.DB
}

// Open opens or creates the cache database at path, creating parent
// directories and the schema as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS responses (
		record_id TEXT PRIMARY KEY,
		source_id TEXT,
		provider TEXT NOT NULL,
		model TEXT NOT NULL,
		processed_at TEXT NOT NULL,
		structured TEXT NOT NULL,
		raw_response TEXT
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the entry for the key, or ErrNotFound.
func (s *Store) Get(key string) (*Entry, error) {
	row := s.db.QueryRow(
		`SELECT record_id, source_id, provider, model, processed_at, structured, raw_response
		 FROM responses WHERE record_id = ?`, key)

	var e Entry
	var processedAt, structured string
	err := row.Scan(&e.RecordKey, &e.SourceID, &e.Provider, &e.Model, &processedAt, &structured, &e.RawResponse)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache entry %s: %w", key, err)
	}

	if t, parseErr := time.Parse(time.RFC3339Nano, processedAt); parseErr == nil {
		e.ProcessedAt = t
	}
	if err := json.Unmarshal([]byte(structured), &e.Structured); err != nil {
		return nil, fmt.Errorf("decoding cached fields for %s: %w", key, err)
	}
	return &e, nil
}

// Put upserts the entry under its record key.
func (s *Store) Put(e Entry) error {
	structured, err := json.Marshal(e.Structured)
	if err != nil {
		return fmt.Errorf("encoding structured fields: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO responses (record_id, source_id, provider, model, processed_at, structured, raw_response)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(record_id) DO UPDATE SET
			source_id = excluded.source_id,
			provider = excluded.provider,
			model = excluded.model,
			processed_at = excluded.processed_at,
			structured = excluded.structured,
			raw_response = excluded.raw_response`,
		e.RecordKey, e.SourceID, e.Provider, e.Model,
		e.ProcessedAt.UTC().Format(time.RFC3339Nano), string(structured), e.RawResponse)
	if err != nil {
		return fmt.Errorf("writing cache entry %s: %w", e.RecordKey, err)
	}
	return nil
}

// Stats summarizes cache contents per provider/model pair.
type Stats struct {
	Total    int
	ByModel  map[string]int
	Earliest time.Time
	Latest   time.Time
}

// Stats reports entry counts grouped by provider/model.
func (s *Store) Stats() (Stats, error) {
	stats := Stats{ByModel: map[string]int{}}

	rows, err := s.db.Query(
		`SELECT provider || '/' || model, COUNT(*), MIN(processed_at), MAX(processed_at)
		 FROM responses GROUP BY provider, model`)
	if err != nil {
		return stats, fmt.Errorf("querying cache stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int
		var earliest, latest string
		if err := rows.Scan(&key, &count, &earliest, &latest); err != nil {
			return stats, fmt.Errorf("scanning cache stats: %w", err)
		}
		stats.ByModel[key] = count
		stats.Total += count
		if t, err := time.Parse(time.RFC3339Nano, earliest); err == nil {
			if stats.Earliest.IsZero() || t.Before(stats.Earliest) {
				stats.Earliest = t
			}
		}
		if t, err := time.Parse(time.RFC3339Nano, latest); err == nil && t.After(stats.Latest) {
			stats.Latest = t
		}
	}
	return stats, rows.Err()
}
