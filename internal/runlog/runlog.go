// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package runlog persists per-run artifacts: the JSON failure logs consumed
// by recovery, the YAML run metadata record, and recovery reports. All writes
// go through a temp-and-rename so a crashed run never leaves a truncated log.
package runlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/lit-pipeline/pkg/types"
)

// WriteFailures replaces the failure log at path with entries. An empty slice
// still writes a log, so a clean run visibly supersedes an older failing one.
func WriteFailures(path string, entries []types.FailureEntry) error {
	if entries == nil {
		entries = []types.FailureEntry{}
	}
	raw, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling failure log: %w", err)
	}
	return atomicWrite(path, append(raw, '\n'))
}

// ReadFailures loads a failure log. A missing file reads as no failures.
func ReadFailures(path string) ([]types.FailureEntry, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading failure log: %w", err)
	}
	var entries []types.FailureEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parsing failure log %s: %w", path, err)
	}
	return entries, nil
}

// WriteRunMetadata persists the run summary as run_metadata_<runID>.yaml
// under dir and returns the written path.
func WriteRunMetadata(dir string, meta types.RunMetadata) (string, error) {
	raw, err := yaml.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("marshaling run metadata: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("run_metadata_%s.yaml", meta.RunID))
	if err := atomicWrite(path, raw); err != nil {
		return "", err
	}
	return path, nil
}

// WriteRecoveryReport persists the recovery summary as
// recovery_report_<stamp>.yaml under dir and returns the written path.
func WriteRecoveryReport(dir string, report types.RecoveryReport) (string, error) {
	raw, err := yaml.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("marshaling recovery report: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("recovery_report_%s.yaml", report.Stamp))
	if err := atomicWrite(path, raw); err != nil {
		return "", err
	}
	return path, nil
}

func atomicWrite(path string, raw []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("creating temp log: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming %s into place: %w", path, err)
	}
	return nil
}
