// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"context"
	"errors"
	"math"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/lit-pipeline/pkg/types"
)

// Resolver drives concurrent Client calls under the configured concurrency
// ceiling. Each distinct DOI is attempted exactly once per run; results are
// merged back into records by key, so completion order is unconstrained.
type Resolver struct {
	client Client
	cfg    types.ResolutionConfig
	log    zerolog.Logger
}

// NewResolver builds a Resolver around the given lookup client.
func NewResolver(client Client, cfg types.ResolutionConfig, log zerolog.Logger) *Resolver {
	return &Resolver{client: client, cfg: cfg, log: log}
}

// Outcome holds per-DOI resolution results and the failure entries
// accumulated during a run.
type Outcome struct {
	// ByDOI maps each attempted DOI to its result.
	ByDOI map[string]types.ResolutionResult

	// Failures holds one entry per unresolved DOI.
	Failures []types.FailureEntry
}

// ResolveAll resolves every distinct non-empty DOI in the batch. Duplicate
// DOIs across rows cost one lookup. Cancellation stops dispatching new
// calls; DOIs never attempted are recorded as failures rather than left in
// an ambiguous state.
func (r *Resolver) ResolveAll(ctx context.Context, records []types.KeyedRecord) Outcome {
	seen := make(map[string]bool)
	var dois []string
	for _, rec := range records {
		if rec.DOI != "" && !seen[rec.DOI] {
			seen[rec.DOI] = true
			dois = append(dois, rec.DOI)
		}
	}
	sort.Strings(dois)

	outcome := Outcome{ByDOI: make(map[string]types.ResolutionResult, len(dois))}
	if len(dois) == 0 {
		return outcome
	}

	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	for _, doi := range dois {
		if gctx.Err() != nil {
			break
		}
		doi := doi
		g.Go(func() error {
			result := r.resolveWithRetry(gctx, doi)
			mu.Lock()
			outcome.ByDOI[doi] = result
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	now := time.Now().UTC()
	for _, doi := range dois {
		result, attempted := outcome.ByDOI[doi]
		if !attempted {
			result = types.ResolutionResult{DOI: doi, Error: "run cancelled before attempt", Retryable: true}
			outcome.ByDOI[doi] = result
		}
		if result.Resolved {
			continue
		}
		outcome.Failures = append(outcome.Failures, types.FailureEntry{
			DOI:        doi,
			Stage:      types.StageResolution,
			Error:      result.Error,
			StatusCode: result.StatusCode,
			Attempts:   result.Attempts,
			Retryable:  result.Retryable,
			Timestamp:  now,
		})
	}

	r.log.Info().
		Int("dois", len(dois)).
		Int("resolved", len(dois)-len(outcome.Failures)).
		Int("failed", len(outcome.Failures)).
		Msg("DOI resolution finished")
	return outcome
}

// resolveWithRetry attempts one DOI with exponential backoff. Transport
// errors, timeouts, 429, and 5xx responses are retried; other 4xx responses
// and malformed DOI syntax fail immediately. The delay before attempt n+1
// is RetryBaseDelay * 2^(n-1), so delays are non-decreasing.
func (r *Resolver) resolveWithRetry(ctx context.Context, doi string) types.ResolutionResult {
	result := types.ResolutionResult{DOI: doi}

	if !ValidDOI(doi) {
		result.Error = "malformed DOI syntax"
		result.Attempts = 1
		result.Retryable = false
		return result
	}

	for attempt := 1; attempt <= r.cfg.MaxRetries; attempt++ {
		result.Attempts = attempt

		meta, err := r.client.Resolve(ctx, doi)
		if err == nil {
			result.Resolved = true
			result.Metadata = meta
			result.StatusCode = http.StatusOK
			result.Error = ""
			return result
		}

		result.Error = err.Error()

		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			result.StatusCode = statusErr.Code
			result.Retryable = retryableStatus(statusErr.Code)
			if !result.Retryable {
				return result
			}
		} else {
			// Transport error or timeout.
			result.StatusCode = 0
			result.Retryable = true
		}

		if ctx.Err() != nil {
			return result
		}

		if attempt < r.cfg.MaxRetries {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * r.cfg.RetryBaseDelay
			r.log.Debug().Str("doi", doi).Int("attempt", attempt).Dur("backoff", backoff).Msg("retrying DOI")
			select {
			case <-ctx.Done():
				return result
			case <-time.After(backoff):
			}
		}
	}
	return result
}

// retryableStatus reports whether an HTTP status is worth another attempt:
// 429 and all 5xx. Other 4xx responses indicate client-side DOI problems.
func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
