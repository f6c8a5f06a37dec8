// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package resolve enriches records with Crossref metadata under a bounded
// concurrency ceiling, with retry/backoff and failure classification.
package resolve

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"

	"github.com/pdiddy/lit-pipeline/pkg/types"
)

// crossrefAPIBase is the Crossref works endpoint. Declared as a var so
// tests can substitute an httptest server.
var crossrefAPIBase = "https://api.crossref.org/works/"

// doiPattern matches DOIs: "10.1145/1234567.1234568".
var doiPattern = regexp.MustCompile(`^10\.\d{4,9}/[^\s]+$`)

// ValidDOI reports whether the string is syntactically a DOI. Malformed
// DOIs fail resolution immediately without spending network calls.
func ValidDOI(doi string) bool {
	return doiPattern.MatchString(doi)
}

// Client is the metadata lookup capability: one network call per DOI.
type Client interface {
	Resolve(ctx context.Context, doi string) (*types.WorkMetadata, error)
}

// StatusError is a resolution failure that carries the HTTP status for
// retry classification.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

// CrossrefClient resolves DOI metadata via the Crossref REST API.
type CrossrefClient struct {
	Client *http.Client
	Config types.ResolutionConfig
}

// Resolve fetches the Crossref work record for one DOI. Non-200 responses
// are returned as *StatusError with a truncated body excerpt.
func (c *CrossrefClient) Resolve(ctx context.Context, doi string) (*types.WorkMetadata, error) {
	reqURL := crossrefAPIBase + url.PathEscape(doi)
	if c.Config.Mailto != "" {
		reqURL += "?mailto=" + url.QueryEscape(c.Config.Mailto)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.Config.UserAgent)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 300))
		return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	var payload crossrefResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("parsing Crossref response: %w", err)
	}

	return payload.Message.toWorkMetadata(), nil
}

// Crossref API JSON structures.
type crossrefResponse struct {
	Message crossrefWork `json:"message"`
}

type crossrefWork struct {
	Title          []string     `json:"title"`
	ContainerTitle []string     `json:"container-title"`
	Publisher      string       `json:"publisher"`
	Type           string       `json:"type"`
	Issued         crossrefDate `json:"issued"`
	CitedByCount   int          `json:"is-referenced-by-count"`
	Subject        []string     `json:"subject"`
	URL            string       `json:"URL"`
}

type crossrefDate struct {
	DateParts [][]int `json:"date-parts"`
}

func (w crossrefWork) toWorkMetadata() *types.WorkMetadata {
	meta := &types.WorkMetadata{
		Publisher:    w.Publisher,
		Type:         w.Type,
		CitedByCount: w.CitedByCount,
		Subjects:     w.Subject,
		URL:          w.URL,
	}
	if len(w.Title) > 0 {
		meta.Title = w.Title[0]
	}
	if len(w.ContainerTitle) > 0 {
		meta.ContainerTitle = w.ContainerTitle[0]
	}
	if len(w.Issued.DateParts) > 0 && len(w.Issued.DateParts[0]) > 0 {
		meta.IssuedYear = w.Issued.DateParts[0][0]
	}
	return meta
}
