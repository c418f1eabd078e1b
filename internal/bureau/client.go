// Package bureau implements the credit bureau query capability the
// graph explorer depends on: an HTTP client plus a cache-backed
// wrapper so repeated traversals do not re-query the network.
package bureau

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/andes-fintech/condor/internal/domain"
)

// Client queries the bureau HTTP API. Implements domain.BureauQuerier.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a bureau HTTP client.
func NewClient(cfg domain.BureauConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With("component", "bureau-client"),
	}
}

// Query fetches one identifier's report. A 404 means the bureau has no
// record: nil report, nil error. Transport failures and non-2xx
// statuses surface as errors for the explorer to treat as absent.
func (c *Client) Query(ctx context.Context, docKind, id string) (*domain.CreditReport, error) {
	if id == "" {
		return nil, fmt.Errorf("bureau query: %w: identifier required", domain.ErrInvalidInput)
	}

	endpoint := fmt.Sprintf("%s/reports/%s/%s", c.baseURL, url.PathEscape(docKind), url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("bureau query: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bureau query %s/%s: %w", docKind, id, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("bureau query %s/%s: status %d: %s", docKind, id, resp.StatusCode, body)
	}

	var report domain.CreditReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("bureau query %s/%s: decode: %w", docKind, id, err)
	}

	return &report, nil
}

// CachedQuerier wraps a querier with the tenant-scoped report cache.
// Response caching is the bureau client's concern; the explorer and
// everything above it stay cache-unaware.
type CachedQuerier struct {
	next     domain.BureauQuerier
	cache    domain.Cache
	tenantID string
	ttl      time.Duration
	logger   *slog.Logger
}

// NewCachedQuerier binds a querier to a tenant's cache namespace.
func NewCachedQuerier(next domain.BureauQuerier, cache domain.Cache, tenantID string, cfg domain.BureauConfig, logger *slog.Logger) *CachedQuerier {
	if logger == nil {
		logger = slog.Default()
	}
	ttl := time.Duration(cfg.CacheTTLSecs) * time.Second
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CachedQuerier{
		next:     next,
		cache:    cache,
		tenantID: tenantID,
		ttl:      ttl,
		logger:   logger.With("component", "bureau-cache"),
	}
}

// Query serves from cache when possible; only successful reports are
// cached, so a transient bureau failure is retried next time.
func (q *CachedQuerier) Query(ctx context.Context, docKind, id string) (*domain.CreditReport, error) {
	cached, err := q.cache.GetReport(ctx, q.tenantID, docKind, id)
	if err != nil {
		q.logger.Warn("cache read failed, falling through to bureau",
			"doc_kind", docKind, "id", id, "error", err)
	} else if cached != nil {
		return cached, nil
	}

	report, err := q.next.Query(ctx, docKind, id)
	if err != nil || report == nil {
		return report, err
	}

	if err := q.cache.SetReport(ctx, q.tenantID, docKind, id, report, q.ttl); err != nil {
		q.logger.Warn("cache write failed",
			"doc_kind", docKind, "id", id, "error", err)
	}

	return report, nil
}
