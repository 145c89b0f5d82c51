// Package lifecycle assembles the crawl session state machine operations
// and the read-side crawl metrics view exposed at
// GET /api/metrics/crawls/{job_id}. Most of the state transitions
// themselves already live in internal/store as transactional SQL; this
// package is the seam the webhook and HTTP handlers call through, and
// where the per-operation-type detail gets shaped into a response.
package lifecycle

import (
	"context"
	"time"

	"indexbridge/internal/model"
)

// Store is the subset of *store.Store the lifecycle package depends on.
type Store interface {
	StartCrawl(ctx context.Context, jobID, baseURL string, initiatedAt *time.Time) (bool, error)
	FailCrawl(ctx context.Context, jobID, errMsg string) error
	CompleteCrawl(ctx context.Context, jobID string, completedAt time.Time, initiatedAt *time.Time) error
	GetCrawlSession(ctx context.Context, jobID string) (model.CrawlSession, error)
	ListOperationMetricsByCrawl(ctx context.Context, jobID string) ([]model.OperationMetric, error)
}

type Tracker struct {
	Store Store
}

// Start upserts the CrawlSession for a crawl.started event. inserted is
// false when the event was a duplicate delivery of an already-started
// job_id, which callers should treat as success, not an error.
func (t *Tracker) Start(ctx context.Context, jobID, baseURL string, initiatedAt *time.Time) (inserted bool, err error) {
	return t.Store.StartCrawl(ctx, jobID, baseURL, initiatedAt)
}

// Fail transitions a crawl to failed. A no-op (not an error) if the crawl
// already reached a terminal state, since forward-only transitions mean
// a late failure notification for an already-completed crawl is discarded.
func (t *Tracker) Fail(ctx context.Context, jobID, reason string) error {
	return t.Store.FailCrawl(ctx, jobID, reason)
}

// Complete runs the full completion aggregation for crawl.completed or
// scrape.completed events.
func (t *Tracker) Complete(ctx context.Context, jobID string, completedAt time.Time, initiatedAt *time.Time) error {
	return t.Store.CompleteCrawl(ctx, jobID, completedAt, initiatedAt)
}

// Metrics is the shape returned by GET /api/metrics/crawls/{job_id}.
type Metrics struct {
	JobID            string         `json:"job_id"`
	Status           string         `json:"status"`
	TotalPages       int64          `json:"total_pages"`
	PagesIndexed     int64          `json:"pages_indexed"`
	PagesFailed      int64          `json:"pages_failed"`
	TotalChunkingMs  int64          `json:"total_chunking_ms"`
	TotalEmbeddingMs int64          `json:"total_embedding_ms"`
	TotalVectorMs    int64          `json:"total_vector_ms"`
	TotalBm25Ms      int64          `json:"total_bm25_ms"`
	DurationMs       *int64         `json:"duration_ms,omitempty"`
	E2EDurationMs    *int64         `json:"e2e_duration_ms,omitempty"`
	StartedAt        time.Time      `json:"started_at"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
	PerPage          []PageMetric   `json:"per_page,omitempty"`
}

// PageMetric is one document's per-operation timing, included when a
// caller asks for include_per_page=true.
type PageMetric struct {
	URL           string `json:"url"`
	OperationType string `json:"operation_type"`
	DurationMs    int64  `json:"duration_ms"`
	Success       bool   `json:"success"`
	ErrorMessage  string `json:"error_message,omitempty"`
}

// GetMetrics loads one crawl session and shapes it into the metrics
// response. When includePerPage is true, it also loads every
// OperationMetric row recorded for the crawl, ordered oldest-first.
func (t *Tracker) GetMetrics(ctx context.Context, jobID string, includePerPage bool) (Metrics, error) {
	session, err := t.Store.GetCrawlSession(ctx, jobID)
	if err != nil {
		return Metrics{}, err
	}
	m := Metrics{
		JobID:            session.JobID,
		Status:           string(session.Status),
		TotalPages:       session.TotalPages,
		PagesIndexed:     session.PagesIndexed,
		PagesFailed:      session.PagesFailed,
		TotalChunkingMs:  session.TotalChunkingMs,
		TotalEmbeddingMs: session.TotalEmbeddingMs,
		TotalVectorMs:    session.TotalVectorMs,
		TotalBm25Ms:      session.TotalBm25Ms,
		DurationMs:       session.DurationMs,
		E2EDurationMs:    session.E2EDurationMs,
		StartedAt:        session.StartedAt,
		CompletedAt:      session.CompletedAt,
	}

	if includePerPage {
		metrics, err := t.Store.ListOperationMetricsByCrawl(ctx, jobID)
		if err != nil {
			return Metrics{}, err
		}
		m.PerPage = make([]PageMetric, len(metrics))
		for i, om := range metrics {
			m.PerPage[i] = PageMetric{
				URL:           om.DocURL,
				OperationType: om.OperationType,
				DurationMs:    om.DurationMs,
				Success:       om.Success,
				ErrorMessage:  om.ErrorMessage,
			}
		}
	}

	return m, nil
}
