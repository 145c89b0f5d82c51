// Package model holds the domain entities shared across the indexing
// bridge: crawl lifecycle state, per-operation timing, persisted content,
// change-detection events, and the payload shapes that flow between the
// pipeline and the external vector/BM25 stores.
package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// CrawlStatus is the lifecycle state of a CrawlSession. Transitions only
// move forward: in_progress -> completed|failed|cancelled.
type CrawlStatus string

const (
	CrawlStatusInProgress CrawlStatus = "in_progress"
	CrawlStatusCompleted  CrawlStatus = "completed"
	CrawlStatusFailed     CrawlStatus = "failed"
	CrawlStatusCancelled  CrawlStatus = "cancelled"
)

// IsTerminal reports whether the status allows no further transitions.
func (s CrawlStatus) IsTerminal() bool {
	return s == CrawlStatusCompleted || s == CrawlStatusFailed || s == CrawlStatusCancelled
}

// CrawlSession tracks one crawl job's lifecycle and completion telemetry.
type CrawlSession struct {
	ID              uuid.UUID
	JobID           string
	SourceURL       string
	Status          CrawlStatus
	TotalPages      int64
	PagesIndexed    int64
	PagesFailed     int64
	TotalChunkingMs  int64
	TotalEmbeddingMs int64
	TotalVectorMs    int64
	TotalBm25Ms      int64
	DurationMs      *int64
	E2EDurationMs   *int64
	StartedAt       time.Time
	CompletedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OperationMetric records the duration of one pipeline step for one
// document, tagged by crawl and operation type so completion aggregation
// can sum durations per operation_type.
type OperationMetric struct {
	ID            uuid.UUID
	CrawlID       string
	DocURL        string
	OperationType string
	DurationMs    int64
	Success       bool
	ErrorMessage  string
	RecordedAt    time.Time
}

const (
	OperationChunking  = "chunking"
	OperationEmbedding = "embedding"
	OperationQdrant    = "qdrant"
	OperationBM25      = "bm25"
)

// ScrapedContent is the persisted record of one indexed document.
type ScrapedContent struct {
	ID           uuid.UUID
	CrawlID      string
	JobID        string
	URL          string
	CanonicalURL string
	Title        string
	Markdown     string
	HTML         string
	Links        []string
	Metadata     json.RawMessage
	IndexedAt    time.Time
	CreatedAt    time.Time
}

// ChangeEventStatus is the lifecycle state of a rescrape claim.
type ChangeEventStatus string

const (
	ChangeEventPending    ChangeEventStatus = "queued"
	ChangeEventInProgress ChangeEventStatus = "in_progress"
	ChangeEventCompleted  ChangeEventStatus = "completed"
	ChangeEventFailed     ChangeEventStatus = "failed"
)

// ChangeEvent is a queued rescrape triggered by the change-detection
// service noticing that a previously indexed URL changed.
type ChangeEvent struct {
	ID           uuid.UUID
	URL          string
	WatchUUID    string
	Status       ChangeEventStatus
	ClaimedAt    *time.Time
	CompletedAt  *time.Time
	ErrorMessage string
	CreatedAt    time.Time
}

// DocumentChunk is one unit of text handed to the embedding service and
// stored as a vector payload.
type DocumentChunk struct {
	ID           string
	DocURL       string
	CanonicalURL string
	ChunkIndex   int
	Text         string
	Embedding    []float32
}

// BM25Posting is one lexical document stored in the BM25 engine (and its
// Postgres-backed rebuild source, BM25Document).
type BM25Posting struct {
	DocID        string
	CrawlID      string
	CanonicalURL string
	URL          string
	Host         string
	Title        string
	Body         string
	IndexedAt    time.Time
}

// IndexingJobStatus is the lifecycle of a queued batch indexing job.
type IndexingJobStatus string

const (
	IndexingJobPending   IndexingJobStatus = "pending"
	IndexingJobRunning   IndexingJobStatus = "running"
	IndexingJobCompleted IndexingJobStatus = "completed"
	IndexingJobFailed    IndexingJobStatus = "failed"
)

// IndexingDocument is one document payload inside a batch indexing job,
// as delivered by a scrape/crawl webhook.
type IndexingDocument struct {
	URL      string          `json:"url"`
	JobID    string          `json:"job_id"`
	Title    string          `json:"title,omitempty"`
	Markdown string          `json:"markdown,omitempty"`
	HTML     string          `json:"html,omitempty"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// IndexingJob is the durable queue row behind the batch indexing worker.
type IndexingJob struct {
	ID          uuid.UUID
	CrawlID     string
	Documents   []IndexingDocument
	Status      IndexingJobStatus
	Result      json.RawMessage
	Error       string
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// DocumentOutcome is the per-document result recorded in IndexingJob.Result.
type DocumentOutcome struct {
	URL     string `json:"url"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
