// Package db is a hand-authored, sqlc-shaped query layer: a typed
// Queries struct wrapping *sql.DB/*sql.Tx, one method per statement, and
// Params/row structs mirroring the shape a
// store.go was written against. Written by hand because the upstream
// generator output never shipped with this schema.
package db

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type CrawlSession struct {
	ID               uuid.UUID
	JobID            string
	BaseURL          string
	Status           string
	Success          sql.NullBool
	StartedAt        time.Time
	CompletedAt      sql.NullTime
	InitiatedAt      sql.NullTime
	TotalPages       int64
	PagesIndexed     int64
	PagesFailed      int64
	TotalChunkingMs  int64
	TotalEmbeddingMs int64
	TotalVectorMs    int64
	TotalBm25Ms      int64
	DurationMs       sql.NullInt64
	E2eDurationMs    sql.NullInt64
	ExtraMetadata    json.RawMessage
	ErrorMessage     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type OperationMetric struct {
	ID            uuid.UUID
	OperationType string
	OperationName string
	DocumentURL   string
	DurationMs    int64
	Success       bool
	RequestID     sql.NullString
	CrawlID       sql.NullString
	StartedAt     time.Time
	ExtraMetadata json.RawMessage
}

type ScrapedContent struct {
	ID             uuid.UUID
	CrawlSessionID sql.NullString
	URL            string
	CanonicalURL   string
	SourceURL      string
	ContentSource  string
	Markdown       string
	HTML           string
	Title          string
	Description    string
	Links          json.RawMessage
	ExtraMetadata  json.RawMessage
	ScreenshotRef  sql.NullString
	CreatedAt      time.Time
}

type ChangeEvent struct {
	ID                  uuid.UUID
	URL                 string
	WatchID             string
	ReceivedAt          time.Time
	RescrapeStatus      string
	RescrapeStartedAt   sql.NullTime
	RescrapeCompletedAt sql.NullTime
	ErrorMessage        string
	ExtraMetadata       json.RawMessage
}

type IndexingJob struct {
	ID          uuid.UUID
	CrawlID     sql.NullString
	Documents   json.RawMessage
	Status      string
	Result      sql.NullString
	Error       string
	CreatedAt   time.Time
	StartedAt   sql.NullTime
	CompletedAt sql.NullTime
}

type Bm25Document struct {
	DocID        string
	CrawlID      sql.NullString
	CanonicalURL string
	URL          string
	Host         string
	Title        string
	Body         string
	IndexedAt    time.Time
}

// OperationDurationSum is a row from the grouped-by-operation_type
// aggregation query used during crawl completion.
type OperationDurationSum struct {
	OperationType string
	TotalMs       int64
}
