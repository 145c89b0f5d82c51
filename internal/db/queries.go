package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// DBTX is satisfied by *sql.DB and *sql.Tx, the same seam sqlc generates
// so callers can run a Queries method inside or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(dbtx DBTX) *Queries {
	return &Queries{db: dbtx}
}

// WithTx returns a Queries bound to the given transaction.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// -- crawl_sessions ---------------------------------------------------

const upsertCrawlSessionStarted = `
INSERT INTO crawl_sessions (job_id, base_url, status, started_at, initiated_at)
VALUES ($1, $2, 'in_progress', now(), $3)
ON CONFLICT (job_id) DO NOTHING
RETURNING id`

type UpsertCrawlSessionStartedParams struct {
	JobID       string
	BaseURL     string
	InitiatedAt sql.NullTime
}

// UpsertCrawlSessionStarted returns (inserted=true) when a new row was
// created, or (inserted=false, nil error) when the job_id already existed.
func (q *Queries) UpsertCrawlSessionStarted(ctx context.Context, arg UpsertCrawlSessionStartedParams) (inserted bool, err error) {
	var id string
	err = q.db.QueryRowContext(ctx, upsertCrawlSessionStarted, arg.JobID, arg.BaseURL, arg.InitiatedAt).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

const getCrawlSessionByJobID = `
SELECT id, job_id, base_url, status, success, started_at, completed_at, initiated_at,
       total_pages, pages_indexed, pages_failed,
       total_chunking_ms, total_embedding_ms, total_vector_ms, total_bm25_ms,
       duration_ms, e2e_duration_ms, extra_metadata, error_message, created_at, updated_at
FROM crawl_sessions WHERE job_id = $1`

func (q *Queries) GetCrawlSessionByJobID(ctx context.Context, jobID string) (CrawlSession, error) {
	var s CrawlSession
	err := q.db.QueryRowContext(ctx, getCrawlSessionByJobID, jobID).Scan(
		&s.ID, &s.JobID, &s.BaseURL, &s.Status, &s.Success, &s.StartedAt, &s.CompletedAt, &s.InitiatedAt,
		&s.TotalPages, &s.PagesIndexed, &s.PagesFailed,
		&s.TotalChunkingMs, &s.TotalEmbeddingMs, &s.TotalVectorMs, &s.TotalBm25Ms,
		&s.DurationMs, &s.E2eDurationMs, &s.ExtraMetadata, &s.ErrorMessage, &s.CreatedAt, &s.UpdatedAt,
	)
	return s, err
}

const setCrawlSessionFailed = `
UPDATE crawl_sessions SET status = 'failed', success = false, error_message = $2, updated_at = now()
WHERE job_id = $1 AND status = 'in_progress'`

func (q *Queries) SetCrawlSessionFailed(ctx context.Context, jobID, errMsg string) (int64, error) {
	res, err := q.db.ExecContext(ctx, setCrawlSessionFailed, jobID, errMsg)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const completeCrawlSession = `
UPDATE crawl_sessions SET
    status = 'completed',
    success = true,
    completed_at = $2,
    total_pages = $3,
    pages_indexed = $4,
    pages_failed = $5,
    total_chunking_ms = $6,
    total_embedding_ms = $7,
    total_vector_ms = $8,
    total_bm25_ms = $9,
    duration_ms = $10,
    e2e_duration_ms = $11,
    updated_at = now()
WHERE job_id = $1 AND status = 'in_progress'`

type CompleteCrawlSessionParams struct {
	JobID            string
	CompletedAt      time.Time
	TotalPages       int64
	PagesIndexed     int64
	PagesFailed      int64
	TotalChunkingMs  int64
	TotalEmbeddingMs int64
	TotalVectorMs    int64
	TotalBm25Ms      int64
	DurationMs       int64
	E2eDurationMs    sql.NullInt64
}

func (q *Queries) CompleteCrawlSession(ctx context.Context, arg CompleteCrawlSessionParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, completeCrawlSession,
		arg.JobID, arg.CompletedAt, arg.TotalPages, arg.PagesIndexed, arg.PagesFailed,
		arg.TotalChunkingMs, arg.TotalEmbeddingMs, arg.TotalVectorMs, arg.TotalBm25Ms,
		arg.DurationMs, arg.E2eDurationMs)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// -- operation_metrics --------------------------------------------------

const insertOperationMetric = `
INSERT INTO operation_metrics
    (operation_type, operation_name, document_url, duration_ms, success, request_id, crawl_id, started_at, extra_metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

type InsertOperationMetricParams struct {
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

func (q *Queries) InsertOperationMetric(ctx context.Context, arg InsertOperationMetricParams) error {
	if arg.ExtraMetadata == nil {
		arg.ExtraMetadata = json.RawMessage(`{}`)
	}
	_, err := q.db.ExecContext(ctx, insertOperationMetric,
		arg.OperationType, arg.OperationName, arg.DocumentURL, arg.DurationMs, arg.Success,
		arg.RequestID, arg.CrawlID, arg.StartedAt, arg.ExtraMetadata)
	return err
}

const countDistinctDocsByCrawl = `
SELECT count(DISTINCT document_url) FROM operation_metrics
WHERE crawl_id = $1 AND operation_type = ANY($2)`

func (q *Queries) CountDistinctDocsByCrawl(ctx context.Context, crawlID string, operationTypes []string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countDistinctDocsByCrawl, crawlID, sqlStringArray(operationTypes)).Scan(&n)
	return n, err
}

const countDistinctSuccessfulDocsByCrawl = `
SELECT count(DISTINCT document_url) FROM operation_metrics
WHERE crawl_id = $1 AND success = true`

func (q *Queries) CountDistinctSuccessfulDocsByCrawl(ctx context.Context, crawlID string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countDistinctSuccessfulDocsByCrawl, crawlID).Scan(&n)
	return n, err
}

const sumDurationByOperationType = `
SELECT operation_type, COALESCE(sum(duration_ms), 0) FROM operation_metrics
WHERE crawl_id = $1
GROUP BY operation_type`

func (q *Queries) SumDurationByOperationType(ctx context.Context, crawlID string) ([]OperationDurationSum, error) {
	rows, err := q.db.QueryContext(ctx, sumDurationByOperationType, crawlID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OperationDurationSum
	for rows.Next() {
		var r OperationDurationSum
		if err := rows.Scan(&r.OperationType, &r.TotalMs); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const listOperationMetricsByCrawl = `
SELECT id, operation_type, operation_name, document_url, duration_ms, success, request_id, crawl_id, started_at, extra_metadata
FROM operation_metrics WHERE crawl_id = $1 ORDER BY started_at ASC`

func (q *Queries) ListOperationMetricsByCrawl(ctx context.Context, crawlID string) ([]OperationMetric, error) {
	rows, err := q.db.QueryContext(ctx, listOperationMetricsByCrawl, crawlID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OperationMetric
	for rows.Next() {
		var m OperationMetric
		if err := rows.Scan(&m.ID, &m.OperationType, &m.OperationName, &m.DocumentURL, &m.DurationMs,
			&m.Success, &m.RequestID, &m.CrawlID, &m.StartedAt, &m.ExtraMetadata); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// -- scraped_content ----------------------------------------------------

const upsertScrapedContent = `
INSERT INTO scraped_content
    (crawl_session_id, url, canonical_url, source_url, content_source, markdown, html, title, description, links, extra_metadata, screenshot_ref)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (url, crawl_session_id) DO UPDATE SET
    canonical_url = EXCLUDED.canonical_url,
    source_url = EXCLUDED.source_url,
    content_source = EXCLUDED.content_source,
    markdown = EXCLUDED.markdown,
    html = EXCLUDED.html,
    title = EXCLUDED.title,
    description = EXCLUDED.description,
    links = EXCLUDED.links,
    extra_metadata = EXCLUDED.extra_metadata,
    screenshot_ref = EXCLUDED.screenshot_ref
RETURNING id`

type UpsertScrapedContentParams struct {
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
}

func (q *Queries) UpsertScrapedContent(ctx context.Context, arg UpsertScrapedContentParams) (string, error) {
	if arg.Links == nil {
		arg.Links = json.RawMessage(`[]`)
	}
	if arg.ExtraMetadata == nil {
		arg.ExtraMetadata = json.RawMessage(`{}`)
	}
	var id string
	err := q.db.QueryRowContext(ctx, upsertScrapedContent,
		arg.CrawlSessionID, arg.URL, arg.CanonicalURL, arg.SourceURL, arg.ContentSource,
		arg.Markdown, arg.HTML, arg.Title, arg.Description, arg.Links, arg.ExtraMetadata, arg.ScreenshotRef,
	).Scan(&id)
	return id, err
}

const getScrapedContentByCanonicalURL = `
SELECT id, crawl_session_id, url, canonical_url, source_url, content_source, markdown, html, title, description, links, extra_metadata, screenshot_ref, created_at
FROM scraped_content WHERE canonical_url = $1 ORDER BY created_at DESC LIMIT $2`

func (q *Queries) GetScrapedContentByCanonicalURL(ctx context.Context, canonicalURL string, limit int32) ([]ScrapedContent, error) {
	rows, err := q.db.QueryContext(ctx, getScrapedContentByCanonicalURL, canonicalURL, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanScrapedContentRows(rows)
}

const getScrapedContentByID = `
SELECT id, crawl_session_id, url, canonical_url, source_url, content_source, markdown, html, title, description, links, extra_metadata, screenshot_ref, created_at
FROM scraped_content WHERE id = $1`

func (q *Queries) GetScrapedContentByID(ctx context.Context, id string) (ScrapedContent, error) {
	var c ScrapedContent
	err := q.db.QueryRowContext(ctx, getScrapedContentByID, id).Scan(
		&c.ID, &c.CrawlSessionID, &c.URL, &c.CanonicalURL, &c.SourceURL, &c.ContentSource,
		&c.Markdown, &c.HTML, &c.Title, &c.Description, &c.Links, &c.ExtraMetadata, &c.ScreenshotRef, &c.CreatedAt,
	)
	return c, err
}

const deleteScrapedContentOlderThan = `DELETE FROM scraped_content WHERE created_at < $1 RETURNING canonical_url`

func (q *Queries) DeleteScrapedContentOlderThan(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, deleteScrapedContentOlderThan, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

func scanScrapedContentRows(rows *sql.Rows) ([]ScrapedContent, error) {
	var out []ScrapedContent
	for rows.Next() {
		var c ScrapedContent
		if err := rows.Scan(&c.ID, &c.CrawlSessionID, &c.URL, &c.CanonicalURL, &c.SourceURL, &c.ContentSource,
			&c.Markdown, &c.HTML, &c.Title, &c.Description, &c.Links, &c.ExtraMetadata, &c.ScreenshotRef, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// -- change_events -------------------------------------------------------

const createChangeEvent = `
INSERT INTO change_events (url, watch_id, received_at, rescrape_status, extra_metadata)
VALUES ($1, $2, now(), 'queued', $3)
RETURNING id`

type CreateChangeEventParams struct {
	URL           string
	WatchID       string
	ExtraMetadata json.RawMessage
}

func (q *Queries) CreateChangeEvent(ctx context.Context, arg CreateChangeEventParams) (string, error) {
	if arg.ExtraMetadata == nil {
		arg.ExtraMetadata = json.RawMessage(`{}`)
	}
	var id string
	err := q.db.QueryRowContext(ctx, createChangeEvent, arg.URL, arg.WatchID, arg.ExtraMetadata).Scan(&id)
	return id, err
}

const claimChangeEvent = `
UPDATE change_events SET rescrape_status = 'in_progress', rescrape_started_at = now()
WHERE id = $1 AND rescrape_status = 'queued'`

// ClaimChangeEvent performs the Phase-1 conditional UPDATE; returns true
// iff this call won the claim.
func (q *Queries) ClaimChangeEvent(ctx context.Context, id string) (bool, error) {
	res, err := q.db.ExecContext(ctx, claimChangeEvent, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

const completeChangeEvent = `
UPDATE change_events SET rescrape_status = 'completed', rescrape_completed_at = now() WHERE id = $1`

func (q *Queries) CompleteChangeEvent(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, completeChangeEvent, id)
	return err
}

const failChangeEvent = `
UPDATE change_events SET rescrape_status = 'failed', error_message = $2 WHERE id = $1`

func (q *Queries) FailChangeEvent(ctx context.Context, id, errMsg string) error {
	_, err := q.db.ExecContext(ctx, failChangeEvent, id, errMsg)
	return err
}

const getChangeEventByID = `
SELECT id, url, watch_id, received_at, rescrape_status, rescrape_started_at, rescrape_completed_at, error_message, extra_metadata
FROM change_events WHERE id = $1`

func (q *Queries) GetChangeEventByID(ctx context.Context, id string) (ChangeEvent, error) {
	var e ChangeEvent
	err := q.db.QueryRowContext(ctx, getChangeEventByID, id).Scan(
		&e.ID, &e.URL, &e.WatchID, &e.ReceivedAt, &e.RescrapeStatus, &e.RescrapeStartedAt,
		&e.RescrapeCompletedAt, &e.ErrorMessage, &e.ExtraMetadata)
	return e, err
}

const listZombieChangeEvents = `
SELECT id FROM change_events WHERE rescrape_status = 'in_progress' AND rescrape_started_at < $1`

func (q *Queries) ListZombieChangeEvents(ctx context.Context, olderThan time.Time) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listZombieChangeEvents, olderThan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const listPendingChangeEvents = `
SELECT id FROM change_events WHERE rescrape_status = 'queued' ORDER BY received_at ASC LIMIT $1`

// ListPendingChangeEvents returns up to limit change events awaiting a
// rescrape claim, oldest first.
func (q *Queries) ListPendingChangeEvents(ctx context.Context, limit int) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listPendingChangeEvents, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// -- indexing_jobs ---------------------------------------------------------

const enqueueIndexingJob = `
INSERT INTO indexing_jobs (crawl_id, documents, status)
VALUES ($1, $2, 'pending')
RETURNING id`

type EnqueueIndexingJobParams struct {
	CrawlID   sql.NullString
	Documents json.RawMessage
}

func (q *Queries) EnqueueIndexingJob(ctx context.Context, arg EnqueueIndexingJobParams) (string, error) {
	var id string
	err := q.db.QueryRowContext(ctx, enqueueIndexingJob, arg.CrawlID, arg.Documents).Scan(&id)
	return id, err
}

const claimNextIndexingJob = `
UPDATE indexing_jobs SET status = 'running', started_at = now()
WHERE id = (
    SELECT id FROM indexing_jobs WHERE status = 'pending' ORDER BY created_at ASC LIMIT 1 FOR UPDATE SKIP LOCKED
)
RETURNING id, crawl_id, documents, status, result, error, created_at, started_at, completed_at`

// ClaimNextIndexingJob atomically claims the oldest pending job, or returns
// sql.ErrNoRows if the queue is empty.
func (q *Queries) ClaimNextIndexingJob(ctx context.Context) (IndexingJob, error) {
	var j IndexingJob
	err := q.db.QueryRowContext(ctx, claimNextIndexingJob).Scan(
		&j.ID, &j.CrawlID, &j.Documents, &j.Status, &j.Result, &j.Error, &j.CreatedAt, &j.StartedAt, &j.CompletedAt)
	return j, err
}

const completeIndexingJob = `
UPDATE indexing_jobs SET status = 'completed', result = $2, completed_at = now() WHERE id = $1`

func (q *Queries) CompleteIndexingJob(ctx context.Context, id string, result json.RawMessage) error {
	_, err := q.db.ExecContext(ctx, completeIndexingJob, id, result)
	return err
}

const failIndexingJob = `
UPDATE indexing_jobs SET status = 'failed', error = $2, completed_at = now() WHERE id = $1`

func (q *Queries) FailIndexingJob(ctx context.Context, id, errMsg string) error {
	_, err := q.db.ExecContext(ctx, failIndexingJob, id, errMsg)
	return err
}

const deleteIndexingJobsOlderThan = `DELETE FROM indexing_jobs WHERE created_at < $1 AND status IN ('completed','failed')`

func (q *Queries) DeleteIndexingJobsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteIndexingJobsOlderThan, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// -- bm25_documents ---------------------------------------------------------

const upsertBm25Document = `
INSERT INTO bm25_documents (doc_id, crawl_id, canonical_url, url, host, title, body, indexed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, now())
ON CONFLICT (doc_id) DO UPDATE SET
    crawl_id = EXCLUDED.crawl_id,
    canonical_url = EXCLUDED.canonical_url,
    url = EXCLUDED.url,
    host = EXCLUDED.host,
    title = EXCLUDED.title,
    body = EXCLUDED.body,
    indexed_at = now()`

type UpsertBm25DocumentParams struct {
	DocID        string
	CrawlID      sql.NullString
	CanonicalURL string
	URL          string
	Host         string
	Title        string
	Body         string
}

func (q *Queries) UpsertBm25Document(ctx context.Context, arg UpsertBm25DocumentParams) error {
	_, err := q.db.ExecContext(ctx, upsertBm25Document,
		arg.DocID, arg.CrawlID, arg.CanonicalURL, arg.URL, arg.Host, arg.Title, arg.Body)
	return err
}

const listAllBm25Documents = `SELECT doc_id, crawl_id, canonical_url, url, host, title, body, indexed_at FROM bm25_documents`

func (q *Queries) ListAllBm25Documents(ctx context.Context) ([]Bm25Document, error) {
	rows, err := q.db.QueryContext(ctx, listAllBm25Documents)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Bm25Document
	for rows.Next() {
		var d Bm25Document
		if err := rows.Scan(&d.DocID, &d.CrawlID, &d.CanonicalURL, &d.URL, &d.Host, &d.Title, &d.Body, &d.IndexedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// sqlStringArray adapts a []string for use as a Postgres text[] parameter
// via pq/pgx array literal syntax understood by lib/pq-compatible drivers.
func sqlStringArray(values []string) string {
	out := "{"
	for i, v := range values {
		if i > 0 {
			out += ","
		}
		out += `"` + v + `"`
	}
	return out + "}"
}
