// Package store wraps internal/db with domain-shaped CRUD methods, the
// same seam a typical generated-queries layer provides over its
// generated db.Queries: callers work in terms of model.* entities, never
// raw SQL or nullable-column plumbing.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"indexbridge/internal/db"
	"indexbridge/internal/model"
)

type Store struct {
	DB *sql.DB
}

func New(database *sql.DB) *Store {
	return &Store{DB: database}
}

func (s *Store) withQueries() *db.Queries {
	return db.New(s.DB)
}

var ErrAlreadyTerminal = fmt.Errorf("crawl session is already in a terminal state")

// StartCrawl upserts the CrawlSession for job.started, idempotent on
// job_id. Returns inserted=false when a row already existed (duplicate
// delivery), so a duplicate crawl.started event is a no-op, not an error.
func (s *Store) StartCrawl(ctx context.Context, jobID, baseURL string, initiatedAt *time.Time) (inserted bool, err error) {
	var nt sql.NullTime
	if initiatedAt != nil {
		nt = sql.NullTime{Time: *initiatedAt, Valid: true}
	}
	return s.withQueries().UpsertCrawlSessionStarted(ctx, db.UpsertCrawlSessionStartedParams{
		JobID:       jobID,
		BaseURL:     baseURL,
		InitiatedAt: nt,
	})
}

// FailCrawl transitions a crawl session to failed; a no-op if the session
// is already terminal.
func (s *Store) FailCrawl(ctx context.Context, jobID, errMsg string) error {
	_, err := s.withQueries().SetCrawlSessionFailed(ctx, jobID, errMsg)
	return err
}

// GetCrawlSession loads one session by external job_id.
func (s *Store) GetCrawlSession(ctx context.Context, jobID string) (model.CrawlSession, error) {
	row, err := s.withQueries().GetCrawlSessionByJobID(ctx, jobID)
	if err != nil {
		return model.CrawlSession{}, err
	}
	return toModelCrawlSession(row), nil
}

// CompleteCrawl runs the completion aggregation in one transaction:
// count distinct documents, count distinct successes, sum durations by
// operation type, and update the session row. Returns ErrAlreadyTerminal
// if no in_progress row matched (e.g. a concurrent failure raced it).
func (s *Store) CompleteCrawl(ctx context.Context, jobID string, completedAt time.Time, initiatedAt *time.Time) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	q := db.New(tx)

	totalPages, err := q.CountDistinctDocsByCrawl(ctx, jobID, []string{
		model.OperationChunking, model.OperationEmbedding, model.OperationQdrant, model.OperationBM25,
	})
	if err != nil {
		return fmt.Errorf("count total pages: %w", err)
	}

	pagesIndexed, err := q.CountDistinctSuccessfulDocsByCrawl(ctx, jobID)
	if err != nil {
		return fmt.Errorf("count indexed pages: %w", err)
	}
	pagesFailed := totalPages - pagesIndexed
	if pagesFailed < 0 {
		pagesFailed = 0
	}

	sums, err := q.SumDurationByOperationType(ctx, jobID)
	if err != nil {
		return fmt.Errorf("sum durations: %w", err)
	}
	var chunkingMs, embeddingMs, vectorMs, bm25Ms int64
	for _, row := range sums {
		switch row.OperationType {
		case model.OperationChunking:
			chunkingMs = row.TotalMs
		case model.OperationEmbedding:
			embeddingMs = row.TotalMs
		case model.OperationQdrant:
			vectorMs = row.TotalMs
		case model.OperationBM25:
			bm25Ms = row.TotalMs
		}
	}

	session, err := q.GetCrawlSessionByJobID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	durationMs := completedAt.Sub(session.StartedAt).Milliseconds()
	var e2e sql.NullInt64
	if initiatedAt != nil {
		e2e = sql.NullInt64{Int64: completedAt.Sub(*initiatedAt).Milliseconds(), Valid: true}
	}

	affected, err := q.CompleteCrawlSession(ctx, db.CompleteCrawlSessionParams{
		JobID:            jobID,
		CompletedAt:      completedAt,
		TotalPages:       totalPages,
		PagesIndexed:     pagesIndexed,
		PagesFailed:      pagesFailed,
		TotalChunkingMs:  chunkingMs,
		TotalEmbeddingMs: embeddingMs,
		TotalVectorMs:    vectorMs,
		TotalBm25Ms:      bm25Ms,
		DurationMs:       durationMs,
		E2eDurationMs:    e2e,
	})
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if affected == 0 {
		return ErrAlreadyTerminal
	}

	return tx.Commit()
}

// RecordOperationMetric is a fire-and-forget timing write; callers should
// log failures rather than propagate them.
func (s *Store) RecordOperationMetric(ctx context.Context, m model.OperationMetric) error {
	var crawlID sql.NullString
	if m.CrawlID != "" {
		crawlID = sql.NullString{String: m.CrawlID, Valid: true}
	}
	return s.withQueries().InsertOperationMetric(ctx, db.InsertOperationMetricParams{
		OperationType: m.OperationType,
		DocumentURL:   m.DocURL,
		DurationMs:    m.DurationMs,
		Success:       m.Success,
		CrawlID:       crawlID,
		StartedAt:     time.Now(),
		ExtraMetadata: errMessageMetadata(m.ErrorMessage),
	})
}

func errMessageMetadata(errMsg string) json.RawMessage {
	if errMsg == "" {
		return json.RawMessage(`{}`)
	}
	b, _ := json.Marshal(map[string]string{"error": errMsg})
	return b
}

// PutContent persists one scraped document, keyed by (url, crawl_session_id)
// so duplicate page deliveries overwrite the prior row.
func (s *Store) PutContent(ctx context.Context, c model.ScrapedContent) (uuid.UUID, error) {
	var crawlSessionID sql.NullString
	if c.JobID != "" {
		crawlSessionID = sql.NullString{String: c.JobID, Valid: true}
	}
	links, _ := json.Marshal(c.Links)
	meta := c.Metadata
	if meta == nil {
		meta = json.RawMessage(`{}`)
	}
	idStr, err := s.withQueries().UpsertScrapedContent(ctx, db.UpsertScrapedContentParams{
		CrawlSessionID: crawlSessionID,
		URL:            c.URL,
		CanonicalURL:   c.CanonicalURL,
		SourceURL:      c.URL,
		ContentSource:  "scraper_webhook",
		Markdown:       c.Markdown,
		HTML:           c.HTML,
		Title:          c.Title,
		Links:          links,
		ExtraMetadata:  meta,
	})
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(idStr)
}

// GetContentByURL returns persisted content rows for a canonical URL,
// newest first, up to limit.
func (s *Store) GetContentByURL(ctx context.Context, canonicalURL string, limit int) ([]model.ScrapedContent, error) {
	rows, err := s.withQueries().GetScrapedContentByCanonicalURL(ctx, canonicalURL, int32(limit))
	if err != nil {
		return nil, err
	}
	out := make([]model.ScrapedContent, 0, len(rows))
	for _, r := range rows {
		out = append(out, toModelScrapedContent(r))
	}
	return out, nil
}

// GetContentByID returns one persisted content row, or sql.ErrNoRows.
func (s *Store) GetContentByID(ctx context.Context, id string) (model.ScrapedContent, error) {
	row, err := s.withQueries().GetScrapedContentByID(ctx, id)
	if err != nil {
		return model.ScrapedContent{}, err
	}
	return toModelScrapedContent(row), nil
}

// DeleteExpiredContent removes rows older than cutoff and returns their
// canonical URLs so the caller can invalidate the cache.
func (s *Store) DeleteExpiredContent(ctx context.Context, cutoff time.Time) ([]string, error) {
	return s.withQueries().DeleteScrapedContentOlderThan(ctx, cutoff)
}

// DeleteIndexingJobsOlderThan removes completed/failed jobs older than
// cutoff, returning the number of rows removed.
func (s *Store) DeleteIndexingJobsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.withQueries().DeleteIndexingJobsOlderThan(ctx, cutoff)
}

// EnqueueIndexingJob inserts a pending batch job.
func (s *Store) EnqueueIndexingJob(ctx context.Context, crawlID string, docs []model.IndexingDocument) (uuid.UUID, error) {
	var nullCrawlID sql.NullString
	if crawlID != "" {
		nullCrawlID = sql.NullString{String: crawlID, Valid: true}
	}
	payload, err := json.Marshal(docs)
	if err != nil {
		return uuid.Nil, err
	}
	idStr, err := s.withQueries().EnqueueIndexingJob(ctx, db.EnqueueIndexingJobParams{
		CrawlID:   nullCrawlID,
		Documents: payload,
	})
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(idStr)
}

// ClaimNextIndexingJob atomically claims and returns the oldest pending
// job, or (zero, sql.ErrNoRows) if none are queued.
func (s *Store) ClaimNextIndexingJob(ctx context.Context) (model.IndexingJob, error) {
	row, err := s.withQueries().ClaimNextIndexingJob(ctx)
	if err != nil {
		return model.IndexingJob{}, err
	}
	var docs []model.IndexingDocument
	if err := json.Unmarshal(row.Documents, &docs); err != nil {
		return model.IndexingJob{}, fmt.Errorf("decode job documents: %w", err)
	}
	var crawlID string
	if row.CrawlID.Valid {
		crawlID = row.CrawlID.String
	}
	return model.IndexingJob{
		ID:        row.ID,
		CrawlID:   crawlID,
		Documents: docs,
		Status:    model.IndexingJobStatus(row.Status),
		CreatedAt: row.CreatedAt,
	}, nil
}

// CompleteIndexingJob records the final per-document outcomes.
func (s *Store) CompleteIndexingJob(ctx context.Context, id uuid.UUID, outcomes []model.DocumentOutcome) error {
	result, err := json.Marshal(outcomes)
	if err != nil {
		return err
	}
	return s.withQueries().CompleteIndexingJob(ctx, id.String(), result)
}

// FailIndexingJob marks a job failed outright (fatal worker-level error,
// not a per-document failure).
func (s *Store) FailIndexingJob(ctx context.Context, id uuid.UUID, errMsg string) error {
	return s.withQueries().FailIndexingJob(ctx, id.String(), errMsg)
}

// CreateChangeEvent records an inbound change-detection notification.
func (s *Store) CreateChangeEvent(ctx context.Context, url, watchID string, meta json.RawMessage) (uuid.UUID, error) {
	idStr, err := s.withQueries().CreateChangeEvent(ctx, db.CreateChangeEventParams{
		URL: url, WatchID: watchID, ExtraMetadata: meta,
	})
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(idStr)
}

// ClaimChangeEvent performs the phase-1 conditional UPDATE; returns
// true iff this caller won the claim.
func (s *Store) ClaimChangeEvent(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.withQueries().ClaimChangeEvent(ctx, id.String())
}

func (s *Store) CompleteChangeEvent(ctx context.Context, id uuid.UUID) error {
	return s.withQueries().CompleteChangeEvent(ctx, id.String())
}

func (s *Store) FailChangeEvent(ctx context.Context, id uuid.UUID, errMsg string) error {
	return s.withQueries().FailChangeEvent(ctx, id.String(), errMsg)
}

func (s *Store) GetChangeEvent(ctx context.Context, id uuid.UUID) (model.ChangeEvent, error) {
	row, err := s.withQueries().GetChangeEventByID(ctx, id.String())
	if err != nil {
		return model.ChangeEvent{}, err
	}
	return toModelChangeEvent(row), nil
}

// ListPendingChangeEvents returns up to limit change event ids awaiting a
// rescrape claim, oldest first, for a poller to attempt.
func (s *Store) ListPendingChangeEvents(ctx context.Context, limit int) ([]uuid.UUID, error) {
	idStrs, err := s.withQueries().ListPendingChangeEvents(ctx, limit)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(idStrs))
	for _, idStr := range idStrs {
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// SweepZombieChangeEvents marks in_progress change events stuck past the
// threshold as failed with a standard abandoned-job message.
func (s *Store) SweepZombieChangeEvents(ctx context.Context, olderThan time.Time) (int, error) {
	ids, err := s.withQueries().ListZombieChangeEvents(ctx, olderThan)
	if err != nil {
		return 0, err
	}
	q := s.withQueries()
	for _, id := range ids {
		if err := q.FailChangeEvent(ctx, id, "abandoned: rescrape exceeded the zombie timeout"); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}

// UpsertBM25Document writes the Postgres-backed rebuild source for the
// in-process bleve cache.
func (s *Store) UpsertBM25Document(ctx context.Context, p model.BM25Posting) error {
	return s.withQueries().UpsertBm25Document(ctx, db.UpsertBm25DocumentParams{
		DocID:        p.DocID,
		CrawlID:      sql.NullString{String: p.CrawlID, Valid: p.CrawlID != ""},
		CanonicalURL: p.CanonicalURL,
		URL:          p.URL,
		Host:         p.Host,
		Title:        p.Title,
		Body:         p.Body,
	})
}

// ListAllBM25Documents loads the full rebuild set used to warm the
// in-process bleve index at worker startup.
func (s *Store) ListAllBM25Documents(ctx context.Context) ([]model.BM25Posting, error) {
	rows, err := s.withQueries().ListAllBm25Documents(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.BM25Posting, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.BM25Posting{
			DocID:        r.DocID,
			CrawlID:      r.CrawlID.String,
			CanonicalURL: r.CanonicalURL,
			URL:          r.URL,
			Host:         r.Host,
			Title:        r.Title,
			Body:         r.Body,
			IndexedAt:    r.IndexedAt,
		})
	}
	return out, nil
}

// ListOperationMetricsByCrawl returns every OperationMetric row recorded
// for a crawl's job_id, oldest first, for per-page metrics detail.
func (s *Store) ListOperationMetricsByCrawl(ctx context.Context, jobID string) ([]model.OperationMetric, error) {
	rows, err := s.withQueries().ListOperationMetricsByCrawl(ctx, jobID)
	if err != nil {
		return nil, err
	}
	out := make([]model.OperationMetric, 0, len(rows))
	for _, r := range rows {
		var errMsg string
		var meta map[string]string
		if len(r.ExtraMetadata) > 0 {
			if err := json.Unmarshal(r.ExtraMetadata, &meta); err == nil {
				errMsg = meta["error"]
			}
		}
		out = append(out, model.OperationMetric{
			ID:            r.ID,
			CrawlID:       r.CrawlID.String,
			DocURL:        r.DocumentURL,
			OperationType: r.OperationType,
			DurationMs:    r.DurationMs,
			Success:       r.Success,
			ErrorMessage:  errMsg,
			RecordedAt:    r.StartedAt,
		})
	}
	return out, nil
}

func toModelCrawlSession(row db.CrawlSession) model.CrawlSession {
	var dur, e2e *int64
	if row.DurationMs.Valid {
		v := row.DurationMs.Int64
		dur = &v
	}
	if row.E2eDurationMs.Valid {
		v := row.E2eDurationMs.Int64
		e2e = &v
	}
	var completedAt *time.Time
	if row.CompletedAt.Valid {
		completedAt = &row.CompletedAt.Time
	}
	return model.CrawlSession{
		ID:               row.ID,
		JobID:            row.JobID,
		SourceURL:        row.BaseURL,
		Status:           model.CrawlStatus(row.Status),
		TotalPages:       row.TotalPages,
		PagesIndexed:     row.PagesIndexed,
		PagesFailed:      row.PagesFailed,
		TotalChunkingMs:  row.TotalChunkingMs,
		TotalEmbeddingMs: row.TotalEmbeddingMs,
		TotalVectorMs:    row.TotalVectorMs,
		TotalBm25Ms:      row.TotalBm25Ms,
		DurationMs:      dur,
		E2EDurationMs:   e2e,
		StartedAt:       row.StartedAt,
		CompletedAt:     completedAt,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
}

func toModelScrapedContent(row db.ScrapedContent) model.ScrapedContent {
	var links []string
	_ = json.Unmarshal(row.Links, &links)
	return model.ScrapedContent{
		ID:           row.ID,
		JobID:        row.CrawlSessionID.String,
		URL:          row.URL,
		CanonicalURL: row.CanonicalURL,
		Title:        row.Title,
		Markdown:     row.Markdown,
		HTML:         row.HTML,
		Links:        links,
		Metadata:     row.ExtraMetadata,
		CreatedAt:    row.CreatedAt,
		IndexedAt:    row.CreatedAt,
	}
}

func toModelChangeEvent(row db.ChangeEvent) model.ChangeEvent {
	var claimed, completed *time.Time
	if row.RescrapeStartedAt.Valid {
		claimed = &row.RescrapeStartedAt.Time
	}
	if row.RescrapeCompletedAt.Valid {
		completed = &row.RescrapeCompletedAt.Time
	}
	return model.ChangeEvent{
		ID:           row.ID,
		URL:          row.URL,
		WatchUUID:    row.WatchID,
		Status:       model.ChangeEventStatus(row.RescrapeStatus),
		ClaimedAt:    claimed,
		CompletedAt:  completed,
		ErrorMessage: row.ErrorMessage,
		CreatedAt:    row.ReceivedAt,
	}
}
