// Package pipeline runs the single-document indexing sequence: persist,
// chunk, embed, vector-upsert, BM25-upsert, each step timed into an
// OperationMetric row. Structured as one function per step, a metric
// pattern (one function per step, metric recorded around each), but
// steps here feed each other's output directly instead of fanning out
// to independent executors.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"indexbridge/internal/bm25engine"
	"indexbridge/internal/chunk"
	"indexbridge/internal/embedclient"
	"indexbridge/internal/htmlconvert"
	"indexbridge/internal/metrics"
	"indexbridge/internal/model"
	"indexbridge/internal/urlnorm"
	"indexbridge/internal/vectorclient"
)

// Store is the subset of *store.Store the pipeline depends on, kept as
// an interface so tests can fake it without a database.
type Store interface {
	PutContent(ctx context.Context, c model.ScrapedContent) (uuid.UUID, error)
	RecordOperationMetric(ctx context.Context, m model.OperationMetric) error
	UpsertBM25Document(ctx context.Context, p model.BM25Posting) error
}

type Pipeline struct {
	Store               Store
	Embed               *embedclient.Client
	Vector              *vectorclient.Client
	BM25                *bm25engine.Engine
	MaxChunkChars        int
	StripTrackingParams  bool
}

// Input is one document to index, already delivered by a webhook or a
// direct /api/index call.
type Input struct {
	URL      string
	JobID    string
	CrawlID  string
	Title    string
	Markdown string
	HTML     string
}

// Run executes the full persist->chunk->embed->vector->bm25 sequence for
// one document. Every step after persist is timed and recorded; a step's
// failure does not roll back prior steps: indexing is best-effort and
// partial results (e.g. persisted content with no vectors) are acceptable
// and surfaced to the caller as an error.
func (p *Pipeline) Run(ctx context.Context, in Input) error {
	canonicalURL := urlnorm.Normalize(in.URL, p.StripTrackingParams)

	markdown := in.Markdown
	if markdown == "" && in.HTML != "" {
		markdown = htmlconvert.ToMarkdown(in.HTML, in.URL)
	}
	title := in.Title
	if title == "" && in.HTML != "" {
		title = htmlconvert.ExtractTitle(in.HTML)
	}

	// Persist is fire-and-forget: a failure here does not block
	// chunking/embedding from proceeding, since the caller cares most
	// about the document becoming searchable. It isn't one of the four
	// aggregated operation types, so it isn't timed into a metric.
	_, _ = p.Store.PutContent(ctx, model.ScrapedContent{
		JobID:        in.JobID,
		URL:          in.URL,
		CanonicalURL: canonicalURL,
		Title:        title,
		Markdown:     markdown,
		HTML:         in.HTML,
	})

	var chunks []chunk.Chunk
	err := p.timed(ctx, in.CrawlID, in.URL, model.OperationChunking, func() error {
		chunks = chunk.Split(markdown, p.MaxChunkChars)
		if len(chunks) == 0 {
			return fmt.Errorf("no chunkable content for %s", in.URL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("pipeline: chunk %s: %w", in.URL, err)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	var embeddings [][]float32
	err = p.timed(ctx, in.CrawlID, in.URL, model.OperationEmbedding, func() error {
		var embedErr error
		embeddings, embedErr = p.Embed.Embed(ctx, texts)
		return embedErr
	})
	if err != nil {
		return fmt.Errorf("pipeline: embed %s: %w", in.URL, err)
	}

	points := make([]vectorclient.Point, len(chunks))
	for i, c := range chunks {
		points[i] = vectorclient.Point{
			ID:     fmt.Sprintf("%s#%d", canonicalURL, c.Index),
			Vector: embeddings[i],
			Payload: map[string]any{
				"url":              in.URL,
				"canonical_url":    canonicalURL,
				"host":             urlnorm.Host(in.URL),
				"crawl_session_id": in.CrawlID,
				"title":            title,
				"chunk_index":      c.Index,
				"text":             c.Text,
			},
		}
	}
	err = p.timed(ctx, in.CrawlID, in.URL, model.OperationQdrant, func() error {
		return p.Vector.Upsert(ctx, points)
	})
	if err != nil {
		return fmt.Errorf("pipeline: vector upsert %s: %w", in.URL, err)
	}

	err = p.timed(ctx, in.CrawlID, in.URL, model.OperationBM25, func() error {
		posting := model.BM25Posting{
			DocID:        canonicalURL,
			CrawlID:      in.CrawlID,
			CanonicalURL: canonicalURL,
			URL:          in.URL,
			Host:         urlnorm.Host(in.URL),
			Title:        title,
			Body:         markdown,
			IndexedAt:    time.Now(),
		}
		if err := p.Store.UpsertBM25Document(ctx, posting); err != nil {
			return err
		}
		return p.BM25.Upsert(ctx, posting)
	})
	if err != nil {
		return fmt.Errorf("pipeline: bm25 upsert %s: %w", in.URL, err)
	}

	return nil
}

// timed runs fn, records an OperationMetric for its outcome, and returns
// fn's error (the metric write itself is best-effort and never masks
// fn's result).
func (p *Pipeline) timed(ctx context.Context, crawlID, docURL, opType string, fn func() error) error {
	start := time.Now()
	err := fn()
	duration := time.Since(start).Milliseconds()

	metric := model.OperationMetric{
		CrawlID:       crawlID,
		DocURL:        docURL,
		OperationType: opType,
		DurationMs:    duration,
		Success:       err == nil,
	}
	if err != nil {
		metric.ErrorMessage = err.Error()
	}
	_ = p.Store.RecordOperationMetric(ctx, metric)
	metrics.RecordPipelineOperation(opType, err == nil, float64(duration))

	return err
}
