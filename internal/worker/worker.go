// Package worker implements the batch indexing worker: a polling loop
// that claims one queued IndexingJob at a time and fans its documents out
// across a bounded pool of goroutines, isolating each document's failure
// from its siblings. A ticker-driven poll loop with a semaphore
// (ticker + semaphore poll loop), generalized from "one job = one
// executor call" to "one job = N document-level pipeline runs."
package worker

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"indexbridge/internal/model"
	"indexbridge/internal/pipeline"
)

// Store is the subset of *store.Store the worker depends on.
type Store interface {
	ClaimNextIndexingJob(ctx context.Context) (model.IndexingJob, error)
	CompleteIndexingJob(ctx context.Context, id uuid.UUID, outcomes []model.DocumentOutcome) error
	FailIndexingJob(ctx context.Context, id uuid.UUID, errMsg string) error
}

type Worker struct {
	Store        Store
	Pipeline     *pipeline.Pipeline
	BatchSize    int
	PollInterval time.Duration
	JobTimeout   time.Duration
	Log          *slog.Logger
}

// Run polls for indexing jobs until ctx is cancelled, processing at most
// one job at a time (the batch parallelism is within a job, across its
// documents, not across jobs).
func (w *Worker) Run(ctx context.Context) {
	log := w.Log
	if log == nil {
		log = slog.Default()
	}

	ticker := time.NewTicker(w.pollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("worker: shutting down")
			return
		case <-ticker.C:
			w.pollOnce(ctx, log)
		}
	}
}

func (w *Worker) pollOnce(ctx context.Context, log *slog.Logger) {
	job, err := w.Store.ClaimNextIndexingJob(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return
		}
		log.Error("worker: claim job failed", "error", err)
		return
	}

	jobCtx := ctx
	var cancel context.CancelFunc
	if w.JobTimeout > 0 {
		jobCtx, cancel = context.WithTimeout(ctx, w.JobTimeout)
		defer cancel()
	}

	outcomes := w.processBatch(jobCtx, job.Documents)

	if err := w.Store.CompleteIndexingJob(ctx, job.ID, outcomes); err != nil {
		log.Error("worker: complete job", "job_id", job.ID, "error", err)
	}
}

// processBatch runs the indexing pipeline for each document, bounded to
// w.batchSize() concurrent documents. A panic or error in one document
// never prevents its siblings from completing.
func (w *Worker) processBatch(ctx context.Context, docs []model.IndexingDocument) []model.DocumentOutcome {
	sem := make(chan struct{}, w.batchSize())
	outcomes := make([]model.DocumentOutcome, len(docs))

	var wg sync.WaitGroup
	for i, doc := range docs {
		i, doc := i, doc
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			outcomes[i] = w.processOne(ctx, doc)
		}()
	}
	wg.Wait()

	return outcomes
}

func (w *Worker) processOne(ctx context.Context, doc model.IndexingDocument) (outcome model.DocumentOutcome) {
	outcome.URL = doc.URL
	defer func() {
		if r := recover(); r != nil {
			outcome.Success = false
			outcome.Error = "panic during indexing"
		}
	}()

	err := w.Pipeline.Run(ctx, pipeline.Input{
		URL:      doc.URL,
		JobID:    doc.JobID,
		CrawlID:  doc.JobID,
		Title:    doc.Title,
		Markdown: doc.Markdown,
		HTML:     doc.HTML,
	})
	if err != nil {
		outcome.Success = false
		outcome.Error = err.Error()
		return outcome
	}
	outcome.Success = true
	return outcome
}

func (w *Worker) batchSize() int {
	if w.BatchSize <= 0 {
		return 4
	}
	return w.BatchSize
}

func (w *Worker) pollInterval() time.Duration {
	if w.PollInterval <= 0 {
		return 2 * time.Second
	}
	return w.PollInterval
}
