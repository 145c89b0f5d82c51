package worker

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"indexbridge/internal/bm25engine"
	"indexbridge/internal/embedclient"
	"indexbridge/internal/model"
	"indexbridge/internal/pipeline"
	"indexbridge/internal/vectorclient"
)

type fakeJobStore struct {
	job       model.IndexingJob
	claimed   bool
	completed []model.DocumentOutcome
	failedMsg string
}

func (f *fakeJobStore) ClaimNextIndexingJob(ctx context.Context) (model.IndexingJob, error) {
	if f.claimed {
		return model.IndexingJob{}, errors.New("no more jobs")
	}
	f.claimed = true
	return f.job, nil
}

func (f *fakeJobStore) CompleteIndexingJob(ctx context.Context, id uuid.UUID, outcomes []model.DocumentOutcome) error {
	f.completed = outcomes
	return nil
}

func (f *fakeJobStore) FailIndexingJob(ctx context.Context, id uuid.UUID, errMsg string) error {
	f.failedMsg = errMsg
	return nil
}

type fakePipelineStore struct{}

func (fakePipelineStore) PutContent(ctx context.Context, c model.ScrapedContent) (uuid.UUID, error) {
	return uuid.New(), nil
}
func (fakePipelineStore) RecordOperationMetric(ctx context.Context, m model.OperationMetric) error {
	return nil
}
func (fakePipelineStore) UpsertBM25Document(ctx context.Context, p model.BM25Posting) error {
	return nil
}

func TestProcessBatchIsolatesPerDocumentFailure(t *testing.T) {
	bm25, _ := bm25engine.New(nil)
	p := &pipeline.Pipeline{
		Store:  fakePipelineStore{},
		Embed:  embedclient.New("http://embed.invalid", 0),
		Vector: vectorclient.New("http://vector.invalid", "documents", 0),
		BM25:   bm25,
	}
	w := &Worker{Pipeline: p, BatchSize: 2}

	docs := []model.IndexingDocument{
		{URL: "https://example.com/a", Markdown: "content a"},
		{URL: "https://example.com/b", Markdown: "content b"},
		{URL: ""},
	}

	outcomes := w.processBatch(context.Background(), docs)
	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}
	for i, o := range outcomes {
		if o.Success {
			t.Errorf("outcome %d: expected failure (embed service unreachable), got success", i)
		}
		if o.URL != docs[i].URL {
			t.Errorf("outcome %d: url mismatch, got %q want %q", i, o.URL, docs[i].URL)
		}
	}
}

func TestPollOnceCompletesJobWhenDocumentsFail(t *testing.T) {
	job := model.IndexingJob{
		ID: uuid.New(),
		Documents: []model.IndexingDocument{
			{URL: "https://example.com/a", Markdown: "content a"},
		},
	}
	fs := &fakeJobStore{job: job}
	bm25, _ := bm25engine.New(nil)
	w := &Worker{
		Store: fs,
		Pipeline: &pipeline.Pipeline{
			Store:  fakePipelineStore{},
			Embed:  embedclient.New("http://embed.invalid", 0),
			Vector: vectorclient.New("http://vector.invalid", "documents", 0),
			BM25:   bm25,
		},
		BatchSize: 4,
	}

	w.pollOnce(context.Background(), slog.Default())

	if fs.completed == nil || fs.failedMsg != "" {
		t.Fatalf("expected CompleteIndexingJob with per-document outcomes, got completed=%v failedMsg=%q", fs.completed, fs.failedMsg)
	}
}
