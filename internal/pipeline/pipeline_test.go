package pipeline

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"indexbridge/internal/bm25engine"
	"indexbridge/internal/embedclient"
	"indexbridge/internal/model"
	"indexbridge/internal/vectorclient"
)

type fakeStore struct {
	puts    []model.ScrapedContent
	metrics []model.OperationMetric
	bm25    []model.BM25Posting
}

func (f *fakeStore) PutContent(ctx context.Context, c model.ScrapedContent) (uuid.UUID, error) {
	f.puts = append(f.puts, c)
	return uuid.New(), nil
}

func (f *fakeStore) RecordOperationMetric(ctx context.Context, m model.OperationMetric) error {
	f.metrics = append(f.metrics, m)
	return nil
}

func (f *fakeStore) UpsertBM25Document(ctx context.Context, p model.BM25Posting) error {
	f.bm25 = append(f.bm25, p)
	return nil
}

func TestRunRecordsAMetricPerStep(t *testing.T) {
	fs := &fakeStore{}
	bm25, err := bm25engine.New(nil)
	if err != nil {
		t.Fatalf("bm25engine.New: %v", err)
	}

	p := &Pipeline{
		Store:  fs,
		Embed:  embedclient.New("http://embed.invalid", 0),
		Vector: vectorclient.New("http://vector.invalid", "documents", 0),
		BM25:   bm25,
	}

	// Embed and Vector point at unreachable hosts, so the pipeline should
	// fail at the embed step and never reach vector/bm25 — but persistence
	// and the chunking metric must still have happened.
	err = p.Run(context.Background(), Input{
		URL:      "https://example.com/doc",
		JobID:    "job-1",
		Markdown: "# Title\n\nSome paragraph content about Go concurrency.",
	})
	if err == nil {
		t.Fatal("expected an error from unreachable embed service")
	}
	if len(fs.puts) != 1 {
		t.Fatalf("expected content to be persisted once, got %d", len(fs.puts))
	}
	if fs.puts[0].CanonicalURL != "https://example.com/doc" {
		t.Errorf("unexpected canonical url: %s", fs.puts[0].CanonicalURL)
	}

	foundChunking, foundEmbedding := false, false
	for _, m := range fs.metrics {
		switch m.OperationType {
		case model.OperationChunking:
			foundChunking = true
		case model.OperationEmbedding:
			foundEmbedding = true
			if m.Success {
				t.Error("expected embedding metric to record failure")
			}
		}
	}
	if !foundChunking || !foundEmbedding {
		t.Errorf("expected chunking and embedding metrics, got %+v", fs.metrics)
	}
	if len(fs.bm25) != 0 {
		t.Errorf("expected no bm25 upsert after embed failure, got %d", len(fs.bm25))
	}
}

func TestRunFailsWhenNoChunkableContent(t *testing.T) {
	fs := &fakeStore{}
	bm25, _ := bm25engine.New(nil)
	p := &Pipeline{
		Store:  fs,
		Embed:  embedclient.New("http://embed.invalid", 0),
		Vector: vectorclient.New("http://vector.invalid", "documents", 0),
		BM25:   bm25,
	}

	err := p.Run(context.Background(), Input{URL: "https://example.com/empty", JobID: "job-2"})
	if err == nil {
		t.Fatal("expected an error for empty content")
	}
}
