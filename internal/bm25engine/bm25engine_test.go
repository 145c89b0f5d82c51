package bm25engine

import (
	"context"
	"testing"
	"time"

	"indexbridge/internal/model"
)

func TestSearchFindsUpsertedDocument(t *testing.T) {
	e, err := New(nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	err = e.Upsert(ctx, model.BM25Posting{
		DocID:        "doc-1",
		CanonicalURL: "https://example.com/a",
		URL:          "https://example.com/a",
		Title:        "Go Concurrency Patterns",
		Body:         "goroutines and channels make concurrent programming tractable",
		IndexedAt:    time.Now(),
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	results, err := e.Search(ctx, "concurrency", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(results))
	}
	if results[0].DocID != "doc-1" {
		t.Errorf("expected doc-1, got %s", results[0].DocID)
	}
}

func TestUpsertReplacesExistingPosting(t *testing.T) {
	e, err := New(nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	post := func(body string) {
		if err := e.Upsert(ctx, model.BM25Posting{
			DocID: "doc-1", CanonicalURL: "https://example.com/a",
			URL: "https://example.com/a", Title: "t", Body: body, IndexedAt: time.Now(),
		}); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	post("alpha content")
	post("bravo content")

	results, err := e.Search(ctx, "alpha", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected stale posting to be replaced, got %d hits for old term", len(results))
	}

	results, err = e.Search(ctx, "bravo", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("expected 1 hit for new term, got %d", len(results))
	}
}

func TestSearchFiltersByHostAndCrawlID(t *testing.T) {
	e, err := New(nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	if err := e.Upsert(ctx, model.BM25Posting{
		DocID: "doc-1", CrawlID: "J1", CanonicalURL: "https://a.example.com/x",
		URL: "https://a.example.com/x", Host: "a.example.com",
		Title: "t", Body: "shared term", IndexedAt: time.Now(),
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := e.Upsert(ctx, model.BM25Posting{
		DocID: "doc-2", CrawlID: "J2", CanonicalURL: "https://b.example.com/y",
		URL: "https://b.example.com/y", Host: "b.example.com",
		Title: "t", Body: "shared term", IndexedAt: time.Now(),
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	results, err := e.Search(ctx, "shared", 10, map[string]any{"host": "a.example.com"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].DocID != "doc-1" {
		t.Fatalf("expected only doc-1 for host filter, got %+v", results)
	}

	results, err = e.Search(ctx, "shared", 10, map[string]any{"crawl_session_id": "J2"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].DocID != "doc-2" {
		t.Fatalf("expected only doc-2 for crawl_session_id filter, got %+v", results)
	}
}

func TestSearchZeroLimitReturnsNoResults(t *testing.T) {
	e, err := New(nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	results, err := e.Search(context.Background(), "anything", 0, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if results != nil {
		t.Errorf("expected nil results for zero limit, got %v", results)
	}
}
