package search

import (
	"testing"

	"indexbridge/internal/bm25engine"
	"indexbridge/internal/vectorclient"
)

// TestFuseReciprocalRankFusion matches the worked example: document A is
// vector rank 1 and bm25 rank 2, B is vector-only rank 2, C is bm25-only
// rank 1. With K=60: score(A) = 1/61 + 1/62, score(C) = 1/61, score(B) = 1/62.
func TestFuseReciprocalRankFusion(t *testing.T) {
	vectorHits := []vectorclient.SearchResult{
		{ID: "a", Payload: map[string]any{"canonical_url": "https://example.com/a"}},
		{ID: "b", Payload: map[string]any{"canonical_url": "https://example.com/b"}},
	}
	bm25Hits := []bm25engine.Result{
		{DocID: "c", CanonicalURL: "https://example.com/c"},
		{DocID: "a", CanonicalURL: "https://example.com/a"},
	}

	results := fuse(vectorHits, bm25Hits, 60, 10)
	if len(results) != 3 {
		t.Fatalf("expected 3 fused results, got %d", len(results))
	}

	byURL := make(map[string]Result)
	for _, r := range results {
		byURL[r.CanonicalURL] = r
	}

	wantA := 1.0/61 + 1.0/62
	wantC := 1.0 / 61
	wantB := 1.0 / 62

	if got := byURL["https://example.com/a"].Score; !approxEqual(got, wantA) {
		t.Errorf("score(A) = %v, want %v", got, wantA)
	}
	if got := byURL["https://example.com/c"].Score; !approxEqual(got, wantC) {
		t.Errorf("score(C) = %v, want %v", got, wantC)
	}
	if got := byURL["https://example.com/b"].Score; !approxEqual(got, wantB) {
		t.Errorf("score(B) = %v, want %v", got, wantB)
	}

	// A should rank first (highest score), then C, then B.
	if results[0].CanonicalURL != "https://example.com/a" {
		t.Errorf("expected A ranked first, got %s", results[0].CanonicalURL)
	}
	if results[1].CanonicalURL != "https://example.com/c" {
		t.Errorf("expected C ranked second, got %s", results[1].CanonicalURL)
	}
	if results[2].CanonicalURL != "https://example.com/b" {
		t.Errorf("expected B ranked third, got %s", results[2].CanonicalURL)
	}
}

func TestFuseDedupKeyFallsBackToURL(t *testing.T) {
	vectorHits := []vectorclient.SearchResult{
		{ID: "doc-1", Payload: map[string]any{"url": "https://example.com/x"}},
	}
	bm25Hits := []bm25engine.Result{
		{DocID: "doc-1", URL: "https://example.com/x"},
	}

	results := fuse(vectorHits, bm25Hits, 60, 10)
	if len(results) != 1 {
		t.Fatalf("expected dedup by url to merge into 1 result, got %d", len(results))
	}
	if len(results[0].Sources) != 2 {
		t.Errorf("expected both backends to contribute to the merged result, got sources %v", results[0].Sources)
	}
}

func TestFuseRespectsLimit(t *testing.T) {
	var vectorHits []vectorclient.SearchResult
	for i := 0; i < 5; i++ {
		vectorHits = append(vectorHits, vectorclient.SearchResult{
			ID:      string(rune('a' + i)),
			Payload: map[string]any{"canonical_url": string(rune('a' + i))},
		})
	}
	results := fuse(vectorHits, nil, 60, 2)
	if len(results) != 2 {
		t.Fatalf("expected limit to cap results at 2, got %d", len(results))
	}
}

func approxEqual(a, b float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < 1e-9
}
