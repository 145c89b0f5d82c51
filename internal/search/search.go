// Package search is the hybrid search orchestrator: it fans a query out
// to the vector store and the BM25 engine in parallel, then fuses the two
// ranked lists with Reciprocal Rank Fusion, fanning work out with
// SearxngProvider in its use of an errgroup for parallel upstream calls,
// generalized from "one upstream" to "N backends fused by rank."
package search

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"indexbridge/internal/bm25engine"
	"indexbridge/internal/embedclient"
	"indexbridge/internal/vectorclient"
)

// Mode selects which backend(s) a search query consults.
type Mode string

const (
	ModeVector Mode = "vector"
	ModeBM25   Mode = "bm25"
	ModeHybrid Mode = "hybrid"
)

// DefaultRRFK is the Reciprocal Rank Fusion smoothing constant used when
// the caller doesn't override it.
const DefaultRRFK = 60

// DefaultOversampleFactor multiplies the caller's requested limit when
// querying each backend, so fusion has enough candidates to rank from.
const DefaultOversampleFactor = 2

// Result is one fused hit.
type Result struct {
	ID           string
	CanonicalURL string
	URL          string
	Title        string
	Text         string
	Score        float64
	Sources      []string
}

type Orchestrator struct {
	Vector           *vectorclient.Client
	Embed            *embedclient.Client
	BM25             *bm25engine.Engine
	RRFK             int
	OversampleFactor int
}

// Search runs query against the backends selected by mode and returns the
// top `limit` fused results. filters (canonical_url, host, crawl_session_id;
// any subset) is applied identically to both backends. A partial backend
// failure degrades rather than aborts: if vector search fails in hybrid
// mode, BM25 results are still returned (and vice versa). Both backends
// failing is an error.
func (o *Orchestrator) Search(ctx context.Context, query string, mode Mode, limit int, filters map[string]any) ([]Result, error) {
	if limit <= 0 {
		return nil, nil
	}
	oversampled := limit * o.oversampleFactor()

	var vectorHits []vectorclient.SearchResult
	var bm25Hits []bm25engine.Result
	var vectorErr, bm25Err error

	g, gctx := errgroup.WithContext(ctx)

	if mode == ModeVector || mode == ModeHybrid {
		g.Go(func() error {
			vectors, err := o.Embed.Embed(gctx, []string{query})
			if err != nil {
				vectorErr = fmt.Errorf("embed query: %w", err)
				return nil
			}
			hits, err := o.Vector.Search(gctx, vectors[0], oversampled, filters)
			if err != nil {
				vectorErr = err
				return nil
			}
			vectorHits = hits
			return nil
		})
	}

	if mode == ModeBM25 || mode == ModeHybrid {
		g.Go(func() error {
			hits, err := o.BM25.Search(gctx, query, oversampled, filters)
			if err != nil {
				bm25Err = err
				return nil
			}
			bm25Hits = hits
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if mode == ModeVector && vectorErr != nil {
		return nil, fmt.Errorf("vector search: %w", vectorErr)
	}
	if mode == ModeBM25 && bm25Err != nil {
		return nil, fmt.Errorf("bm25 search: %w", bm25Err)
	}
	if mode == ModeHybrid && vectorErr != nil && bm25Err != nil {
		return nil, fmt.Errorf("both search backends failed: vector: %v, bm25: %v", vectorErr, bm25Err)
	}

	return fuse(vectorHits, bm25Hits, o.rrfK(), limit), nil
}

func (o *Orchestrator) rrfK() int {
	if o.RRFK <= 0 {
		return DefaultRRFK
	}
	return o.RRFK
}

func (o *Orchestrator) oversampleFactor() int {
	if o.OversampleFactor <= 0 {
		return DefaultOversampleFactor
	}
	return o.OversampleFactor
}

type fusedEntry struct {
	result Result
	order  int
}

// fuse combines vector and BM25 rankings via Reciprocal Rank Fusion:
// score = sum over backends of 1/(k + rank), rank is 1-based. Documents
// are deduplicated by canonical_url, falling back to url, falling back to
// id, matching the dedup key priority. Ties break by score, then by
// vector-before-bm25, then by first-seen insertion order.
func fuse(vectorHits []vectorclient.SearchResult, bm25Hits []bm25engine.Result, k, limit int) []Result {
	entries := make(map[string]*fusedEntry)
	var keyOrder []string
	nextOrder := 0

	dedupKey := func(canonicalURL, url, id string) string {
		if canonicalURL != "" {
			return "c:" + canonicalURL
		}
		if url != "" {
			return "u:" + url
		}
		return "i:" + id
	}

	addVector := func(rank int, id, canonicalURL, url, title, text string) {
		key := dedupKey(canonicalURL, url, id)
		e, ok := entries[key]
		if !ok {
			e = &fusedEntry{result: Result{ID: id, CanonicalURL: canonicalURL, URL: url, Title: title, Text: text}, order: nextOrder}
			entries[key] = e
			keyOrder = append(keyOrder, key)
			nextOrder++
		}
		e.result.Score += 1.0 / float64(k+rank)
		e.result.Sources = append(e.result.Sources, "vector")
	}

	addBM25 := func(rank int, id, canonicalURL, url, title, body string) {
		key := dedupKey(canonicalURL, url, id)
		e, ok := entries[key]
		if !ok {
			e = &fusedEntry{result: Result{ID: id, CanonicalURL: canonicalURL, URL: url, Title: title, Text: body}, order: nextOrder}
			entries[key] = e
			keyOrder = append(keyOrder, key)
			nextOrder++
		}
		e.result.Score += 1.0 / float64(k+rank)
		e.result.Sources = append(e.result.Sources, "bm25")
	}

	for i, hit := range vectorHits {
		canonicalURL, _ := hit.Payload["canonical_url"].(string)
		url, _ := hit.Payload["url"].(string)
		title, _ := hit.Payload["title"].(string)
		text, _ := hit.Payload["text"].(string)
		addVector(i+1, hit.ID, canonicalURL, url, title, text)
	}
	for i, hit := range bm25Hits {
		addBM25(i+1, hit.DocID, hit.CanonicalURL, hit.URL, hit.Title, hit.Body)
	}

	results := make([]Result, 0, len(keyOrder))
	for _, key := range keyOrder {
		results = append(results, entries[key].result)
	}

	// Stable sort by score descending; ties preserve insertion order
	// (vector results were added before bm25 results above, and within a
	// backend, rank order), which already satisfies "vector>bm25 then
	// insertion order" since vector hits are inserted first.
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j].Score > results[j-1].Score; j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}

	if len(results) > limit {
		results = results[:limit]
	}
	return results
}
