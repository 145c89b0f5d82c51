// Package bm25engine wraps a bleve in-memory index as the lexical
// retrieval backend. Postgres (the bm25_documents
// table, see internal/store) is the source of truth; this in-process
// index is a query-time cache rebuilt from that table at worker startup
// so multiple worker processes stay consistent without sharing memory.
package bm25engine

import (
	"context"
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"

	"indexbridge/internal/model"
)

// indexedDoc is the bleve document shape; bleve indexes exported struct
// fields by default, so field names double as the query field names.
// CanonicalURL, Host and CrawlID are mapped with the keyword analyzer (see
// New) so they filter on exact value rather than tokenized terms.
type indexedDoc struct {
	CrawlID      string
	CanonicalURL string
	URL          string
	Host         string
	Title        string
	Body         string
}

type Engine struct {
	index bleve.Index
}

// New builds an in-memory bleve index from postings (typically the full
// bm25_documents table, loaded once at startup).
func New(postings []model.BM25Posting) (*Engine, error) {
	idx, err := bleve.NewMemOnly(indexMapping())
	if err != nil {
		return nil, fmt.Errorf("create bleve index: %w", err)
	}

	e := &Engine{index: idx}
	for _, p := range postings {
		if err := e.indexOne(p); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// indexMapping gives the exact-match filter fields (crawl id, canonical
// url, host) a keyword analyzer so a term query matches the whole field
// value instead of tokenizing it like Title/Body.
func indexMapping() *bleve.IndexMapping {
	keywordField := bleve.NewTextFieldMapping()
	keywordField.Analyzer = keyword.Name

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("CrawlID", keywordField)
	doc.AddFieldMappingsAt("CanonicalURL", keywordField)
	doc.AddFieldMappingsAt("Host", keywordField)

	mapping := bleve.NewIndexMapping()
	mapping.DefaultMapping = doc
	return mapping
}

func (e *Engine) indexOne(p model.BM25Posting) error {
	return e.index.Index(p.DocID, indexedDoc{
		CrawlID:      p.CrawlID,
		CanonicalURL: p.CanonicalURL,
		URL:          p.URL,
		Host:         p.Host,
		Title:        p.Title,
		Body:         p.Body,
	})
}

// Upsert replaces the posting for p.DocID (bleve's Index call is itself
// replace-or-insert, satisfying "one active posting per doc_id").
func (e *Engine) Upsert(ctx context.Context, p model.BM25Posting) error {
	return e.indexOne(p)
}

// Delete removes a posting outright (used by compensating deletes, if a
// caller opts into them.
func (e *Engine) Delete(ctx context.Context, docID string) error {
	return e.index.Delete(docID)
}

// Result is one ranked lexical hit.
type Result struct {
	DocID        string
	CanonicalURL string
	URL          string
	Title        string
	Body         string
	Score        float64
}

// filterFields maps the search filter keys accepted at the HTTP layer to
// the indexed field they constrain.
var filterFields = map[string]string{
	"canonical_url":    "CanonicalURL",
	"host":             "Host",
	"crawl_session_id": "CrawlID",
}

// Search runs a BM25 query (bleve's default similarity model), narrowed by
// filters (any subset of canonical_url, host, crawl_session_id; unknown
// keys are ignored), and returns the top `limit` hits.
func (e *Engine) Search(ctx context.Context, query string, limit int, filters map[string]any) ([]Result, error) {
	if limit <= 0 {
		return nil, nil
	}

	q := buildQuery(query, filters)
	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	req.Fields = []string{"CanonicalURL", "URL", "Title", "Body"}

	searchResult, err := e.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bm25 search: %w", err)
	}

	out := make([]Result, 0, len(searchResult.Hits))
	for _, hit := range searchResult.Hits {
		out = append(out, Result{
			DocID:        hit.ID,
			CanonicalURL: fieldString(hit.Fields, "CanonicalURL"),
			URL:          fieldString(hit.Fields, "URL"),
			Title:        fieldString(hit.Fields, "Title"),
			Body:         fieldString(hit.Fields, "Body"),
			Score:        hit.Score,
		})
	}
	return out, nil
}

// buildQuery combines the free-text query string with an exact-match term
// query per recognized filter key, all required (conjunction).
func buildQuery(query string, filters map[string]any) bleve.Query {
	textQuery := bleve.NewQueryStringQuery(query)
	if len(filters) == 0 {
		return textQuery
	}

	conjuncts := []bleve.Query{textQuery}
	for key, raw := range filters {
		field, ok := filterFields[key]
		if !ok {
			continue
		}
		value, ok := raw.(string)
		if !ok || value == "" {
			continue
		}
		term := bleve.NewTermQuery(value)
		term.SetField(field)
		conjuncts = append(conjuncts, term)
	}
	if len(conjuncts) == 1 {
		return textQuery
	}
	return bleve.NewConjunctionQuery(conjuncts...)
}

func fieldString(fields map[string]interface{}, key string) string {
	if v, ok := fields[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
