package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"indexbridge/internal/metrics"
	"indexbridge/internal/search"
)

type searchRequest struct {
	Query   string         `json:"query"`
	Mode    string         `json:"mode"`
	Limit   int            `json:"limit"`
	Filters map[string]any `json:"filters,omitempty"`
}

type searchResultResponse struct {
	ID           string   `json:"id"`
	URL          string   `json:"url"`
	CanonicalURL string   `json:"canonical_url"`
	Title        string   `json:"title"`
	Text         string   `json:"text"`
	Score        float64  `json:"score"`
	Source       string   `json:"source"`
	Sources      []string `json:"-"`
}

func (s *Server) handleSearch(c *fiber.Ctx) error {
	var req searchRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid JSON body: "+err.Error())
	}
	if req.Query == "" {
		return badRequest(c, "query is required")
	}

	mode := search.Mode(req.Mode)
	switch mode {
	case search.ModeVector, search.ModeBM25, search.ModeHybrid:
	case "":
		mode = search.ModeHybrid
	default:
		return badRequest(c, "mode must be one of vector, bm25, hybrid")
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}

	metrics.RecordSearch(string(mode))

	results, err := s.Search.Search(c.Context(), req.Query, mode, limit, req.Filters)
	if err != nil {
		return serviceUnavailable(c, err.Error())
	}

	out := make([]searchResultResponse, len(results))
	for i, r := range results {
		source := "hybrid"
		if len(r.Sources) == 1 {
			source = r.Sources[0]
		}
		out[i] = searchResultResponse{
			ID: r.ID, URL: r.URL, CanonicalURL: r.CanonicalURL,
			Title: r.Title, Text: r.Text, Score: r.Score, Source: source,
		}
	}

	return c.JSON(fiber.Map{"results": out})
}
