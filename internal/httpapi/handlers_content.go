package httpapi

import (
	"database/sql"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"indexbridge/internal/model"
)

type contentResponse struct {
	ID           string `json:"id"`
	URL          string `json:"url"`
	CanonicalURL string `json:"canonical_url"`
	Title        string `json:"title"`
	Markdown     string `json:"markdown"`
	CreatedAt    string `json:"created_at"`
}

func toContentResponse(c model.ScrapedContent) contentResponse {
	return contentResponse{
		ID:           c.ID.String(),
		URL:          c.URL,
		CanonicalURL: c.CanonicalURL,
		Title:        c.Title,
		Markdown:     c.Markdown,
		CreatedAt:    c.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// handleContentByURL serves GET /api/content/by-url?url=&limit=, reading
// through the Redis cache on the single-result path (limit defaults to
// 1) and falling back to the store directly for multi-result requests.
func (s *Server) handleContentByURL(c *fiber.Ctx) error {
	url := c.Query("url")
	if url == "" {
		return badRequest(c, "url query parameter is required")
	}
	limit, err := strconv.Atoi(c.Query("limit", "1"))
	if err != nil || limit <= 0 {
		limit = 1
	}

	canonicalURL := s.canonicalize(url)

	if limit == 1 && s.Cache != nil {
		if cached, err := s.Cache.GetByURL(c.Context(), canonicalURL); err == nil && cached != nil {
			return c.JSON(fiber.Map{"results": []contentResponse{toContentResponse(*cached)}})
		}
	}

	rows, err := s.Store.GetContentByURL(c.Context(), canonicalURL, limit)
	if err != nil {
		return internalError(c, err.Error())
	}
	if len(rows) == 0 {
		return notFound(c, "no content found for url")
	}

	if s.Cache != nil && len(rows) > 0 {
		_ = s.Cache.Put(c.Context(), rows[0])
	}

	out := make([]contentResponse, len(rows))
	for i, r := range rows {
		out[i] = toContentResponse(r)
	}
	return c.JSON(fiber.Map{"results": out})
}

// handleContentByID serves GET /api/content/{id} as a direct table read,
// bypassing the cache per the no-cache-on-id-reads contract. Content rows
// are keyed by uuid, the convention used across every entity here, not
// the integer id the original upstream service used.
func (s *Server) handleContentByID(c *fiber.Ctx) error {
	idParam := c.Params("id")
	if idParam == "" {
		return badRequest(c, "id is required")
	}

	row, err := s.Store.GetContentByID(c.Context(), idParam)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(c, "content not found")
		}
		return internalError(c, err.Error())
	}
	return c.JSON(toContentResponse(row))
}

func (s *Server) canonicalize(rawURL string) string {
	return s.Normalize(rawURL)
}
