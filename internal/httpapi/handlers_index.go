package httpapi

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"indexbridge/internal/model"
)

type indexRequest struct {
	URL         string          `json:"url"`
	ResolvedURL string          `json:"resolvedUrl"`
	Markdown    string          `json:"markdown"`
	HTML        string          `json:"html"`
	StatusCode  int             `json:"statusCode"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Links       []string        `json:"links,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	Extract     json.RawMessage `json:"extract,omitempty"`
}

// handleIndex accepts a direct indexing request. The `extract` field was
// removed from this API; its presence gets a 400 with a migration hint
// rather than being silently ignored.
func (s *Server) handleIndex(c *fiber.Ctx) error {
	var req indexRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid JSON body: "+err.Error())
	}

	if len(req.Extract) > 0 {
		return writeErrorHint(c, fiber.StatusBadRequest,
			"bad_request",
			"the `extract` field has been removed from /api/index",
			"run extraction upstream and submit the resulting markdown/html instead",
		)
	}

	if req.URL == "" {
		return badRequest(c, "url is required")
	}

	id, err := s.Store.EnqueueIndexingJob(c.Context(), "", []model.IndexingDocument{{
		URL:      req.URL,
		Title:    req.Title,
		Markdown: req.Markdown,
		HTML:     req.HTML,
		Metadata: req.Metadata,
	}})
	if err != nil {
		return internalError(c, "enqueue indexing job: "+err.Error())
	}

	return c.JSON(fiber.Map{"job_id": id.String(), "status": "queued"})
}
