package httpapi

import (
	"database/sql"
	"errors"

	"github.com/gofiber/fiber/v2"
)

// handleCrawlMetrics serves GET /api/metrics/crawls/{job_id}?include_per_page=true.
func (s *Server) handleCrawlMetrics(c *fiber.Ctx) error {
	jobID := c.Params("job_id")
	if jobID == "" {
		return badRequest(c, "job_id is required")
	}
	includePerPage := c.QueryBool("include_per_page", false)

	m, err := s.Lifecycle.GetMetrics(c.Context(), jobID, includePerPage)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(c, "unknown crawl job id")
		}
		return internalError(c, err.Error())
	}

	return c.JSON(m)
}
