package httpapi

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// handleHealth serves the public GET /health endpoint: process liveness
// plus the dependency health subset named in the external interface
// contract (redis, vector_store, embedding_service).
func (s *Server) handleHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()

	redisStatus := "disabled"
	if s.Redis != nil {
		redisStatus = "ok"
		if err := s.Redis.Ping(ctx).Err(); err != nil {
			redisStatus = "error"
		}
	}

	vectorStatus := "disabled"
	if s.Config.External.VectorURL != "" {
		vectorStatus = "configured"
	}

	embedStatus := "disabled"
	if s.Config.External.EmbedURL != "" {
		embedStatus = "configured"
	}

	status := "ok"
	if redisStatus == "error" {
		status = "degraded"
	}

	return c.JSON(fiber.Map{
		"status":            status,
		"redis":             redisStatus,
		"vector_store":      vectorStatus,
		"embedding_service": embedStatus,
	})
}
