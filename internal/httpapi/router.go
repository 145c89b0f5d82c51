// Package httpapi is the fiber-based HTTP surface: webhook ingestion,
// direct indexing, hybrid search, content reads, and crawl metrics.
// Middleware chain built
// with app.Use, route groups, Locals-free handler methods on a Server
// struct instead of closures over package globals).
package httpapi

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"indexbridge/internal/cache"
	"indexbridge/internal/config"
	"indexbridge/internal/lifecycle"
	"indexbridge/internal/metrics"
	"indexbridge/internal/search"
	"indexbridge/internal/store"
	"indexbridge/internal/urlnorm"
	"indexbridge/internal/webhook"
)

type Server struct {
	app       *fiber.App
	Config    *config.Config
	Store     *store.Store
	Webhook   *webhook.Router
	Search    *search.Orchestrator
	Lifecycle *lifecycle.Tracker
	Cache     *cache.Cache
	Redis     *redis.Client
	Log       *slog.Logger
}

func NewServer(cfg *config.Config, st *store.Store, wh *webhook.Router, so *search.Orchestrator, lc *lifecycle.Tracker, c *cache.Cache, rdb *redis.Client, log *slog.Logger) *Server {
	s := &Server{
		Config: cfg, Store: st, Webhook: wh, Search: so,
		Lifecycle: lc, Cache: c, Redis: rdb, Log: log,
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		reqID := c.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Locals("request_id", reqID)

		err := c.Next()

		latency := time.Since(start)
		status := c.Response().StatusCode()
		metrics.RecordRequest(c.Method(), c.Path(), status, float64(latency.Milliseconds()))
		if s.Log != nil {
			s.Log.Info("request",
				"request_id", reqID, "method", c.Method(), "path", c.Path(),
				"status", status, "latency_ms", latency.Milliseconds())
		}
		return err
	})

	app.Use(corsMiddleware(cfg.CORSOrigins))

	app.Get("/health", s.handleHealth)

	webhooks := app.Group("/api/webhook")
	webhooks.Post("/scraper", s.handleScraperWebhook)
	webhooks.Post("/change-detection", s.handleChangeDetectionWebhook)

	authMw := bearerAuthMiddleware(cfg.Secrets.APISecret)

	api := app.Group("/api", authMw)
	api.Post("/index", rateLimitMiddleware(rdb, 1000), s.handleIndex)
	api.Post("/search", s.handleSearch)
	api.Get("/content/by-url", s.handleContentByURL)
	api.Get("/content/:id", s.handleContentByID)
	api.Get("/metrics/crawls/:job_id", s.handleCrawlMetrics)

	s.app = app
	return s
}

// Normalize canonicalizes a URL the same way the pipeline does, so
// content reads and pipeline writes key off the exact same value.
func (s *Server) Normalize(rawURL string) string {
	return urlnorm.Normalize(rawURL, s.Config.Canonicalize.StripTrackingParams)
}

func (s *Server) Listen() error {
	return s.app.Listen(fmt.Sprintf(":%d", s.Config.Server.Port))
}

func (s *Server) App() *fiber.App {
	return s.app
}

func corsMiddleware(origins []string) fiber.Handler {
	allowAll := len(origins) == 0
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		origin := c.Get("Origin")
		if origin != "" {
			if allowAll {
				c.Set("Access-Control-Allow-Origin", "*")
			} else if _, ok := allowed[origin]; ok {
				c.Set("Access-Control-Allow-Origin", origin)
			}
		}
		c.Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		c.Set("Access-Control-Allow-Headers", "Authorization,Content-Type,X-Signature")
		if c.Method() == fiber.MethodOptions {
			return c.SendStatus(fiber.StatusNoContent)
		}
		return c.Next()
	}
}
