package httpapi

import (
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// bearerAuthMiddleware requires `Authorization: Bearer <secret>` and
// compares in constant time, mirroring the webhook signature check's
// resistance to timing side-channels.
func bearerAuthMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Get("Authorization")
		if !strings.HasPrefix(raw, "Bearer ") {
			return unauthorized(c, "missing bearer token")
		}
		token := strings.TrimSpace(strings.TrimPrefix(raw, "Bearer "))
		if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			return unauthorized(c, "invalid bearer token")
		}
		return c.Next()
	}
}

// rateLimitMiddleware enforces a fixed-window per-minute limit keyed by
// client IP, backed by Redis so the limit holds across server processes.
func rateLimitMiddleware(rdb *redis.Client, limitPerMinute int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if rdb == nil || limitPerMinute <= 0 {
			return c.Next()
		}

		window := time.Now().UTC().Format("200601021504")
		key := fmt.Sprintf("indexbridge:rl:%s:%s", c.IP(), window)

		ctx := c.Context()
		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			return internalError(c, "rate limit check failed: "+err.Error())
		}
		if count == 1 {
			_ = rdb.Expire(ctx, key, time.Minute)
		}
		if count > int64(limitPerMinute) {
			return writeError(c, fiber.StatusTooManyRequests, "rate_limit_exceeded")
		}
		return c.Next()
	}
}
