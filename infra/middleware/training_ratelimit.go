package middleware

import (
	"strconv"
	"time"

	"training_server/pkg/ratelimit"
	"training_server/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// RateLimit limits requests per authenticated actor, falling back to the client IP.
func RateLimit(limiter *ratelimit.SlidingWindowLimiter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if limiter == nil {
			return c.Next()
		}

		key := "ip:" + c.IP()
		if userID, ok := c.Locals(LocalUserID).(string); ok && userID != "" {
			key = "user:" + userID
		}

		allowed, wait := limiter.Allow(c.UserContext(), key)
		c.Set("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
		if !allowed {
			retryAfter := int(wait.Round(time.Second) / time.Second)
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfter))
			return response.Error(c, fiber.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded")
		}
		return c.Next()
	}
}
