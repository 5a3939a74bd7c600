package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/noah-isme/gema-fees-api/internal/utils"
)

// RateLimit caps requests per caller and per student record addressed by the
// :id route parameter. Authenticated callers are keyed by user id, others by IP.
func RateLimit(identifier string, max int, window time.Duration) fiber.Handler {
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	retryAfter := strconv.Itoa(int(window.Seconds()))

	return limiter.New(limiter.Config{
		Max:          max,
		Expiration:   window,
		KeyGenerator: func(c *fiber.Ctx) string { return rateLimitKey(c, identifier) },
		LimitReached: func(c *fiber.Ctx) error {
			c.Set(fiber.HeaderRetryAfter, retryAfter)
			return utils.SendError(c, fiber.StatusTooManyRequests, "too many requests")
		},
	})
}

func rateLimitKey(c *fiber.Ctx, identifier string) string {
	caller := "ip-" + c.IP()
	if id, ok := c.Locals("user_id").(uint); ok && id != 0 {
		caller = fmt.Sprintf("user-%d", id)
	}
	return identifier + ":" + caller + ":" + c.Params("id")
}
