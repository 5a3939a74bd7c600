package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-fees-api/internal/middleware"
)

func TestRateLimitIsPerStudent(t *testing.T) {
	app := fiber.New()
	app.Post("/students/:id/payments", func(c *fiber.Ctx) error {
		c.Locals("user_id", uint(9))
		return c.Next()
	}, middleware.RateLimit("payments", 2, time.Minute), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})

	post := func(path string) *http.Response {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, path, nil), -1)
		require.NoError(t, err)
		return resp
	}

	require.Equal(t, fiber.StatusCreated, post("/students/1/payments").StatusCode)
	require.Equal(t, fiber.StatusCreated, post("/students/1/payments").StatusCode)

	limited := post("/students/1/payments")
	require.Equal(t, fiber.StatusTooManyRequests, limited.StatusCode)
	require.Equal(t, "60", limited.Header.Get(fiber.HeaderRetryAfter))

	require.Equal(t, fiber.StatusCreated, post("/students/2/payments").StatusCode)
}
