package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-fees-api/internal/observability"
)

const billingPrefix = "/api/v1/billing"

// Observability records request metrics and a structured access log for billing
// routes. Health and scrape endpoints are not instrumented.
func Observability(logger zerolog.Logger) fiber.Handler {
	observability.RegisterMetrics()
	logger = logger.With().Str("component", "http").Logger()

	return func(c *fiber.Ctx) error {
		if !strings.HasPrefix(c.Path(), billingPrefix) {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()
		elapsed := time.Since(start)

		route := routeTemplate(c)
		method := c.Method()
		status := c.Response().StatusCode()
		code := strconv.Itoa(status)

		observability.BillingRequests().WithLabelValues(method, route, code).Inc()
		observability.BillingLatency().WithLabelValues(method, route).Observe(elapsed.Seconds())
		if status >= fiber.StatusBadRequest {
			observability.BillingErrors().WithLabelValues(method, route, code).Inc()
		}

		event := logger.Info()
		switch {
		case status >= fiber.StatusInternalServerError:
			event = logger.Error()
		case status >= fiber.StatusBadRequest:
			event = logger.Warn()
		}
		event.
			Str("correlation_id", GetCorrelationID(c)).
			Str("area", billingArea(route)).
			Str("route", route).
			Str("method", method).
			Int("status", status).
			Dur("latency", elapsed).
			Str("latency_bucket", latencyBucket(elapsed)).
			Msg("billing request")

		return err
	}
}

func routeTemplate(c *fiber.Ctx) string {
	if r := c.Route(); r != nil && r.Path != "" {
		return r.Path
	}
	return c.Path()
}

// billingArea groups billing routes for log filtering.
func billingArea(route string) string {
	rest := strings.Trim(strings.TrimPrefix(route, billingPrefix), "/")
	parts := strings.Split(rest, "/")
	switch {
	case rest == "":
		return "root"
	case parts[0] == "students" && len(parts) >= 3:
		return parts[2]
	default:
		return parts[0]
	}
}

var latencyBuckets = []struct {
	limit time.Duration
	label string
}{
	{25 * time.Millisecond, "<=25ms"},
	{100 * time.Millisecond, "<=100ms"},
	{250 * time.Millisecond, "<=250ms"},
	{time.Second, "<=1s"},
}

func latencyBucket(elapsed time.Duration) string {
	for _, b := range latencyBuckets {
		if elapsed <= b.limit {
			return b.label
		}
	}
	return ">1s"
}
