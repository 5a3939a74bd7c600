package observability

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce          sync.Once
	billingRequestsTotal  *prometheus.CounterVec
	billingLatencySeconds *prometheus.HistogramVec
	billingErrorsTotal    *prometheus.CounterVec
	promotionOutcomes     *prometheus.CounterVec
	riskAssessments       *prometheus.CounterVec
	paymentsRecorded      *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the billing API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		billingRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_requests_total",
			Help: "Total number of billing API requests served.",
		}, []string{"method", "route", "status"})

		billingLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "billing_latency_seconds",
			Help:    "Latency distribution for billing API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		billingErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_errors_total",
			Help: "Total number of error responses returned by billing endpoints.",
		}, []string{"method", "route", "status"})

		promotionOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promotion_outcomes_total",
			Help: "Promotion decisions committed, by outcome.",
		}, []string{"outcome"})

		riskAssessments = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "risk_assessments_total",
			Help: "Risk assessments produced, by tier.",
		}, []string{"tier"})

		paymentsRecorded = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payments_recorded_total",
			Help: "Payments recorded against tuition or transport ledgers.",
		}, []string{"kind"})

		prometheus.MustRegister(
			billingRequestsTotal,
			billingLatencySeconds,
			billingErrorsTotal,
			promotionOutcomes,
			riskAssessments,
			paymentsRecorded,
		)
	})
}

// BillingRequests exposes the counter for billing requests.
func BillingRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return billingRequestsTotal
}

// BillingLatency exposes the latency histogram for billing requests.
func BillingLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return billingLatencySeconds
}

// BillingErrors exposes the counter for billing error responses.
func BillingErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return billingErrorsTotal
}

// PromotionOutcomes counts committed promotion decisions.
func PromotionOutcomes() *prometheus.CounterVec {
	RegisterMetrics()
	return promotionOutcomes
}

// RiskAssessments counts assessments by tier.
func RiskAssessments() *prometheus.CounterVec {
	RegisterMetrics()
	return riskAssessments
}

// PaymentsRecorded counts recorded payments by ledger.
func PaymentsRecorded() *prometheus.CounterVec {
	RegisterMetrics()
	return paymentsRecorded
}

// MetricsHandler exposes the Prometheus scrape endpoint via Fiber.
func MetricsHandler() fiber.Handler {
	RegisterMetrics()
	return adaptor.HTTPHandler(promhttp.Handler())
}
