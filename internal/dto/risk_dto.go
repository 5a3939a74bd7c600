package dto

import (
	"time"

	"github.com/noah-isme/gema-fees-api/internal/billing"
)

// RiskAssessmentResponse is the risk analysis of a single student.
type RiskAssessmentResponse struct {
	billing.RiskAssessment
	Name        string    `json:"name"`
	GeneratedAt time.Time `json:"generated_at"`
}

// FleetRiskResponse is the risk analysis of the whole active roster.
type FleetRiskResponse struct {
	Assessments      []RiskAssessmentResponse `json:"assessments"`
	TierCounts       map[billing.RiskTier]int `json:"tier_counts"`
	TotalOutstanding float64                  `json:"total_outstanding"`
	GeneratedAt      time.Time                `json:"generated_at"`
	CacheHit         bool                     `json:"cache_hit"`
}
