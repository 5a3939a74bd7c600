package dto

import "github.com/noah-isme/gema-fees-api/internal/billing"

// PromotionRunRequest scopes a promotion run; an empty body covers the whole roster.
type PromotionRunRequest struct {
	ClassGroupID *uint `json:"class_group_id" validate:"omitempty,min=1"`
}

// PromotionRunResponse summarises a previewed or committed promotion run.
type PromotionRunResponse struct {
	RunID        string                      `json:"run_id,omitempty"`
	DryRun       bool                        `json:"dry_run"`
	SuccessCount int                         `json:"success_count"`
	FailureCount int                         `json:"failure_count"`
	Promoted     int                         `json:"promoted"`
	Graduated    int                         `json:"graduated"`
	Retained     int                         `json:"retained"`
	Decisions    []billing.PromotionDecision `json:"decisions"`
	Failures     []billing.PromotionFailure  `json:"failures"`
}

// NewPromotionRunResponse summarises a batch evaluation.
func NewPromotionRunResponse(batch billing.PromotionBatch, dryRun bool) PromotionRunResponse {
	retained := 0
	for _, failure := range batch.Failures {
		if failure.Retained {
			retained++
		}
	}

	return PromotionRunResponse{
		DryRun:       dryRun,
		SuccessCount: batch.SuccessCount,
		FailureCount: batch.FailureCount,
		Promoted:     len(batch.Promoted),
		Graduated:    len(batch.Transfers),
		Retained:     retained,
		Decisions:    batch.Decisions,
		Failures:     batch.Failures,
	}
}
