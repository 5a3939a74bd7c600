package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-fees-api/internal/billing"
	"github.com/noah-isme/gema-fees-api/internal/dto"
	"github.com/noah-isme/gema-fees-api/internal/models"
)

func newTestPromotionService(f *billingFixture, now time.Time) *promotionService {
	svc := NewPromotionService(f.students, f.runs, f.settings, f.redis, f.events, f.validate, 4, zerolog.Nop()).(*promotionService)
	svc.now = fixedClock(now)
	return svc
}

func TestPromotionServicePreviewDoesNotPersist(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()
	svc := newTestPromotionService(f, time.Date(2024, time.December, 20, 0, 0, 0, 0, time.UTC))

	promoted := f.enroll(t, "Gita", 5, true)
	f.enroll(t, "Hadi", 5, false)
	f.enroll(t, "Indra", 7, true)

	preview, err := svc.Preview(ctx, dto.PromotionRunRequest{})
	require.NoError(t, err)
	require.True(t, preview.DryRun)
	require.Empty(t, preview.RunID)
	require.Equal(t, 1, preview.Promoted)
	require.Equal(t, 1, preview.Graduated)
	require.Equal(t, 1, preview.Retained)
	require.Equal(t, 2, preview.SuccessCount)
	require.Equal(t, 1, preview.FailureCount)
	require.Len(t, preview.Decisions, 3)

	stored, err := f.students.GetByID(ctx, promoted.ID)
	require.NoError(t, err)
	require.Equal(t, uint(5), stored.ClassGroupID)

	runs, err := f.runs.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Empty(t, runs)
}

func TestPromotionServiceRunCommits(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()
	svc := newTestPromotionService(f, time.Date(2024, time.December, 20, 0, 0, 0, 0, time.UTC))

	promoted := f.enroll(t, "Gita", 5, true)
	retained := f.enroll(t, "Hadi", 5, false)
	leaver := f.enroll(t, "Indra", 7, true)

	result, err := svc.Run(ctx, dto.PromotionRunRequest{}, PromotionActor{ID: 1, Role: "admin"})
	require.NoError(t, err)
	require.NotEmpty(t, result.RunID)
	require.False(t, result.DryRun)
	require.Equal(t, 2, result.SuccessCount)
	require.Equal(t, 1, result.FailureCount)
	require.Len(t, result.Failures, 1)
	require.Equal(t, retained.ID, result.Failures[0].StudentID)
	require.True(t, result.Failures[0].Retained)

	moved, err := f.students.GetByID(ctx, promoted.ID)
	require.NoError(t, err)
	require.Equal(t, uint(6), moved.ClassGroupID)
	require.Equal(t, 2025, moved.AcademicYear)
	require.Len(t, moved.FeePayments, 24)
	require.Zero(t, moved.TotalPaid)

	kept, err := f.students.GetByID(ctx, retained.ID)
	require.NoError(t, err)
	require.Equal(t, uint(5), kept.ClassGroupID)
	require.Equal(t, models.StudentStatusActive, kept.Status)

	graduated, err := f.students.GetByID(ctx, leaver.ID)
	require.NoError(t, err)
	require.Equal(t, models.StudentStatusGraduated, graduated.Status)

	transfers, err := svc.Transfers(ctx)
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	require.Equal(t, leaver.ID, transfers[0].StudentID)
	require.Contains(t, string(transfers[0].Snapshot), "Indra")
	require.Equal(t, 2029, transfers[0].RetainUntil.Year())

	runs, err := svc.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, result.RunID, runs[0].ID)
	require.Equal(t, 1, runs[0].Promoted)

	again, err := svc.Preview(ctx, dto.PromotionRunRequest{})
	require.NoError(t, err)
	for _, decision := range again.Decisions {
		require.NotEqual(t, leaver.ID, decision.StudentID, "graduated students leave the active roster")
	}
}

func TestPromotionServiceScopesByClassGroup(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()
	svc := newTestPromotionService(f, time.Date(2024, time.December, 20, 0, 0, 0, 0, time.UTC))

	f.enroll(t, "Gita", 5, true)
	f.enroll(t, "Indra", 7, true)

	group := uint(7)
	preview, err := svc.Preview(ctx, dto.PromotionRunRequest{ClassGroupID: &group})
	require.NoError(t, err)
	require.Len(t, preview.Decisions, 1)
	require.Equal(t, billing.OutcomeGraduateOrTransfer, preview.Decisions[0].Outcome)
}
