package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-fees-api/internal/billing"
)

func TestRiskServiceAssess(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()
	now := time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)

	payments := newTestBillingService(f, now)
	student := f.enroll(t, "Dewi", 5, false)
	_, err := payments.RecordPayment(ctx, student.ID, dtoPayment(2024, 1, 30))
	require.NoError(t, err)

	svc := NewRiskService(f.students, f.settings, f.redis, time.Minute, 2, zerolog.Nop()).(*riskService)
	svc.now = fixedClock(now)

	assessment, err := svc.Assess(ctx, student.ID)
	require.NoError(t, err)
	require.Equal(t, "Dewi", assessment.Name)
	require.Equal(t, 60.0, assessment.Outstanding)
	require.Equal(t, 43, assessment.DaysPastDue)
	require.Equal(t, 0.0, assessment.ConsistencyScore)
	require.Equal(t, 35.53, assessment.CriticalityScore)
	require.Equal(t, billing.RiskTierMedium, assessment.Tier)
	require.Equal(t, billing.ActionMonitor, assessment.RecommendedAction)

	_, err = svc.Assess(ctx, 4242)
	require.ErrorIs(t, err, ErrStudentNotFound)
}

func TestRiskServiceFleetCaches(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()
	now := time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)

	f.enroll(t, "Eka", 5, true)
	f.enroll(t, "Fajar", 6, false)

	svc := NewRiskService(f.students, f.settings, f.redis, time.Minute, 2, zerolog.Nop()).(*riskService)
	svc.now = fixedClock(now)

	report, err := svc.Fleet(ctx)
	require.NoError(t, err)
	require.False(t, report.CacheHit)
	require.Len(t, report.Assessments, 2)
	require.Equal(t, "Eka", report.Assessments[0].Name)
	require.Equal(t, 0.0, report.Assessments[0].Outstanding)
	require.Equal(t, 105.0, report.Assessments[1].Outstanding)
	require.Equal(t, 105.0, report.TotalOutstanding)

	total := 0
	for _, count := range report.TierCounts {
		total += count
	}
	require.Equal(t, 2, total)

	cached, err := svc.Fleet(ctx)
	require.NoError(t, err)
	require.True(t, cached.CacheHit)
	require.Len(t, cached.Assessments, 2)
}
