package billing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-fees-api/internal/models"
)

func TestConsistencyScore(t *testing.T) {
	require.Zero(t, ConsistencyScore(nil))
	require.Zero(t, ConsistencyScore([]time.Time{date(2025, 1, 1), date(2025, 2, 1)}))

	regular := []time.Time{date(2025, 1, 1), date(2025, 1, 31), date(2025, 3, 2), date(2025, 4, 1)}
	require.Equal(t, 100.0, ConsistencyScore(regular))

	// Gaps of 10 and 50 days: mean 30, standard deviation 20.
	irregular := []time.Time{date(2025, 3, 2), date(2025, 1, 1), date(2025, 1, 11)}
	require.InDelta(t, 33.33, ConsistencyScore(irregular), 0.01)

	sameDay := []time.Time{date(2025, 1, 1), date(2025, 1, 1), date(2025, 1, 1)}
	require.Zero(t, ConsistencyScore(sameDay))
}

func TestCriticalityScore(t *testing.T) {
	require.InDelta(t, 45.0, CriticalityScore(1000, 45, 50), 0.001)
	require.Equal(t, 100.0, CriticalityScore(10000, 1000, 0))
	require.Zero(t, CriticalityScore(0, 0, 100))
}

func TestCriticalityIsMonotonicInDaysPastDue(t *testing.T) {
	for _, outstanding := range []float64{0, 250, 1800, 5000} {
		previous := -1.0
		for days := 0; days <= 200; days++ {
			score := CriticalityScore(outstanding, days, 40)
			require.GreaterOrEqual(t, score, previous)
			previous = score
		}
	}
}

func TestRecommendedActionAndTier(t *testing.T) {
	require.Equal(t, ActionImmediateIntervention, RecommendedAction(81))
	require.Equal(t, ActionScheduleMeeting, RecommendedAction(80))
	require.Equal(t, ActionSendReminder, RecommendedAction(41))
	require.Equal(t, ActionMonitor, RecommendedAction(21))
	require.Equal(t, ActionNone, RecommendedAction(20))

	require.Equal(t, RiskTierCritical, TierFor(81))
	require.Equal(t, RiskTierHigh, TierFor(61))
	require.Equal(t, RiskTierMedium, TierFor(31))
	require.Equal(t, RiskTierLow, TierFor(30))
}

func TestCollectionProbability(t *testing.T) {
	require.InDelta(t, 55.0, CollectionProbability(80, 50, 30, 45), 0.001)
	require.Equal(t, 100.0, CollectionProbability(100, 100, 0, 0))
	require.Zero(t, CollectionProbability(0, 0, 365, 90))
}

func TestSuggestPaymentPlan(t *testing.T) {
	plan := SuggestPaymentPlan(2400, 0)
	require.Equal(t, PaymentPlan{MonthlyInstallment: 200, Installments: 12, Total: 2400}, plan)

	plan = SuggestPaymentPlan(900, 250)
	require.Equal(t, 250.0, plan.MonthlyInstallment)
	require.Equal(t, 4, plan.Installments)

	plan = SuggestPaymentPlan(1500, 0)
	require.Equal(t, 187.5, plan.MonthlyInstallment)
	require.Equal(t, 8, plan.Installments)

	plan = SuggestPaymentPlan(1000, 0)
	require.Equal(t, 166.67, plan.MonthlyInstallment)
	require.Equal(t, 6, plan.Installments)

	require.Equal(t, PaymentPlan{}, SuggestPaymentPlan(0, 300))
}

func TestLateFeeFor(t *testing.T) {
	flat, interest := LateFeeFor(1000, 29)
	require.Zero(t, flat)
	require.Zero(t, interest)

	flat, interest = LateFeeFor(1000, 30)
	require.Equal(t, 25.0, flat)
	require.Equal(t, 10.0, interest)

	flat, interest = LateFeeFor(1000, 60)
	require.Equal(t, 50.0, flat)
	require.Equal(t, 20.0, interest)

	flat, interest = LateFeeFor(1000, 95)
	require.Equal(t, 100.0, flat)
	require.Equal(t, 30.0, interest)

	flat, interest = LateFeeFor(0, 95)
	require.Zero(t, flat+interest)
}

func arrearsStudent(settings models.AppSettings) models.Student {
	student := enrolled(settings, models.Student{ID: 8, AdmissionDate: date(2025, 1, 1), ClassGroupID: 9, AcademicYear: 2025})
	for i := 0; i < 2; i++ {
		paidAt := student.FeePayments[i].DueDate
		student.FeePayments[i].AmountPaid = 100
		student.FeePayments[i].PaidDate = &paidAt
		student.FeePayments[i] = SettlePeriod(student.FeePayments[i])
	}
	return student
}

func riskSettings() models.AppSettings {
	settings := monthlySettings()
	settings.ClassGroups = append(settings.ClassGroups, models.ClassGroup{ID: 9, Name: "Grade 9", StandardFee: 100, Enabled: true})
	return settings
}

func TestAssess(t *testing.T) {
	settings := riskSettings()
	student := arrearsStudent(settings)

	assessment := Assess(student, settings, date(2025, 4, 16))

	require.Equal(t, uint(8), assessment.StudentID)
	require.Zero(t, assessment.ConsistencyScore)
	require.Equal(t, 46, assessment.DaysPastDue)
	require.Equal(t, 200.0, assessment.Outstanding)
	require.Equal(t, 50.0, assessment.PaymentRate)
	require.InDelta(t, 39.33, assessment.CriticalityScore, 0.01)
	require.Equal(t, RiskTierMedium, assessment.Tier)
	require.Equal(t, ActionMonitor, assessment.RecommendedAction)
	require.InDelta(t, 15.34, assessment.CollectionProbability, 0.05)
	require.Equal(t, PaymentPlan{MonthlyInstallment: 100, Installments: 2, Total: 200}, assessment.SuggestedPlan)
}

func TestLateFeesPerOverduePeriod(t *testing.T) {
	settings := riskSettings()
	student := arrearsStudent(settings)

	fees := LateFees(student, settings, date(2025, 4, 16))

	require.Len(t, fees, 2)
	require.Equal(t, 3, fees[0].Period)
	require.Equal(t, 46, fees[0].DaysPastDue)
	require.Equal(t, 25.0, fees[0].FlatFee)
	require.Equal(t, 1.0, fees[0].Interest)
	require.Equal(t, 26.0, fees[0].Total)
	require.Equal(t, 4, fees[1].Period)
	require.Zero(t, fees[1].Total)
}

func TestAssessFleet(t *testing.T) {
	settings := riskSettings()
	students := []models.Student{
		arrearsStudent(settings),
		payAll(enrolled(settings, models.Student{ID: 9, ClassGroupID: 9, AcademicYear: 2025})),
	}

	report, err := AssessFleet(context.Background(), students, settings, date(2025, 4, 16), 4)
	require.NoError(t, err)
	require.Len(t, report.Assessments, 2)
	require.Equal(t, uint(8), report.Assessments[0].StudentID)
	require.Equal(t, uint(9), report.Assessments[1].StudentID)
	require.Equal(t, 200.0, report.TotalOutstanding)

	total := 0
	for _, count := range report.TierCounts {
		total += count
	}
	require.Equal(t, 2, total)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = AssessFleet(ctx, students, settings, date(2025, 4, 16), 1)
	require.ErrorIs(t, err, context.Canceled)
}
