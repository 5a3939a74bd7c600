package billing

import (
	"context"
	"math"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/gema-fees-api/internal/models"
)

// RiskTier is the public-facing classification of a criticality score.
type RiskTier string

// Risk tiers.
const (
	RiskTierLow      RiskTier = "low"
	RiskTierMedium   RiskTier = "medium"
	RiskTierHigh     RiskTier = "high"
	RiskTierCritical RiskTier = "critical"
)

// Recommended actions by criticality.
const (
	ActionImmediateIntervention = "immediate intervention: consider suspension"
	ActionScheduleMeeting       = "urgent: schedule a meeting with the guardian"
	ActionSendReminder          = "send a payment reminder"
	ActionMonitor               = "monitor"
	ActionNone                  = "no action"
)

const (
	minimumConsistencySamples = 3
	minimumInstallment        = 100.0
	hoursPerDay               = 24
)

// PaymentPlan is a suggested instalment schedule for clearing arrears.
type PaymentPlan struct {
	MonthlyInstallment float64 `json:"monthly_installment"`
	Installments       int     `json:"installments"`
	Total              float64 `json:"total"`
}

// RiskAssessment scores a student's collection risk.
type RiskAssessment struct {
	StudentID             uint        `json:"student_id"`
	ConsistencyScore      float64     `json:"consistency_score"`
	CriticalityScore      float64     `json:"criticality_score"`
	Tier                  RiskTier    `json:"tier"`
	RecommendedAction     string      `json:"recommended_action"`
	CollectionProbability float64     `json:"collection_probability"`
	DaysPastDue           int         `json:"days_past_due"`
	Outstanding           float64     `json:"outstanding"`
	PaymentRate           float64     `json:"payment_rate"`
	SuggestedPlan         PaymentPlan `json:"suggested_plan"`
}

// PaymentDates collects the dates of settled tuition and transport payments in
// chronological order.
func PaymentDates(student models.Student) []time.Time {
	dates := make([]time.Time, 0, len(student.FeePayments)+len(student.TransportPayments))
	for _, p := range student.FeePayments {
		if p.Paid && p.PaidDate != nil && !p.PaidDate.IsZero() {
			dates = append(dates, *p.PaidDate)
		}
	}
	for _, t := range student.TransportPayments {
		if t.Paid && t.PaidDate != nil && !t.PaidDate.IsZero() {
			dates = append(dates, *t.PaidDate)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// ConsistencyScore measures how regular the spacing between payments is: 100 minus
// the coefficient of variation of day gaps, in percent. Fewer than three payments
// score 0.
func ConsistencyScore(dates []time.Time) float64 {
	if len(dates) < minimumConsistencySamples {
		return 0
	}

	sorted := append([]time.Time(nil), dates...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	gaps := make([]float64, 0, len(sorted)-1)
	var sum float64
	for i := 1; i < len(sorted); i++ {
		gap := sorted[i].Sub(sorted[i-1]).Hours() / hoursPerDay
		gaps = append(gaps, gap)
		sum += gap
	}

	mean := sum / float64(len(gaps))
	if mean <= 0 {
		return 0
	}

	var variance float64
	for _, gap := range gaps {
		variance += (gap - mean) * (gap - mean)
	}
	stddev := math.Sqrt(variance / float64(len(gaps)))

	return roundScore(clamp(100-(stddev/mean)*100, 0, 100))
}

// DaysPastDue counts whole days since the due date of the earliest unpaid period.
func DaysPastDue(student models.Student, settings models.AppSettings, now time.Time) int {
	cals := newCalendarSet(settings)
	currentYear := cals.current.AcademicYearOf(now)

	var earliest time.Time
	for _, fp := range student.FeePayments {
		settled := SettlePeriod(fp)
		if settled.AmountDue <= 0 || settled.Paid {
			continue
		}
		due := fp.DueDate
		if due.IsZero() {
			cal, period, year, ok := cals.resolve(fp, currentYear)
			if !ok {
				continue
			}
			due = cal.DueDate(year, period)
		}
		if earliest.IsZero() || due.Before(earliest) {
			earliest = due
		}
	}

	return daysBetween(earliest, now)
}

func daysBetween(from, to time.Time) int {
	if from.IsZero() || !to.After(from) {
		return 0
	}
	return int(to.Sub(from).Hours() / hoursPerDay)
}

// CriticalityScore combines the outstanding amount, its age and payment regularity.
func CriticalityScore(outstanding float64, daysPastDue int, consistency float64) float64 {
	amountFactor := math.Min(50, nonNegative(outstanding)/1000*20)
	timeFactor := math.Min(30, float64(max(daysPastDue, 0))/90*30)
	consistencyFactor := math.Max(0, 20-consistency/5)
	return roundScore(clamp(amountFactor+timeFactor+consistencyFactor, 0, 100))
}

// RecommendedAction maps criticality to the next collection step.
func RecommendedAction(criticality float64) string {
	switch {
	case criticality > 80:
		return ActionImmediateIntervention
	case criticality > 60:
		return ActionScheduleMeeting
	case criticality > 40:
		return ActionSendReminder
	case criticality > 20:
		return ActionMonitor
	default:
		return ActionNone
	}
}

// TierFor classifies a criticality score.
func TierFor(criticality float64) RiskTier {
	switch {
	case criticality > 80:
		return RiskTierCritical
	case criticality > 60:
		return RiskTierHigh
	case criticality > 30:
		return RiskTierMedium
	default:
		return RiskTierLow
	}
}

// CollectionProbability estimates the chance of recovering the balance, 0–100.
func CollectionProbability(paymentRate, consistency float64, daysPastDue int, criticality float64) float64 {
	timelyBonus := math.Max(0, 20-float64(max(daysPastDue, 0))/30*10)
	return roundScore(clamp(paymentRate+consistency*0.2+timelyBonus-criticality, 0, 100))
}

// SuggestPaymentPlan sizes monthly instalments from past payment behaviour, raised
// when needed so the balance clears within 6, 8 or 12 months depending on its size.
func SuggestPaymentPlan(outstanding, averagePayment float64) PaymentPlan {
	outstanding = roundMoney(nonNegative(outstanding))
	if outstanding <= paidTolerance {
		return PaymentPlan{}
	}

	maxMonths := 6
	switch {
	case outstanding > 2000:
		maxMonths = 12
	case outstanding > 1000:
		maxMonths = 8
	}

	installment := math.Max(minimumInstallment, nonNegative(averagePayment))
	if outstanding/installment > float64(maxMonths) {
		installment = outstanding / float64(maxMonths)
	}
	installment = roundUpMoney(installment)

	return PaymentPlan{
		MonthlyInstallment: installment,
		Installments:       int(math.Ceil(outstanding/installment - 1e-9)),
		Total:              outstanding,
	}
}

// AveragePayment is the mean amount of dated tuition payments.
func AveragePayment(student models.Student) float64 {
	var (
		sum   float64
		count int
	)
	for _, p := range student.FeePayments {
		if p.PaidDate == nil || p.AmountPaid <= 0 {
			continue
		}
		sum += p.AmountPaid
		count++
	}
	if count == 0 {
		return 0
	}
	return roundMoney(sum / float64(count))
}

// Assess produces the full risk assessment for one student.
func Assess(student models.Student, settings models.AppSettings, now time.Time) RiskAssessment {
	totals := Aggregate(student, settings, now)
	consistency := ConsistencyScore(PaymentDates(student))
	days := DaysPastDue(student, settings, now)
	criticality := CriticalityScore(totals.OverdueBalance, days, consistency)

	return RiskAssessment{
		StudentID:             student.ID,
		ConsistencyScore:      consistency,
		CriticalityScore:      criticality,
		Tier:                  TierFor(criticality),
		RecommendedAction:     RecommendedAction(criticality),
		CollectionProbability: CollectionProbability(totals.PaymentRate, consistency, days, criticality),
		DaysPastDue:           days,
		Outstanding:           totals.OverdueBalance,
		PaymentRate:           totals.PaymentRate,
		SuggestedPlan:         SuggestPaymentPlan(totals.OverdueBalance, AveragePayment(student)),
	}
}

// FleetReport is the risk analysis of a whole roster.
type FleetReport struct {
	Assessments      []RiskAssessment `json:"assessments"`
	TierCounts       map[RiskTier]int `json:"tier_counts"`
	TotalOutstanding float64          `json:"total_outstanding"`
	GeneratedAt      time.Time        `json:"generated_at"`
}

// AssessFleet assesses every student, at most limit at a time. Assessments keep
// the roster order.
func AssessFleet(ctx context.Context, students []models.Student, settings models.AppSettings, now time.Time, limit int) (FleetReport, error) {
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	assessments := make([]RiskAssessment, len(students))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(limit)
	for i := range students {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			assessments[i] = Assess(students[i], settings, now)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return FleetReport{}, err
	}

	report := FleetReport{
		Assessments: assessments,
		TierCounts: map[RiskTier]int{
			RiskTierLow:      0,
			RiskTierMedium:   0,
			RiskTierHigh:     0,
			RiskTierCritical: 0,
		},
		GeneratedAt: now,
	}
	var outstanding float64
	for _, assessment := range assessments {
		report.TierCounts[assessment.Tier]++
		outstanding += assessment.Outstanding
	}
	report.TotalOutstanding = roundMoney(outstanding)

	return report, nil
}
