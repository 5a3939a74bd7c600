package billing

import (
	"time"

	"github.com/noah-isme/gema-fees-api/internal/models"
)

// Totals is the enrollment-aware view of a student's payment history for one
// academic year. OverdueBalance alone spans every stored year.
type Totals struct {
	AcademicYear        int     `json:"academic_year"`
	TotalPaid           float64 `json:"total_paid"`
	TotalOwed           float64 `json:"total_owed"`
	AnnualFeeCalculated float64 `json:"annual_fee_calculated"`
	ExpectedToDate      float64 `json:"expected_to_date"`
	SchoolFeesTotal     float64 `json:"school_fees_total"`
	TransportFeesTotal  float64 `json:"transport_fees_total"`
	CompletionRate      float64 `json:"completion_rate"`
	OverdueBalance      float64 `json:"overdue_balance"`
	PaymentRate         float64 `json:"payment_rate"`
	PeriodsConsidered   int     `json:"periods_considered"`
}

// Aggregate sums the fee periods of the student's academic year into paid, owed
// and expected totals; without one the academic year containing now is scored.
// Arrears of earlier years only count towards OverdueBalance. Periods starting
// before the admission month are skipped even when the stored schedule bills
// them, and stored outstanding amounts are recomputed.
func Aggregate(student models.Student, settings models.AppSettings, now time.Time) Totals {
	cals := newCalendarSet(settings)
	cutoff := monthStart(student.AdmissionDate)
	scored := student.AcademicYear
	if scored == 0 {
		scored = cals.current.AcademicYearOf(now)
	}

	var (
		totals    = Totals{AcademicYear: scored}
		transport float64
	)

	for _, fp := range student.FeePayments {
		cal, period, year, ok := cals.resolve(fp, scored)
		if !ok {
			continue
		}

		start := cal.StartDate(year, period)
		if !relevant(start, cutoff) {
			continue
		}

		due := nonNegative(fp.AmountDue)
		paid := nonNegative(fp.AmountPaid)
		outstanding := nonNegative(due - paid)

		dueDate := fp.DueDate
		if dueDate.IsZero() {
			dueDate = cal.DueDate(year, period)
		}
		if !dueDate.After(now) {
			totals.OverdueBalance += outstanding
		}

		if year != scored {
			continue
		}

		totals.PeriodsConsidered++
		totals.TotalPaid += paid
		totals.TotalOwed += outstanding
		totals.AnnualFeeCalculated += due
		transport += TransportComponent(student, fp, period)

		if !start.After(now) {
			totals.ExpectedToDate += due
		}
	}

	totals.TotalPaid = roundMoney(totals.TotalPaid)
	totals.TotalOwed = roundMoney(totals.TotalOwed)
	totals.AnnualFeeCalculated = roundMoney(totals.AnnualFeeCalculated)
	totals.ExpectedToDate = roundMoney(nonNegative(totals.ExpectedToDate))
	totals.OverdueBalance = roundMoney(totals.OverdueBalance)
	totals.TransportFeesTotal = roundMoney(transport)
	totals.SchoolFeesTotal = roundMoney(totals.AnnualFeeCalculated - totals.TransportFeesTotal)

	if totals.AnnualFeeCalculated > 0 {
		totals.CompletionRate = roundScore(totals.TotalPaid / totals.AnnualFeeCalculated * 100)
	}

	if totals.ExpectedToDate > 0 {
		totals.PaymentRate = roundScore(clamp(totals.TotalPaid/totals.ExpectedToDate*100, 0, 100))
	} else {
		totals.PaymentRate = 100
	}

	return totals
}

// TransportComponent returns the share of a period's amount due that is transport.
func TransportComponent(student models.Student, fp models.FeePaymentPeriod, period Period) float64 {
	due := nonNegative(fp.AmountDue)
	if !student.HasTransport || fp.TransportWaived || due <= 0 {
		return 0
	}
	surcharge := nonNegative(student.TransportFee) * float64(period.MonthCount())
	if surcharge > due {
		return due
	}
	return surcharge
}

// RefreshTotals returns a copy of the student whose cached totals and per-period
// derived fields are rebuilt from the payment history.
func RefreshTotals(student models.Student, settings models.AppSettings, now time.Time) models.Student {
	out := student
	out.FeePayments = make([]models.FeePaymentPeriod, len(student.FeePayments))
	for i, p := range student.FeePayments {
		out.FeePayments[i] = SettlePeriod(p)
	}
	out.TransportPayments = make([]models.TransportPayment, len(student.TransportPayments))
	for i, t := range student.TransportPayments {
		out.TransportPayments[i] = SettleTransport(t)
	}

	totals := Aggregate(out, settings, now)
	out.TotalPaid = totals.TotalPaid
	out.TotalOwed = totals.TotalOwed
	return out
}
