package billing

import (
	"time"

	"github.com/noah-isme/gema-fees-api/internal/models"
)

const (
	lateFeeFirstTier  = 25.0
	lateFeeSecondTier = 25.0
	lateFeeThirdTier  = 50.0
	monthlyLateRate   = 0.01
	daysPerLateMonth  = 30
	firstTierDays     = 30
	secondTierDays    = 60
	thirdTierDays     = 90
)

// LateFee is the penalty owed on one overdue period. It is computed on demand and
// never written back to the schedule.
type LateFee struct {
	AcademicYear int       `json:"academic_year"`
	Period       int       `json:"period"`
	DueDate      time.Time `json:"due_date"`
	DaysPastDue  int       `json:"days_past_due"`
	Outstanding  float64   `json:"outstanding"`
	FlatFee      float64   `json:"flat_fee"`
	Interest     float64   `json:"interest"`
	Total        float64   `json:"total"`
}

// LateFeeFor returns the cumulative flat fee for the 30/60/90 day tiers and simple
// interest of 1% of the outstanding amount per full month past due.
func LateFeeFor(outstanding float64, daysPastDue int) (flat, interest float64) {
	outstanding = nonNegative(outstanding)
	if outstanding <= paidTolerance || daysPastDue <= 0 {
		return 0, 0
	}

	if daysPastDue >= firstTierDays {
		flat += lateFeeFirstTier
	}
	if daysPastDue >= secondTierDays {
		flat += lateFeeSecondTier
	}
	if daysPastDue >= thirdTierDays {
		flat += lateFeeThirdTier
	}

	months := daysPastDue / daysPerLateMonth
	interest = roundMoney(outstanding * monthlyLateRate * float64(months))
	return flat, interest
}

// LateFees lists the late fee of every period whose due date has passed with a
// balance remaining.
func LateFees(student models.Student, settings models.AppSettings, now time.Time) []LateFee {
	cals := newCalendarSet(settings)
	currentYear := cals.current.AcademicYearOf(now)

	fees := make([]LateFee, 0)
	for _, fp := range student.FeePayments {
		settled := SettlePeriod(fp)
		if settled.Paid {
			continue
		}

		cal, period, year, ok := cals.resolve(fp, currentYear)
		due := fp.DueDate
		if due.IsZero() {
			if !ok {
				continue
			}
			due = cal.DueDate(year, period)
		}

		days := daysBetween(due, now)
		if days <= 0 {
			continue
		}

		flat, interest := LateFeeFor(settled.Outstanding, days)
		fees = append(fees, LateFee{
			AcademicYear: year,
			Period:       fp.Period,
			DueDate:      due,
			DaysPastDue:  days,
			Outstanding:  settled.Outstanding,
			FlatFee:      flat,
			Interest:     interest,
			Total:        roundMoney(flat + interest),
		})
	}

	return fees
}
