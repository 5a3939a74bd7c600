package billing

import (
	"math"
	"time"

	"github.com/noah-isme/gema-fees-api/internal/models"
)

// Schedule is the generated set of obligations for one academic year.
type Schedule struct {
	AcademicYear      int
	Cycle             models.BillingCycle
	FeePeriods        []models.FeePaymentPeriod
	TransportPayments []models.TransportPayment
	// Degraded is set when the class group could not be resolved and tuition was zeroed.
	Degraded bool
}

// FindClassGroup returns the configured class group with the given id, or nil.
func FindClassGroup(settings models.AppSettings, id uint) *models.ClassGroup {
	for i := range settings.ClassGroups {
		if settings.ClassGroups[i].ID == id {
			group := settings.ClassGroups[i]
			return &group
		}
	}
	return nil
}

// GenerateSchedule builds the student's fee periods (and transport months) for the
// student's academic year. A nil class group zeroes tuition but keeps transport.
func GenerateSchedule(student models.Student, group *models.ClassGroup, settings models.AppSettings) Schedule {
	cal := NewCalendar(settings)
	year := scheduleYear(student, cal)
	cutoff := monthStart(student.AdmissionDate)
	fee := tuitionRate(student, group)
	waived := waiverSet(student.TransportWaivers)

	schedule := Schedule{
		AcademicYear: year,
		Cycle:        cal.Cycle,
		Degraded:     group == nil,
	}

	periods := cal.Periods()
	schedule.FeePeriods = make([]models.FeePaymentPeriod, 0, len(periods))
	for _, p := range periods {
		start := cal.StartDate(year, p)
		months := float64(p.MonthCount())
		isWaived := waived[p.Number]

		due := 0.0
		if relevant(start, cutoff) {
			due = fee * months
			if student.HasTransport && !isWaived {
				due += nonNegative(student.TransportFee) * months
			}
		}
		due = roundMoney(nonNegative(due))

		schedule.FeePeriods = append(schedule.FeePeriods, models.FeePaymentPeriod{
			StudentID:       student.ID,
			AcademicYear:    year,
			BillingCycle:    cal.Cycle,
			Period:          p.Number,
			AmountDue:       due,
			DueDate:         cal.DueDate(year, p),
			TransportWaived: isWaived,
			Outstanding:     due,
			Paid:            due <= paidTolerance,
		})
	}

	if student.HasTransport {
		schedule.TransportPayments = transportMonths(student, cal, year, cutoff, waived)
	}

	return schedule
}

func transportMonths(student models.Student, cal Calendar, year int, cutoff time.Time, waived map[int]bool) []models.TransportPayment {
	out := make([]models.TransportPayment, 0, monthsPerYear)
	for i := 0; i < monthsPerYear; i++ {
		month := (cal.StartMonth-1+i)%monthsPerYear + 1
		p, ok := cal.PeriodOfMonth(month)
		if !ok {
			continue
		}
		active := relevant(cal.MonthStart(year, month), cutoff)
		skipped := waived[p.Number]
		due := 0.0
		if active && !skipped {
			due = roundMoney(nonNegative(student.TransportFee))
		}
		out = append(out, models.TransportPayment{
			StudentID:    student.ID,
			AcademicYear: year,
			Month:        month,
			MonthName:    time.Month(month).String(),
			AmountDue:    due,
			Active:       active,
			Skipped:      skipped,
			Outstanding:  due,
			Paid:         due <= paidTolerance,
		})
	}
	return out
}

// CarryOverPayments copies recorded payments from existing periods of the same
// academic year and billing cycle onto a freshly generated schedule, then settles
// each period. Periods stored without a cycle are taken to share the schedule's.
// Payments recorded under another cycle are spread over the new periods covering
// the same months, filling each up to its amount due; any excess stays on the last.
func CarryOverPayments(schedule Schedule, existing []models.FeePaymentPeriod, existingTransport []models.TransportPayment, settings models.AppSettings) Schedule {
	type key struct{ year, number int }

	cals := newCalendarSet(settings)
	cycle := schedule.Cycle
	if cycle == "" {
		cycle = cals.current.Cycle
	}
	target := cals.forCycle(cycle)
	cycleOf := func(c models.BillingCycle) models.BillingCycle {
		if c == "" {
			return cycle
		}
		return c
	}

	out := schedule
	out.FeePeriods = append([]models.FeePaymentPeriod(nil), schedule.FeePeriods...)
	index := make(map[key]int, len(out.FeePeriods))
	for i, p := range out.FeePeriods {
		index[key{p.AcademicYear, p.Period}] = i
	}

	var converted []models.FeePaymentPeriod
	for _, prior := range existing {
		if cycleOf(prior.BillingCycle) != cycle {
			converted = append(converted, prior)
			continue
		}
		if i, ok := index[key{prior.AcademicYear, prior.Period}]; ok {
			out.FeePeriods[i].ID = prior.ID
			out.FeePeriods[i].AmountPaid = prior.AmountPaid
			out.FeePeriods[i].PaidDate = prior.PaidDate
		}
	}

	for _, prior := range converted {
		remaining := nonNegative(prior.AmountPaid)
		period, ok := cals.forCycle(prior.BillingCycle).Period(prior.Period)
		if !ok || remaining <= 0 {
			continue
		}

		var targets []int
		seen := make(map[int]bool, len(period.Months))
		for _, month := range period.Months {
			p, ok := target.PeriodOfMonth(month)
			if !ok {
				continue
			}
			i, ok := index[key{prior.AcademicYear, p.Number}]
			if !ok || seen[i] {
				continue
			}
			seen[i] = true
			targets = append(targets, i)
		}

		for n, i := range targets {
			fp := &out.FeePeriods[i]
			share := remaining
			if n < len(targets)-1 {
				share = math.Min(remaining, nonNegative(fp.AmountDue-fp.AmountPaid))
			}
			if share <= 0 {
				continue
			}
			fp.AmountPaid = roundMoney(nonNegative(fp.AmountPaid) + share)
			remaining -= share
			if prior.PaidDate != nil && (fp.PaidDate == nil || prior.PaidDate.After(*fp.PaidDate)) {
				fp.PaidDate = prior.PaidDate
			}
		}
	}

	for i := range out.FeePeriods {
		out.FeePeriods[i] = SettlePeriod(out.FeePeriods[i])
	}

	transport := make(map[key]models.TransportPayment, len(existingTransport))
	for _, t := range existingTransport {
		transport[key{t.AcademicYear, t.Month}] = t
	}
	out.TransportPayments = make([]models.TransportPayment, len(schedule.TransportPayments))
	for i, t := range schedule.TransportPayments {
		if prior, ok := transport[key{t.AcademicYear, t.Month}]; ok {
			t.ID = prior.ID
			t.AmountPaid = prior.AmountPaid
			t.PaidDate = prior.PaidDate
		}
		out.TransportPayments[i] = SettleTransport(t)
	}

	return out
}

// MergeSchedule replaces the schedule's academic year inside the existing history,
// keeping every other year untouched.
func MergeSchedule(existing []models.FeePaymentPeriod, existingTransport []models.TransportPayment, schedule Schedule) ([]models.FeePaymentPeriod, []models.TransportPayment) {
	periods := make([]models.FeePaymentPeriod, 0, len(existing)+len(schedule.FeePeriods))
	for _, p := range existing {
		if p.AcademicYear != schedule.AcademicYear {
			periods = append(periods, p)
		}
	}
	periods = append(periods, schedule.FeePeriods...)

	transport := make([]models.TransportPayment, 0, len(existingTransport)+len(schedule.TransportPayments))
	for _, t := range existingTransport {
		if t.AcademicYear != schedule.AcademicYear {
			transport = append(transport, t)
		}
	}
	transport = append(transport, schedule.TransportPayments...)

	return periods, transport
}

// SettlePeriod recomputes the derived outstanding amount and paid flag.
func SettlePeriod(p models.FeePaymentPeriod) models.FeePaymentPeriod {
	p.AmountDue = nonNegative(p.AmountDue)
	p.AmountPaid = nonNegative(p.AmountPaid)
	p.Outstanding = roundMoney(nonNegative(p.AmountDue - p.AmountPaid))
	p.Paid = p.Outstanding <= paidTolerance
	return p
}

// SettleTransport recomputes the derived fields of a transport month.
func SettleTransport(t models.TransportPayment) models.TransportPayment {
	t.AmountDue = nonNegative(t.AmountDue)
	t.AmountPaid = nonNegative(t.AmountPaid)
	t.Outstanding = roundMoney(nonNegative(t.AmountDue - t.AmountPaid))
	t.Paid = t.Outstanding <= paidTolerance
	return t
}

func tuitionRate(student models.Student, group *models.ClassGroup) float64 {
	if student.CustomFeeEnabled && student.CustomFee != 0 {
		return nonNegative(student.CustomFee)
	}
	if group == nil {
		return 0
	}
	return nonNegative(group.StandardFee)
}

func scheduleYear(student models.Student, cal Calendar) int {
	if student.AcademicYear > 0 {
		return student.AcademicYear
	}
	if !student.AdmissionDate.IsZero() {
		return cal.AcademicYearOf(student.AdmissionDate)
	}
	return 0
}

// relevant reports whether a period starting at start is billable for a student
// whose admission month begins at cutoff.
func relevant(start, cutoff time.Time) bool {
	return cutoff.IsZero() || !start.Before(cutoff)
}

func waiverSet(periods []int) map[int]bool {
	set := make(map[int]bool, len(periods))
	for _, p := range periods {
		set[p] = true
	}
	return set
}
