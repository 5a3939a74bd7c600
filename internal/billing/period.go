package billing

import (
	"sort"
	"time"

	"github.com/noah-isme/gema-fees-api/internal/models"
)

const (
	monthsPerYear          = 12
	termsPerYear           = 3
	defaultDueDay          = 1
	defaultAcademicStart   = 1
	defaultPromotionTarget = 75.0
)

// DefaultTerms is the term layout used when settings carry none or an invalid one.
var DefaultTerms = [][]int{{1, 2, 3, 4}, {5, 6, 7, 8}, {9, 10, 11, 12}}

// Period is one billable unit of a cycle, numbered from 1.
type Period struct {
	Number int
	Months []int
}

// MonthCount reports how many calendar months the period spans.
func (p Period) MonthCount() int {
	return len(p.Months)
}

// Contains reports whether the calendar month falls inside the period.
func (p Period) Contains(month int) bool {
	for _, m := range p.Months {
		if m == month {
			return true
		}
	}
	return false
}

// Calendar maps the periods of a billing cycle onto calendar dates.
type Calendar struct {
	Cycle      models.BillingCycle
	StartMonth int
	DueDay     int
	periods    []Period
}

// NewCalendar resolves the calendar described by the settings.
func NewCalendar(settings models.AppSettings) Calendar {
	settings = NormalizeSettings(settings)
	cal := Calendar{
		Cycle:      settings.BillingCycle,
		StartMonth: settings.AcademicYearStartMonth,
		DueDay:     settings.PaymentDueDay,
	}

	if cal.Cycle == models.BillingCycleTermly {
		for idx, months := range settings.Terms {
			cal.periods = append(cal.periods, Period{Number: idx + 1, Months: append([]int(nil), months...)})
		}
	} else {
		for month := 1; month <= monthsPerYear; month++ {
			cal.periods = append(cal.periods, Period{Number: month, Months: []int{month}})
		}
	}

	// Academic order: the period holding the start month comes first.
	sort.SliceStable(cal.periods, func(i, j int) bool {
		return cal.offset(cal.periods[i].Months[0]) < cal.offset(cal.periods[j].Months[0])
	})

	return cal
}

// calendarSet resolves stored periods through the cycle they were generated
// under. Periods without a recorded cycle use the configured one.
type calendarSet struct {
	current Calendar
	monthly Calendar
	termly  Calendar
}

func newCalendarSet(settings models.AppSettings) calendarSet {
	settings = NormalizeSettings(settings)
	monthly, termly := settings, settings
	monthly.BillingCycle = models.BillingCycleMonthly
	termly.BillingCycle = models.BillingCycleTermly
	return calendarSet{
		current: NewCalendar(settings),
		monthly: NewCalendar(monthly),
		termly:  NewCalendar(termly),
	}
}

func (s calendarSet) forCycle(cycle models.BillingCycle) Calendar {
	switch cycle {
	case models.BillingCycleMonthly:
		return s.monthly
	case models.BillingCycleTermly:
		return s.termly
	default:
		return s.current
	}
}

// resolve returns the calendar, period and academic year of a stored period.
// Unset academic years fall back to defaultYear.
func (s calendarSet) resolve(fp models.FeePaymentPeriod, defaultYear int) (Calendar, Period, int, bool) {
	cal := s.forCycle(fp.BillingCycle)
	period, ok := cal.Period(fp.Period)
	year := fp.AcademicYear
	if year == 0 {
		year = defaultYear
	}
	return cal, period, year, ok
}

// Periods returns the cycle's periods in academic order.
func (c Calendar) Periods() []Period {
	out := make([]Period, len(c.periods))
	copy(out, c.periods)
	return out
}

// Period looks up a period by number.
func (c Calendar) Period(number int) (Period, bool) {
	for _, p := range c.periods {
		if p.Number == number {
			return p, true
		}
	}
	return Period{}, false
}

// PeriodOfMonth returns the period that contains the calendar month.
func (c Calendar) PeriodOfMonth(month int) (Period, bool) {
	for _, p := range c.periods {
		if p.Contains(month) {
			return p, true
		}
	}
	return Period{}, false
}

// CalendarYear returns the calendar year in which a month of the academic year falls.
func (c Calendar) CalendarYear(academicYear, month int) int {
	if month < c.StartMonth {
		return academicYear + 1
	}
	return academicYear
}

// AcademicYearOf returns the academic year containing t.
func (c Calendar) AcademicYearOf(t time.Time) int {
	if int(t.Month()) < c.StartMonth {
		return t.Year() - 1
	}
	return t.Year()
}

// MonthStart returns the first day of a month of the academic year.
func (c Calendar) MonthStart(academicYear, month int) time.Time {
	return time.Date(c.CalendarYear(academicYear, month), time.Month(month), 1, 0, 0, 0, 0, time.UTC)
}

// StartDate returns the first day of the period's first month.
func (c Calendar) StartDate(academicYear int, p Period) time.Time {
	if len(p.Months) == 0 {
		return time.Time{}
	}
	return c.MonthStart(academicYear, p.Months[0])
}

// DueDate returns the period start shifted to the configured due day.
func (c Calendar) DueDate(academicYear int, p Period) time.Time {
	start := c.StartDate(academicYear, p)
	if start.IsZero() {
		return start
	}
	return start.AddDate(0, 0, ClampDueDay(c.DueDay)-1)
}

func (c Calendar) offset(month int) int {
	return (month - c.StartMonth + monthsPerYear) % monthsPerYear
}

// ClampDueDay keeps the due day inside 1–28 so every month has it.
func ClampDueDay(day int) int {
	switch {
	case day < 1:
		return 1
	case day > 28:
		return 28
	default:
		return day
	}
}

// NormalizeSettings fills defaults and repairs out-of-range values.
func NormalizeSettings(settings models.AppSettings) models.AppSettings {
	if settings.BillingCycle != models.BillingCycleTermly {
		settings.BillingCycle = models.BillingCycleMonthly
	}
	if settings.PaymentDueDay == 0 {
		settings.PaymentDueDay = defaultDueDay
	}
	settings.PaymentDueDay = ClampDueDay(settings.PaymentDueDay)
	if settings.PromotionThreshold <= 0 {
		settings.PromotionThreshold = defaultPromotionTarget
	}
	if settings.PromotionThreshold > 100 {
		settings.PromotionThreshold = 100
	}
	if settings.AcademicYearStartMonth < 1 || settings.AcademicYearStartMonth > monthsPerYear {
		settings.AcademicYearStartMonth = defaultAcademicStart
	}
	if settings.TransferRetentionYears < 0 {
		settings.TransferRetentionYears = 0
	}
	if !ValidTerms(settings.Terms) {
		settings.Terms = copyTerms(DefaultTerms)
	} else {
		settings.Terms = copyTerms(settings.Terms)
	}
	return settings
}

// ValidTerms reports whether the layout splits months 1–12 into three runs of consecutive months.
func ValidTerms(terms [][]int) bool {
	if len(terms) != termsPerYear {
		return false
	}

	seen := make(map[int]bool, monthsPerYear)
	for _, term := range terms {
		if len(term) == 0 {
			return false
		}
		for idx, month := range term {
			if month < 1 || month > monthsPerYear || seen[month] {
				return false
			}
			if idx > 0 && month != term[idx-1]+1 {
				return false
			}
			seen[month] = true
		}
	}

	return len(seen) == monthsPerYear
}

func copyTerms(terms [][]int) [][]int {
	out := make([][]int, len(terms))
	for i, term := range terms {
		out[i] = append([]int(nil), term...)
	}
	return out
}

func monthStart(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
