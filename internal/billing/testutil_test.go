package billing

import (
	"time"

	"github.com/noah-isme/gema-fees-api/internal/models"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func uintPtr(v uint) *uint {
	return &v
}

func gradeGroups() []models.ClassGroup {
	return []models.ClassGroup{
		{ID: 5, Name: "Grade 5", StandardFee: 30, Enabled: true},
		{ID: 6, Name: "Grade 6", StandardFee: 35, Enabled: true},
		{ID: 7, Name: "Grade 7", StandardFee: 40, Enabled: true},
	}
}

func monthlySettings() models.AppSettings {
	return models.AppSettings{
		BillingCycle:           models.BillingCycleMonthly,
		PaymentDueDay:          1,
		PromotionThreshold:     75,
		AcademicYearStartMonth: 1,
		TransferRetentionYears: 5,
		ClassGroups:            gradeGroups(),
	}
}

// payAll settles every billed period of the student, dated on its due date.
func payAll(student models.Student) models.Student {
	out := student
	out.FeePayments = make([]models.FeePaymentPeriod, len(student.FeePayments))
	for i, p := range student.FeePayments {
		p.AmountPaid = p.AmountDue
		paidAt := p.DueDate
		p.PaidDate = &paidAt
		out.FeePayments[i] = SettlePeriod(p)
	}
	return out
}

func enrolled(settings models.AppSettings, student models.Student) models.Student {
	group := FindClassGroup(settings, student.ClassGroupID)
	schedule := GenerateSchedule(student, group, settings)
	student.FeePayments = schedule.FeePeriods
	student.TransportPayments = schedule.TransportPayments
	return student
}
