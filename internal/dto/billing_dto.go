package dto

import (
	"time"

	"github.com/noah-isme/gema-fees-api/internal/billing"
	"github.com/noah-isme/gema-fees-api/internal/models"
)

// Payment ledgers accepted by the payment endpoint.
const (
	PaymentKindTuition   = "tuition"
	PaymentKindTransport = "transport"
)

// FeePeriodResponse describes one billed period.
type FeePeriodResponse struct {
	AcademicYear    int        `json:"academic_year"`
	Period          int        `json:"period"`
	AmountDue       float64    `json:"amount_due"`
	AmountPaid      float64    `json:"amount_paid"`
	Outstanding     float64    `json:"outstanding"`
	Paid            bool       `json:"paid"`
	DueDate         time.Time  `json:"due_date"`
	PaidDate        *time.Time `json:"paid_date"`
	TransportWaived bool       `json:"transport_waived"`
}

// TransportPaymentResponse describes one transport month.
type TransportPaymentResponse struct {
	AcademicYear int        `json:"academic_year"`
	Month        int        `json:"month"`
	MonthName    string     `json:"month_name"`
	AmountDue    float64    `json:"amount_due"`
	AmountPaid   float64    `json:"amount_paid"`
	Outstanding  float64    `json:"outstanding"`
	Active       bool       `json:"active"`
	Skipped      bool       `json:"skipped"`
	Paid         bool       `json:"paid"`
	PaidDate     *time.Time `json:"paid_date"`
}

// ScheduleResponse is a student's fee schedule for one academic year.
type ScheduleResponse struct {
	StudentID         uint                       `json:"student_id"`
	AcademicYear      int                        `json:"academic_year"`
	BillingCycle      models.BillingCycle        `json:"billing_cycle"`
	Degraded          bool                       `json:"degraded"`
	Periods           []FeePeriodResponse        `json:"periods"`
	TransportPayments []TransportPaymentResponse `json:"transport_payments"`
}

// NewScheduleResponse maps a generated schedule into its response form.
func NewScheduleResponse(studentID uint, cycle models.BillingCycle, schedule billing.Schedule) ScheduleResponse {
	periods := make([]FeePeriodResponse, 0, len(schedule.FeePeriods))
	for _, p := range schedule.FeePeriods {
		periods = append(periods, FeePeriodResponse{
			AcademicYear:    p.AcademicYear,
			Period:          p.Period,
			AmountDue:       p.AmountDue,
			AmountPaid:      p.AmountPaid,
			Outstanding:     p.Outstanding,
			Paid:            p.Paid,
			DueDate:         p.DueDate,
			PaidDate:        p.PaidDate,
			TransportWaived: p.TransportWaived,
		})
	}

	transport := make([]TransportPaymentResponse, 0, len(schedule.TransportPayments))
	for _, t := range schedule.TransportPayments {
		transport = append(transport, TransportPaymentResponse{
			AcademicYear: t.AcademicYear,
			Month:        t.Month,
			MonthName:    t.MonthName,
			AmountDue:    t.AmountDue,
			AmountPaid:   t.AmountPaid,
			Outstanding:  t.Outstanding,
			Active:       t.Active,
			Skipped:      t.Skipped,
			Paid:         t.Paid,
			PaidDate:     t.PaidDate,
		})
	}

	return ScheduleResponse{
		StudentID:         studentID,
		AcademicYear:      schedule.AcademicYear,
		BillingCycle:      cycle,
		Degraded:          schedule.Degraded,
		Periods:           periods,
		TransportPayments: transport,
	}
}

// BillingSummaryResponse is the aggregator output for one student.
type BillingSummaryResponse struct {
	StudentID    uint           `json:"student_id"`
	Name         string         `json:"name"`
	ClassGroupID uint           `json:"class_group_id"`
	AcademicYear int            `json:"academic_year"`
	Totals       billing.Totals `json:"totals"`
	GeneratedAt  time.Time      `json:"generated_at"`
	CacheHit     bool           `json:"cache_hit"`
}

// PaymentRequest records a payment against a tuition period or a transport month.
type PaymentRequest struct {
	Kind         string     `json:"kind" validate:"omitempty,oneof=tuition transport"`
	AcademicYear int        `json:"academic_year" validate:"required,min=1900,max=2200"`
	Period       int        `json:"period" validate:"required,min=1,max=12"`
	Amount       float64    `json:"amount" validate:"required,gt=0"`
	PaidAt       *time.Time `json:"paid_at"`
	Note         string     `json:"note" validate:"max=500"`
}

// LateFeeListResponse lists the on-demand late fees of a student.
type LateFeeListResponse struct {
	StudentID uint              `json:"student_id"`
	Items     []billing.LateFee `json:"items"`
	Total     float64           `json:"total"`
}
