package models

import "time"

// Student status values.
const (
	StudentStatusActive      = "active"
	StudentStatusGraduated   = "graduated"
	StudentStatusTransferred = "transferred"
)

// Student holds the enrollment fields that drive billing and promotion.
type Student struct {
	ID                uint               `gorm:"primaryKey" json:"id"`
	Name              string             `gorm:"size:255;not null" json:"name"`
	AdmissionDate     time.Time          `json:"admission_date"`
	ClassGroupID      uint               `gorm:"index" json:"class_group_id"`
	AcademicYear      int                `gorm:"index" json:"academic_year"`
	HasTransport      bool               `json:"has_transport"`
	TransportFee      float64            `json:"transport_fee"`
	CustomFeeEnabled  bool               `json:"custom_fee_enabled"`
	CustomFee         float64            `json:"custom_fee"`
	TransportWaivers  []int              `gorm:"serializer:json" json:"transport_waivers"`
	Status            string             `gorm:"size:32;index" json:"status"`
	TotalPaid         float64            `json:"total_paid"`
	TotalOwed         float64            `json:"total_owed"`
	FeePayments       []FeePaymentPeriod `gorm:"foreignKey:StudentID" json:"fee_payments"`
	TransportPayments []TransportPayment `gorm:"foreignKey:StudentID" json:"transport_payments"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// FeePaymentPeriod is one billed period (month or term) for a student.
type FeePaymentPeriod struct {
	ID              uint         `gorm:"primaryKey" json:"id"`
	StudentID       uint         `gorm:"index;not null" json:"student_id"`
	AcademicYear    int          `gorm:"index" json:"academic_year"`
	BillingCycle    BillingCycle `gorm:"size:16" json:"billing_cycle"`
	Period          int          `json:"period"`
	AmountDue       float64      `json:"amount_due"`
	AmountPaid      float64      `json:"amount_paid"`
	Paid            bool         `json:"paid"`
	DueDate         time.Time    `json:"due_date"`
	PaidDate        *time.Time   `json:"paid_date"`
	TransportWaived bool         `json:"transport_waived"`
	Outstanding     float64      `json:"outstanding"`
}

// TransportPayment tracks the monthly transport ledger, independent of tuition.
type TransportPayment struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	StudentID    uint       `gorm:"index;not null" json:"student_id"`
	AcademicYear int        `gorm:"index" json:"academic_year"`
	Month        int        `json:"month"`
	MonthName    string     `gorm:"size:16" json:"month_name"`
	AmountDue    float64    `json:"amount_due"`
	AmountPaid   float64    `json:"amount_paid"`
	Active       bool       `json:"active"`
	Skipped      bool       `json:"skipped"`
	Paid         bool       `json:"paid"`
	PaidDate     *time.Time `json:"paid_date"`
	Outstanding  float64    `json:"outstanding"`
}
