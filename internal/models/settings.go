package models

import "time"

// BillingCycle determines whether fees are charged per month or per term.
type BillingCycle string

// Supported billing cycles.
const (
	BillingCycleMonthly BillingCycle = "monthly"
	BillingCycleTermly  BillingCycle = "termly"
)

// ClassGroup is a configured tuition tier such as "Grade 3".
type ClassGroup struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:120;not null" json:"name"`
	StandardFee float64   `json:"standard_fee"`
	Enabled     bool      `json:"enabled"`
	GradeRank   int       `gorm:"index" json:"grade_rank"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AppSettings carries the school-wide billing and promotion configuration.
type AppSettings struct {
	ID                     uint         `gorm:"primaryKey" json:"id"`
	BillingCycle           BillingCycle `gorm:"size:16" json:"billing_cycle"`
	PaymentDueDay          int          `json:"payment_due_day"`
	PromotionThreshold     float64      `json:"promotion_threshold"`
	AcademicYearStartMonth int          `json:"academic_year_start_month"`
	GraduationClassGroupID *uint        `json:"graduation_class_group_id"`
	JuniorClassGroupID     *uint        `json:"junior_class_group_id"`
	TransferRetentionYears int          `json:"transfer_retention_years"`
	Terms                  [][]int      `gorm:"serializer:json" json:"terms"`
	ClassGroups            []ClassGroup `gorm:"-" json:"class_groups"`
	UpdatedAt              time.Time    `json:"updated_at"`
}
