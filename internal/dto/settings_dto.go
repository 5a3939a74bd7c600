package dto

import (
	"time"

	"github.com/noah-isme/gema-fees-api/internal/models"
)

// ClassGroupInput describes a class group in a settings update.
type ClassGroupInput struct {
	ID          uint    `json:"id"`
	Name        string  `json:"name" validate:"required,max=120"`
	StandardFee float64 `json:"standard_fee" validate:"gte=0"`
	Enabled     bool    `json:"enabled"`
	GradeRank   int     `json:"grade_rank" validate:"gte=0,lte=50"`
}

// SettingsUpdateRequest replaces the billing settings.
type SettingsUpdateRequest struct {
	BillingCycle           string            `json:"billing_cycle" validate:"required,oneof=monthly termly"`
	PaymentDueDay          int               `json:"payment_due_day" validate:"required,min=1,max=28"`
	PromotionThreshold     float64           `json:"promotion_threshold" validate:"required,gt=0,lte=100"`
	AcademicYearStartMonth int               `json:"academic_year_start_month" validate:"required,min=1,max=12"`
	GraduationClassGroupID *uint             `json:"graduation_class_group_id"`
	JuniorClassGroupID     *uint             `json:"junior_class_group_id"`
	TransferRetentionYears int               `json:"transfer_retention_years" validate:"gte=0,lte=50"`
	Terms                  [][]int           `json:"terms" validate:"omitempty,len=3"`
	ClassGroups            []ClassGroupInput `json:"class_groups" validate:"dive"`
}

// ClassGroupResponse is a configured class group.
type ClassGroupResponse struct {
	ID          uint    `json:"id"`
	Name        string  `json:"name"`
	StandardFee float64 `json:"standard_fee"`
	Enabled     bool    `json:"enabled"`
	GradeRank   int     `json:"grade_rank"`
}

// SettingsResponse is the effective billing configuration.
type SettingsResponse struct {
	BillingCycle           models.BillingCycle  `json:"billing_cycle"`
	PaymentDueDay          int                  `json:"payment_due_day"`
	PromotionThreshold     float64              `json:"promotion_threshold"`
	AcademicYearStartMonth int                  `json:"academic_year_start_month"`
	GraduationClassGroupID *uint                `json:"graduation_class_group_id"`
	JuniorClassGroupID     *uint                `json:"junior_class_group_id"`
	TransferRetentionYears int                  `json:"transfer_retention_years"`
	Terms                  [][]int              `json:"terms"`
	ClassGroups            []ClassGroupResponse `json:"class_groups"`
	UpdatedAt              time.Time            `json:"updated_at"`
}

// NewSettingsResponse maps stored settings into a response.
func NewSettingsResponse(settings models.AppSettings) SettingsResponse {
	groups := make([]ClassGroupResponse, 0, len(settings.ClassGroups))
	for _, group := range settings.ClassGroups {
		groups = append(groups, ClassGroupResponse{
			ID:          group.ID,
			Name:        group.Name,
			StandardFee: group.StandardFee,
			Enabled:     group.Enabled,
			GradeRank:   group.GradeRank,
		})
	}

	return SettingsResponse{
		BillingCycle:           settings.BillingCycle,
		PaymentDueDay:          settings.PaymentDueDay,
		PromotionThreshold:     settings.PromotionThreshold,
		AcademicYearStartMonth: settings.AcademicYearStartMonth,
		GraduationClassGroupID: settings.GraduationClassGroupID,
		JuniorClassGroupID:     settings.JuniorClassGroupID,
		TransferRetentionYears: settings.TransferRetentionYears,
		Terms:                  settings.Terms,
		ClassGroups:            groups,
		UpdatedAt:              settings.UpdatedAt,
	}
}
