package dto

import "time"

// SeedStudent describes one student loaded by the seeding endpoint.
type SeedStudent struct {
	Name             string    `json:"name" validate:"required,max=255"`
	AdmissionDate    time.Time `json:"admission_date" validate:"required"`
	ClassGroupID     uint      `json:"class_group_id" validate:"required"`
	AcademicYear     int       `json:"academic_year" validate:"omitempty,min=1900,max=2200"`
	HasTransport     bool      `json:"has_transport"`
	TransportFee     float64   `json:"transport_fee" validate:"gte=0"`
	CustomFeeEnabled bool      `json:"custom_fee_enabled"`
	CustomFee        float64   `json:"custom_fee" validate:"gte=0"`
	TransportWaivers []int     `json:"transport_waivers" validate:"dive,min=1,max=12"`
}

// SeedRosterRequest loads a batch of students with generated schedules.
type SeedRosterRequest struct {
	Students []SeedStudent `json:"students" validate:"required,min=1,max=1000,dive"`
}
