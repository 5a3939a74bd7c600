package models

import (
	"time"

	"gorm.io/datatypes"
)

// TransferredStudent records a student that left the active roll after a promotion run.
type TransferredStudent struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	StudentID         uint           `gorm:"uniqueIndex;not null" json:"student_id"`
	Name              string         `gorm:"size:255" json:"name"`
	FinalClassGroupID uint           `json:"final_class_group_id"`
	Reason            string         `gorm:"type:text" json:"reason"`
	TotalPaid         float64        `json:"total_paid"`
	TotalOwed         float64        `json:"total_owed"`
	TransferredAt     time.Time      `json:"transferred_at"`
	RetainUntil       time.Time      `gorm:"index" json:"retain_until"`
	Snapshot          datatypes.JSON `json:"snapshot"`
}

// PromotionRun is the audit record of a committed promotion run.
type PromotionRun struct {
	ID           string            `gorm:"primaryKey;size:36" json:"id"`
	ActorID      uint              `json:"actor_id"`
	ActorRole    string            `gorm:"size:32" json:"actor_role"`
	SuccessCount int               `json:"success_count"`
	FailureCount int               `json:"failure_count"`
	Promoted     int               `json:"promoted"`
	Graduated    int               `json:"graduated"`
	Retained     int               `json:"retained"`
	Summary      datatypes.JSONMap `json:"summary"`
	CreatedAt    time.Time         `json:"created_at"`
}
