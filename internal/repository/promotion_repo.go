package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-fees-api/internal/models"
)

// PromotionCommit is everything a promotion run writes.
type PromotionCommit struct {
	Promoted  []models.Student
	Transfers []models.TransferredStudent
	Run       *models.PromotionRun
}

// PromotionRepository persists promotion runs and the off-roll archive.
type PromotionRepository interface {
	Commit(ctx context.Context, commit PromotionCommit) error
	ListRuns(ctx context.Context, limit int) ([]models.PromotionRun, error)
	ListTransfers(ctx context.Context) ([]models.TransferredStudent, error)
	PurgeExpiredTransfers(ctx context.Context, now time.Time) (int64, error)
}

type promotionRepository struct {
	db *gorm.DB
}

// NewPromotionRepository constructs the promotion repository.
func NewPromotionRepository(db *gorm.DB) PromotionRepository {
	return &promotionRepository{db: db}
}

// Commit writes promoted students, archives leavers and records the run atomically.
func (r *promotionRepository) Commit(ctx context.Context, commit PromotionCommit) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range commit.Promoted {
			if err := saveStudent(tx, &commit.Promoted[i]); err != nil {
				return err
			}
		}

		for i := range commit.Transfers {
			transfer := &commit.Transfers[i]
			upsert := clause.OnConflict{
				Columns:   []clause.Column{{Name: "student_id"}},
				UpdateAll: true,
			}
			if err := tx.Clauses(upsert).Create(transfer).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.Student{}).
				Where("id = ?", transfer.StudentID).
				Update("status", models.StudentStatusGraduated).Error; err != nil {
				return err
			}
		}

		if commit.Run != nil {
			if err := tx.Create(commit.Run).Error; err != nil {
				return err
			}
		}

		return nil
	})
}

func (r *promotionRepository) ListRuns(ctx context.Context, limit int) ([]models.PromotionRun, error) {
	query := r.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var runs []models.PromotionRun
	if err := query.Find(&runs).Error; err != nil {
		return nil, err
	}

	return runs, nil
}

func (r *promotionRepository) ListTransfers(ctx context.Context) ([]models.TransferredStudent, error) {
	var transfers []models.TransferredStudent
	if err := r.db.WithContext(ctx).Order("transferred_at DESC").Find(&transfers).Error; err != nil {
		return nil, err
	}

	return transfers, nil
}

// PurgeExpiredTransfers deletes archived leavers whose retention window has passed.
func (r *promotionRepository) PurgeExpiredTransfers(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("retain_until < ?", now).Delete(&models.TransferredStudent{})
	return result.RowsAffected, result.Error
}
