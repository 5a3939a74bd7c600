package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-fees-api/internal/models"
)

const settingsRowID = 1

// SettingsRepository stores the singleton billing settings and the class groups.
type SettingsRepository interface {
	Get(ctx context.Context) (models.AppSettings, bool, error)
	Save(ctx context.Context, settings *models.AppSettings) error
}

type settingsRepository struct {
	db *gorm.DB
}

// NewSettingsRepository constructs the settings repository.
func NewSettingsRepository(db *gorm.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

// Get returns the stored settings. found is false when nothing has been saved yet;
// class groups are still loaded in that case.
func (r *settingsRepository) Get(ctx context.Context) (models.AppSettings, bool, error) {
	db := r.db.WithContext(ctx)

	var settings models.AppSettings
	found := true
	if err := db.Where("id = ?", settingsRowID).First(&settings).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return models.AppSettings{}, false, err
		}
		found = false
		settings = models.AppSettings{}
	}

	var groups []models.ClassGroup
	if err := db.Order("grade_rank ASC, id ASC").Find(&groups).Error; err != nil {
		return models.AppSettings{}, false, err
	}
	settings.ClassGroups = groups

	return settings, found, nil
}

// Save upserts the settings row and replaces the class group table.
func (r *settingsRepository) Save(ctx context.Context, settings *models.AppSettings) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		settings.ID = settingsRowID
		if err := tx.Save(settings).Error; err != nil {
			return err
		}

		keep := make([]uint, 0, len(settings.ClassGroups))
		for i := range settings.ClassGroups {
			if err := tx.Save(&settings.ClassGroups[i]).Error; err != nil {
				return err
			}
			keep = append(keep, settings.ClassGroups[i].ID)
		}

		purge := tx.Model(&models.ClassGroup{})
		if len(keep) > 0 {
			purge = purge.Where("id NOT IN ?", keep)
		} else {
			purge = purge.Where("1 = 1")
		}
		return purge.Delete(&models.ClassGroup{}).Error
	})
}
