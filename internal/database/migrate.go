package database

import (
	"gorm.io/gorm"

	"github.com/noah-isme/gema-fees-api/internal/models"
)

// Migrate creates or updates the billing tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.ClassGroup{},
		&models.AppSettings{},
		&models.Student{},
		&models.FeePaymentPeriod{},
		&models.TransportPayment{},
		&models.TransferredStudent{},
		&models.PromotionRun{},
	)
}
