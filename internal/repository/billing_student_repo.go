package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-fees-api/internal/models"
)

// BillingStudentFilter narrows the roster used by batch operations.
type BillingStudentFilter struct {
	Status       string
	ClassGroupID *uint
}

// BillingStudentRepository persists students together with their payment history.
type BillingStudentRepository interface {
	List(ctx context.Context, filter BillingStudentFilter) ([]models.Student, error)
	GetByID(ctx context.Context, id uint) (models.Student, error)
	Save(ctx context.Context, student *models.Student) error
	SaveAll(ctx context.Context, students []models.Student) error
}

type billingStudentRepository struct {
	db *gorm.DB
}

// NewBillingStudentRepository constructs the student repository.
func NewBillingStudentRepository(db *gorm.DB) BillingStudentRepository {
	return &billingStudentRepository{db: db}
}

func (r *billingStudentRepository) List(ctx context.Context, filter BillingStudentFilter) ([]models.Student, error) {
	query := withPaymentHistory(r.db.WithContext(ctx).Model(&models.Student{}))
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.ClassGroupID != nil {
		query = query.Where("class_group_id = ?", *filter.ClassGroupID)
	}

	var students []models.Student
	if err := query.Order("id ASC").Find(&students).Error; err != nil {
		return nil, err
	}

	return students, nil
}

func (r *billingStudentRepository) GetByID(ctx context.Context, id uint) (models.Student, error) {
	var student models.Student
	if err := withPaymentHistory(r.db.WithContext(ctx)).Where("id = ?", id).First(&student).Error; err != nil {
		return models.Student{}, err
	}

	return student, nil
}

func (r *billingStudentRepository) Save(ctx context.Context, student *models.Student) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return saveStudent(tx, student)
	})
}

// SaveAll stores every student in one transaction; a failure stores none.
func (r *billingStudentRepository) SaveAll(ctx context.Context, students []models.Student) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range students {
			if err := saveStudent(tx, &students[i]); err != nil {
				return fmt.Errorf("student %d: %w", i, err)
			}
		}
		return nil
	})
}

func withPaymentHistory(query *gorm.DB) *gorm.DB {
	return query.
		Preload("FeePayments", func(db *gorm.DB) *gorm.DB {
			return db.Order("academic_year ASC, period ASC")
		}).
		Preload("TransportPayments", func(db *gorm.DB) *gorm.DB {
			return db.Order("academic_year ASC, month ASC")
		})
}

// saveStudent writes the student row and replaces its payment history.
func saveStudent(tx *gorm.DB, student *models.Student) error {
	if err := tx.Omit(clause.Associations).Save(student).Error; err != nil {
		return err
	}

	if err := tx.Where("student_id = ?", student.ID).Delete(&models.FeePaymentPeriod{}).Error; err != nil {
		return err
	}
	if err := tx.Where("student_id = ?", student.ID).Delete(&models.TransportPayment{}).Error; err != nil {
		return err
	}

	for i := range student.FeePayments {
		student.FeePayments[i].ID = 0
		student.FeePayments[i].StudentID = student.ID
	}
	if len(student.FeePayments) > 0 {
		if err := tx.Create(&student.FeePayments).Error; err != nil {
			return err
		}
	}

	for i := range student.TransportPayments {
		student.TransportPayments[i].ID = 0
		student.TransportPayments[i].StudentID = student.ID
	}
	if len(student.TransportPayments) > 0 {
		if err := tx.Create(&student.TransportPayments).Error; err != nil {
			return err
		}
	}

	return nil
}
