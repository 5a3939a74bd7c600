package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-fees-api/internal/database"
	"github.com/noah-isme/gema-fees-api/internal/models"
)

func setupBillingDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func sampleStudent(name string, classGroupID uint) models.Student {
	return models.Student{
		Name:          name,
		AdmissionDate: time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC),
		ClassGroupID:  classGroupID,
		AcademicYear:  2024,
		Status:        models.StudentStatusActive,
		FeePayments: []models.FeePaymentPeriod{
			{AcademicYear: 2024, BillingCycle: models.BillingCycleMonthly, Period: 2, AmountDue: 50, Outstanding: 50},
			{AcademicYear: 2024, BillingCycle: models.BillingCycleMonthly, Period: 1, AmountDue: 50, AmountPaid: 50, Paid: true},
		},
		TransportPayments: []models.TransportPayment{
			{AcademicYear: 2024, Month: 1, MonthName: "January", AmountDue: 10, Active: true},
		},
	}
}

func TestBillingStudentRepositorySaveReplacesHistory(t *testing.T) {
	db := setupBillingDB(t)
	repo := NewBillingStudentRepository(db)
	ctx := context.Background()

	student := sampleStudent("Amina", 5)
	require.NoError(t, repo.Save(ctx, &student))
	require.NotZero(t, student.ID)

	loaded, err := repo.GetByID(ctx, student.ID)
	require.NoError(t, err)
	require.Len(t, loaded.FeePayments, 2)
	require.Equal(t, 1, loaded.FeePayments[0].Period, "expected periods ordered")
	require.Len(t, loaded.TransportPayments, 1)

	loaded.FeePayments = loaded.FeePayments[:1]
	loaded.TransportPayments = nil
	require.NoError(t, repo.Save(ctx, &loaded))

	reloaded, err := repo.GetByID(ctx, student.ID)
	require.NoError(t, err)
	require.Len(t, reloaded.FeePayments, 1)
	require.Empty(t, reloaded.TransportPayments)

	var count int64
	require.NoError(t, db.Model(&models.FeePaymentPeriod{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestBillingStudentRepositorySaveAll(t *testing.T) {
	db := setupBillingDB(t)
	repo := NewBillingStudentRepository(db)
	ctx := context.Background()

	roster := []models.Student{sampleStudent("Amina", 5), sampleStudent("Bayu", 6)}
	require.NoError(t, repo.SaveAll(ctx, roster))
	require.NotZero(t, roster[0].ID)
	require.NotZero(t, roster[1].ID)

	loaded, err := repo.GetByID(ctx, roster[1].ID)
	require.NoError(t, err)
	require.Equal(t, models.BillingCycleMonthly, loaded.FeePayments[0].BillingCycle)

	stored, err := repo.List(ctx, BillingStudentFilter{})
	require.NoError(t, err)
	require.Len(t, stored, 2)
}

func TestBillingStudentRepositoryListFilters(t *testing.T) {
	db := setupBillingDB(t)
	repo := NewBillingStudentRepository(db)
	ctx := context.Background()

	first := sampleStudent("Amina", 5)
	second := sampleStudent("Budi", 6)
	gone := sampleStudent("Citra", 6)
	gone.Status = models.StudentStatusGraduated
	for _, s := range []*models.Student{&first, &second, &gone} {
		require.NoError(t, repo.Save(ctx, s))
	}

	active, err := repo.List(ctx, BillingStudentFilter{Status: models.StudentStatusActive})
	require.NoError(t, err)
	require.Len(t, active, 2)
	require.Len(t, active[0].FeePayments, 2)

	group := uint(6)
	inGroup, err := repo.List(ctx, BillingStudentFilter{Status: models.StudentStatusActive, ClassGroupID: &group})
	require.NoError(t, err)
	require.Len(t, inGroup, 1)
	require.Equal(t, "Budi", inGroup[0].Name)

	_, err = repo.GetByID(ctx, 999)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestSettingsRepositoryRoundTrip(t *testing.T) {
	db := setupBillingDB(t)
	repo := NewSettingsRepository(db)
	ctx := context.Background()

	_, found, err := repo.Get(ctx)
	require.NoError(t, err)
	require.False(t, found)

	settings := models.AppSettings{
		BillingCycle:       models.BillingCycleTermly,
		PaymentDueDay:      10,
		PromotionThreshold: 80,
		Terms:              [][]int{{1, 2, 3}, {4, 5, 6, 7, 8}, {9, 10, 11, 12}},
		ClassGroups: []models.ClassGroup{
			{Name: "Grade 1", StandardFee: 30, Enabled: true, GradeRank: 1},
			{Name: "Grade 2", StandardFee: 35, Enabled: true, GradeRank: 2},
		},
	}
	require.NoError(t, repo.Save(ctx, &settings))

	loaded, found, err := repo.Get(ctx)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, models.BillingCycleTermly, loaded.BillingCycle)
	require.Equal(t, settings.Terms, loaded.Terms)
	require.Len(t, loaded.ClassGroups, 2)

	loaded.ClassGroups = loaded.ClassGroups[1:]
	require.NoError(t, repo.Save(ctx, &loaded))

	again, _, err := repo.Get(ctx)
	require.NoError(t, err)
	require.Len(t, again.ClassGroups, 1)
	require.Equal(t, "Grade 2", again.ClassGroups[0].Name)
}

func TestPromotionRepositoryCommit(t *testing.T) {
	db := setupBillingDB(t)
	students := NewBillingStudentRepository(db)
	repo := NewPromotionRepository(db)
	ctx := context.Background()

	promoted := sampleStudent("Amina", 5)
	leaver := sampleStudent("Budi", 7)
	require.NoError(t, students.Save(ctx, &promoted))
	require.NoError(t, students.Save(ctx, &leaver))

	promoted.ClassGroupID = 6
	promoted.AcademicYear = 2025
	promoted.FeePayments = append(promoted.FeePayments, models.FeePaymentPeriod{AcademicYear: 2025, Period: 1, AmountDue: 35, Outstanding: 35})

	now := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	commit := PromotionCommit{
		Promoted: []models.Student{promoted},
		Transfers: []models.TransferredStudent{{
			StudentID:     leaver.ID,
			Name:          leaver.Name,
			TransferredAt: now,
			RetainUntil:   now.AddDate(5, 0, 0),
			Snapshot:      datatypes.JSON(`{"name":"Budi"}`),
		}},
		Run: &models.PromotionRun{
			ID:           "run-1",
			SuccessCount: 2,
			Promoted:     1,
			Graduated:    1,
			Summary:      datatypes.JSONMap{"promoted": 1},
		},
	}
	require.NoError(t, repo.Commit(ctx, commit))

	reloaded, err := students.GetByID(ctx, promoted.ID)
	require.NoError(t, err)
	require.Equal(t, uint(6), reloaded.ClassGroupID)
	require.Len(t, reloaded.FeePayments, 3)

	graduated, err := students.GetByID(ctx, leaver.ID)
	require.NoError(t, err)
	require.Equal(t, models.StudentStatusGraduated, graduated.Status)

	runs, err := repo.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, 2, runs[0].SuccessCount)

	transfers, err := repo.ListTransfers(ctx)
	require.NoError(t, err)
	require.Len(t, transfers, 1)

	purged, err := repo.PurgeExpiredTransfers(ctx, now.AddDate(6, 0, 0))
	require.NoError(t, err)
	require.Equal(t, int64(1), purged)
}
