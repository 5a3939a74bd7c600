package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-fees-api/internal/database"
	"github.com/noah-isme/gema-fees-api/internal/dto"
	"github.com/noah-isme/gema-fees-api/internal/models"
	"github.com/noah-isme/gema-fees-api/internal/repository"
)

func newSettingsTestService(t *testing.T) SettingsService {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	defaults := models.AppSettings{
		BillingCycle:           models.BillingCycleTermly,
		PaymentDueDay:          40,
		PromotionThreshold:     80,
		AcademicYearStartMonth: 9,
	}
	return NewSettingsService(repository.NewSettingsRepository(db), defaults, nil, validator.New(), zerolog.Nop())
}

func TestSettingsServiceFallsBackToDefaults(t *testing.T) {
	svc := newSettingsTestService(t)

	settings, err := svc.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, models.BillingCycleTermly, settings.BillingCycle)
	require.Equal(t, 28, settings.PaymentDueDay)
	require.Equal(t, 80.0, settings.PromotionThreshold)
	require.Equal(t, 9, settings.AcademicYearStartMonth)
	require.Len(t, settings.Terms, 3)
}

func TestSettingsServiceUpdate(t *testing.T) {
	svc := newSettingsTestService(t)
	ctx := context.Background()

	req := dto.SettingsUpdateRequest{
		BillingCycle:           "monthly",
		PaymentDueDay:          10,
		PromotionThreshold:     70,
		AcademicYearStartMonth: 1,
		TransferRetentionYears: 3,
		ClassGroups: []dto.ClassGroupInput{
			{ID: 1, Name: "<b>Grade 1</b>", StandardFee: 25, Enabled: true, GradeRank: 1},
			{ID: 2, Name: "Grade 2", StandardFee: 30, Enabled: true, GradeRank: 2},
		},
	}
	graduation := uint(2)
	req.GraduationClassGroupID = &graduation

	updated, err := svc.Update(ctx, req)
	require.NoError(t, err)
	require.Equal(t, "Grade 1", updated.ClassGroups[0].Name)

	loaded, err := svc.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, models.BillingCycleMonthly, loaded.BillingCycle)
	require.Equal(t, 10, loaded.PaymentDueDay)
	require.NotNil(t, loaded.GraduationClassGroupID)
	require.Equal(t, uint(2), *loaded.GraduationClassGroupID)
	require.Len(t, loaded.ClassGroups, 2)
}

func TestSettingsServiceRejectsInconsistentUpdates(t *testing.T) {
	svc := newSettingsTestService(t)
	ctx := context.Background()

	base := dto.SettingsUpdateRequest{
		BillingCycle:           "termly",
		PaymentDueDay:          5,
		PromotionThreshold:     75,
		AcademicYearStartMonth: 1,
		ClassGroups:            []dto.ClassGroupInput{{ID: 1, Name: "Grade 1", Enabled: true}},
	}

	badTerms := base
	badTerms.Terms = [][]int{{1, 3}, {2, 4, 5, 6, 7, 8}, {9, 10, 11, 12}}
	_, err := svc.Update(ctx, badTerms)
	require.ErrorIs(t, err, ErrInvalidSettings)

	unknownGroup := base
	missing := uint(99)
	unknownGroup.JuniorClassGroupID = &missing
	_, err = svc.Update(ctx, unknownGroup)
	require.ErrorIs(t, err, ErrInvalidSettings)

	emptyName := base
	emptyName.ClassGroups = []dto.ClassGroupInput{{ID: 1, Name: "<script></script>"}}
	_, err = svc.Update(ctx, emptyName)
	require.ErrorIs(t, err, ErrInvalidSettings)

	badCycle := base
	badCycle.BillingCycle = "weekly"
	_, err = svc.Update(ctx, badCycle)
	var validationErrors validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrors)
}
