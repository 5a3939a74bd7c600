package service

import (
	"fmt"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-fees-api/internal/billing"
	"github.com/noah-isme/gema-fees-api/internal/database"
	"github.com/noah-isme/gema-fees-api/internal/models"
	"github.com/noah-isme/gema-fees-api/internal/repository"
)

type billingFixture struct {
	db       *gorm.DB
	redis    *redis.Client
	mini     *miniredis.Miniredis
	students repository.BillingStudentRepository
	settings SettingsService
	runs     repository.PromotionRepository
	events   EventPublisher
	validate *validator.Validate
}

func newBillingFixture(t *testing.T) *billingFixture {
	t.Helper()

	mini, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mini.Close)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	settingsRepo := repository.NewSettingsRepository(db)
	stored := models.AppSettings{
		BillingCycle:           models.BillingCycleMonthly,
		PaymentDueDay:          1,
		PromotionThreshold:     75,
		AcademicYearStartMonth: 1,
		TransferRetentionYears: 5,
		ClassGroups: []models.ClassGroup{
			{ID: 5, Name: "Grade 5", StandardFee: 30, Enabled: true, GradeRank: 5},
			{ID: 6, Name: "Grade 6", StandardFee: 35, Enabled: true, GradeRank: 6},
			{ID: 7, Name: "Grade 7", StandardFee: 40, Enabled: true, GradeRank: 7},
		},
	}
	require.NoError(t, settingsRepo.Save(t.Context(), &stored))

	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	validate := validator.New()

	return &billingFixture{
		db:       db,
		redis:    client,
		mini:     mini,
		students: repository.NewBillingStudentRepository(db),
		settings: NewSettingsService(settingsRepo, models.AppSettings{}, client, validate, zerolog.Nop()),
		runs:     repository.NewPromotionRepository(db),
		events:   NewEventPublisher(nil, "fees", zerolog.Nop()),
		validate: validate,
	}
}

// enroll stores a student in classGroupID with a generated 2024 schedule. paid
// settles every period on its due date.
func (f *billingFixture) enroll(t *testing.T, name string, classGroupID uint, paid bool) models.Student {
	t.Helper()

	settings, err := f.settings.Get(t.Context())
	require.NoError(t, err)

	student := models.Student{
		Name:          name,
		AdmissionDate: time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC),
		ClassGroupID:  classGroupID,
		AcademicYear:  2024,
		Status:        models.StudentStatusActive,
	}
	schedule := billing.GenerateSchedule(student, billing.FindClassGroup(settings, classGroupID), settings)
	student.FeePayments = schedule.FeePeriods
	if paid {
		for i := range student.FeePayments {
			due := student.FeePayments[i].DueDate
			student.FeePayments[i].AmountPaid = student.FeePayments[i].AmountDue
			student.FeePayments[i].PaidDate = &due
			student.FeePayments[i] = billing.SettlePeriod(student.FeePayments[i])
		}
	}

	require.NoError(t, f.students.Save(t.Context(), &student))
	return student
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
