package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-fees-api/internal/billing"
	"github.com/noah-isme/gema-fees-api/internal/dto"
	"github.com/noah-isme/gema-fees-api/internal/models"
	"github.com/noah-isme/gema-fees-api/internal/repository"
)

var (
	// ErrSeedDisabled indicates the seeding tools are disabled by configuration.
	ErrSeedDisabled = errors.New("seeding is disabled")
	// ErrSeedUnauthorized indicates the provided token is invalid.
	ErrSeedUnauthorized = errors.New("invalid seed token")
)

// SeedService loads demo rosters with generated schedules.
type SeedService interface {
	SeedRoster(ctx context.Context, token string, req dto.SeedRosterRequest) (int, error)
}

type seedService struct {
	students  repository.BillingStudentRepository
	settings  SettingsService
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	enabled   bool
	token     string
	logger    zerolog.Logger
}

// NewSeedService constructs a seeding service.
func NewSeedService(students repository.BillingStudentRepository, settings SettingsService, validate *validator.Validate, enabled bool, token string, logger zerolog.Logger) SeedService {
	return &seedService{
		students:  students,
		settings:  settings,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		enabled:   enabled,
		token:     token,
		logger:    logger.With().Str("component", "seed_service").Logger(),
	}
}

func (s *seedService) SeedRoster(ctx context.Context, token string, req dto.SeedRosterRequest) (int, error) {
	if !s.enabled {
		return 0, ErrSeedDisabled
	}
	if !s.validToken(token) {
		return 0, ErrSeedUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return 0, err
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return 0, err
	}
	cal := billing.NewCalendar(settings)

	students := make([]models.Student, 0, len(req.Students))
	for i, item := range req.Students {
		group := billing.FindClassGroup(settings, item.ClassGroupID)
		if group == nil {
			return 0, fmt.Errorf("student %d: class group %d: %w", i, item.ClassGroupID, billing.ErrClassGroupNotFound)
		}

		year := item.AcademicYear
		if year == 0 {
			year = cal.AcademicYearOf(item.AdmissionDate)
		}

		student := models.Student{
			Name:             strings.TrimSpace(s.sanitizer.Sanitize(item.Name)),
			AdmissionDate:    item.AdmissionDate.UTC(),
			ClassGroupID:     item.ClassGroupID,
			AcademicYear:     year,
			HasTransport:     item.HasTransport,
			TransportFee:     item.TransportFee,
			CustomFeeEnabled: item.CustomFeeEnabled,
			CustomFee:        item.CustomFee,
			TransportWaivers: item.TransportWaivers,
			Status:           models.StudentStatusActive,
		}

		schedule := billing.GenerateSchedule(student, group, settings)
		student.FeePayments = schedule.FeePeriods
		student.TransportPayments = schedule.TransportPayments
		student.TotalOwed = billing.Aggregate(student, settings, item.AdmissionDate).TotalOwed
		students = append(students, student)
	}

	if err := s.students.SaveAll(ctx, students); err != nil {
		return 0, fmt.Errorf("seed roster: %w", err)
	}
	seeded := len(students)

	s.logger.Info().Int("seeded", seeded).Msg("roster seeded")
	return seeded, nil
}

func (s *seedService) validToken(token string) bool {
	expected := strings.TrimSpace(s.token)
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.TrimSpace(token))) == 1
}
