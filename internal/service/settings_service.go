package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-fees-api/internal/billing"
	"github.com/noah-isme/gema-fees-api/internal/dto"
	"github.com/noah-isme/gema-fees-api/internal/models"
	"github.com/noah-isme/gema-fees-api/internal/repository"
)

// SettingsService resolves and updates the billing configuration.
type SettingsService interface {
	Get(ctx context.Context) (models.AppSettings, error)
	Update(ctx context.Context, req dto.SettingsUpdateRequest) (models.AppSettings, error)
}

type settingsService struct {
	repo      repository.SettingsRepository
	defaults  models.AppSettings
	cache     *redis.Client
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

// NewSettingsService builds the settings service. defaults apply until settings are stored.
func NewSettingsService(repo repository.SettingsRepository, defaults models.AppSettings, cache *redis.Client, validate *validator.Validate, logger zerolog.Logger) SettingsService {
	return &settingsService{
		repo:      repo,
		defaults:  defaults,
		cache:     cache,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "settings_service").Logger(),
	}
}

func (s *settingsService) Get(ctx context.Context) (models.AppSettings, error) {
	stored, found, err := s.repo.Get(ctx)
	if err != nil {
		return models.AppSettings{}, fmt.Errorf("load settings: %w", err)
	}

	if !found {
		groups := stored.ClassGroups
		stored = s.defaults
		stored.ClassGroups = groups
	}

	return billing.NormalizeSettings(stored), nil
}

func (s *settingsService) Update(ctx context.Context, req dto.SettingsUpdateRequest) (models.AppSettings, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.AppSettings{}, err
	}

	if len(req.Terms) > 0 && !billing.ValidTerms(req.Terms) {
		return models.AppSettings{}, fmt.Errorf("%w: terms must split the twelve months into three consecutive runs", ErrInvalidSettings)
	}

	groups := make([]models.ClassGroup, 0, len(req.ClassGroups))
	ids := make(map[uint]bool, len(req.ClassGroups))
	for _, input := range req.ClassGroups {
		name := strings.TrimSpace(s.sanitizer.Sanitize(input.Name))
		if name == "" {
			return models.AppSettings{}, fmt.Errorf("%w: class group name empty after sanitization", ErrInvalidSettings)
		}
		if input.ID != 0 {
			if ids[input.ID] {
				return models.AppSettings{}, fmt.Errorf("%w: duplicate class group id %d", ErrInvalidSettings, input.ID)
			}
			ids[input.ID] = true
		}
		groups = append(groups, models.ClassGroup{
			ID:          input.ID,
			Name:        name,
			StandardFee: input.StandardFee,
			Enabled:     input.Enabled,
			GradeRank:   input.GradeRank,
		})
	}

	for _, ref := range []*uint{req.GraduationClassGroupID, req.JuniorClassGroupID} {
		if ref != nil && !ids[*ref] {
			return models.AppSettings{}, fmt.Errorf("%w: class group %d is not configured", ErrInvalidSettings, *ref)
		}
	}

	settings := models.AppSettings{
		BillingCycle:           models.BillingCycle(req.BillingCycle),
		PaymentDueDay:          req.PaymentDueDay,
		PromotionThreshold:     req.PromotionThreshold,
		AcademicYearStartMonth: req.AcademicYearStartMonth,
		GraduationClassGroupID: req.GraduationClassGroupID,
		JuniorClassGroupID:     req.JuniorClassGroupID,
		TransferRetentionYears: req.TransferRetentionYears,
		Terms:                  req.Terms,
		ClassGroups:            groups,
	}

	if err := s.repo.Save(ctx, &settings); err != nil {
		return models.AppSettings{}, fmt.Errorf("save settings: %w", err)
	}

	purgeBillingCache(ctx, s.cache, s.logger)
	s.logger.Info().
		Str("billing_cycle", string(settings.BillingCycle)).
		Int("class_groups", len(settings.ClassGroups)).
		Msg("billing settings updated")

	return billing.NormalizeSettings(settings), nil
}
