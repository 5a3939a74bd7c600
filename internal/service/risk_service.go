package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-fees-api/internal/billing"
	"github.com/noah-isme/gema-fees-api/internal/dto"
	"github.com/noah-isme/gema-fees-api/internal/models"
	"github.com/noah-isme/gema-fees-api/internal/observability"
	"github.com/noah-isme/gema-fees-api/internal/repository"
)

// RiskService scores collection risk for single students and the active roster.
type RiskService interface {
	Assess(ctx context.Context, studentID uint) (dto.RiskAssessmentResponse, error)
	Fleet(ctx context.Context) (dto.FleetRiskResponse, error)
}

type riskService struct {
	students repository.BillingStudentRepository
	settings SettingsService
	cache    *redis.Client
	cacheTTL time.Duration
	limit    int
	logger   zerolog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// NewRiskService wires the risk analyzer. limit bounds concurrent assessments.
func NewRiskService(students repository.BillingStudentRepository, settings SettingsService, cache *redis.Client, ttl time.Duration, limit int, logger zerolog.Logger) RiskService {
	return &riskService{
		students: students,
		settings: settings,
		cache:    cache,
		cacheTTL: ttl,
		limit:    limit,
		logger:   logger.With().Str("component", "risk_service").Logger(),
		tracer:   otel.Tracer("github.com/noah-isme/gema-fees-api/internal/service/risk"),
		now:      time.Now,
	}
}

func (s *riskService) Assess(ctx context.Context, studentID uint) (dto.RiskAssessmentResponse, error) {
	student, err := s.students.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.RiskAssessmentResponse{}, ErrStudentNotFound
		}
		return dto.RiskAssessmentResponse{}, fmt.Errorf("load student: %w", err)
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return dto.RiskAssessmentResponse{}, err
	}

	now := s.now()
	assessment := billing.Assess(student, settings, now)
	observability.RiskAssessments().WithLabelValues(string(assessment.Tier)).Inc()

	return dto.RiskAssessmentResponse{RiskAssessment: assessment, Name: student.Name, GeneratedAt: now.UTC()}, nil
}

func (s *riskService) Fleet(ctx context.Context) (dto.FleetRiskResponse, error) {
	var cached dto.FleetRiskResponse
	if readCache(ctx, s.cache, s.logger, fleetRiskCacheKey, &cached) {
		cached.CacheHit = true
		return cached, nil
	}

	ctx, span := s.tracer.Start(ctx, "risk.fleet")
	defer span.End()

	students, err := s.students.List(ctx, repository.BillingStudentFilter{Status: models.StudentStatusActive})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "roster_lookup_failed")
		return dto.FleetRiskResponse{}, fmt.Errorf("load roster: %w", err)
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		span.RecordError(err)
		return dto.FleetRiskResponse{}, err
	}

	report, err := billing.AssessFleet(ctx, students, settings, s.now(), s.limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fleet_assessment_failed")
		return dto.FleetRiskResponse{}, err
	}

	names := make(map[uint]string, len(students))
	for _, student := range students {
		names[student.ID] = student.Name
	}

	response := dto.FleetRiskResponse{
		Assessments:      make([]dto.RiskAssessmentResponse, 0, len(report.Assessments)),
		TierCounts:       report.TierCounts,
		TotalOutstanding: report.TotalOutstanding,
		GeneratedAt:      report.GeneratedAt.UTC(),
	}
	for _, assessment := range report.Assessments {
		observability.RiskAssessments().WithLabelValues(string(assessment.Tier)).Inc()
		response.Assessments = append(response.Assessments, dto.RiskAssessmentResponse{
			RiskAssessment: assessment,
			Name:           names[assessment.StudentID],
			GeneratedAt:    response.GeneratedAt,
		})
	}

	span.SetAttributes(
		attribute.Int("risk.students", len(students)),
		attribute.Int("risk.critical", report.TierCounts[billing.RiskTierCritical]),
		attribute.Float64("risk.total_outstanding", report.TotalOutstanding),
	)

	writeCache(ctx, s.cache, s.logger, fleetRiskCacheKey, response, s.cacheTTL)
	s.logger.Info().Int("students", len(students)).Float64("total_outstanding", report.TotalOutstanding).Msg("fleet risk analysed")

	return response, nil
}
