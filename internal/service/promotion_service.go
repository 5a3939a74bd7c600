package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/noah-isme/gema-fees-api/internal/billing"
	"github.com/noah-isme/gema-fees-api/internal/dto"
	"github.com/noah-isme/gema-fees-api/internal/models"
	"github.com/noah-isme/gema-fees-api/internal/observability"
	"github.com/noah-isme/gema-fees-api/internal/repository"
)

// PromotionActor identifies who triggered a promotion run.
type PromotionActor struct {
	ID   uint
	Role string
}

// PromotionService evaluates and commits end-of-year promotion.
type PromotionService interface {
	Preview(ctx context.Context, req dto.PromotionRunRequest) (dto.PromotionRunResponse, error)
	Run(ctx context.Context, req dto.PromotionRunRequest, actor PromotionActor) (dto.PromotionRunResponse, error)
	History(ctx context.Context, limit int) ([]models.PromotionRun, error)
	Transfers(ctx context.Context) ([]models.TransferredStudent, error)
}

// PromotionCompletedEvent is published after a committed run.
type PromotionCompletedEvent struct {
	RunID        string `json:"run_id"`
	SuccessCount int    `json:"success_count"`
	FailureCount int    `json:"failure_count"`
	Promoted     int    `json:"promoted"`
	Graduated    int    `json:"graduated"`
	Retained     int    `json:"retained"`
}

type promotionService struct {
	students  repository.BillingStudentRepository
	runs      repository.PromotionRepository
	settings  SettingsService
	cache     *redis.Client
	events    EventPublisher
	validator *validator.Validate
	limit     int
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewPromotionService wires the promotion service. limit bounds concurrent evaluations.
func NewPromotionService(students repository.BillingStudentRepository, runs repository.PromotionRepository, settings SettingsService, cache *redis.Client, events EventPublisher, validate *validator.Validate, limit int, logger zerolog.Logger) PromotionService {
	return &promotionService{
		students:  students,
		runs:      runs,
		settings:  settings,
		cache:     cache,
		events:    events,
		validator: validate,
		limit:     limit,
		logger:    logger.With().Str("component", "promotion_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/gema-fees-api/internal/service/promotion"),
		now:       time.Now,
	}
}

func (s *promotionService) Preview(ctx context.Context, req dto.PromotionRunRequest) (dto.PromotionRunResponse, error) {
	ctx, span := s.tracer.Start(ctx, "promotion.preview")
	defer span.End()

	batch, _, err := s.evaluate(ctx, req, span)
	if err != nil {
		return dto.PromotionRunResponse{}, err
	}

	return dto.NewPromotionRunResponse(batch, true), nil
}

func (s *promotionService) Run(ctx context.Context, req dto.PromotionRunRequest, actor PromotionActor) (dto.PromotionRunResponse, error) {
	ctx, span := s.tracer.Start(ctx, "promotion.run")
	defer span.End()
	span.SetAttributes(attribute.Int64("promotion.actor_id", int64(actor.ID)))

	batch, roster, err := s.evaluate(ctx, req, span)
	if err != nil {
		return dto.PromotionRunResponse{}, err
	}

	now := s.now()
	for i := range batch.Transfers {
		snapshot, err := json.Marshal(roster[batch.Transfers[i].StudentID])
		if err != nil {
			s.logger.Warn().Err(err).Uint("student_id", batch.Transfers[i].StudentID).Msg("failed to snapshot leaver")
			continue
		}
		batch.Transfers[i].Snapshot = datatypes.JSON(snapshot)
	}

	response := dto.NewPromotionRunResponse(batch, false)
	response.RunID = uuid.NewString()

	failures := make([]interface{}, 0, len(batch.Failures))
	for _, failure := range batch.Failures {
		failures = append(failures, map[string]interface{}{
			"student_id": failure.StudentID,
			"reason":     failure.Reason,
			"retained":   failure.Retained,
		})
	}

	run := &models.PromotionRun{
		ID:           response.RunID,
		ActorID:      actor.ID,
		ActorRole:    actor.Role,
		SuccessCount: response.SuccessCount,
		FailureCount: response.FailureCount,
		Promoted:     response.Promoted,
		Graduated:    response.Graduated,
		Retained:     response.Retained,
		Summary: datatypes.JSONMap{
			"class_group_id": req.ClassGroupID,
			"failures":       failures,
		},
		CreatedAt: now,
	}

	commit := repository.PromotionCommit{Promoted: batch.Promoted, Transfers: batch.Transfers, Run: run}
	if err := s.runs.Commit(ctx, commit); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit_failed")
		return dto.PromotionRunResponse{}, fmt.Errorf("commit promotion run: %w", err)
	}

	if purged, err := s.runs.PurgeExpiredTransfers(ctx, now); err != nil {
		s.logger.Warn().Err(err).Msg("failed to purge expired transfer records")
	} else if purged > 0 {
		s.logger.Info().Int64("purged", purged).Msg("expired transfer records removed")
	}

	purgeBillingCache(ctx, s.cache, s.logger)
	recordOutcomes(batch)

	event := PromotionCompletedEvent{
		RunID:        response.RunID,
		SuccessCount: response.SuccessCount,
		FailureCount: response.FailureCount,
		Promoted:     response.Promoted,
		Graduated:    response.Graduated,
		Retained:     response.Retained,
	}
	if err := s.events.Publish(ctx, SubjectPromotionCompleted, event); err != nil {
		s.logger.Warn().Err(err).Str("run_id", response.RunID).Msg("failed to publish promotion event")
	}

	s.logger.Info().
		Str("run_id", response.RunID).
		Uint("actor_id", actor.ID).
		Int("success", response.SuccessCount).
		Int("failure", response.FailureCount).
		Msg("promotion run committed")

	return response, nil
}

func (s *promotionService) evaluate(ctx context.Context, req dto.PromotionRunRequest, span trace.Span) (billing.PromotionBatch, map[uint]models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		span.SetStatus(codes.Error, "validation_failed")
		return billing.PromotionBatch{}, nil, err
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		span.RecordError(err)
		return billing.PromotionBatch{}, nil, err
	}

	filter := repository.BillingStudentFilter{Status: models.StudentStatusActive, ClassGroupID: req.ClassGroupID}
	students, err := s.students.List(ctx, filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "roster_lookup_failed")
		return billing.PromotionBatch{}, nil, fmt.Errorf("load roster: %w", err)
	}

	batch := billing.EvaluateBatch(ctx, students, settings, s.now(), s.limit)

	span.SetAttributes(
		attribute.Int("promotion.students", len(students)),
		attribute.Int("promotion.success", batch.SuccessCount),
		attribute.Int("promotion.failure", batch.FailureCount),
	)

	roster := make(map[uint]models.Student, len(students))
	for _, student := range students {
		roster[student.ID] = student
	}

	return batch, roster, nil
}

func recordOutcomes(batch billing.PromotionBatch) {
	for _, decision := range batch.Decisions {
		observability.PromotionOutcomes().WithLabelValues(string(decision.Outcome)).Inc()
	}
	for _, failure := range batch.Failures {
		if !failure.Retained {
			observability.PromotionOutcomes().WithLabelValues("error").Inc()
		}
	}
}

// History lists committed runs, newest first.
func (s *promotionService) History(ctx context.Context, limit int) ([]models.PromotionRun, error) {
	runs, err := s.runs.ListRuns(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list promotion runs: %w", err)
	}
	return runs, nil
}

// Transfers lists archived leavers still inside their retention window.
func (s *promotionService) Transfers(ctx context.Context) ([]models.TransferredStudent, error) {
	if _, err := s.runs.PurgeExpiredTransfers(ctx, s.now()); err != nil {
		s.logger.Warn().Err(err).Msg("failed to purge expired transfers")
	}

	transfers, err := s.runs.ListTransfers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	return transfers, nil
}
