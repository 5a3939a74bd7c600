package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-fees-api/internal/billing"
	"github.com/noah-isme/gema-fees-api/internal/dto"
	"github.com/noah-isme/gema-fees-api/internal/models"
	"github.com/noah-isme/gema-fees-api/internal/observability"
	"github.com/noah-isme/gema-fees-api/internal/repository"
)

const paymentTolerance = 0.01

// BillingService exposes schedule generation, aggregation and payment recording.
type BillingService interface {
	PreviewSchedule(ctx context.Context, studentID uint) (dto.ScheduleResponse, error)
	RegenerateSchedule(ctx context.Context, studentID uint) (dto.ScheduleResponse, error)
	GetSummary(ctx context.Context, studentID uint) (dto.BillingSummaryResponse, error)
	RecordPayment(ctx context.Context, studentID uint, req dto.PaymentRequest) (dto.BillingSummaryResponse, error)
	LateFees(ctx context.Context, studentID uint) (dto.LateFeeListResponse, error)
}

// PaymentRecordedEvent is published after a payment is stored.
type PaymentRecordedEvent struct {
	StudentID    uint    `json:"student_id"`
	Kind         string  `json:"kind"`
	AcademicYear int     `json:"academic_year"`
	Period       int     `json:"period"`
	Amount       float64 `json:"amount"`
	Outstanding  float64 `json:"outstanding"`
	Note         string  `json:"note,omitempty"`
}

type billingService struct {
	students  repository.BillingStudentRepository
	settings  SettingsService
	cache     *redis.Client
	cacheTTL  time.Duration
	events    EventPublisher
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	now       func() time.Time
}

// NewBillingService wires the billing service.
func NewBillingService(students repository.BillingStudentRepository, settings SettingsService, cache *redis.Client, ttl time.Duration, events EventPublisher, validate *validator.Validate, logger zerolog.Logger) BillingService {
	return &billingService{
		students:  students,
		settings:  settings,
		cache:     cache,
		cacheTTL:  ttl,
		events:    events,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "billing_service").Logger(),
		now:       time.Now,
	}
}

func (s *billingService) PreviewSchedule(ctx context.Context, studentID uint) (dto.ScheduleResponse, error) {
	student, settings, err := s.load(ctx, studentID)
	if err != nil {
		return dto.ScheduleResponse{}, err
	}

	schedule := s.generate(student, settings)
	return dto.NewScheduleResponse(student.ID, settings.BillingCycle, schedule), nil
}

func (s *billingService) RegenerateSchedule(ctx context.Context, studentID uint) (dto.ScheduleResponse, error) {
	student, settings, err := s.load(ctx, studentID)
	if err != nil {
		return dto.ScheduleResponse{}, err
	}

	schedule := s.generate(student, settings)
	student.FeePayments, student.TransportPayments = billing.MergeSchedule(student.FeePayments, student.TransportPayments, schedule)
	student = billing.RefreshTotals(student, settings, s.now())

	if err := s.students.Save(ctx, &student); err != nil {
		return dto.ScheduleResponse{}, fmt.Errorf("save schedule: %w", err)
	}
	invalidateStudentCache(ctx, s.cache, s.logger, student.ID)

	s.logger.Info().
		Uint("student_id", student.ID).
		Int("academic_year", schedule.AcademicYear).
		Int("periods", len(schedule.FeePeriods)).
		Msg("schedule regenerated")

	return dto.NewScheduleResponse(student.ID, settings.BillingCycle, schedule), nil
}

func (s *billingService) GetSummary(ctx context.Context, studentID uint) (dto.BillingSummaryResponse, error) {
	key := summaryCacheKey(studentID)

	var cached dto.BillingSummaryResponse
	if readCache(ctx, s.cache, s.logger, key, &cached) {
		s.logger.Debug().Uint("student_id", studentID).Msg("summary cache hit")
		cached.CacheHit = true
		return cached, nil
	}

	student, settings, err := s.load(ctx, studentID)
	if err != nil {
		return dto.BillingSummaryResponse{}, err
	}

	response := s.summarize(student, settings)
	writeCache(ctx, s.cache, s.logger, key, response, s.cacheTTL)

	return response, nil
}

func (s *billingService) RecordPayment(ctx context.Context, studentID uint, req dto.PaymentRequest) (dto.BillingSummaryResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.BillingSummaryResponse{}, err
	}

	kind := strings.ToLower(strings.TrimSpace(req.Kind))
	if kind == "" {
		kind = dto.PaymentKindTuition
	}

	student, settings, err := s.load(ctx, studentID)
	if err != nil {
		return dto.BillingSummaryResponse{}, err
	}

	paidAt := s.now().UTC()
	if req.PaidAt != nil && !req.PaidAt.IsZero() {
		paidAt = req.PaidAt.UTC()
	}

	var outstanding float64
	switch kind {
	case dto.PaymentKindTransport:
		outstanding, err = applyTransportPayment(&student, req, paidAt)
	default:
		outstanding, err = applyTuitionPayment(&student, req, paidAt)
	}
	if err != nil {
		return dto.BillingSummaryResponse{}, err
	}

	student = billing.RefreshTotals(student, settings, s.now())
	if err := s.students.Save(ctx, &student); err != nil {
		return dto.BillingSummaryResponse{}, fmt.Errorf("save payment: %w", err)
	}

	invalidateStudentCache(ctx, s.cache, s.logger, student.ID)
	observability.PaymentsRecorded().WithLabelValues(kind).Inc()

	event := PaymentRecordedEvent{
		StudentID:    student.ID,
		Kind:         kind,
		AcademicYear: req.AcademicYear,
		Period:       req.Period,
		Amount:       req.Amount,
		Outstanding:  outstanding,
		Note:         strings.TrimSpace(s.sanitizer.Sanitize(req.Note)),
	}
	if err := s.events.Publish(ctx, SubjectPaymentRecorded, event); err != nil {
		s.logger.Warn().Err(err).Uint("student_id", student.ID).Msg("failed to publish payment event")
	}

	s.logger.Info().
		Uint("student_id", student.ID).
		Str("kind", kind).
		Int("period", req.Period).
		Float64("amount", req.Amount).
		Msg("payment recorded")

	return s.summarize(student, settings), nil
}

func (s *billingService) LateFees(ctx context.Context, studentID uint) (dto.LateFeeListResponse, error) {
	student, settings, err := s.load(ctx, studentID)
	if err != nil {
		return dto.LateFeeListResponse{}, err
	}

	items := billing.LateFees(student, settings, s.now())
	response := dto.LateFeeListResponse{StudentID: student.ID, Items: items}
	for _, item := range items {
		response.Total += item.Total
	}
	response.Total = roundCents(response.Total)

	return response, nil
}

func (s *billingService) load(ctx context.Context, studentID uint) (models.Student, models.AppSettings, error) {
	student, err := s.students.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Student{}, models.AppSettings{}, ErrStudentNotFound
		}
		return models.Student{}, models.AppSettings{}, fmt.Errorf("load student: %w", err)
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return models.Student{}, models.AppSettings{}, err
	}

	return student, settings, nil
}

func (s *billingService) generate(student models.Student, settings models.AppSettings) billing.Schedule {
	group := billing.FindClassGroup(settings, student.ClassGroupID)
	if group == nil {
		s.logger.Warn().
			Uint("student_id", student.ID).
			Uint("class_group_id", student.ClassGroupID).
			Msg("class group not configured; tuition zeroed")
	}

	schedule := billing.GenerateSchedule(student, group, settings)
	return billing.CarryOverPayments(schedule, student.FeePayments, student.TransportPayments, settings)
}

func (s *billingService) summarize(student models.Student, settings models.AppSettings) dto.BillingSummaryResponse {
	now := s.now()
	return dto.BillingSummaryResponse{
		StudentID:    student.ID,
		Name:         student.Name,
		ClassGroupID: student.ClassGroupID,
		AcademicYear: student.AcademicYear,
		Totals:       billing.Aggregate(student, settings, now),
		GeneratedAt:  now.UTC(),
	}
}

func applyTuitionPayment(student *models.Student, req dto.PaymentRequest, paidAt time.Time) (float64, error) {
	for i := range student.FeePayments {
		period := &student.FeePayments[i]
		if period.AcademicYear != req.AcademicYear || period.Period != req.Period {
			continue
		}

		settled := billing.SettlePeriod(*period)
		if err := checkPayment(settled.Outstanding, req.Amount); err != nil {
			return 0, err
		}

		period.AmountPaid = roundCents(settled.AmountPaid + req.Amount)
		period.PaidDate = &paidAt
		*period = billing.SettlePeriod(*period)
		return period.Outstanding, nil
	}

	return 0, fmt.Errorf("%w: academic year %d period %d", ErrPeriodNotFound, req.AcademicYear, req.Period)
}

func applyTransportPayment(student *models.Student, req dto.PaymentRequest, paidAt time.Time) (float64, error) {
	for i := range student.TransportPayments {
		month := &student.TransportPayments[i]
		if month.AcademicYear != req.AcademicYear || month.Month != req.Period {
			continue
		}

		settled := billing.SettleTransport(*month)
		if err := checkPayment(settled.Outstanding, req.Amount); err != nil {
			return 0, err
		}

		month.AmountPaid = roundCents(settled.AmountPaid + req.Amount)
		month.PaidDate = &paidAt
		*month = billing.SettleTransport(*month)
		return month.Outstanding, nil
	}

	return 0, fmt.Errorf("%w: academic year %d transport month %d", ErrPeriodNotFound, req.AcademicYear, req.Period)
}

func checkPayment(outstanding, amount float64) error {
	if outstanding <= paymentTolerance {
		return fmt.Errorf("%w: period is already settled", ErrInvalidPayment)
	}
	if amount > outstanding+paymentTolerance {
		return fmt.Errorf("%w: amount %.2f exceeds outstanding %.2f", ErrInvalidPayment, amount, outstanding)
	}
	return nil
}
