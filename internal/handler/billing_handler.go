package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-fees-api/internal/dto"
	"github.com/noah-isme/gema-fees-api/internal/service"
	"github.com/noah-isme/gema-fees-api/internal/utils"
)

// BillingHandler exposes per-student schedule, summary, payment and late fee endpoints.
type BillingHandler struct {
	service service.BillingService
	logger  zerolog.Logger
}

// NewBillingHandler creates a new handler instance.
func NewBillingHandler(service service.BillingService, logger zerolog.Logger) *BillingHandler {
	return &BillingHandler{
		service: service,
		logger:  logger.With().Str("component", "billing_handler").Logger(),
	}
}

// Register attaches the student billing routes.
func (h *BillingHandler) Register(router fiber.Router, access Access) {
	students := router.Group("/students/:id")
	students.Get("/schedule", guard(access.Self), h.previewSchedule)
	students.Post("/schedule", guard(access.Admin), h.regenerateSchedule)
	students.Get("/summary", guard(access.Self), h.summary)
	students.Post("/payments", guard(access.Staff), guard(access.PaymentLimit), h.recordPayment)
	students.Get("/late-fees", guard(access.Self), h.lateFees)
}

func (h *BillingHandler) previewSchedule(c *fiber.Ctx) error {
	studentID, err := studentIDParam(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	schedule, err := h.service.PreviewSchedule(c.UserContext(), studentID)
	if err != nil {
		return sendServiceError(c, h.logger, err, "generate schedule")
	}

	return utils.SendSuccess(c, "schedule generated", schedule)
}

func (h *BillingHandler) regenerateSchedule(c *fiber.Ctx) error {
	studentID, err := studentIDParam(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	schedule, err := h.service.RegenerateSchedule(c.UserContext(), studentID)
	if err != nil {
		return sendServiceError(c, h.logger, err, "regenerate schedule")
	}

	return utils.SendSuccess(c, "schedule regenerated", schedule)
}

func (h *BillingHandler) summary(c *fiber.Ctx) error {
	studentID, err := studentIDParam(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	summary, err := h.service.GetSummary(c.UserContext(), studentID)
	if err != nil {
		return sendServiceError(c, h.logger, err, "load billing summary")
	}

	if summary.CacheHit {
		c.Set("X-Cache", "HIT")
	} else {
		c.Set("X-Cache", "MISS")
	}

	return utils.SendSuccess(c, "billing summary retrieved", summary)
}

func (h *BillingHandler) recordPayment(c *fiber.Ctx) error {
	studentID, err := studentIDParam(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var req dto.PaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	summary, err := h.service.RecordPayment(c.UserContext(), studentID, req)
	if err != nil {
		return sendServiceError(c, h.logger, err, "record payment")
	}

	requestLogger(h.logger, c).Info().
		Uint("student_id", studentID).
		Uint("recorded_by", userIDFromContext(c)).
		Msg("payment accepted")

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "payment recorded", summary)
}

func (h *BillingHandler) lateFees(c *fiber.Ctx) error {
	studentID, err := studentIDParam(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	fees, err := h.service.LateFees(c.UserContext(), studentID)
	if err != nil {
		return sendServiceError(c, h.logger, err, "compute late fees")
	}

	return utils.SendSuccess(c, "late fees computed", fees)
}
