package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-fees-api/internal/dto"
	"github.com/noah-isme/gema-fees-api/internal/service"
	"github.com/noah-isme/gema-fees-api/internal/utils"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// PromotionHandler exposes dry-run and committed promotion runs, their history
// and the archive of transferred students.
type PromotionHandler struct {
	service service.PromotionService
	logger  zerolog.Logger
}

// NewPromotionHandler creates a new handler instance.
func NewPromotionHandler(service service.PromotionService, logger zerolog.Logger) *PromotionHandler {
	return &PromotionHandler{
		service: service,
		logger:  logger.With().Str("component", "promotion_handler").Logger(),
	}
}

// Register attaches the promotion routes.
func (h *PromotionHandler) Register(router fiber.Router, access Access) {
	promotions := router.Group("/promotions", guard(access.Admin))
	promotions.Post("/preview", h.preview)
	promotions.Post("/", h.run)
	promotions.Get("/", h.history)
	router.Get("/transfers", guard(access.Admin), h.transfers)
}

func (h *PromotionHandler) preview(c *fiber.Ctx) error {
	req, err := parsePromotionRequest(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.Preview(c.UserContext(), req)
	if err != nil {
		return sendServiceError(c, h.logger, err, "preview promotion")
	}

	return utils.SendSuccess(c, "promotion preview ready", result)
}

func (h *PromotionHandler) run(c *fiber.Ctx) error {
	req, err := parsePromotionRequest(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	actor := service.PromotionActor{ID: userIDFromContext(c), Role: userRoleFromContext(c)}
	result, err := h.service.Run(c.UserContext(), req, actor)
	if err != nil {
		return sendServiceError(c, h.logger, err, "run promotion")
	}

	requestLogger(h.logger, c).Info().
		Str("run_id", result.RunID).
		Uint("actor_id", actor.ID).
		Msg("promotion run completed")

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "promotion run committed", result)
}

func parsePromotionRequest(c *fiber.Ctx) (dto.PromotionRunRequest, error) {
	var req dto.PromotionRunRequest
	if len(c.Body()) == 0 {
		return req, nil
	}
	err := c.BodyParser(&req)
	return req, err
}

func (h *PromotionHandler) history(c *fiber.Ctx) error {
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxHistoryLimit {
			return utils.SendError(c, fiber.StatusBadRequest, "limit must be between 1 and 100")
		}
		limit = parsed
	}

	runs, err := h.service.History(c.UserContext(), limit)
	if err != nil {
		return sendServiceError(c, h.logger, err, "list promotion runs")
	}

	return utils.OK(c, runs, "promotion runs retrieved", fiber.Map{"count": len(runs), "limit": limit})
}

func (h *PromotionHandler) transfers(c *fiber.Ctx) error {
	transfers, err := h.service.Transfers(c.UserContext())
	if err != nil {
		return sendServiceError(c, h.logger, err, "list transfers")
	}

	return utils.OK(c, transfers, "transfers retrieved", fiber.Map{"count": len(transfers)})
}
