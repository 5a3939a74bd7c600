package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-fees-api/internal/billing"
	"github.com/noah-isme/gema-fees-api/internal/dto"
	"github.com/noah-isme/gema-fees-api/internal/service"
	"github.com/noah-isme/gema-fees-api/internal/utils"
)

// SeedHandler exposes tooling endpoints for loading demo rosters.
type SeedHandler struct {
	service service.SeedService
	logger  zerolog.Logger
}

// NewSeedHandler constructs a seed handler.
func NewSeedHandler(service service.SeedService, logger zerolog.Logger) *SeedHandler {
	return &SeedHandler{
		service: service,
		logger:  logger.With().Str("component", "seed_handler").Logger(),
	}
}

// Register wires seed routes.
func (h *SeedHandler) Register(router fiber.Router) {
	router.Post("/roster", h.roster)
}

func (h *SeedHandler) roster(c *fiber.Ctx) error {
	var payload dto.SeedRosterRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	seeded, err := h.service.SeedRoster(c.UserContext(), c.Get("X-Seed-Token"), payload)
	if err != nil {
		return h.seedError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "roster seeded", fiber.Map{"seeded": seeded})
}

func (h *SeedHandler) seedError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrSeedDisabled):
		return utils.SendError(c, fiber.StatusForbidden, "seeding disabled")
	case errors.Is(err, service.ErrSeedUnauthorized):
		return utils.SendError(c, fiber.StatusForbidden, "invalid token")
	case errors.Is(err, billing.ErrClassGroupNotFound):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, err.Error())
	default:
		return sendServiceError(c, h.logger, err, "seed roster")
	}
}
