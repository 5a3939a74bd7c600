package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-fees-api/internal/dto"
	"github.com/noah-isme/gema-fees-api/internal/service"
	"github.com/noah-isme/gema-fees-api/internal/utils"
)

// SettingsHandler exposes the billing configuration.
type SettingsHandler struct {
	service service.SettingsService
	logger  zerolog.Logger
}

// NewSettingsHandler creates a new handler instance.
func NewSettingsHandler(service service.SettingsService, logger zerolog.Logger) *SettingsHandler {
	return &SettingsHandler{
		service: service,
		logger:  logger.With().Str("component", "settings_handler").Logger(),
	}
}

// Register attaches the settings routes.
func (h *SettingsHandler) Register(router fiber.Router, access Access) {
	router.Get("/settings", h.get)
	router.Put("/settings", guard(access.Admin), h.update)
}

func (h *SettingsHandler) get(c *fiber.Ctx) error {
	settings, err := h.service.Get(c.UserContext())
	if err != nil {
		return sendServiceError(c, h.logger, err, "load settings")
	}

	return utils.SendSuccess(c, "settings retrieved", dto.NewSettingsResponse(settings))
}

func (h *SettingsHandler) update(c *fiber.Ctx) error {
	var req dto.SettingsUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	settings, err := h.service.Update(c.UserContext(), req)
	if err != nil {
		return sendServiceError(c, h.logger, err, "update settings")
	}

	requestLogger(h.logger, c).Info().Uint("actor_id", userIDFromContext(c)).Msg("settings updated")
	return utils.SendSuccess(c, "settings updated", dto.NewSettingsResponse(settings))
}
