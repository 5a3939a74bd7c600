package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-fees-api/internal/service"
	"github.com/noah-isme/gema-fees-api/internal/utils"
)

// RiskHandler exposes collection risk analysis.
type RiskHandler struct {
	service service.RiskService
	logger  zerolog.Logger
}

// NewRiskHandler creates a new handler instance.
func NewRiskHandler(service service.RiskService, logger zerolog.Logger) *RiskHandler {
	return &RiskHandler{
		service: service,
		logger:  logger.With().Str("component", "risk_handler").Logger(),
	}
}

// Register attaches the risk routes.
func (h *RiskHandler) Register(router fiber.Router, access Access) {
	router.Get("/students/:id/risk", guard(access.Staff), h.assess)
	router.Get("/risk", guard(access.Admin), h.fleet)
}

func (h *RiskHandler) assess(c *fiber.Ctx) error {
	studentID, err := studentIDParam(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	assessment, err := h.service.Assess(c.UserContext(), studentID)
	if err != nil {
		return sendServiceError(c, h.logger, err, "assess payment risk")
	}

	return utils.SendSuccess(c, "risk assessed", assessment)
}

func (h *RiskHandler) fleet(c *fiber.Ctx) error {
	report, err := h.service.Fleet(c.UserContext())
	if err != nil {
		return sendServiceError(c, h.logger, err, "analyse roster risk")
	}

	meta := fiber.Map{
		"students":  len(report.Assessments),
		"cache_hit": report.CacheHit,
	}
	return utils.OK(c, report, "roster risk analysed", meta)
}
