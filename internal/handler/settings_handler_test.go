package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-fees-api/internal/dto"
	"github.com/noah-isme/gema-fees-api/internal/handler"
	"github.com/noah-isme/gema-fees-api/internal/middleware"
	"github.com/noah-isme/gema-fees-api/internal/models"
	"github.com/noah-isme/gema-fees-api/internal/service"
)

type stubSettingsService struct {
	settings  models.AppSettings
	updateErr error
	lastReq   dto.SettingsUpdateRequest
}

func (s *stubSettingsService) Get(context.Context) (models.AppSettings, error) {
	return s.settings, nil
}

func (s *stubSettingsService) Update(_ context.Context, req dto.SettingsUpdateRequest) (models.AppSettings, error) {
	s.lastReq = req
	if s.updateErr != nil {
		return models.AppSettings{}, s.updateErr
	}
	return s.settings, nil
}

func newSettingsApp(svc service.SettingsService, role string) *fiber.App {
	app := fiber.New()
	group := app.Group("/api/v1/billing", func(c *fiber.Ctx) error {
		c.Locals("user_id", uint(2))
		c.Locals("user_role", role)
		return c.Next()
	})
	handler.NewSettingsHandler(svc, zerolog.Nop()).Register(group, handler.Access{Admin: middleware.RequireRole(middleware.RoleAdmin)})
	return app
}

func TestSettingsHandlerGet(t *testing.T) {
	svc := &stubSettingsService{settings: models.AppSettings{
		BillingCycle:  models.BillingCycleTermly,
		PaymentDueDay: 5,
		ClassGroups:   []models.ClassGroup{{ID: 1, Name: "Grade 1", StandardFee: 30, Enabled: true}},
	}}
	app := newSettingsApp(svc, middleware.RoleGuardian)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/billing/settings", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	payload := decode(t, resp)
	var settings dto.SettingsResponse
	require.NoError(t, json.Unmarshal(payload.Data, &settings))
	require.Equal(t, models.BillingCycleTermly, settings.BillingCycle)
	require.Len(t, settings.ClassGroups, 1)
}

func TestSettingsHandlerUpdate(t *testing.T) {
	svc := &stubSettingsService{settings: models.AppSettings{BillingCycle: models.BillingCycleMonthly}}

	body := []byte(`{"billing_cycle":"monthly","payment_due_day":5,"promotion_threshold":75,"academic_year_start_month":1}`)

	forbidden := newSettingsApp(svc, middleware.RoleBursar)
	req := httptest.NewRequest(http.MethodPut, "/api/v1/billing/settings", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := forbidden.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	app := newSettingsApp(svc, middleware.RoleAdmin)
	req = httptest.NewRequest(http.MethodPut, "/api/v1/billing/settings", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, 75.0, svc.lastReq.PromotionThreshold)

	svc.updateErr = fmt.Errorf("%w: bad terms", service.ErrInvalidSettings)
	req = httptest.NewRequest(http.MethodPut, "/api/v1/billing/settings", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
