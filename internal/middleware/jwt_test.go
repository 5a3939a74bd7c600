package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signed(t *testing.T, method jwt.SigningMethod, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func protectedApp() *fiber.App {
	app := fiber.New()
	app.Get("/me", JWTProtected(testSecret), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"id": c.Locals("user_id"), "role": c.Locals("user_role")})
	})
	return app
}

func TestJWTProtectedAcceptsValidToken(t *testing.T) {
	token := signed(t, jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "42",
		"role": "Bursar",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := protectedApp().Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestJWTProtectedRejectsBadTokens(t *testing.T) {
	expired := signed(t, jwt.SigningMethodHS256, jwt.MapClaims{"sub": "42", "exp": time.Now().Add(-time.Hour).Unix()})
	noSubject := signed(t, jwt.SigningMethodHS256, jwt.MapClaims{"role": "admin"})

	cases := map[string]string{
		"missing header": "",
		"wrong scheme":   "Basic abc",
		"expired":        "Bearer " + expired,
		"no subject":     "Bearer " + noSubject,
		"garbage":        "Bearer not-a-token",
	}

	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			resp, err := protectedApp().Test(req)
			require.NoError(t, err)
			require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestRoleFromClaimsDefaultsToGuardian(t *testing.T) {
	require.Equal(t, RoleAdmin, roleFromClaims(jwt.MapClaims{"roles": []interface{}{"", "ADMIN"}}))
	require.Equal(t, RoleGuardian, roleFromClaims(jwt.MapClaims{}))
}
