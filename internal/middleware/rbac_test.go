package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func roleApp(role interface{}, allowed ...string) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if role != nil {
			c.Locals("user_role", role)
		}
		return c.Next()
	})
	app.Post("/plans", RequireRole(allowed...), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})
	return app
}

func TestRequireRoleAllowsMentorRoles(t *testing.T) {
	for _, role := range []interface{}{"teacher", " Admin "} {
		resp, err := roleApp(role, "teacher", "admin").Test(httptest.NewRequest(http.MethodPost, "/plans", nil))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusCreated, resp.StatusCode, "role %v", role)
	}
}

func TestRequireRoleRejectsWithForbiddenCode(t *testing.T) {
	for _, role := range []interface{}{"student", "mentor", nil} {
		resp, err := roleApp(role, "teacher", "admin").Test(httptest.NewRequest(http.MethodPost, "/plans", nil))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

		var payload struct {
			Success bool `json:"success"`
			Details struct {
				Code string `json:"code"`
			} `json:"details"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
		resp.Body.Close()
		require.False(t, payload.Success)
		require.Equal(t, CodeForbidden, payload.Details.Code)
	}
}
