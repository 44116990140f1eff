package utils_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-studyplan-api/internal/utils"
)

type envelope struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Data    json.RawMessage        `json:"data"`
	Meta    map[string]interface{} `json:"meta"`
	Details map[string]interface{} `json:"details"`
}

func call(t *testing.T, handler fiber.Handler) (int, envelope) {
	t.Helper()
	app := fiber.New()
	app.Get("/", handler)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func TestOKCarriesPaginationMeta(t *testing.T) {
	status, env := call(t, func(c *fiber.Ctx) error {
		plans := []map[string]interface{}{{"id": 1, "status": "ASSIGNED"}}
		return utils.OK(c, plans, "", map[string]int{"page": 1, "total_items": 1})
	})

	require.Equal(t, fiber.StatusOK, status)
	require.True(t, env.Success)
	require.Equal(t, "success", env.Message)
	require.JSONEq(t, `[{"id":1,"status":"ASSIGNED"}]`, string(env.Data))
	require.Equal(t, float64(1), env.Meta["total_items"])
	require.Nil(t, env.Details)
}

func TestSendSuccessWithStatusDefaults(t *testing.T) {
	status, env := call(t, func(c *fiber.Ctx) error {
		return utils.SendSuccessWithStatus(c, 0, "", fiber.Map{"id": 7})
	})

	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, "success", env.Message)
	require.JSONEq(t, `{"id":7}`, string(env.Data))
}

func TestFailCarriesErrorCode(t *testing.T) {
	status, env := call(t, func(c *fiber.Ctx) error {
		return utils.Fail(c, fiber.StatusConflict, "task is already COMPLETED", fiber.Map{"code": "INVALID_TRANSITION"})
	})

	require.Equal(t, fiber.StatusConflict, status)
	require.False(t, env.Success)
	require.Equal(t, "task is already COMPLETED", env.Message)
	require.Equal(t, "INVALID_TRANSITION", env.Details["code"])
	require.Empty(t, env.Data)
}
