package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func TestCorrelationIDPropagatesToUserContext(t *testing.T) {
	app := fiber.New()
	app.Use(CorrelationID())

	var seen string
	app.Get("/", func(c *fiber.Ctx) error {
		seen = CorrelationIDFromContext(c.UserContext())
		return c.SendStatus(fiber.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(CorrelationHeader, "plan-sync-42")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, "plan-sync-42", resp.Header.Get(CorrelationHeader))
	require.Equal(t, "plan-sync-42", seen)
}

func TestCorrelationIDGeneratesWhenMissingOrOversized(t *testing.T) {
	app := fiber.New()
	app.Use(CorrelationID())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(CorrelationHeader, strings.Repeat("x", 200))
	resp, err := app.Test(req)
	require.NoError(t, err)

	id := resp.Header.Get(CorrelationHeader)
	require.NotEmpty(t, id)
	require.Len(t, id, 36)
}

func TestNewCorrelationContextPrefixesID(t *testing.T) {
	ctx := NewCorrelationContext(context.Background(), "retention")
	require.True(t, strings.HasPrefix(CorrelationIDFromContext(ctx), "retention-"))
	require.Empty(t, CorrelationIDFromContext(context.Background()))
}
