package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func TestMetricsHandlerExposesStudyPlanCollectors(t *testing.T) {
	RegisterMetrics()
	TaskTransitions().WithLabelValues("complete", "ok").Inc()
	RetentionRuns().WithLabelValues("disabled").Inc()

	app := fiber.New()
	app.Get("/metrics", MetricsHandler())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	text := string(body)
	require.True(t, strings.Contains(text, `studyplan_task_transitions_total{outcome="ok",transition="complete"}`), text)
	require.True(t, strings.Contains(text, `studyplan_retention_runs_total{outcome="disabled"}`), text)
}
