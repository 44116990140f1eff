package handler_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-studyplan-api/internal/dto"
	"github.com/noah-isme/gema-studyplan-api/internal/handler"
	"github.com/noah-isme/gema-studyplan-api/internal/service"
)

type stubAggregator struct {
	service.CompletionAggregator
	stats dto.PlanStats
	err   error
}

func (s stubAggregator) StatsForPlan(context.Context, uint) (dto.PlanStats, error) {
	return s.stats, s.err
}

func compileSchema(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	schemaPath, err := filepath.Abs(filepath.Join("testdata", name))
	require.NoError(t, err)

	schema, err := jsonschema.NewCompiler().Compile("file://" + schemaPath)
	require.NoError(t, err)
	return schema
}

func statsApp(aggregator service.CompletionAggregator) *fiber.App {
	h := handler.NewStudyPlanHandler(nil, nil, aggregator, zerolog.Nop())
	app := fiber.New()
	group := app.Group("/api/v2/study/plans", func(c *fiber.Ctx) error {
		c.Locals("user_id", uint(100))
		c.Locals("user_role", "teacher")
		return c.Next()
	})
	h.Register(group, func(c *fiber.Ctx) error { return c.Next() })
	return app
}

func fetchJSON(t *testing.T, app *fiber.App, path string) (int, interface{}) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	var payload interface{}
	require.NoError(t, json.Unmarshal(body, &payload))
	return resp.StatusCode, payload
}

func TestPlanStatsContract(t *testing.T) {
	schema := compileSchema(t, "plan_stats.schema.json")
	app := statsApp(stubAggregator{stats: dto.PlanStats{
		PlanID:             12,
		Completed:          7,
		Verified:           7,
		Total:              15,
		Percentage:         47,
		VerifiedPercentage: 47,
	}})

	status, payload := fetchJSON(t, app, "/api/v2/study/plans/12/stats")
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, schema.Validate(payload))
}

func TestErrorEnvelopeContract(t *testing.T) {
	schema := compileSchema(t, "error.schema.json")

	cases := []struct {
		name   string
		err    error
		path   string
		status int
	}{
		{name: "not found", err: service.ErrNotFound, path: "/api/v2/study/plans/12/stats", status: http.StatusNotFound},
		{name: "internal", err: io.ErrUnexpectedEOF, path: "/api/v2/study/plans/12/stats", status: http.StatusInternalServerError},
		{name: "bad id", path: "/api/v2/study/plans/abc/stats", status: http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := statsApp(stubAggregator{err: tc.err})
			status, payload := fetchJSON(t, app, tc.path)
			require.Equal(t, tc.status, status)
			require.NoError(t, schema.Validate(payload))
		})
	}
}
