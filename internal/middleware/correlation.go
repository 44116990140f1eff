package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// CorrelationHeader carries the request correlation id in and out of the API.
const CorrelationHeader = "X-Correlation-ID"

const correlationLocal = "correlation_id"

type correlationIDKey struct{}

// CorrelationID reuses an inbound X-Correlation-ID (or X-Request-ID) or mints
// a new one, echoes it on the response and binds it to the user context so
// services can forward it on published events.
func CorrelationID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := sanitizeCorrelation(c.Get(CorrelationHeader))
		if id == "" {
			id = sanitizeCorrelation(c.Get("X-Request-ID"))
		}
		if id == "" {
			id = uuid.NewString()
		}

		c.Locals(correlationLocal, id)
		c.Set(CorrelationHeader, id)
		c.SetUserContext(ContextWithCorrelation(c.UserContext(), id))

		return c.Next()
	}
}

// NewCorrelationContext binds a fresh id with the given prefix, for work that
// does not start from a request such as scheduler sweeps.
func NewCorrelationContext(ctx context.Context, prefix string) context.Context {
	id := uuid.NewString()
	if prefix != "" {
		id = prefix + "-" + id
	}
	return ContextWithCorrelation(ctx, id)
}

// CorrelationIDFromContext extracts the correlation identifier from context, if present.
func CorrelationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(correlationIDKey{}).(string)
	return id
}

// GetCorrelationID returns the correlation identifier bound to the active request.
func GetCorrelationID(c *fiber.Ctx) string {
	if c == nil {
		return ""
	}
	if id, ok := c.Locals(correlationLocal).(string); ok && id != "" {
		return id
	}
	return CorrelationIDFromContext(c.UserContext())
}

// ContextWithCorrelation attaches the correlation identifier to the provided context.
func ContextWithCorrelation(ctx context.Context, correlationID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	correlationID = sanitizeCorrelation(correlationID)
	if correlationID == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationIDKey{}, correlationID)
}

// sanitizeCorrelation trims the id and drops values too long to be a header echo.
func sanitizeCorrelation(value string) string {
	value = strings.TrimSpace(value)
	if len(value) > 128 {
		return ""
	}
	return value
}
