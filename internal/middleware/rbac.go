package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-studyplan-api/internal/utils"
)

// RequireRole admits callers whose role is one of roles. The role must have
// been placed in locals by JWTProtected; a missing role is treated as 403
// because authentication has already passed by the time this runs.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		if normalized := normalizeRoleValue(role); normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}

	return func(c *fiber.Ctx) error {
		role := normalizeRoleValue(c.Locals("user_role"))
		if _, ok := allowed[role]; !ok {
			message := "insufficient permissions"
			if role != "" {
				message = fmt.Sprintf("role %s may not access this resource", role)
			}
			return utils.Fail(c, fiber.StatusForbidden, message, fiber.Map{"code": CodeForbidden})
		}
		return c.Next()
	}
}

func normalizeRoleValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.ToLower(strings.TrimSpace(v))
	case fmt.Stringer:
		return strings.ToLower(strings.TrimSpace(v.String()))
	default:
		return strings.ToLower(strings.TrimSpace(fmt.Sprintf("%v", value)))
	}
}
