package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-workflow/internal/auth"
	apperrors "github.com/spec-kit/helpdesk-workflow/pkg/util"
)

func currentPrincipal(c *fiber.Ctx) (*auth.Principal, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return principal, nil
}

// parseBody decodes and validates a JSON body. An empty body decodes to the zero value.
func parseBody(c *fiber.Ctx, out any, validate func(any) error) error {
	if len(c.Body()) > 0 {
		if err := c.BodyParser(out); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	return validate(out)
}

func queryInt(c *fiber.Ctx, key string, fallback, max int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val < 0 {
		return fallback
	}
	if max > 0 && val > max {
		return max
	}
	return val
}
