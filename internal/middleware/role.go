package middleware // middleware provides shared request processing for handlers

import (
	"github.com/labstack/echo/v4" // echo provides middleware chaining and context

	"github.com/iliyamo/class-enrollment/internal/apperr"
	"github.com/iliyamo/class-enrollment/internal/auth"
	"github.com/iliyamo/class-enrollment/internal/model"
)

// RequireRole returns a middleware function that enforces that the
// authenticated user has one of the specified roles.  The role is looked up
// in the user store by the caller's email on every request; token claims
// are never trusted for roles.  It must run after JWTAuth.  A caller without
// an allowed role gets 403; a store failure gets 503.
func RequireRole(gate *auth.Gate, roles ...model.Role) echo.MiddlewareFunc {
	// Build a set of allowed roles for constant‑time lookups.
	allowed := make(map[model.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := auth.FromContext(c)
			if !ok {
				return writeError(c, apperr.New(apperr.KindUnauthorized, "unauthorized access"))
			}
			role, err := gate.RoleOf(c.Request().Context(), id)
			if err != nil {
				return writeError(c, err)
			}
			if !allowed[role] {
				return writeError(c, apperr.New(apperr.KindForbidden, "forbidden access"))
			}
			// Otherwise call the next handler in the chain
			return next(c)
		}
	}
}
