package middleware

// identity.go defines helpers shared across middleware files.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/class-enrollment/internal/auth"
)

// callerKey returns the authenticated caller's email for use in rate limit
// keys, or "guest" when the request is anonymous.
func callerKey(c echo.Context) string {
	if id, ok := auth.FromContext(c); ok && id.Email != "" {
		return id.Email
	}
	return "guest"
}
