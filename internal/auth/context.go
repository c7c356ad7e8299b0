package auth

import "github.com/labstack/echo/v4"

// ContextKey is the echo context key under which the JWT middleware stores
// the caller's Identity.
const ContextKey = "identity"

// FromContext returns the Identity stored by the JWT middleware.
func FromContext(c echo.Context) (Identity, bool) {
	id, ok := c.Get(ContextKey).(Identity)
	return id, ok
}
