package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

	"github.com/iliyamo/class-enrollment/internal/apperr"
	"github.com/iliyamo/class-enrollment/internal/auth"
)

// JWTAuth returns an Echo middleware that validates the Bearer credential in
// the Authorization header and stores the caller's auth.Identity in the
// request context under auth.ContextKey.  Handlers read it back with
// auth.FromContext.  Any failure is answered with 401 and the request goes
// no further.
func JWTAuth(gate *auth.Gate) echo.MiddlewareFunc {
	// The outer function returns a middleware function.  Echo executes this
	// once when registering the middleware.
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		// The returned handler is invoked for each incoming HTTP request.
		return func(c echo.Context) error {
			id, err := gate.Authenticate(c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				return writeError(c, err)
			}
			c.Set(auth.ContextKey, id)
			return next(c)
		}
	}
}

// writeError answers with the shared error envelope.
func writeError(c echo.Context, err error) error {
	return c.JSON(apperr.Status(apperr.KindOf(err)), apperr.Body(err))
}
