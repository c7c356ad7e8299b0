package handler // handler defines http handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/class-enrollment/internal/apperr"
	"github.com/iliyamo/class-enrollment/internal/auth"
)

// requestTimeout bounds every store and processor call made by a handler.
const requestTimeout = 5 * time.Second

func withTimeout(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// respondError writes err with the shared error envelope.  Unclassified
// errors become 500 and their text is never sent.
func respondError(c echo.Context, err error) error {
	if apperr.KindOf(err) == apperr.KindInternal {
		c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
	}
	return c.JSON(apperr.Status(apperr.KindOf(err)), apperr.Body(err))
}

// caller returns the identity stored by the JWT middleware.
func caller(c echo.Context) (auth.Identity, error) {
	id, ok := auth.FromContext(c)
	if !ok {
		return auth.Identity{}, apperr.New(apperr.KindUnauthorized, "unauthorized access")
	}
	return id, nil
}

// bindAndValidate decodes the body into v and runs its validate tags.
func bindAndValidate(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return apperr.Wrap(apperr.KindInvalidInput, "invalid body", err)
	}
	if err := c.Validate(v); err != nil {
		return err
	}
	return nil
}

// Validator adapts go-playground/validator to echo.Validator.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	return &Validator{v: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate reports the first failing field as invalid input.
func (cv *Validator) Validate(i any) error {
	err := cv.v.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return apperr.Wrap(apperr.KindInvalidInput, fe.Field()+" failed "+fe.Tag()+" validation", err)
	}
	return apperr.Wrap(apperr.KindInvalidInput, "invalid body", err)
}

// HTTPErrorHandler renders echo's own errors (unknown route, bad method,
// panics recovered by middleware) with the shared envelope.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		kind := apperr.KindInternal
		switch he.Code {
		case http.StatusNotFound, http.StatusMethodNotAllowed:
			kind = apperr.KindNotFound
		case http.StatusUnauthorized:
			kind = apperr.KindUnauthorized
		case http.StatusForbidden:
			kind = apperr.KindForbidden
		case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType:
			kind = apperr.KindInvalidInput
		}
		msg := http.StatusText(he.Code)
		_ = c.JSON(he.Code, apperr.Body(apperr.New(kind, msg)))
		return
	}
	_ = respondError(c, err)
}
