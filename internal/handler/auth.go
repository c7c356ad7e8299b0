package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/class-enrollment/internal/apperr"
	"github.com/iliyamo/class-enrollment/internal/auth"
)

// AuthHandler mints bearer credentials.
type AuthHandler struct {
	Gate *auth.Gate
}

func NewAuthHandler(g *auth.Gate) *AuthHandler { return &AuthHandler{Gate: g} }

type tokenResp struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

// IssueToken signs the posted claims into a one-hour credential.  The body
// must contain at least an email claim.
//
// This endpoint is unauthenticated: the client is trusted to have verified
// the email with its identity provider first, so anyone who can reach it can
// obtain a credential for any email.
func (h *AuthHandler) IssueToken(c echo.Context) error {
	var claims map[string]any
	if err := c.Bind(&claims); err != nil {
		return respondError(c, apperr.Wrap(apperr.KindInvalidInput, "invalid body", err))
	}
	tok, exp, err := h.Gate.Issue(claims)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, tokenResp{Token: tok, Expires: exp})
}
