package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/class-enrollment/internal/auth"
	"github.com/iliyamo/class-enrollment/internal/model"
	"github.com/iliyamo/class-enrollment/internal/repository"
)

// UserHandler serves registration, the user list and role checks.
type UserHandler struct {
	Users repository.UserStore
	Gate  *auth.Gate
}

func NewUserHandler(users repository.UserStore, g *auth.Gate) *UserHandler {
	return &UserHandler{Users: users, Gate: g}
}

type registerReq struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"max=200"`
	PhotoURL string `json:"photoURL" validate:"omitempty,url"`
}

// Register creates the user unless the email is already known.  A repeat
// registration answers 200 with the stored record.
func (h *UserHandler) Register(c echo.Context) error {
	var req registerReq
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	u, created, err := h.Users.RegisterIfAbsent(ctx, model.User{Email: req.Email, Name: req.Name, PhotoURL: req.PhotoURL})
	if err != nil {
		return respondError(c, err)
	}
	if !created {
		return c.JSON(http.StatusOK, echo.Map{"message": "user already exists", "user": u})
	}
	return c.JSON(http.StatusCreated, echo.Map{"insertedId": u.ID, "user": u})
}

func (h *UserHandler) List(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	users, err := h.Users.List(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, users)
}

// IsAdmin answers {"admin": bool} for the caller's own email only; asking
// about anyone else yields false.
func (h *UserHandler) IsAdmin(c echo.Context) error {
	return h.roleCheck(c, "admin", h.Gate.IsAdmin)
}

// IsInstructor is IsAdmin for the instructor role.
func (h *UserHandler) IsInstructor(c echo.Context) error {
	return h.roleCheck(c, "instructor", h.Gate.IsInstructor)
}

func (h *UserHandler) roleCheck(c echo.Context, field string, check func(context.Context, auth.Identity, string) (bool, error)) error {
	id, err := caller(c)
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	ok, err := check(ctx, id, c.Param("email"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{field: ok})
}

// PromoteAdmin grants the admin role to user :id.
func (h *UserHandler) PromoteAdmin(c echo.Context) error {
	return h.promote(c, model.RoleAdmin)
}

// PromoteInstructor grants the instructor role to user :id.
func (h *UserHandler) PromoteInstructor(c echo.Context) error {
	return h.promote(c, model.RoleInstructor)
}

func (h *UserHandler) promote(c echo.Context, role model.Role) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Users.Promote(ctx, c.Param("id"), role); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"acknowledged": true, "role": role})
}
