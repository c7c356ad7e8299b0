package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/class-enrollment/internal/service"
)

// EnrolledHandler serves the caller's cart.
type EnrolledHandler struct {
	Enrollment *service.Enrollment
}

func NewEnrolledHandler(e *service.Enrollment) *EnrolledHandler {
	return &EnrolledHandler{Enrollment: e}
}

type enrollReq struct {
	ClassID string `json:"classId" validate:"required"`
}

// Create reserves a seat and adds the class to the caller's cart.
func (h *EnrolledHandler) Create(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return respondError(c, err)
	}
	var req enrollReq
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	item, err := h.Enrollment.Enroll(ctx, id, req.ClassID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"insertedId": item.ID, "item": item})
}

// List returns the cart of ?email=, which must be the caller.
func (h *EnrolledHandler) List(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	items, err := h.Enrollment.List(ctx, id, c.QueryParam("email"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

// Delete removes one of the caller's own cart items and frees its seat.
func (h *EnrolledHandler) Delete(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	if err := h.Enrollment.Remove(ctx, id, c.Param("id")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"deletedCount": 1})
}
