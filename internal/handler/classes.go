package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/class-enrollment/internal/model"
	"github.com/iliyamo/class-enrollment/internal/service"
)

// ClassHandler serves the class catalog.
type ClassHandler struct {
	Catalog *service.Catalog
}

func NewClassHandler(cat *service.Catalog) *ClassHandler { return &ClassHandler{Catalog: cat} }

// classReq is the body of POST /classes.  instructorEmail is always taken
// from the credential, status always starts as pending.
type classReq struct {
	Name           string  `json:"name" validate:"required,max=200"`
	Image          string  `json:"image" validate:"omitempty,url"`
	InstructorName string  `json:"instructorName" validate:"max=200"`
	Price          float64 `json:"price" validate:"gt=0"`
	AvailableSeats int     `json:"availableSeats" validate:"gte=0"`
}

type seatsReq struct {
	AvailableSeats *int `json:"availableSeats" validate:"required,gte=0"`
	Enroll         *int `json:"enroll" validate:"required,gte=0"`
}

// Create submits a class for approval.
func (h *ClassHandler) Create(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return respondError(c, err)
	}
	var req classReq
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	classID, err := h.Catalog.Submit(ctx, id, model.Class{
		Name:           req.Name,
		Image:          req.Image,
		InstructorName: req.InstructorName,
		Price:          req.Price,
		AvailableSeats: req.AvailableSeats,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"insertedId": classID})
}

func (h *ClassHandler) List(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	classes, err := h.Catalog.List(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, classes)
}

func (h *ClassHandler) Get(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	class, err := h.Catalog.Get(ctx, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, class)
}

// SetSeats overwrites the seat counters of :id, creating the record when it
// does not exist.
func (h *ClassHandler) SetSeats(c echo.Context) error {
	var req seatsReq
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Catalog.SetSeats(ctx, c.Param("id"), *req.AvailableSeats, *req.Enroll); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"acknowledged": true})
}

// Approve moves :id from pending to approved.  Approving twice is a no-op.
func (h *ClassHandler) Approve(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Catalog.Approve(ctx, c.Param("id")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"acknowledged": true, "status": model.ClassApproved})
}
