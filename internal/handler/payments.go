package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/class-enrollment/internal/apperr"
	"github.com/iliyamo/class-enrollment/internal/model"
	"github.com/iliyamo/class-enrollment/internal/repository"
	"github.com/iliyamo/class-enrollment/internal/service"
)

// PaymentHandler serves intent creation, settlement and payment history.
type PaymentHandler struct {
	Coordinator *service.Coordinator
	Payments    repository.PaymentStore
}

func NewPaymentHandler(co *service.Coordinator, payments repository.PaymentStore) *PaymentHandler {
	return &PaymentHandler{Coordinator: co, Payments: payments}
}

type intentReq struct {
	Price float64 `json:"price"`
}

// settleReq is the body of POST /payments.  An email field, if sent, is
// ignored; the payer is always the authenticated caller.
type settleReq struct {
	TransactionID string   `json:"transactionId" validate:"required,max=255"`
	Price         float64  `json:"price"`
	Currency      string   `json:"currency" validate:"omitempty,len=3,alpha"`
	CartItems     []string `json:"cartItems" validate:"required,min=1,dive,required"`
	ClassItems    []string `json:"classItems"`
	ItemNames     []string `json:"itemNames"`
}

type insertResult struct {
	Acknowledged bool   `json:"acknowledged"`
	InsertedID   string `json:"insertedId,omitempty"`
}

type deleteResult struct {
	Acknowledged bool  `json:"acknowledged"`
	DeletedCount int64 `json:"deletedCount"`
}

type settleResp struct {
	InsertResult insertResult        `json:"insertResult"`
	DeleteResult deleteResult        `json:"deleteResult"`
	Status       model.PaymentStatus `json:"status,omitempty"`
	Error        map[string]string   `json:"error,omitempty"`
}

// CreateIntent asks the processor for a payment intent and returns its
// client secret.  An Idempotency-Key header is forwarded when present.
func (h *PaymentHandler) CreateIntent(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return respondError(c, err)
	}
	var req intentReq
	if err := c.Bind(&req); err != nil {
		return respondError(c, apperr.Wrap(apperr.KindInvalidInput, "invalid body", err))
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	secret, err := h.Coordinator.RequestIntent(ctx, id, req.Price, strings.TrimSpace(c.Request().Header.Get("Idempotency-Key")))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"clientSecret": secret})
}

// Settle records a confirmed charge and retires the cart items it paid for.
// Both steps are reported: a recorded payment whose items could not all be
// removed answers 202 with a partial_settlement error, and a repeated
// transactionId answers 409 already_settled.
func (h *PaymentHandler) Settle(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return respondError(c, err)
	}
	var req settleReq
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	res, err := h.Coordinator.Settle(ctx, id, service.SettleRequest{
		ChargeID:  req.TransactionID,
		Price:     req.Price,
		Currency:  req.Currency,
		CartItems: req.CartItems,
		ClassIDs:  req.ClassItems,
		ItemNames: req.ItemNames,
	})
	if err != nil {
		switch apperr.KindOf(err) {
		case apperr.KindPartialSettlement, apperr.KindAlreadySettled:
			if res.PaymentID == "" {
				return respondError(c, err)
			}
			body := settleBody(res)
			body.Error = apperr.Body(err)["error"].(map[string]string)
			return c.JSON(apperr.Status(apperr.KindOf(err)), body)
		default:
			return respondError(c, err)
		}
	}
	return c.JSON(http.StatusOK, settleBody(res))
}

func settleBody(res service.SettlementResult) settleResp {
	return settleResp{
		InsertResult: insertResult{Acknowledged: res.PaymentID != "", InsertedID: res.PaymentID},
		DeleteResult: deleteResult{Acknowledged: res.Removed == int64(res.Requested), DeletedCount: res.Removed},
		Status:       res.Status,
	}
}

// History lists the payments of :email.  Callers may only
// read their own history.
func (h *PaymentHandler) History(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return respondError(c, err)
	}
	email := strings.ToLower(strings.TrimSpace(c.Param("email")))
	if email != id.Email {
		return respondError(c, apperr.New(apperr.KindForbidden, "forbidden access"))
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	payments, err := h.Payments.ListByEmail(ctx, email)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, payments)
}
