package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/class-enrollment/internal/auth"
	"github.com/iliyamo/class-enrollment/internal/handler"
	"github.com/iliyamo/class-enrollment/internal/model"
	"github.com/iliyamo/class-enrollment/internal/repository"
	"github.com/iliyamo/class-enrollment/internal/repository/memstore"
	"github.com/iliyamo/class-enrollment/internal/router"
	"github.com/iliyamo/class-enrollment/internal/service"
)

type fakeBroker struct{ calls int32 }

func (b *fakeBroker) CreateIntent(_ context.Context, amountMinor int64, currency, _ string) (string, error) {
	atomic.AddInt32(&b.calls, 1)
	return "pi_secret_" + currency, nil
}

type app struct {
	e      *echo.Echo
	stores repository.Stores
	broker *fakeBroker
}

func newApp(t *testing.T) *app {
	t.Helper()
	stores := memstore.New()
	broker := &fakeBroker{}
	gate := auth.NewGate("test-secret", stores.Users)
	co := service.NewCoordinator(service.CoordinatorConfig{
		Payments: stores.Payments,
		Cart:     stores.Cart,
		Broker:   broker,
	})

	e := echo.New()
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = handler.HTTPErrorHandler
	router.Register(e, router.Deps{
		Gate:     gate,
		Auth:     handler.NewAuthHandler(gate),
		Users:    handler.NewUserHandler(stores.Users, gate),
		Classes:  handler.NewClassHandler(service.NewCatalog(stores.Classes, nil)),
		Enrolled: handler.NewEnrolledHandler(service.NewEnrollment(stores.Classes, stores.Cart, nil)),
		Payments: handler.NewPaymentHandler(co, stores.Payments),
	})
	return &app{e: e, stores: stores, broker: broker}
}

func (a *app) call(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)

	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

// login registers email and returns a credential for it.
func (a *app) login(t *testing.T, email string) (string, string) {
	t.Helper()
	rec, out := a.call(t, http.MethodPost, "/users", "", map[string]any{"email": email, "name": "Test"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	userID := out["insertedId"].(string)

	rec, out = a.call(t, http.MethodPost, "/jwt", "", map[string]any{"email": email})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return out["token"].(string), userID
}

func errKind(out map[string]any) string {
	e, _ := out["error"].(map[string]any)
	k, _ := e["kind"].(string)
	return k
}

// openClass creates and approves a class through the API as an admin.
func (a *app) openClass(t *testing.T, adminToken string, seats int) string {
	t.Helper()
	rec, out := a.call(t, http.MethodPost, "/classes", adminToken, map[string]any{
		"name": "Watercolor Basics", "price": 19.99, "availableSeats": seats,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	classID := out["insertedId"].(string)

	rec, _ = a.call(t, http.MethodPatch, "/classes/"+classID, adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return classID
}

func TestHealth(t *testing.T) {
	a := newApp(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestRegisterIsIdempotent(t *testing.T) {
	a := newApp(t)
	a.login(t, "ana@example.com")

	rec, out := a.call(t, http.MethodPost, "/users", "", map[string]any{"email": "ana@example.com"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user already exists", out["message"])

	rec, _ = a.call(t, http.MethodPost, "/users", "", map[string]any{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIssueTokenRequiresEmail(t *testing.T) {
	a := newApp(t)
	rec, out := a.call(t, http.MethodPost, "/jwt", "", map[string]any{"name": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_input", errKind(out))
}

func TestRoleChecksAreSelfScoped(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()
	token, id := a.login(t, "ana@example.com")
	require.NoError(t, a.stores.Users.Promote(ctx, id, model.RoleAdmin))
	_, bobID := a.login(t, "bob@example.com")

	rec, out := a.call(t, http.MethodGet, "/users/admin/ana@example.com", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["admin"])

	_, out = a.call(t, http.MethodGet, "/users/instructor/ana@example.com", token, nil)
	assert.Equal(t, false, out["instructor"])

	// asking about someone else never reveals their role
	require.NoError(t, a.stores.Users.Promote(ctx, bobID, model.RoleAdmin))
	_, out = a.call(t, http.MethodGet, "/users/admin/bob@example.com", token, nil)
	assert.Equal(t, false, out["admin"])

	rec, out = a.call(t, http.MethodGet, "/users/admin/ana@example.com", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", errKind(out))
}

func TestPromotionRequiresStoredAdmin(t *testing.T) {
	a := newApp(t)
	token, _ := a.login(t, "ana@example.com")
	_, bobID := a.login(t, "bob@example.com")

	rec, out := a.call(t, http.MethodPatch, "/users/instructor/"+bobID, token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", errKind(out))

	carolToken, carolID := a.login(t, "carol@example.com")
	require.NoError(t, a.stores.Users.Promote(context.Background(), carolID, model.RoleAdmin))

	rec, _ = a.call(t, http.MethodPatch, "/users/instructor/"+bobID, carolToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	bob, err := a.stores.Users.FindByEmail(context.Background(), "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.RoleInstructor, bob.Role)
}

func TestClassWritesNeedRole(t *testing.T) {
	a := newApp(t)
	token, _ := a.login(t, "student@example.com")

	rec, _ := a.call(t, http.MethodPost, "/classes", token, map[string]any{"name": "x", "price": 10, "availableSeats": 1})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = a.call(t, http.MethodPost, "/classes", "", map[string]any{"name": "x", "price": 10, "availableSeats": 1})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = a.call(t, http.MethodGet, "/classes", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestEnrollSettleFlow(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()
	token, id := a.login(t, "ana@example.com")
	require.NoError(t, a.stores.Users.Promote(ctx, id, model.RoleAdmin))
	classID := a.openClass(t, token, 3)

	var items []string
	for i := 0; i < 3; i++ {
		rec, out := a.call(t, http.MethodPost, "/enrolled", token, map[string]any{"classId": classID, "email": "someone@else.com"})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		items = append(items, out["insertedId"].(string))
		item := out["item"].(map[string]any)
		assert.Equal(t, "ana@example.com", item["email"])
	}
	rec, out := a.call(t, http.MethodPost, "/enrolled", token, map[string]any{"classId": classID})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "seats_exhausted", errKind(out))

	// pay for the first two items only
	settle := map[string]any{
		"transactionId": "pi_123",
		"price":         39.98,
		"cartItems":     items[:2],
		"classItems":    []string{classID, classID},
		"itemNames":     []string{"Watercolor Basics", "Watercolor Basics"},
	}
	rec, out = a.call(t, http.MethodPost, "/payments", token, settle)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, out["insertResult"].(map[string]any)["acknowledged"])
	assert.Equal(t, float64(2), out["deleteResult"].(map[string]any)["deletedCount"])
	assert.Equal(t, string(model.PaymentSettled), out["status"])

	rec, out = a.call(t, http.MethodPost, "/payments", token, settle)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_settled", errKind(out))

	rec, _ = a.call(t, http.MethodGet, "/enrolled?email=ana@example.com", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cart []model.Enrollment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cart))
	require.Len(t, cart, 1)
	assert.Equal(t, items[2], cart[0].ID)

	rec, _ = a.call(t, http.MethodGet, "/payments/ana@example.com", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history []model.Payment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history, 1)
	assert.Equal(t, "pi_123", history[0].ChargeID)
	assert.Equal(t, int64(3998), history[0].AmountMinor)

	// removing the unpaid item frees its seat
	rec, _ = a.call(t, http.MethodDelete, "/enrolled/"+items[2], token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	class, err := a.stores.Classes.Get(ctx, classID)
	require.NoError(t, err)
	assert.Equal(t, 1, class.AvailableSeats)
	assert.Equal(t, 2, class.Enroll)
}

func TestSettleReportsPartial(t *testing.T) {
	a := newApp(t)
	token, _ := a.login(t, "ana@example.com")

	rec, out := a.call(t, http.MethodPost, "/payments", token, map[string]any{
		"transactionId": "pi_gone",
		"price":         10,
		"cartItems":     []string{uuid.NewString()},
	})
	assert.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, "partial_settlement", errKind(out))
	assert.Equal(t, true, out["insertResult"].(map[string]any)["acknowledged"])
	assert.Equal(t, false, out["deleteResult"].(map[string]any)["acknowledged"])
	assert.Equal(t, string(model.PaymentRetirementPending), out["status"])
}

func TestSettleRejectsAnotherUsersCart(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()
	adminToken, adminID := a.login(t, "ana@example.com")
	require.NoError(t, a.stores.Users.Promote(ctx, adminID, model.RoleAdmin))
	classID := a.openClass(t, adminToken, 5)

	bobToken, _ := a.login(t, "bob@example.com")
	var bobs []string
	for i := 0; i < 2; i++ {
		rec, out := a.call(t, http.MethodPost, "/enrolled", bobToken, map[string]any{"classId": classID})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		bobs = append(bobs, out["insertedId"].(string))
	}
	before, err := a.stores.Classes.Get(ctx, classID)
	require.NoError(t, err)

	malloryToken, _ := a.login(t, "mallory@example.com")
	rec, out := a.call(t, http.MethodPost, "/payments", malloryToken, map[string]any{
		"transactionId": "fake_1",
		"price":         0.01,
		"cartItems":     bobs,
	})
	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
	assert.Equal(t, "forbidden", errKind(out))
	assert.Nil(t, out["deleteResult"])

	cart, err := a.stores.Cart.ListByEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Len(t, cart, 2)
	after, err := a.stores.Classes.Get(ctx, classID)
	require.NoError(t, err)
	assert.Equal(t, before.AvailableSeats, after.AvailableSeats)
	assert.Equal(t, before.Enroll, after.Enroll)

	history, err := a.stores.Payments.ListByEmail(ctx, "mallory@example.com")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestSettleValidation(t *testing.T) {
	a := newApp(t)
	token, _ := a.login(t, "ana@example.com")

	cases := map[string]map[string]any{
		"missing transaction": {"price": 10, "cartItems": []string{uuid.NewString()}},
		"empty cart":          {"transactionId": "pi_1", "price": 10, "cartItems": []string{}},
		"negative price":      {"transactionId": "pi_2", "price": -1, "cartItems": []string{uuid.NewString()}},
		"malformed item id":   {"transactionId": "pi_3", "price": 10, "cartItems": []string{"nope"}},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec, out := a.call(t, http.MethodPost, "/payments", token, body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, "invalid_input", errKind(out))
		})
	}

	history, err := a.stores.Payments.ListByEmail(context.Background(), "ana@example.com")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestPaymentHistoryIsSelfScoped(t *testing.T) {
	a := newApp(t)
	token, _ := a.login(t, "ana@example.com")

	rec, out := a.call(t, http.MethodGet, "/payments/bob@example.com", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", errKind(out))

	rec, out = a.call(t, http.MethodGet, "/enrolled?email=bob@example.com", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", errKind(out))

	rec, _ = a.call(t, http.MethodGet, "/enrolled", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestCreatePaymentIntent(t *testing.T) {
	a := newApp(t)
	token, _ := a.login(t, "ana@example.com")

	for _, price := range []float64{-5, 0} {
		rec, out := a.call(t, http.MethodPost, "/create-payment-intent", token, map[string]any{"price": price})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_input", errKind(out))
	}
	assert.Equal(t, int32(0), atomic.LoadInt32(&a.broker.calls))

	rec, out := a.call(t, http.MethodPost, "/create-payment-intent", token, map[string]any{"price": 19.99})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "pi_secret_usd", out["clientSecret"])

	rec, _ = a.call(t, http.MethodPost, "/create-payment-intent", "", map[string]any{"price": 19.99})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	a := newApp(t)
	rec, out := a.call(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", errKind(out))
}
