package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/class-enrollment/internal/auth"
	"github.com/iliyamo/class-enrollment/internal/config"
	"github.com/iliyamo/class-enrollment/internal/model"
	"github.com/iliyamo/class-enrollment/internal/repository/memstore"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func do(e *echo.Echo, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuthAndRequireRole(t *testing.T) {
	users := memstore.NewUserStore()
	ctx := context.Background()
	admin, _, err := users.RegisterIfAbsent(ctx, model.User{Email: "admin@example.com"})
	require.NoError(t, err)
	require.NoError(t, users.Promote(ctx, admin.ID, model.RoleAdmin))
	_, _, err = users.RegisterIfAbsent(ctx, model.User{Email: "student@example.com"})
	require.NoError(t, err)

	gate := auth.NewGate("secret", users)
	e := echo.New()
	e.GET("/admin-only", func(c echo.Context) error {
		id, _ := auth.FromContext(c)
		return c.String(http.StatusOK, id.Email)
	}, JWTAuth(gate), RequireRole(gate, model.RoleAdmin))

	adminTok, _, err := gate.Issue(map[string]any{"email": "admin@example.com"})
	require.NoError(t, err)
	studentTok, _, err := gate.Issue(map[string]any{"email": "student@example.com", "role": "admin"})
	require.NoError(t, err)

	rec := do(e, http.MethodGet, "/admin-only", adminTok)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin@example.com", rec.Body.String())

	// a role claim in the token is ignored
	rec = do(e, http.MethodGet, "/admin-only", studentTok)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"error":{"kind":"forbidden","message":"forbidden access"}}`, rec.Body.String())

	rec = do(e, http.MethodGet, "/admin-only", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":{"kind":"unauthorized","message":"unauthorized access"}}`, rec.Body.String())
}

func TestTokenBucket_BlocksAfterCapacity(t *testing.T) {
	rdb := newRedis(t)
	cfg := config.RateLimitConfig{
		Enabled: true, Capacity: 2, RefillTokens: 1, RefillInterval: time.Hour,
		TTL: time.Hour, KeyStrategy: "ip", Prefix: "rl",
	}
	e := echo.New()
	e.GET("/classes", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, NewTokenBucket(cfg, rdb, nil))

	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/classes", "").Code)
	rec := do(e, http.MethodGet, "/classes", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = do(e, http.MethodGet, "/classes", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestTokenBucket_DisabledWithoutRedis(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: true, Capacity: 1}
	e := echo.New()
	e.GET("/classes", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, NewTokenBucket(cfg, nil, nil))
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/classes", "").Code)
	}
}

func TestRedisCache_HitMissAndPurge(t *testing.T) {
	rdb := newRedis(t)
	cfg := config.CacheConfig{
		Enabled: true, Methods: map[string]bool{http.MethodGet: true},
		TTL: time.Minute, KeyStrategy: "route_query", Prefix: "cache",
	}
	calls := 0
	e := echo.New()
	e.GET("/classes/:id", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, map[string]string{"id": c.Param("id")})
	}, NewRedisCache(cfg, rdb))
	e.PATCH("/classes/:id", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	}, PurgeCache(cfg, rdb, nil))

	rec := do(e, http.MethodGet, "/classes/a", "")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	rec = do(e, http.MethodGet, "/classes/a", "")
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"id":"a"}`, rec.Body.String())
	assert.Equal(t, 1, calls)

	// a different id under the same route is a different entry
	rec = do(e, http.MethodGet, "/classes/b", "")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"id":"b"}`, rec.Body.String())

	assert.Equal(t, http.StatusNoContent, do(e, http.MethodPatch, "/classes/a", "").Code)
	rec = do(e, http.MethodGet, "/classes/a", "")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, 3, calls)
}

func TestEncodeDecodePayload(t *testing.T) {
	hdr := http.Header{"Content-Type": []string{"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"a":1}`))
	require.NoError(t, err)

	status, got, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, hdr, got)
	assert.Equal(t, `{"a":1}`, string(body))

	_, _, _, ok = decodePayload([]byte{0, 1})
	assert.False(t, ok)
}
