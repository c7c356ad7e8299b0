package router // package router defines how HTTP routes are registered for the API

import (
	"log/slog"

	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/class-enrollment/internal/auth"
	"github.com/iliyamo/class-enrollment/internal/config"
	"github.com/iliyamo/class-enrollment/internal/handler"    // import the handlers that implement business logic
	"github.com/iliyamo/class-enrollment/internal/middleware" // import middleware for JWT authentication and role enforcement
	"github.com/iliyamo/class-enrollment/internal/model"
)

// Deps carries everything the route groups need.  Redis may be nil, in which
// case rate limiting and response caching are switched off.
type Deps struct {
	Gate      *auth.Gate
	Redis     *redis.Client
	RateLimit config.RateLimitConfig
	Cache     config.CacheConfig
	Logger    *slog.Logger

	Auth     *handler.AuthHandler
	Users    *handler.UserHandler
	Classes  *handler.ClassHandler
	Enrolled *handler.EnrolledHandler
	Payments *handler.PaymentHandler
}

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Map the GET request at path "/healthz" to the Health handler.  This
	// endpoint can be used by load balancers or monitoring systems to verify
	// that the service is up and running.
	e.GET("/healthz", handler.Health)
}

// Register mounts every API route.
func Register(e *echo.Echo, d Deps) {
	RegisterRoutes(e)
	RegisterAuth(e, d)
	RegisterUsers(e, d)
	RegisterClasses(e, d)
	RegisterEnrolled(e, d)
	RegisterPayments(e, d)
}

// RegisterAuth registers the credential endpoint.  It is unauthenticated; a
// rate limit keyed by client address keeps it from being hammered.
func RegisterAuth(e *echo.Echo, d Deps) {
	e.POST("/jwt", d.Auth.IssueToken, middleware.NewTokenBucket(d.RateLimit, d.Redis, d.Logger))
}

// RegisterUsers registers registration, role checks and promotion.
func RegisterUsers(e *echo.Echo, d Deps) {
	e.POST("/users", d.Users.Register)
	e.GET("/users", d.Users.List)

	g := e.Group("/users", middleware.JWTAuth(d.Gate))
	g.GET("/admin/:email", d.Users.IsAdmin)
	g.GET("/instructor/:email", d.Users.IsInstructor)

	// Promotion is admin only.
	admin := middleware.RequireRole(d.Gate, model.RoleAdmin)
	g.PATCH("/admin/:id", d.Users.PromoteAdmin, admin)
	g.PATCH("/instructor/:id", d.Users.PromoteInstructor, admin)
}
