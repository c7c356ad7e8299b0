package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/class-enrollment/internal/middleware"
	"github.com/iliyamo/class-enrollment/internal/model"
)

// RegisterClasses registers the class catalog.  Reads are public, rate
// limited and cached; writes require a credential and a stored role and
// purge the cache when they succeed.
func RegisterClasses(e *echo.Echo, d Deps) {
	limit := middleware.NewTokenBucket(d.RateLimit, d.Redis, d.Logger)
	cache := middleware.NewRedisCache(d.Cache, d.Redis)
	purge := middleware.PurgeCache(d.Cache, d.Redis, d.Logger)

	e.GET("/classes", d.Classes.List, limit, cache)
	e.GET("/classes/:id", d.Classes.Get, limit, cache)

	g := e.Group("/classes", middleware.JWTAuth(d.Gate), purge)
	teach := middleware.RequireRole(d.Gate, model.RoleInstructor, model.RoleAdmin)
	g.POST("", d.Classes.Create, teach)
	g.PUT("/:id", d.Classes.SetSeats, teach)
	g.PATCH("/:id", d.Classes.Approve, middleware.RequireRole(d.Gate, model.RoleAdmin))
}
