package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/class-enrollment/internal/middleware"
)

// RegisterEnrolled registers cart endpoints.  Every route requires a valid
// credential; ownership is enforced by the service.  Adding or removing an
// item changes seat counts, so successful writes purge the class cache.
func RegisterEnrolled(e *echo.Echo, d Deps) {
	purge := middleware.PurgeCache(d.Cache, d.Redis, d.Logger)

	g := e.Group("/enrolled", middleware.JWTAuth(d.Gate))
	g.POST("", d.Enrolled.Create, purge)
	g.GET("", d.Enrolled.List)
	g.DELETE("/:id", d.Enrolled.Delete, purge)
}

// RegisterPayments registers intent creation, settlement and history.  Every
// route requires a valid credential.
func RegisterPayments(e *echo.Echo, d Deps) {
	jwt := middleware.JWTAuth(d.Gate)
	e.POST("/create-payment-intent", d.Payments.CreateIntent, jwt, middleware.NewTokenBucket(d.RateLimit, d.Redis, d.Logger))
	e.POST("/payments", d.Payments.Settle, jwt)
	e.GET("/payments/:email", d.Payments.History, jwt)
}
