package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/theater-booking/internal/handler"    // handlers for bookings, slots and catalogs
	"github.com/iliyamo/theater-booking/internal/middleware" // JWT authentication, role enforcement, edit throttle
)

// Handlers bundles everything the API serves.
type Handlers struct {
	Bookings *handler.BookingHandler
	Slots    *handler.SlotHandler
	Catalogs *handler.CatalogHandler
}

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance: liveness and readiness.
func RegisterRoutes(e *echo.Echo, health *handler.HealthHandler) {
	e.GET("/healthz", health.Live)
	e.GET("/readyz", health.Ready)
}

// RegisterAPI registers the staff API under /v1.  Every route requires a
// staff JWT signed with jwtSecret and the ADMIN or STAFF role; writes are
// additionally passed through the edit throttle.
func RegisterAPI(e *echo.Echo, h Handlers, jwtSecret string, throttle echo.MiddlewareFunc) {
	v1 := e.Group("/v1")
	v1.Use(middleware.JWTAuth(jwtSecret))
	v1.Use(middleware.RequireRole(middleware.RoleAdmin, middleware.RoleStaff))

	// Static segment registered before :id so "manual" is never taken as an id.
	v1.POST("/bookings/manual", h.Bookings.CreateManual, throttle)
	v1.GET("/bookings/:id", h.Bookings.Get)
	v1.POST("/bookings/:id/edits", h.Bookings.Edit, throttle)
	v1.POST("/bookings/:id/services/:category/autosave", h.Bookings.Autosave, throttle)

	v1.GET("/theaters/:name/slots", h.Slots.List)

	if h.Catalogs != nil {
		v1.POST("/catalogs/invalidate", h.Catalogs.Invalidate, middleware.RequireRole(middleware.RoleAdmin))
	}
}
