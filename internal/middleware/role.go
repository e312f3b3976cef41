package middleware // middleware provides shared request processing for handlers

import (
	"net/http" // http package defines standard HTTP status codes
	"strings"

	"github.com/labstack/echo/v4" // echo provides middleware chaining and context
)

// Staff roles allowed to edit bookings.
const (
	RoleAdmin = "ADMIN"
	RoleStaff = "STAFF"
)

// RequireRole returns a middleware function that enforces that the
// authenticated staff member has one of the specified roles.  Role names
// are compared case-insensitively.  It assumes JWTAuth has already run;
// a missing or unknown role is answered with 403 Forbidden.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[strings.ToUpper(r)] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if role := Role(c); role == "" || !allowed[role] {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
