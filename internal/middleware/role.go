package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/api-starter/internal/auth"
	"github.com/iliyamo/api-starter/internal/model"
)

// RequireRole returns a middleware that admits the request only when the
// current identity holds one of roles (logical OR). With no roles any
// authenticated identity is admitted. It must run after the guard has
// attached the identity; a missing identity is treated as unauthenticated.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := CurrentUser(c)
			if !ok {
				return auth.ErrUnauthenticated
			}
			if len(roles) > 0 && !id.HasRole(roles...) {
				return auth.ErrForbidden
			}
			return next(c)
		}
	}
}
