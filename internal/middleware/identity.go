package middleware

// identity.go defines the request-scoped identity shared across middleware
// and handlers. The Auth Gate stores the freshly loaded identity under
// identityKey; CurrentUser reads it back.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/api-starter/internal/model"
)

const identityKey = "auth.identity"

// CurrentUser returns the identity attached by the Auth Gate. ok is false on
// public routes or when the gate has not run.
func CurrentUser(c echo.Context) (model.Identity, bool) {
	id, ok := c.Get(identityKey).(model.Identity)
	return id, ok
}

func setCurrentUser(c echo.Context, id model.Identity) {
	c.Set(identityKey, id)
}

// userID returns the current user's id, or "anon" when unauthenticated.
func userID(c echo.Context) string {
	if id, ok := CurrentUser(c); ok && id.ID != "" {
		return id.ID
	}
	return "anon"
}
