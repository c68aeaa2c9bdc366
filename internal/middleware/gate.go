package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/api-starter/internal/auth"
	"github.com/iliyamo/api-starter/internal/model"
	"github.com/iliyamo/api-starter/internal/repository"
)

// Access describes who may call a route. The router table attaches one to
// every route and the Gate consults it directly.
type Access struct {
	Public bool
	Roles  []model.Role // empty: any authenticated identity
}

// AccessVerifier validates access tokens.
type AccessVerifier interface {
	VerifyAccess(token string) (*auth.Claims, error)
}

// IdentityLoader loads the current state of a user.
type IdentityLoader interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// Guard authenticates requests: bearer token, signature and expiry, then a
// fresh identity lookup so role and active flag never come from stale claims.
type Guard struct {
	tokens AccessVerifier
	users  IdentityLoader
}

func NewGuard(tokens AccessVerifier, users IdentityLoader) *Guard {
	return &Guard{tokens: tokens, users: users}
}

// Authenticate returns a middleware that rejects the request with an auth
// error (401) unless it carries a valid access token for an active user, and
// attaches the identity for downstream handlers.
func (g *Guard) Authenticate() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return auth.ErrUnauthenticated
			}
			claims, err := g.tokens.VerifyAccess(raw)
			if err != nil {
				return err
			}
			u, err := g.users.FindByID(c.Request().Context(), claims.Subject)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return auth.ErrUnauthenticated
				}
				return err
			}
			if !u.IsActive {
				return auth.ErrAccountInactive
			}
			setCurrentUser(c, u.Identity())
			return next(c)
		}
	}
}

// Gate builds the per-route pipeline for a: public routes pass through,
// otherwise Authenticate followed by RequireRole.
func (g *Guard) Gate(a Access) []echo.MiddlewareFunc {
	if a.Public {
		return nil
	}
	return []echo.MiddlewareFunc{g.Authenticate(), RequireRole(a.Roles...)}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
