// Package router declares every HTTP route in one table. Each route carries
// its access descriptor, so what a route requires is visible where it is
// declared and enforced by the Auth Gate.
package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/api-starter/internal/handler"
	"github.com/iliyamo/api-starter/internal/middleware"
	"github.com/iliyamo/api-starter/internal/model"
)

// Route is one entry of the route table.
type Route struct {
	Method      string
	Path        string // relative to the API prefix
	Handler     echo.HandlerFunc
	Access      middleware.Access
	RateLimited bool
}

// Handlers groups the endpoint implementations.
type Handlers struct {
	Auth  *handler.AuthHandler
	Users *handler.UsersHandler
}

var (
	public        = middleware.Access{Public: true}
	authenticated = middleware.Access{}
	adminOnly     = middleware.Access{Roles: []model.Role{model.RoleAdmin}}
)

// Routes returns the API route table.
func Routes(h Handlers) []Route {
	return []Route{
		{Method: http.MethodPost, Path: "/auth/register", Handler: h.Auth.Register, Access: public, RateLimited: true},
		{Method: http.MethodPost, Path: "/auth/login", Handler: h.Auth.Login, Access: public, RateLimited: true},
		{Method: http.MethodPost, Path: "/auth/refresh", Handler: h.Auth.Refresh, Access: public, RateLimited: true},
		{Method: http.MethodPost, Path: "/auth/logout", Handler: h.Auth.Logout, Access: authenticated},
		{Method: http.MethodGet, Path: "/auth/me", Handler: h.Auth.Me, Access: authenticated},

		{Method: http.MethodGet, Path: "/users", Handler: h.Users.List, Access: adminOnly},
		{Method: http.MethodGet, Path: "/users/:id", Handler: h.Users.Get, Access: adminOnly},
		{Method: http.MethodPatch, Path: "/users/:id/status", Handler: h.Users.SetStatus, Access: adminOnly},
		{Method: http.MethodPatch, Path: "/users/:id/role", Handler: h.Users.SetRole, Access: adminOnly},
	}
}

// Register mounts /healthz and the route table under prefix. limiter wraps
// rate-limited routes and may be nil.
func Register(e *echo.Echo, prefix string, guard *middleware.Guard, limiter echo.MiddlewareFunc, h Handlers) {
	e.GET("/healthz", handler.Health)

	g := e.Group(prefix)
	for _, r := range Routes(h) {
		var mws []echo.MiddlewareFunc
		if r.RateLimited && limiter != nil {
			mws = append(mws, limiter)
		}
		mws = append(mws, guard.Gate(r.Access)...)
		g.Add(r.Method, r.Path, r.Handler, mws...)
	}
}
