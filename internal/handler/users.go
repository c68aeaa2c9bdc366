package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/api-starter/internal/auth"
	"github.com/iliyamo/api-starter/internal/middleware"
	"github.com/iliyamo/api-starter/internal/model"
)

const defaultPageSize = 20

// UserDirectory is the store surface used by the admin endpoints.
type UserDirectory interface {
	List(ctx context.Context, limit, offset int) ([]model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
	SetActive(ctx context.Context, id string, active bool) error
	SetRole(ctx context.Context, id string, role model.Role) error
}

// SessionRevoker ends a user's session.
type SessionRevoker interface {
	Logout(ctx context.Context, userID string) error
}

// UsersHandler serves the ADMIN-only user management endpoints.
type UsersHandler struct {
	users    UserDirectory
	sessions SessionRevoker
}

func NewUsersHandler(users UserDirectory, sessions SessionRevoker) *UsersHandler {
	return &UsersHandler{users: users, sessions: sessions}
}

type listUsersReq struct {
	Limit  int `query:"limit" validate:"gte=0,lte=100"`
	Offset int `query:"offset" validate:"gte=0"`
}

type listUsersResp struct {
	Users  []model.Identity `json:"users"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

type statusReq struct {
	IsActive *bool `json:"isActive" validate:"required"`
}

type roleReq struct {
	Role string `json:"role" validate:"required"`
}

// List returns one page of identities ordered by creation time.
func (h *UsersHandler) List(c echo.Context) error {
	var req listUsersReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if req.Limit == 0 {
		req.Limit = defaultPageSize
	}
	users, err := h.users.List(c.Request().Context(), req.Limit, req.Offset)
	if err != nil {
		return err
	}
	out := make([]model.Identity, 0, len(users))
	for _, u := range users {
		out = append(out, u.Identity())
	}
	return c.JSON(http.StatusOK, listUsersResp{Users: out, Limit: req.Limit, Offset: req.Offset})
}

// Get returns a single identity.
func (h *UsersHandler) Get(c echo.Context) error {
	u, err := h.users.FindByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u.Identity())
}

// SetStatus activates or deactivates an account. Deactivation also revokes
// the account's refresh token so it cannot outlive the change.
func (h *UsersHandler) SetStatus(c echo.Context) error {
	var req statusReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	id := c.Param("id")
	if err := rejectSelf(c, id); err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := h.users.SetActive(ctx, id, *req.IsActive); err != nil {
		return err
	}
	if !*req.IsActive {
		if err := h.sessions.Logout(ctx, id); err != nil {
			return err
		}
	}
	return h.respondUser(c, id)
}

// SetRole assigns one of CUSTOMER, ADMIN or VENDOR.
func (h *UsersHandler) SetRole(c echo.Context) error {
	var req roleReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	role, ok := model.ParseRole(req.Role)
	if !ok {
		return auth.ValidationError("role must be one of CUSTOMER, ADMIN, VENDOR", "role")
	}
	id := c.Param("id")
	if err := rejectSelf(c, id); err != nil {
		return err
	}
	if err := h.users.SetRole(c.Request().Context(), id, role); err != nil {
		return err
	}
	return h.respondUser(c, id)
}

func (h *UsersHandler) respondUser(c echo.Context, id string) error {
	u, err := h.users.FindByID(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u.Identity())
}

// rejectSelf stops an admin from locking themselves out.
func rejectSelf(c echo.Context, id string) error {
	if me, ok := middleware.CurrentUser(c); ok && me.ID == id {
		return auth.ValidationError("cannot change your own account", "id")
	}
	return nil
}
