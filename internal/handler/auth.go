package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/api-starter/internal/auth"
	"github.com/iliyamo/api-starter/internal/middleware"
	"github.com/iliyamo/api-starter/internal/model"
	"github.com/iliyamo/api-starter/internal/queue"
)

// RefreshCookieName is the cookie that carries the refresh token.
const RefreshCookieName = "refresh_token"

// Sessions is the slice of auth.SessionService the handlers call.
type Sessions interface {
	Register(ctx context.Context, in auth.RegisterInput) (auth.Session, error)
	Login(ctx context.Context, username, password string) (auth.Session, error)
	Refresh(ctx context.Context, token string) (auth.Session, error)
	Logout(ctx context.Context, userID string) error
	Me(ctx context.Context, userID string) (model.Identity, error)
	RefreshTTL() time.Duration
}

// AuditPublisher receives an event after every successful auth operation.
type AuditPublisher interface {
	Publish(ctx context.Context, ev queue.AuthEvent) error
}

// CookieOptions scopes the refresh cookie.
type CookieOptions struct {
	Path   string // the refresh endpoint, e.g. /v1/auth/refresh
	Secure bool
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	sessions Sessions
	audit    AuditPublisher // nil disables the audit trail
	cookie   CookieOptions
	log      *slog.Logger
}

func NewAuthHandler(s Sessions, audit AuditPublisher, cookie CookieOptions, log *slog.Logger) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AuthHandler{sessions: s, audit: audit, cookie: cookie, log: log}
}

// ----- DTOs -----

type registerReq struct {
	Email     string `json:"email" validate:"required,email,max=255"`
	Username  string `json:"username" validate:"required,max=64"`
	Password  string `json:"password" validate:"required,maxbytes=72"`
	FirstName string `json:"firstName" validate:"max=100"`
	LastName  string `json:"lastName" validate:"max=100"`
}

type loginReq struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type sessionResp struct {
	AccessToken string         `json:"accessToken"`
	ExpiresAt   time.Time      `json:"expiresAt"`
	User        model.Identity `json:"user"`
}

type refreshResp struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Register creates a CUSTOMER account and returns its first session.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	s, err := h.sessions.Register(c.Request().Context(), auth.RegisterInput{
		Email:     strings.TrimSpace(req.Email),
		Username:  strings.TrimSpace(req.Username),
		Password:  req.Password,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
	})
	if err != nil {
		return err
	}
	h.setRefreshCookie(c, s.Tokens.RefreshToken)
	h.publish(c, queue.EventRegistered, s.User)
	return c.JSON(http.StatusCreated, sessionResp{
		AccessToken: s.Tokens.AccessToken,
		ExpiresAt:   s.Tokens.AccessExpiresAt,
		User:        s.User,
	})
}

// Login verifies credentials and starts a new session.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	s, err := h.sessions.Login(c.Request().Context(), strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		return err
	}
	h.setRefreshCookie(c, s.Tokens.RefreshToken)
	h.publish(c, queue.EventLogin, s.User)
	return c.JSON(http.StatusOK, sessionResp{
		AccessToken: s.Tokens.AccessToken,
		ExpiresAt:   s.Tokens.AccessExpiresAt,
		User:        s.User,
	})
}

// Refresh rotates the refresh cookie and returns a new access token.
func (h *AuthHandler) Refresh(c echo.Context) error {
	ck, err := c.Cookie(RefreshCookieName)
	if err != nil || ck.Value == "" {
		return auth.ErrInvalidRefreshToken
	}
	s, err := h.sessions.Refresh(c.Request().Context(), ck.Value)
	if err != nil {
		if auth.KindOf(err) != auth.KindUnknown {
			h.clearRefreshCookie(c)
		}
		return err
	}
	h.setRefreshCookie(c, s.Tokens.RefreshToken)
	h.publish(c, queue.EventRefreshed, s.User)
	return c.JSON(http.StatusOK, refreshResp{
		AccessToken: s.Tokens.AccessToken,
		ExpiresAt:   s.Tokens.AccessExpiresAt,
	})
}

// Logout revokes the caller's refresh token and clears the cookie.
func (h *AuthHandler) Logout(c echo.Context) error {
	id, ok := middleware.CurrentUser(c)
	if !ok {
		return auth.ErrUnauthenticated
	}
	if err := h.sessions.Logout(c.Request().Context(), id.ID); err != nil {
		return err
	}
	h.clearRefreshCookie(c)
	h.publish(c, queue.EventLogout, id)
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// Me returns the caller's identity as currently stored.
func (h *AuthHandler) Me(c echo.Context) error {
	id, ok := middleware.CurrentUser(c)
	if !ok {
		return auth.ErrUnauthenticated
	}
	me, err := h.sessions.Me(c.Request().Context(), id.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, me)
}

func (h *AuthHandler) setRefreshCookie(c echo.Context, token string) {
	c.SetCookie(&http.Cookie{
		Name:     RefreshCookieName,
		Value:    token,
		Path:     h.cookie.Path,
		MaxAge:   int(h.sessions.RefreshTTL() / time.Second),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandler) clearRefreshCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     h.cookie.Path,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// publish is best effort: a broker failure is logged and never fails the request.
func (h *AuthHandler) publish(c echo.Context, typ string, id model.Identity) {
	if h.audit == nil {
		return
	}
	ev := queue.NewAuthEvent(typ, id.ID, time.Now())
	ev.Username = id.Username
	ev.Role = string(id.Role)
	ev.RemoteIP = c.RealIP()
	ev.RequestID = c.Response().Header().Get(echo.HeaderXRequestID)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), 2*time.Second)
	defer cancel()
	if err := h.audit.Publish(ctx, ev); err != nil {
		h.log.WarnContext(ctx, "audit publish failed", "type", typ, "user_id", id.ID, "err", err)
	}
}

func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return c.Validate(req)
}
