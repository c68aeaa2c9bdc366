package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/mock"

	"github.com/iliyamo/api-starter/internal/auth"
	"github.com/iliyamo/api-starter/internal/model"
	"github.com/iliyamo/api-starter/internal/queue"
)

var quietLog = slog.New(slog.NewTextHandler(io.Discard, nil))

type mockSessions struct{ mock.Mock }

func (m *mockSessions) Register(ctx context.Context, in auth.RegisterInput) (auth.Session, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(auth.Session), args.Error(1)
}

func (m *mockSessions) Login(ctx context.Context, username, password string) (auth.Session, error) {
	args := m.Called(ctx, username, password)
	return args.Get(0).(auth.Session), args.Error(1)
}

func (m *mockSessions) Refresh(ctx context.Context, token string) (auth.Session, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(auth.Session), args.Error(1)
}

func (m *mockSessions) Logout(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *mockSessions) Me(ctx context.Context, userID string) (model.Identity, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(model.Identity), args.Error(1)
}

func (m *mockSessions) RefreshTTL() time.Duration { return 7 * 24 * time.Hour }

type mockAudit struct{ mock.Mock }

func (m *mockAudit) Publish(ctx context.Context, ev queue.AuthEvent) error {
	return m.Called(ctx, ev).Error(0)
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(quietLog)
	e.Validator = NewRequestValidator()
	return e
}

func doJSON(e *echo.Echo, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func sampleSession() auth.Session {
	now := time.Unix(1_700_000_000, 0).UTC()
	return auth.Session{
		User: model.Identity{ID: "u-1", Username: "alice", Email: "alice@example.com", Role: model.RoleCustomer, IsActive: true},
		Tokens: auth.TokenPair{
			AccessToken:      "access-1",
			AccessExpiresAt:  now.Add(15 * time.Minute),
			RefreshToken:     "refresh-1",
			RefreshExpiresAt: now.Add(7 * 24 * time.Hour),
		},
	}
}
