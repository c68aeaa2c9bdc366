package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/api-starter/internal/auth"
	"github.com/iliyamo/api-starter/internal/queue"
)

func setupAuth(t *testing.T, audit AuditPublisher) (*mockSessions, *AuthHandler, func(method, path, body string, cookies ...*http.Cookie) (int, map[string]any, *http.Cookie)) {
	t.Helper()
	s := &mockSessions{}
	h := NewAuthHandler(s, audit, CookieOptions{Path: "/v1/auth/refresh", Secure: true}, quietLog)
	e := newEcho()
	e.POST("/v1/auth/register", h.Register)
	e.POST("/v1/auth/login", h.Login)
	e.POST("/v1/auth/refresh", h.Refresh)

	do := func(method, path, body string, cookies ...*http.Cookie) (int, map[string]any, *http.Cookie) {
		rec := doJSON(e, method, path, body, cookies...)
		var out map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
		return rec.Code, out, findCookie(rec, RefreshCookieName)
	}
	t.Cleanup(func() { s.AssertExpectations(t) })
	return s, h, do
}

func TestRegister_SetsRefreshCookie(t *testing.T) {
	s, _, do := setupAuth(t, nil)
	s.On("Register", mock.Anything, auth.RegisterInput{
		Email: "alice@example.com", Username: "alice", Password: "pw", FirstName: "Alice",
	}).Return(sampleSession(), nil)

	code, body, ck := do(http.MethodPost, "/v1/auth/register",
		`{"email":" alice@example.com ","username":"alice","password":"pw","firstName":"Alice"}`)

	assert.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "access-1", body["accessToken"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "alice", user["username"])
	assert.NotContains(t, user, "password")
	assert.NotContains(t, user, "passwordHash")

	require.NotNil(t, ck)
	assert.Equal(t, "refresh-1", ck.Value)
	assert.True(t, ck.HttpOnly)
	assert.True(t, ck.Secure)
	assert.Equal(t, http.SameSiteStrictMode, ck.SameSite)
	assert.Equal(t, "/v1/auth/refresh", ck.Path)
	assert.Equal(t, 7*24*60*60, ck.MaxAge)
}

func TestRegister_ValidationErrors(t *testing.T) {
	_, _, do := setupAuth(t, nil)

	code, body, ck := do(http.MethodPost, "/v1/auth/register", `{"email":"nope","password":"pw"}`)

	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation", body["error"])
	assert.ElementsMatch(t, []any{"email", "username"}, body["fields"])
	assert.Nil(t, ck)
}

func TestRegister_PasswordCountsBytes(t *testing.T) {
	_, _, do := setupAuth(t, nil)

	// 40 runes but 80 bytes
	code, body, _ := do(http.MethodPost, "/v1/auth/register",
		`{"email":"alice@example.com","username":"alice","password":"`+strings.Repeat("é", 40)+`"}`)

	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, []any{"password"}, body["fields"])
	assert.Equal(t, "password must be at most 72 bytes", body["message"])
}

func TestRegister_MalformedBody(t *testing.T) {
	_, _, do := setupAuth(t, nil)

	code, body, _ := do(http.MethodPost, "/v1/auth/register", `{"email":`)

	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "bad_request", body["error"])
}

func TestRegister_Conflict(t *testing.T) {
	s, _, do := setupAuth(t, nil)
	s.On("Register", mock.Anything, mock.Anything).Return(auth.Session{}, auth.ConflictError("email", "username"))

	code, body, _ := do(http.MethodPost, "/v1/auth/register",
		`{"email":"alice@example.com","username":"alice","password":"pw"}`)

	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "conflict", body["error"])
	assert.Equal(t, "email already in use; username already in use", body["message"])
	assert.Equal(t, []any{"email", "username"}, body["fields"])
}

func TestLogin_InvalidCredentials(t *testing.T) {
	s, _, do := setupAuth(t, nil)
	s.On("Login", mock.Anything, "alice", "bad").Return(auth.Session{}, auth.ErrInvalidCredentials)

	code, body, ck := do(http.MethodPost, "/v1/auth/login", `{"username":"alice","password":"bad"}`)

	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "authentication", body["error"])
	assert.Equal(t, "invalid credentials", body["message"])
	assert.Nil(t, ck)
}

func TestLogin_PublishesAuditEvent(t *testing.T) {
	audit := &mockAudit{}
	s, _, do := setupAuth(t, audit)
	s.On("Login", mock.Anything, "alice", "pw").Return(sampleSession(), nil)
	audit.On("Publish", mock.Anything, mock.MatchedBy(func(ev queue.AuthEvent) bool {
		return ev.Type == queue.EventLogin && ev.UserID == "u-1" && ev.Username == "alice"
	})).Return(errors.New("broker down"))

	code, body, ck := do(http.MethodPost, "/v1/auth/login", `{"username":"alice","password":"pw"}`)

	// a broker failure never fails the request
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "access-1", body["accessToken"])
	require.NotNil(t, ck)
	audit.AssertExpectations(t)
}

func TestRefresh_RotatesCookie(t *testing.T) {
	s, _, do := setupAuth(t, nil)
	rotated := sampleSession()
	rotated.Tokens.AccessToken, rotated.Tokens.RefreshToken = "access-2", "refresh-2"
	s.On("Refresh", mock.Anything, "refresh-1").Return(rotated, nil)

	code, body, ck := do(http.MethodPost, "/v1/auth/refresh", "",
		&http.Cookie{Name: RefreshCookieName, Value: "refresh-1"})

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "access-2", body["accessToken"])
	assert.NotContains(t, body, "user")
	require.NotNil(t, ck)
	assert.Equal(t, "refresh-2", ck.Value)
}

func TestRefresh_MissingCookie(t *testing.T) {
	_, _, do := setupAuth(t, nil)

	code, body, _ := do(http.MethodPost, "/v1/auth/refresh", "")

	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "invalid refresh token", body["message"])
}

func TestRefresh_RejectedClearsCookie(t *testing.T) {
	s, _, do := setupAuth(t, nil)
	s.On("Refresh", mock.Anything, "stale").Return(auth.Session{}, auth.ErrInvalidRefreshToken)

	code, body, ck := do(http.MethodPost, "/v1/auth/refresh", "",
		&http.Cookie{Name: RefreshCookieName, Value: "stale"})

	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "invalid_token", body["error"])
	require.NotNil(t, ck)
	assert.Empty(t, ck.Value)
	assert.Less(t, ck.MaxAge, 0)
}
