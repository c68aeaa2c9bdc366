package auth

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/api-starter/internal/model"
)

func aliceInput() RegisterInput {
	return RegisterInput{
		Email:     "alice@example.com",
		Username:  "alice",
		Password:  "correct-horse-battery",
		FirstName: "Alice",
		LastName:  "Liddell",
	}
}

func TestSessionService_Register(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s, err := f.sessions.Register(ctx, aliceInput())
	require.NoError(t, err)
	assert.Equal(t, "alice", s.User.Username)
	assert.Equal(t, model.RoleCustomer, s.User.Role)
	assert.True(t, s.User.IsActive)
	assert.NotEmpty(t, s.User.ID)

	claims, err := f.issuer.VerifyAccess(s.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, s.User.ID, claims.Subject)

	stored, err := f.store.FindByID(ctx, s.User.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "correct-horse-battery", stored.PasswordHash)
	require.NotNil(t, stored.RefreshTokenHash)
	assert.True(t, f.sessions.refresh.Matches(*stored, s.Tokens.RefreshToken))
}

func TestSessionService_RegisterConflicts(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		input      func(RegisterInput) RegisterInput
		wantFields []string
	}{
		{
			name:       "email taken",
			input:      func(in RegisterInput) RegisterInput { in.Username = "alice2"; return in },
			wantFields: []string{"email"},
		},
		{
			name:       "username taken",
			input:      func(in RegisterInput) RegisterInput { in.Email = "other@example.com"; return in },
			wantFields: []string{"username"},
		},
		{
			name:       "both taken, email reported first",
			input:      func(in RegisterInput) RegisterInput { return in },
			wantFields: []string{"email", "username"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.sessions.Register(ctx, aliceInput())
			require.NoError(t, err)
			writesBefore := f.store.writes.Load()

			_, err = f.sessions.Register(ctx, tt.input(aliceInput()))
			require.Error(t, err)

			var authErr *Error
			require.ErrorAs(t, err, &authErr)
			assert.Equal(t, KindConflict, authErr.Kind)
			assert.Equal(t, tt.wantFields, authErr.Fields)
			assert.Equal(t, writesBefore, f.store.writes.Load(), "conflict must not write")
		})
	}
}

func TestSessionService_RegisterRequiresFields(t *testing.T) {
	f := newFixture(t)
	in := aliceInput()
	in.Password = ""

	_, err := f.sessions.Register(context.Background(), in)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Zero(t, f.store.writes.Load())
}

func TestSessionService_RegisterPasswordByteLimit(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{name: "at limit", password: strings.Repeat("a", 72)},
		{name: "ascii over limit", password: strings.Repeat("a", 100), wantErr: true},
		// 40 runes, 80 bytes
		{name: "multibyte over limit", password: strings.Repeat("é", 40), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			in := aliceInput()
			in.Password = tt.password

			_, err := f.sessions.Register(context.Background(), in)
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			var authErr *Error
			require.ErrorAs(t, err, &authErr)
			assert.Equal(t, KindValidation, authErr.Kind)
			assert.Equal(t, []string{"password"}, authErr.Fields)
			assert.Zero(t, f.store.writes.Load())
		})
	}
}

func TestSessionService_Login(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "u-1", "alice", "pw-alice", model.RoleVendor, true)
	f.seedUser(t, "u-2", "bob", "pw-bob", model.RoleCustomer, false)

	s, err := f.sessions.Login(ctx, "alice", "pw-alice")
	require.NoError(t, err)
	claims, err := f.issuer.VerifyAccess(s.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.Subject)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, model.RoleVendor, claims.Role)

	_, err = f.sessions.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.sessions.Login(ctx, "bob", "pw-bob")
	assert.ErrorIs(t, err, ErrAccountInactive)
	assert.Equal(t, "account inactive", err.Error())
}

func TestSessionService_LoginReplacesPreviousRefreshToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "u-1", "alice", "pw", model.RoleCustomer, true)

	first, err := f.sessions.Login(ctx, "alice", "pw")
	require.NoError(t, err)
	_, err = f.sessions.Login(ctx, "alice", "pw")
	require.NoError(t, err)

	_, err = f.sessions.Refresh(ctx, first.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestSessionService_RefreshRotates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.sessions.Register(ctx, aliceInput())
	require.NoError(t, err)
	tokenA := s.Tokens.RefreshToken

	rotated, err := f.sessions.Refresh(ctx, tokenA)
	require.NoError(t, err)
	tokenB := rotated.Tokens.RefreshToken
	assert.NotEqual(t, tokenA, tokenB)
	assert.Equal(t, "alice", rotated.User.Username)

	_, err = f.sessions.Refresh(ctx, tokenA)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken, "stale token must be rejected")

	_, err = f.sessions.Refresh(ctx, tokenB)
	assert.NoError(t, err)
}

func TestSessionService_RefreshFailuresCollapse(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		token func(t *testing.T, f *fixture, s Session) string
	}{
		{
			name:  "garbage",
			token: func(*testing.T, *fixture, Session) string { return "garbage" },
		},
		{
			name:  "access token presented",
			token: func(_ *testing.T, _ *fixture, s Session) string { return s.Tokens.AccessToken },
		},
		{
			name: "after logout",
			token: func(t *testing.T, f *fixture, s Session) string {
				require.NoError(t, f.sessions.Logout(ctx, s.User.ID))
				return s.Tokens.RefreshToken
			},
		},
		{
			name: "account deactivated",
			token: func(t *testing.T, f *fixture, s Session) string {
				require.NoError(t, f.store.SetActive(ctx, s.User.ID, false))
				return s.Tokens.RefreshToken
			},
		},
		{
			name: "expired",
			token: func(_ *testing.T, f *fixture, s Session) string {
				f.clock.Set(s.Tokens.RefreshExpiresAt)
				return s.Tokens.RefreshToken
			},
		},
		{
			name: "unknown subject",
			token: func(t *testing.T, f *fixture, _ Session) string {
				pair, err := f.issuer.IssuePair(model.User{ID: "ghost", Username: "ghost"})
				require.NoError(t, err)
				return pair.RefreshToken
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			s, err := f.sessions.Register(ctx, aliceInput())
			require.NoError(t, err)

			_, err = f.sessions.Refresh(ctx, tt.token(t, f, s))
			assert.ErrorIs(t, err, ErrInvalidRefreshToken)
			assert.Equal(t, "invalid refresh token", err.Error())
		})
	}
}

func TestSessionService_RefreshNearExpiryStillRotates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.sessions.Register(ctx, aliceInput())
	require.NoError(t, err)

	f.clock.Set(s.Tokens.RefreshExpiresAt.Add(-time.Second))
	rotated, err := f.sessions.Refresh(ctx, s.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.True(t, rotated.Tokens.RefreshExpiresAt.After(s.Tokens.RefreshExpiresAt))
}

func TestSessionService_LogoutIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.sessions.Register(ctx, aliceInput())
	require.NoError(t, err)

	require.NoError(t, f.sessions.Logout(ctx, s.User.ID))
	require.NoError(t, f.sessions.Logout(ctx, s.User.ID))
	require.NoError(t, f.sessions.Logout(ctx, "never-existed"))

	stored, err := f.store.FindByID(ctx, s.User.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.RefreshTokenHash)
}

func TestSessionService_Me(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.sessions.Register(ctx, aliceInput())
	require.NoError(t, err)

	me, err := f.sessions.Me(ctx, s.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", me.Username)

	_, err = f.sessions.Me(ctx, "missing")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

// Two refreshes racing on the same token may both pass the hash check, but
// only the last written pair stays refreshable and the original token is dead.
func TestSessionService_ConcurrentRefreshFailsClosed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.sessions.Register(ctx, aliceInput())
	require.NoError(t, err)

	const racers = 4
	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		mu      sync.Mutex
		winners []string
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			rotated, err := f.sessions.Refresh(ctx, s.Tokens.RefreshToken)
			if err != nil {
				assert.ErrorIs(t, err, ErrInvalidRefreshToken)
				return
			}
			mu.Lock()
			winners = append(winners, rotated.Tokens.RefreshToken)
			mu.Unlock()
		}()
	}
	close(start)
	wg.Wait()

	require.NotEmpty(t, winners, "the first refresh to read the hash must succeed")

	stored, err := f.store.FindByID(ctx, s.User.ID)
	require.NoError(t, err)
	backed := 0
	for _, tok := range winners {
		if f.sessions.refresh.Matches(*stored, tok) {
			backed++
		}
	}
	assert.Equal(t, 1, backed, "exactly one issued refresh token is backed by the stored hash")

	_, err = f.sessions.Refresh(ctx, s.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}
