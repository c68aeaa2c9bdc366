package auth

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/api-starter/internal/config"
	"github.com/iliyamo/api-starter/internal/model"
	"github.com/iliyamo/api-starter/internal/repository"
	"github.com/iliyamo/api-starter/internal/utils"
)

var testJWT = config.JWTConfig{
	AccessSecret:  "access-secret-for-tests",
	RefreshSecret: "refresh-secret-for-tests",
	AccessTTL:     15 * time.Minute,
	RefreshTTL:    7 * 24 * time.Hour,
	Issuer:        "api-starter-test",
}

// testClock is a settable clock; token times have second precision so the
// base instant is whole-second.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(1_700_000_000, 0).UTC()}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// countingStore records writes so tests can assert that a failed operation
// left persistence untouched.
type countingStore struct {
	*repository.MemoryUserRepo
	writes atomic.Int32
}

func (s *countingStore) Create(ctx context.Context, u *model.User) error {
	s.writes.Add(1)
	return s.MemoryUserRepo.Create(ctx, u)
}

func (s *countingStore) SetRefreshTokenHash(ctx context.Context, id string, hash *string) error {
	s.writes.Add(1)
	return s.MemoryUserRepo.SetRefreshTokenHash(ctx, id, hash)
}

type fixture struct {
	store    *countingStore
	clock    *testClock
	issuer   *TokenIssuer
	sessions *SessionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := &countingStore{MemoryUserRepo: repository.NewMemoryUserRepo()}
	clock := newTestClock()
	issuer := NewTokenIssuer(testJWT, clock.Now)
	return &fixture{
		store:    store,
		clock:    clock,
		issuer:   issuer,
		sessions: NewSessionService(store, issuer, bcrypt.MinCost, nil),
	}
}

// seedUser inserts a user directly, bypassing Register.
func (f *fixture) seedUser(t *testing.T, id, username, password string, role model.Role, active bool) model.User {
	t.Helper()
	hash, err := utils.HashPassword(password, bcrypt.MinCost)
	require.NoError(t, err)
	u := &model.User{
		ID:           id,
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		Role:         role,
		IsActive:     active,
	}
	require.NoError(t, f.store.MemoryUserRepo.Create(context.Background(), u))
	return *u
}
