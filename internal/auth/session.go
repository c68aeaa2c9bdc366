package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/api-starter/internal/model"
	"github.com/iliyamo/api-starter/internal/repository"
	"github.com/iliyamo/api-starter/internal/utils"
)

// RegisterInput carries the fields accepted by Register.
type RegisterInput struct {
	Email     string
	Username  string
	Password  string
	FirstName string
	LastName  string
}

// Session is returned by every operation that starts or extends a session.
type Session struct {
	User   model.Identity
	Tokens TokenPair
}

// SessionService orchestrates register, login, refresh and logout.
//
// Session states: anonymous -> authenticated -> (rotated)* -> logged out.
// Every transition into "authenticated" overwrites the stored refresh hash,
// so at most one refresh token per user is ever usable.
type SessionService struct {
	users      UserStore
	verifier   *CredentialVerifier
	tokens     *TokenIssuer
	refresh    *RefreshStore
	bcryptCost int
	log        *slog.Logger
}

func NewSessionService(users UserStore, tokens *TokenIssuer, bcryptCost int, log *slog.Logger) *SessionService {
	if log == nil {
		log = slog.Default()
	}
	return &SessionService{
		users:      users,
		verifier:   NewCredentialVerifier(users),
		tokens:     tokens,
		refresh:    NewRefreshStore(users, bcryptCost),
		bcryptCost: bcryptCost,
		log:        log,
	}
}

// Register creates a CUSTOMER account and starts its first session. Email
// and username are checked independently (email first) and every taken
// field is reported; nothing is written on conflict.
func (s *SessionService) Register(ctx context.Context, in RegisterInput) (Session, error) {
	if in.Email == "" || in.Username == "" || in.Password == "" {
		return Session{}, ValidationError("email, username and password are required", "email", "username", "password")
	}
	if len(in.Password) > utils.MaxPasswordBytes {
		return Session{}, ValidationError(fmt.Sprintf("password must be at most %d bytes", utils.MaxPasswordBytes), "password")
	}
	taken, err := s.takenFields(ctx, in.Email, in.Username)
	if err != nil {
		return Session{}, err
	}
	if len(taken) > 0 {
		return Session{}, ConflictError(taken...)
	}

	hash, err := utils.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}
	u := &model.User{
		ID:           uuid.NewString(),
		Username:     in.Username,
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: hash,
		Role:         model.RoleCustomer,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// lost a race with a concurrent registration
			if taken, terr := s.takenFields(ctx, in.Email, in.Username); terr == nil && len(taken) > 0 {
				return Session{}, ConflictError(taken...)
			}
			return Session{}, &Error{Kind: KindConflict, Message: "user already exists", Err: err}
		}
		return Session{}, fmt.Errorf("create user: %w", err)
	}
	return s.start(ctx, u.Sanitized())
}

// Login verifies credentials and starts a new session, replacing any
// previous refresh token.
func (s *SessionService) Login(ctx context.Context, username, password string) (Session, error) {
	u, err := s.verifier.Verify(ctx, username, password)
	if err != nil {
		return Session{}, err
	}
	return s.start(ctx, u)
}

// Refresh rotates the presented refresh token. All token, lookup, hash and
// account-state failures collapse to ErrInvalidRefreshToken; the cause is
// only logged. The presented token is unusable afterwards.
func (s *SessionService) Refresh(ctx context.Context, token string) (Session, error) {
	claims, err := s.tokens.VerifyRefresh(token)
	if err != nil {
		s.log.DebugContext(ctx, "refresh rejected", "reason", "verify", "err", err)
		return Session{}, ErrInvalidRefreshToken
	}
	u, err := s.users.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.DebugContext(ctx, "refresh rejected", "reason", "unknown_user", "user_id", claims.Subject)
			return Session{}, ErrInvalidRefreshToken
		}
		return Session{}, err
	}
	if !s.refresh.Matches(*u, token) {
		s.log.DebugContext(ctx, "refresh rejected", "reason", "stale_token", "user_id", u.ID)
		return Session{}, ErrInvalidRefreshToken
	}
	if !u.IsActive {
		s.log.DebugContext(ctx, "refresh rejected", "reason", "inactive", "user_id", u.ID)
		return Session{}, ErrInvalidRefreshToken
	}
	return s.start(ctx, u.Sanitized())
}

// Logout clears the stored refresh hash. Calling it again is a no-op.
func (s *SessionService) Logout(ctx context.Context, userID string) error {
	err := s.refresh.ClearHash(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	return err
}

// Me loads the identity for userID.
func (s *SessionService) Me(ctx context.Context, userID string) (model.Identity, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Identity{}, ErrUnauthenticated
		}
		return model.Identity{}, err
	}
	return u.Identity(), nil
}

// RefreshTTL exposes the refresh lifetime for cookie handling.
func (s *SessionService) RefreshTTL() time.Duration { return s.tokens.RefreshTTL() }

func (s *SessionService) start(ctx context.Context, u model.User) (Session, error) {
	pair, err := s.tokens.IssuePair(u)
	if err != nil {
		return Session{}, fmt.Errorf("issue tokens: %w", err)
	}
	if err := s.refresh.SetHash(ctx, u.ID, pair.RefreshToken); err != nil {
		return Session{}, err
	}
	return Session{User: u.Identity(), Tokens: pair}, nil
}

func (s *SessionService) takenFields(ctx context.Context, email, username string) ([]string, error) {
	var taken []string
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		taken = append(taken, "email")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup email: %w", err)
	}
	if _, err := s.users.FindByUsername(ctx, username); err == nil {
		taken = append(taken, "username")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup username: %w", err)
	}
	return taken, nil
}
