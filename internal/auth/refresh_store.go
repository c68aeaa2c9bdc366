package auth

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/api-starter/internal/model"
	"github.com/iliyamo/api-starter/internal/utils"
)

// RefreshStore keeps a bcrypt hash of the one refresh token currently valid
// for each user. Writing a new hash invalidates every older token.
type RefreshStore struct {
	users UserStore
	cost  int
}

func NewRefreshStore(users UserStore, cost int) *RefreshStore {
	return &RefreshStore{users: users, cost: cost}
}

// SetHash replaces the stored hash with one derived from token.
func (s *RefreshStore) SetHash(ctx context.Context, userID, token string) error {
	hash, err := utils.HashPassword(utils.DigestToken(token), s.cost)
	if err != nil {
		return fmt.Errorf("hash refresh token: %w", err)
	}
	if err := s.users.SetRefreshTokenHash(ctx, userID, &hash); err != nil {
		return fmt.Errorf("store refresh hash: %w", err)
	}
	return nil
}

// ClearHash ends the user's session.
func (s *RefreshStore) ClearHash(ctx context.Context, userID string) error {
	if err := s.users.SetRefreshTokenHash(ctx, userID, nil); err != nil {
		return fmt.Errorf("clear refresh hash: %w", err)
	}
	return nil
}

// Matches reports whether token is the one whose hash is stored on u.
func (s *RefreshStore) Matches(u model.User, token string) bool {
	if u.RefreshTokenHash == nil {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(*u.RefreshTokenHash), []byte(utils.DigestToken(token))) == nil
}
