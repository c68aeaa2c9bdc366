// Package auth implements the authentication and session lifecycle:
// credential verification, access/refresh token issuance, refresh token
// rotation and revocation.
package auth

import (
	"context"

	"github.com/iliyamo/api-starter/internal/model"
)

// UserStore is the persistence the auth core needs. Lookups return
// repository.ErrNotFound for missing rows; Create returns
// repository.ErrConflict on a unique violation.
type UserStore interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	Create(ctx context.Context, u *model.User) error
	SetRefreshTokenHash(ctx context.Context, id string, hash *string) error
}
