package auth

import (
	"context"
	"errors"

	"github.com/iliyamo/api-starter/internal/model"
	"github.com/iliyamo/api-starter/internal/repository"
	"github.com/iliyamo/api-starter/internal/utils"
)

// CredentialVerifier checks a username/password pair against the store.
type CredentialVerifier struct {
	users UserStore
}

func NewCredentialVerifier(users UserStore) *CredentialVerifier {
	return &CredentialVerifier{users: users}
}

// Verify returns the sanitized user on success. Unknown usernames and wrong
// passwords yield the same ErrInvalidCredentials; the inactive check runs
// only after the password matched.
func (v *CredentialVerifier) Verify(ctx context.Context, username, password string) (model.User, error) {
	u, err := v.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.User{}, ErrInvalidCredentials
		}
		return model.User{}, err
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return model.User{}, ErrInvalidCredentials
	}
	if !u.IsActive {
		return model.User{}, ErrAccountInactive
	}
	return u.Sanitized(), nil
}
