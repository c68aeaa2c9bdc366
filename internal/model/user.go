package model

import (
	"strings"
	"time"
)

// Role is the single role assigned to a user account.
type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleAdmin    Role = "ADMIN"
	RoleVendor   Role = "VENDOR"
)

// ParseRole normalises s and reports whether it names a known role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	switch r {
	case RoleCustomer, RoleAdmin, RoleVendor:
		return r, true
	}
	return "", false
}

// User represents an application user record as stored in the
// `users` table. Each field corresponds to a column in the
// database. The struct carries credential material and must never
// be rendered directly; handlers respond with Identity instead.
//
// Fields:
//  ID               – primary key identifier (UUID string), immutable.
//  Username         – unique login name, case-sensitive as stored.
//  Email            – unique email address, case-sensitive as stored.
//  FirstName        – optional profile field.
//  LastName         – optional profile field.
//  PasswordHash     – bcrypt hashed password.
//  RefreshTokenHash – bcrypt hash of the current refresh token digest; nil means no active session.
//  Role             – CUSTOMER, ADMIN or VENDOR.
//  IsActive         – inactive accounts cannot authenticate.
//  CreatedAt        – timestamp of creation.
//  UpdatedAt        – timestamp of last update.
type User struct {
	ID               string    // users.id
	Username         string    // users.username
	Email            string    // users.email
	FirstName        string    // users.first_name
	LastName         string    // users.last_name
	PasswordHash     string    // users.password_hash
	RefreshTokenHash *string   // users.refresh_token_hash (nullable)
	Role             Role      // users.role
	IsActive         bool      // users.is_active
	CreatedAt        time.Time // users.created_at
	UpdatedAt        time.Time // users.updated_at
}

// Sanitized returns a copy of u with all hash material removed.
func (u User) Sanitized() User {
	u.PasswordHash = ""
	u.RefreshTokenHash = nil
	return u
}

// Identity is the public view of a user returned by the API and attached
// to authenticated requests.
type Identity struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Role      Role      `json:"role"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Identity projects u onto its public fields.
func (u User) Identity() Identity {
	return Identity{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// HasRole reports whether the identity's role is one of roles.
func (i Identity) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if i.Role == r {
			return true
		}
	}
	return false
}
