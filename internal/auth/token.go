package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/iliyamo/api-starter/internal/config"
	"github.com/iliyamo/api-starter/internal/model"
)

// Claims is the payload carried by both access and refresh tokens.
type Claims struct {
	Username string     `json:"username"`
	Email    string     `json:"email"`
	Role     model.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenPair is the result of a successful login, registration or refresh.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// TokenIssuer mints and verifies HS256 tokens. Access and refresh tokens
// use separate secrets and lifetimes.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	now           func() time.Time
}

// NewTokenIssuer builds an issuer from cfg. now defaults to time.Now.
func NewTokenIssuer(cfg config.JWTConfig, now func() time.Time) *TokenIssuer {
	if now == nil {
		now = time.Now
	}
	return &TokenIssuer{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		issuer:        cfg.Issuer,
		now:           now,
	}
}

// IssuePair signs a fresh access/refresh pair for u.
func (i *TokenIssuer) IssuePair(u model.User) (TokenPair, error) {
	now := i.now()
	access, accessExp, err := i.sign(u, now, i.accessTTL, i.accessSecret)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := i.sign(u, now, i.refreshTTL, i.refreshSecret)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// VerifyAccess validates an access token against the access secret.
func (i *TokenIssuer) VerifyAccess(token string) (*Claims, error) {
	return i.verify(token, i.accessSecret)
}

// VerifyRefresh validates a refresh token against the refresh secret.
func (i *TokenIssuer) VerifyRefresh(token string) (*Claims, error) {
	return i.verify(token, i.refreshSecret)
}

// RefreshTTL is the refresh token lifetime, used for cookie max-age.
func (i *TokenIssuer) RefreshTTL() time.Duration { return i.refreshTTL }

func (i *TokenIssuer) sign(u model.User, now time.Time, ttl time.Duration, secret []byte) (string, time.Time, error) {
	exp := now.Add(ttl)
	claims := Claims{
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   u.ID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, claims.ExpiresAt.Time, nil
}

func (i *TokenIssuer) verify(token string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(i.issuer),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, &Error{Kind: KindInvalidToken, Message: ErrInvalidToken.Message, Err: err}
	}
	if !tok.Valid || claims.Subject == "" {
		return nil, &Error{Kind: KindInvalidToken, Message: ErrInvalidToken.Message, Err: errors.New("missing subject")}
	}
	return claims, nil
}
