package utils

import "golang.org/x/crypto/bcrypt"

// MaxPasswordBytes is bcrypt's input limit; longer passwords are rejected
// with bcrypt.ErrPasswordTooLong.
const MaxPasswordBytes = 72

// HashPassword returns bcrypt hash using the given cost.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares bcrypt hash and plain password.  An empty
// hash never matches.
func VerifyPassword(hash, plain string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
