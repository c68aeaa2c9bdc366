package utils // package utils provides hashing helpers shared by the auth core

import (
	"crypto/sha256"
	"encoding/hex"
)

// DigestToken returns the SHA-256 hex digest of a raw token.  bcrypt only
// consumes the first 72 bytes of its input and signed tokens share long
// common prefixes, so refresh tokens are digested before being bcrypted.
func DigestToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
