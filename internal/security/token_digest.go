package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// DigestToken returns the hex SHA-256 digest of a refresh token. Session stores
// persist the digest instead of the raw token.
func DigestToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// DigestMatches reports, in constant time, whether token hashes to storedDigest.
// An empty token or digest never matches.
func DigestMatches(token, storedDigest string) bool {
	if token == "" || storedDigest == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(DigestToken(token)), []byte(storedDigest)) == 1
}
