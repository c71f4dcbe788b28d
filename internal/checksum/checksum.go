// Package checksum computes the revision tokens used for optimistic concurrency.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Normalize strips ETag decoration (weak prefix, surrounding quotes) from a
// client-supplied revision token.
func Normalize(token string) string {
	token = strings.TrimSpace(token)
	token = strings.TrimPrefix(token, "W/")
	return strings.Trim(token, `"`)
}

// Matches reports whether token names the revision of data.
func Matches(token string, data []byte) bool {
	return Normalize(token) == Sum(data)
}
