// Package checksum computes content checksums used as notebook ETags.
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

// Matches reports whether etag names the checksum of data. Surrounding
// quotes and a weak-validator prefix are ignored; an empty etag always matches.
func Matches(data []byte, etag string) bool {
	etag = strings.TrimPrefix(strings.TrimSpace(etag), "W/")
	etag = strings.Trim(etag, `"`)
	if etag == "" || etag == "*" {
		return true
	}
	return etag == Sum(data)
}
