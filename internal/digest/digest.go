// Package digest fingerprints fetched page bodies so the crawler can
// recognize the same content served under different URLs.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
)

// Body returns the hex-encoded SHA-256 digest of a page body. Byte-identical
// bodies always produce the same digest regardless of the URL they were
// fetched from.
func Body(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
