// Package sha256 derives content-addressed keys for archived pages.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher hex-encodes SHA-256 digests.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns the hex digest of s.
func (Hasher) Hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
