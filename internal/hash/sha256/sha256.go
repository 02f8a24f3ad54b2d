// Package sha256 digests snapshot content.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher implements storage.Hasher using SHA-256.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns the hex digest of data. It never fails.
func (h *Hasher) Hash(data []byte) (string, error) {
	return Sum(data), nil
}

// Sum is the plain-function form of Hash.
func Sum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
