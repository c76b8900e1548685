// Package sha256 provides SHA-256 digests used to keep artifact names unique.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher derives short hex digests for artifact names.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Short returns the first n hex characters of the digest of s.
func (h *Hasher) Short(s string, n int) string {
	sum := sha256.Sum256([]byte(s))
	digest := hex.EncodeToString(sum[:])
	if n <= 0 || n > len(digest) {
		return digest
	}
	return digest[:n]
}
