// Package checksum computes content digests for source files and runs.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/starford/taxport/internal/models"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Fingerprint digests an ordered set of sources by path and checksum, so
// two runs over unchanged input share the same fingerprint.
func Fingerprint(sources []models.SourceMeta) string {
	h := sha256.New()
	for _, s := range sources {
		h.Write([]byte(s.Path))
		h.Write([]byte{0})
		h.Write([]byte(s.Checksum))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
