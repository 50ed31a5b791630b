package usecase

import (
	"crypto/sha1"

	"github.com/google/uuid"
)

// StableID derives a service id from its name: SHA-1 over the UTF-8 bytes,
// truncated to 16 bytes, with the version nibble forced to 5 and the RFC 4122
// variant bits set. The result is rendered as a canonical lowercase UUID.
//
// Ids written by earlier seeders for the same name keep resolving to the same
// row, so the algorithm must not change.
func StableID(name string) string {
	sum := sha1.Sum([]byte(name))
	var raw [16]byte
	copy(raw[:], sum[:16])
	raw[6] = (raw[6] & 0x0f) | 0x50
	raw[8] = (raw[8] & 0x3f) | 0x80
	return uuid.UUID(raw).String()
}
