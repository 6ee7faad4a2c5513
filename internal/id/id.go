package id

import (
	"crypto/rand"
	"encoding/hex"
)

// Suffix returns 12 lowercase hex characters from 6 random bytes. It is
// appended to every output base name so concurrent uploads with identical
// declared names never collide on disk.
func Suffix() string {
	var b [6]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "000000000000"
	}
	return hex.EncodeToString(b[:])
}
