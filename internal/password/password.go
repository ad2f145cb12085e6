// Package password turns plaintext credentials into the digests stored in the
// Users table. Digests are unsalted SHA-256 so they stay compatible with rows
// written by earlier versions of the service.
package password

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strconv"
	"unicode/utf16"
)

// Hash returns the lowercase hex SHA-256 digest of the UTF-8 encoded input.
func Hash(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// Verify reports whether plaintext hashes to digest.
func Verify(plaintext, digest string) bool {
	return subtle.ConstantTimeCompare([]byte(Hash(plaintext)), []byte(digest)) == 1
}

// HashEmail computes the legacy "encrypted email" value: a 31-multiplier
// rolling hash over UTF-16 code units, wrapped to a signed 32-bit integer.
// It is not a security primitive.
func HashEmail(email string) string {
	var h int32
	for _, unit := range utf16.Encode([]rune(email)) {
		h = h*31 + int32(unit)
	}
	return strconv.FormatInt(int64(h), 10)
}
