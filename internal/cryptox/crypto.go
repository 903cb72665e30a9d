// Package cryptox derives password verifiers. The server stores one per user
// and the client keeps one for offline login; neither keeps the password.
package cryptox

import (
	"crypto/sha256"
	"crypto/subtle"

	"github.com/dmitrijs2005/wetmap/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	SaltLength = 16
	keyLength  = 32
)

// NewSalt returns a fresh random salt.
func NewSalt() []byte {
	return common.GenerateRandByteArray(SaltLength)
}

// DeriveKey stretches password with argon2id.
func DeriveKey(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, keyLength)
}

// MakeVerifier returns the stored form of a derived key.
func MakeVerifier(key []byte) []byte {
	hash := sha256.Sum256(key)
	return hash[:]
}

// HashPassword derives the verifier for password under salt.
func HashPassword(password string, salt []byte) []byte {
	key := DeriveKey([]byte(password), salt)
	defer common.WipeByteArray(key)
	return MakeVerifier(key)
}

// VerifyPassword reports whether password matches verifier. The comparison
// runs in constant time.
func VerifyPassword(password string, salt, verifier []byte) bool {
	if len(salt) == 0 || len(verifier) == 0 {
		return false
	}
	candidate := HashPassword(password, salt)
	return subtle.ConstantTimeCompare(candidate, verifier) == 1
}
