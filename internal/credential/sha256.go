package credential

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"filmcat/internal/catalog"
)

// HashPassword returns the lowercase hex SHA-256 digest of password.
// The digest is deterministic and unsalted; it is the legacy storage format.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// VerifyPassword recomputes the SHA-256 digest of password and compares it
// with digest.
func VerifyPassword(password, digest string) bool {
	return subtle.ConstantTimeCompare([]byte(HashPassword(password)), []byte(digest)) == 1
}

// isSHA256Digest reports whether digest has the shape of a legacy digest.
func isSHA256Digest(digest string) bool {
	if len(digest) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(digest)
	return err == nil
}

// SHA256Hasher stores unsalted SHA-256 digests. Kept for stores written by
// older versions and for deterministic tests.
type SHA256Hasher struct{}

var _ catalog.PasswordHasher = SHA256Hasher{}

func (SHA256Hasher) Hash(password string) (string, error) { return HashPassword(password), nil }

func (SHA256Hasher) Verify(password, digest string) bool { return VerifyPassword(password, digest) }

func (SHA256Hasher) NeedsRehash(string) bool { return false }
