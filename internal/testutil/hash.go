package testutil

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"

	"filmcat/internal/catalog"
	"filmcat/internal/credential"
)

// LegacyDigest returns the unsalted SHA-256 hex digest that older users
// stores hold in password_hash.
func LegacyDigest(password string) string {
	h := sha256.Sum256([]byte(password))
	return hex.EncodeToString(h[:])
}

// FastHasher returns a bcrypt hasher at the minimum cost so tests stay quick.
func FastHasher() catalog.PasswordHasher {
	h, err := credential.NewBcryptHasher(bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return h
}
