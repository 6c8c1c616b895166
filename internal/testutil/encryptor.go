package testutil

import (
	"filmcat/internal/catalog"
	"filmcat/internal/encryption"
)

// NewTestEncryptor creates a keyless, reversible encryptor for backup tests.
func NewTestEncryptor() catalog.Encryptor {
	return encryption.NewTestEncryptor()
}
