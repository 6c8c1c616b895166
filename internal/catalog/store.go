package catalog

import "io"

// Store names for the two logical collections.
const (
	UsersStore = "users"
	FilmsStore = "films"
)

// Store persists named collections as JSON documents.
//
// Load decodes the named document into v and reports whether it existed; a
// missing document is not an error. A document that exists but cannot be
// decoded yields a *MalformedStoreError.
//
// Save replaces the named document with v. Implementations back up the
// previous version before overwriting it and record the save. A Save that
// returns an error must leave the previously persisted document intact.
// ErrStaleStore is returned when another writer changed the document since
// this Store last loaded or saved it.
type Store interface {
	Load(name string, v any) (bool, error)
	Save(name string, v any) error
}

// Encryptor seals backup copies before they are written next to a store.
// Encryption uses the public key only; no passphrase is required.
type Encryptor interface {
	// Setup performs one-time key generation, protecting the private key
	// with the passphrase.
	Setup(passphrase string) error

	// Encrypt encrypts data read from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key and returns a DecryptionContext for
	// restoring encrypted backups.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured returns true if the key material exists.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory for the duration
// of a restore.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
