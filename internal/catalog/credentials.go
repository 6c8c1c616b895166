package catalog

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MinPasswordLength is the minimum number of characters in a password.
const MinPasswordLength = 8

// MaxPasswordBytes is the longest password bcrypt can digest.
const MaxPasswordBytes = 72

// PasswordHasher turns passwords into one-way digests and checks them.
type PasswordHasher interface {
	// Hash returns the digest to store for password.
	Hash(password string) (string, error)

	// Verify reports whether password matches the stored digest.
	Verify(password, digest string) bool

	// NeedsRehash reports whether digest was produced by an older scheme
	// and should be replaced after the next successful Verify.
	NeedsRehash(digest string) bool
}

// ValidatePasswordStrength checks a candidate password against the account's
// personal details. It returns nil for a strong password and a
// *ValidationError wrapping ErrWeakPassword otherwise.
func ValidatePasswordStrength(password, username, firstName, lastName string) error {
	weak := func(reason string) error {
		return &ValidationError{Field: "password", Err: fmt.Errorf("%w: %s", ErrWeakPassword, reason)}
	}

	if utf8.RuneCountInString(password) < MinPasswordLength {
		return weak(fmt.Sprintf("must be at least %d characters", MinPasswordLength))
	}
	if len(password) > MaxPasswordBytes {
		return weak(fmt.Sprintf("must be at most %d bytes", MaxPasswordBytes))
	}

	var hasUpper, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		case !unicode.IsLetter(r) && !unicode.IsNumber(r):
			hasSpecial = true
		}
	}
	if !hasUpper {
		return weak("needs an uppercase letter")
	}
	if !hasDigit {
		return weak("needs a digit")
	}
	if !hasSpecial {
		return weak("needs a special character")
	}

	lower := strings.ToLower(password)
	for _, info := range []string{username, firstName, lastName} {
		// Very short names would reject too many passwords.
		if utf8.RuneCountInString(info) <= 2 {
			continue
		}
		if strings.Contains(lower, strings.ToLower(info)) {
			return weak("must not contain your name or username")
		}
	}
	return nil
}
