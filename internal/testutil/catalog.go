package testutil

import (
	"testing"

	"filmcat/internal/catalog"
)

// TestPassword satisfies the password policy for every account created by
// RegisterUser.
const TestPassword = "Str0ng!Pass"

// NewTestDirectory opens a Directory over s with a fixed clock, sequential
// tokens and a fast hasher.
func NewTestDirectory(t *testing.T, s catalog.Store, clock catalog.Clock) *catalog.Directory {
	t.Helper()
	d, err := catalog.OpenDirectory(s, FastHasher(), clock, NewStubTokenGenerator(), catalog.NewNopLogger())
	if err != nil {
		t.Fatalf("OpenDirectory() error = %v", err)
	}
	return d
}

// NewTestCatalog opens a Catalog over s.
func NewTestCatalog(t *testing.T, s catalog.Store, clock catalog.Clock) *catalog.Catalog {
	t.Helper()
	c, err := catalog.OpenCatalog(s, clock, catalog.NewNopLogger())
	if err != nil {
		t.Fatalf("OpenCatalog() error = %v", err)
	}
	return c
}

// RegisterUser registers username with TestPassword at the given admin
// level (0 for a plain user).
func RegisterUser(t *testing.T, d *catalog.Directory, username string, adminLevel int) *catalog.User {
	t.Helper()
	u, err := d.Register(catalog.Registration{
		FirstName:  "Test",
		LastName:   "Account",
		Email:      username + "@example.com",
		Username:   username,
		Password:   TestPassword,
		AdminLevel: adminLevel,
	})
	if err != nil {
		t.Fatalf("Register(%s) error = %v", username, err)
	}
	return u
}
