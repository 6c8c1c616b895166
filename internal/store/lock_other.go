//go:build !unix

package store

// lockFile is a no-op where flock is unavailable; the digest check still
// detects concurrent writers.
func lockFile(string) (func(), error) {
	return func() {}, nil
}
