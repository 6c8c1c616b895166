// Package store implements catalog.Store backends: JSON documents on disk,
// an embedded SQLite database, and an in-memory map.
package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"filmcat/internal/catalog"
)

// Backend is a catalog.Store that operators can inspect and restore.
type Backend interface {
	catalog.Store

	// Info describes the current persisted document.
	Info(name string) (Info, error)

	// Backups lists the retained previous versions of a document, newest first.
	Backups(name string) ([]Backup, error)

	// Restore replaces the document with the backup identified by ref. The
	// current document is backed up first. dec is required for encrypted
	// backups and ignored otherwise.
	Restore(name, ref string, dec catalog.DecryptionContext) error

	Close() error
}

// Info describes a persisted document.
type Info struct {
	Name     string
	Location string
	Exists   bool
	Size     int64
	Modified time.Time
	Revision int64 // zero for backends without revisions
}

// Backup identifies one retained previous version of a document.
type Backup struct {
	Ref       string // file path or backend-specific identifier
	CreatedAt time.Time
	Size      int64
	Encrypted bool
}

// SaveReport describes the outcome of the most recent Save of a document.
// A backup failure never fails the save; it is reported here instead.
type SaveReport struct {
	Store     string
	Skipped   bool
	BackupRef string
	BackupErr error
	At        time.Time
}

func knownStore(name string) error {
	switch name {
	case catalog.UsersStore, catalog.FilmsStore:
		return nil
	default:
		return fmt.Errorf("unknown store %q", name)
	}
}

// writeFileAtomic writes data to path via a temp file in the same
// directory, fsync and rename, so readers see either the old or new file.
func writeFileAtomic(path string, write func(io.Writer) error, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	success = true
	return nil
}
