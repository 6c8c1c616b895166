package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"filmcat/internal/catalog"
	"filmcat/internal/store/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore keeps documents as rows of an embedded SQLite database.
// Each Save runs in one transaction that checks the document revision this
// store last saw, copies the previous body to document_backups, writes the
// new body and records the save in save_log.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	skip   map[string]bool
	clock  catalog.Clock
	logger catalog.Logger

	mu        sync.Mutex
	revisions map[string]int64 // last seen revision; 0 when the row was absent
}

var _ Backend = (*SQLiteStore)(nil)

// OpenConnection opens and configures a SQLite connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	return db, nil
}

// NewSQLiteStore opens the database at path. With autoMigrate the schema is
// brought up to date first; otherwise an outdated schema is an error.
func NewSQLiteStore(path string, autoMigrate bool, skipSaves []string, clock catalog.Clock, logger catalog.Logger) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("db_path is required for the sqlite store")
	}
	skip := make(map[string]bool, len(skipSaves))
	for _, name := range skipSaves {
		if err := knownStore(name); err != nil {
			return nil, fmt.Errorf("skip_saves: %w", err)
		}
		skip[name] = true
	}

	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if autoMigrate {
		if err := migrations.Up(db); err != nil {
			db.Close()
			return nil, err
		}
	}
	if err := migrations.CheckStatus(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("checking schema of %s: %w", path, err)
	}

	return &SQLiteStore{
		db:        db,
		path:      path,
		skip:      skip,
		clock:     clock,
		logger:    logger,
		revisions: make(map[string]int64),
	}, nil
}

func (s *SQLiteStore) Load(name string, v any) (bool, error) {
	if err := knownStore(name); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var body string
	var revision int64
	err := s.db.QueryRow("SELECT body, revision FROM documents WHERE name = ?", name).Scan(&body, &revision)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.revisions[name] = 0
			return false, nil
		}
		return false, &catalog.PersistenceError{Store: name, Op: "load", Err: err}
	}
	if err := json.Unmarshal([]byte(body), v); err != nil {
		return false, &catalog.MalformedStoreError{Store: name, Path: s.path, Err: err}
	}

	s.revisions[name] = revision
	s.logger.Debug("store loaded", "store", name, "revision", revision)
	return true, nil
}

func (s *SQLiteStore) Save(name string, v any) error {
	if err := knownStore(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if s.skip[name] {
		if _, err := s.db.Exec("INSERT INTO save_log (store, action, at) VALUES (?, ?, ?)",
			name, "SKIP_SAVE", now.Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("recording skipped save: %w", err)
		}
		s.logger.Info("save skipped", "store", name)
		return nil
	}

	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}

	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	var previous string
	var revision int64
	err = tx.QueryRowContext(ctx, "SELECT body, revision FROM documents WHERE name = ?", name).Scan(&previous, &revision)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("reading current %s: %w", name, err)
	}
	exists := err == nil

	if want, seen := s.revisions[name]; seen && want != revision {
		return fmt.Errorf("%s at revision %d, expected %d: %w", name, revision, want, catalog.ErrStaleStore)
	}

	stamp := now.Format(time.RFC3339Nano)
	if exists {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO document_backups (name, body, revision, created_at) VALUES (?, ?, ?, ?)",
			name, previous, revision, stamp); err != nil {
			return fmt.Errorf("backing up %s: %w", name, err)
		}
		res, err := tx.ExecContext(ctx,
			"UPDATE documents SET body = ?, revision = ?, updated_at = ? WHERE name = ? AND revision = ?",
			string(body), revision+1, stamp, name, revision)
		if err != nil {
			return fmt.Errorf("updating %s: %w", name, err)
		}
		if n, err := res.RowsAffected(); err != nil || n != 1 {
			return fmt.Errorf("%s changed during save: %w", name, catalog.ErrStaleStore)
		}
	} else {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO documents (name, body, revision, updated_at) VALUES (?, ?, ?, ?)",
			name, string(body), revision+1, stamp); err != nil {
			return fmt.Errorf("inserting %s: %w", name, err)
		}
	}

	if _, err := tx.ExecContext(ctx, "INSERT INTO save_log (store, action, at) VALUES (?, ?, ?)",
		name, "SAVE", stamp); err != nil {
		return fmt.Errorf("recording save: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing %s: %w", name, err)
	}

	s.revisions[name] = revision + 1
	s.logger.Debug("store saved", "store", name, "revision", revision+1)
	return nil
}

func (s *SQLiteStore) Info(name string) (Info, error) {
	if err := knownStore(name); err != nil {
		return Info{}, err
	}
	info := Info{Name: name, Location: s.path}

	var body, updated string
	err := s.db.QueryRow("SELECT body, revision, updated_at FROM documents WHERE name = ?", name).
		Scan(&body, &info.Revision, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return info, nil
		}
		return Info{}, fmt.Errorf("reading %s: %w", name, err)
	}
	info.Exists = true
	info.Size = int64(len(body))
	if t, err := time.Parse(time.RFC3339Nano, updated); err == nil {
		info.Modified = t
	}
	return info, nil
}

func (s *SQLiteStore) Backups(name string) ([]Backup, error) {
	if err := knownStore(name); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(
		"SELECT id, length(body), created_at FROM document_backups WHERE name = ? ORDER BY id DESC", name)
	if err != nil {
		return nil, fmt.Errorf("listing backups: %w", err)
	}
	defer rows.Close()

	backups := []Backup{}
	for rows.Next() {
		var id, size int64
		var created string
		if err := rows.Scan(&id, &size, &created); err != nil {
			return nil, fmt.Errorf("scanning backup: %w", err)
		}
		b := Backup{Ref: strconv.FormatInt(id, 10), Size: size}
		if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
			b.CreatedAt = t
		}
		backups = append(backups, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing backups: %w", err)
	}
	return backups, nil
}

// Restore copies the backup row with id ref back into documents as a new
// revision. dec is unused: SQLite backups are not encrypted.
func (s *SQLiteStore) Restore(name, ref string, _ catalog.DecryptionContext) error {
	if err := knownStore(name); err != nil {
		return err
	}
	id, err := strconv.ParseInt(ref, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid backup id %q", ref)
	}

	var body string
	err = s.db.QueryRow("SELECT body FROM document_backups WHERE id = ? AND name = ?", id, name).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &catalog.NotFoundError{Entity: "backup", Key: ref}
		}
		return fmt.Errorf("reading backup: %w", err)
	}
	if !json.Valid([]byte(body)) {
		return &catalog.MalformedStoreError{Store: name, Path: s.path, Err: errors.New("backup is not valid JSON")}
	}

	// Restoring is an operator action; it supersedes whatever this store saw.
	s.mu.Lock()
	delete(s.revisions, name)
	s.mu.Unlock()

	if err := s.Save(name, json.RawMessage(body)); err != nil {
		return fmt.Errorf("restoring %s from backup %d: %w", name, id, err)
	}
	s.logger.Info("store restored", "store", name, "from", id)
	return nil
}

// SaveLog returns the recorded save actions for name, oldest first.
func (s *SQLiteStore) SaveLog(name string) ([]string, error) {
	rows, err := s.db.Query("SELECT action, at FROM save_log WHERE store = ? ORDER BY id", name)
	if err != nil {
		return nil, fmt.Errorf("reading save log: %w", err)
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var action, at string
		if err := rows.Scan(&action, &at); err != nil {
			return nil, fmt.Errorf("scanning save log: %w", err)
		}
		lines = append(lines, action+" "+at)
	}
	return lines, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
