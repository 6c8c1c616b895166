package store

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"filmcat/internal/catalog"
)

const (
	backupInfix      = ".backup."
	backupTimeLayout = "20060102_150405"
	encryptedSuffix  = ".age"
	saveLogName      = "save_log.txt"
)

// JSONFileStore keeps each document in its own indented JSON file.
//
// Every Save backs up the previous file next to it as
// <path>.backup.<YYYYMMDD_HHMMSS> (sealed with the Encryptor and suffixed
// .age when one is set) and appends a line to save_log.txt in the file's
// directory. Saves are serialized across processes with an flock on
// <path>.lock, and a digest of the file as last seen by this store detects
// writes made by other processes in between.
type JSONFileStore struct {
	paths  map[string]string
	skip   map[string]bool
	enc    catalog.Encryptor
	clock  catalog.Clock
	logger catalog.Logger

	mu      sync.Mutex
	digests map[string]string // last seen digest; "" when the file was absent
	reports map[string]SaveReport
}

var _ Backend = (*JSONFileStore)(nil)

// NewJSONFileStore creates a store over the given users and films paths.
// Documents named in skipSaves are never written; their saves are only
// recorded in the save log. enc may be nil for plaintext backups.
func NewJSONFileStore(usersPath, filmsPath string, skipSaves []string, enc catalog.Encryptor, clock catalog.Clock, logger catalog.Logger) (*JSONFileStore, error) {
	if usersPath == "" || filmsPath == "" {
		return nil, fmt.Errorf("users_path and films_path are required for the json store")
	}
	skip := make(map[string]bool, len(skipSaves))
	for _, name := range skipSaves {
		if err := knownStore(name); err != nil {
			return nil, fmt.Errorf("skip_saves: %w", err)
		}
		skip[name] = true
	}
	return &JSONFileStore{
		paths: map[string]string{
			catalog.UsersStore: usersPath,
			catalog.FilmsStore: filmsPath,
		},
		skip:    skip,
		enc:     enc,
		clock:   clock,
		logger:  logger,
		digests: make(map[string]string),
		reports: make(map[string]SaveReport),
	}, nil
}

// Path returns the file backing the named document.
func (s *JSONFileStore) Path(name string) (string, error) {
	path, ok := s.paths[name]
	if !ok {
		return "", knownStore(name)
	}
	return path, nil
}

func (s *JSONFileStore) Load(name string, v any) (bool, error) {
	path, err := s.Path(name)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.digests[name] = ""
			return false, nil
		}
		return false, &catalog.PersistenceError{Store: name, Op: "load", Err: err}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, &catalog.MalformedStoreError{Store: name, Path: path, Err: err}
	}

	s.digests[name] = digest(data)
	s.logger.Debug("store loaded", "store", name, "path", path, "bytes", len(data))
	return true, nil
}

func (s *JSONFileStore) Save(name string, v any) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if s.skip[name] {
		s.appendSaveLog(path, fmt.Sprintf("SKIP_SAVE_%s %s at %s", strings.ToUpper(name), path, now.Format(time.RFC3339)))
		s.reports[name] = SaveReport{Store: name, Skipped: true, At: now}
		s.logger.Info("save skipped", "store", name, "path", path)
		return nil
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}
	unlock, err := lockFile(path + ".lock")
	if err != nil {
		return err
	}
	defer unlock()

	current, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reading current %s: %w", name, err)
	}
	exists := err == nil
	if err := s.checkFresh(name, current, exists); err != nil {
		return err
	}

	report := SaveReport{Store: name, At: now}
	if exists {
		report.BackupRef, report.BackupErr = s.backup(path, current, now)
		if report.BackupErr != nil {
			s.logger.Warn("backup failed", "store", name, "path", path, "error", report.BackupErr)
		}
	}

	if err := writeFileAtomic(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	}, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	s.digests[name] = digest(data)
	s.reports[name] = report
	s.appendSaveLog(path, fmt.Sprintf("SAVE_%s %s at %s", strings.ToUpper(name), path, now.Format(time.RFC3339)))
	s.logger.Debug("store saved", "store", name, "path", path, "bytes", len(data), "backup", report.BackupRef)
	return nil
}

// LastSave returns the report of the most recent Save of the named document.
func (s *JSONFileStore) LastSave(name string) (SaveReport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[name]
	return r, ok
}

// checkFresh compares the file on disk with what this store last saw. A
// document this store never loaded has no expectation to violate.
func (s *JSONFileStore) checkFresh(name string, current []byte, exists bool) error {
	want, seen := s.digests[name]
	if !seen {
		return nil
	}
	got := ""
	if exists {
		got = digest(current)
	}
	if got != want {
		return fmt.Errorf("%s: %w", s.paths[name], catalog.ErrStaleStore)
	}
	return nil
}

// backup writes the previous contents of path next to it. A backup taken
// in the same second as an existing one gets a _N sequence suffix.
// Callers hold the store lock.
func (s *JSONFileStore) backup(path string, data []byte, now time.Time) (string, error) {
	base := path + backupInfix + now.Format(backupTimeLayout)
	suffix := ""
	write := func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	}
	if s.enc != nil {
		suffix = encryptedSuffix
		write = func(w io.Writer) error {
			return s.enc.Encrypt(bytes.NewReader(data), w)
		}
	}

	dest := base + suffix
	for seq := 1; ; seq++ {
		_, err := os.Lstat(dest)
		if errors.Is(err, os.ErrNotExist) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("checking %s: %w", dest, err)
		}
		dest = fmt.Sprintf("%s_%d%s", base, seq, suffix)
	}
	if err := writeFileAtomic(dest, write, 0600); err != nil {
		return "", fmt.Errorf("backing up to %s: %w", dest, err)
	}
	return dest, nil
}

// appendSaveLog records one line in the save log. A failed append is logged
// but never fails the save it describes.
func (s *JSONFileStore) appendSaveLog(path, line string) {
	logPath := filepath.Join(filepath.Dir(path), saveLogName)
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		s.logger.Warn("save log unavailable", "path", logPath, "error", err)
		return
	}
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		s.logger.Warn("save log unavailable", "path", logPath, "error", err)
		return
	}
	defer f.Close()
	if _, err := fmt.Fprintln(f, line); err != nil {
		s.logger.Warn("save log append failed", "path", logPath, "error", err)
	}
}

func (s *JSONFileStore) Info(name string) (Info, error) {
	path, err := s.Path(name)
	if err != nil {
		return Info{}, err
	}
	info := Info{Name: name, Location: path}
	st, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return info, nil
		}
		return Info{}, fmt.Errorf("stat %s: %w", path, err)
	}
	info.Exists = true
	info.Size = st.Size()
	info.Modified = st.ModTime()
	return info, nil
}

func (s *JSONFileStore) Backups(name string) ([]Backup, error) {
	path, err := s.Path(name)
	if err != nil {
		return nil, err
	}
	matches, err := filepath.Glob(path + backupInfix + "*")
	if err != nil {
		return nil, fmt.Errorf("listing backups: %w", err)
	}

	type entry struct {
		Backup
		seq int
	}
	entries := make([]entry, 0, len(matches))
	for _, m := range matches {
		created, seq, ok := parseBackupName(strings.TrimSuffix(strings.TrimPrefix(m, path+backupInfix), encryptedSuffix))
		if !ok {
			continue
		}
		e := entry{Backup: Backup{Ref: m, CreatedAt: created, Encrypted: strings.HasSuffix(m, encryptedSuffix)}, seq: seq}
		if st, err := os.Stat(m); err == nil {
			e.Size = st.Size()
		}
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.After(entries[j].CreatedAt)
		}
		return entries[i].seq > entries[j].seq
	})

	backups := make([]Backup, len(entries))
	for i, e := range entries {
		backups[i] = e.Backup
	}
	return backups, nil
}

// parseBackupName splits "20060102_150405" or "20060102_150405_N" into the
// backup time and its sequence number within that second.
func parseBackupName(name string) (time.Time, int, bool) {
	if len(name) < len(backupTimeLayout) {
		return time.Time{}, 0, false
	}
	created, err := time.Parse(backupTimeLayout, name[:len(backupTimeLayout)])
	if err != nil {
		return time.Time{}, 0, false
	}
	rest := name[len(backupTimeLayout):]
	if rest == "" {
		return created, 0, true
	}
	if !strings.HasPrefix(rest, "_") {
		return time.Time{}, 0, false
	}
	seq, err := strconv.Atoi(rest[1:])
	if err != nil || seq < 1 {
		return time.Time{}, 0, false
	}
	return created, seq, true
}

func (s *JSONFileStore) Restore(name, ref string, dec catalog.DecryptionContext) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(ref, path+backupInfix) {
		return fmt.Errorf("%s is not a backup of %s", ref, path)
	}

	data, err := readBackup(ref, dec)
	if err != nil {
		return err
	}
	if !json.Valid(data) {
		return &catalog.MalformedStoreError{Store: name, Path: ref, Err: errors.New("backup is not valid JSON")}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := lockFile(path + ".lock")
	if err != nil {
		return err
	}
	defer unlock()

	now := s.clock.Now()
	current, err := os.ReadFile(path)
	switch {
	case err == nil:
		if _, err := s.backup(path, current, now); err != nil {
			return fmt.Errorf("backing up before restore: %w", err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("reading current %s: %w", name, err)
	}

	if err := writeFileAtomic(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	}, 0644); err != nil {
		return fmt.Errorf("restoring %s: %w", path, err)
	}

	s.digests[name] = digest(data)
	s.appendSaveLog(path, fmt.Sprintf("RESTORE_%s %s from %s at %s", strings.ToUpper(name), path, ref, now.Format(time.RFC3339)))
	s.logger.Info("store restored", "store", name, "from", ref)
	return nil
}

func (s *JSONFileStore) Close() error { return nil }

func readBackup(ref string, dec catalog.DecryptionContext) ([]byte, error) {
	f, err := os.Open(ref)
	if err != nil {
		return nil, fmt.Errorf("opening backup: %w", err)
	}
	defer f.Close()

	if !strings.HasSuffix(ref, encryptedSuffix) {
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("reading backup: %w", err)
		}
		return data, nil
	}
	if dec == nil {
		return nil, fmt.Errorf("backup %s is encrypted; unlock the private key first", ref)
	}
	var buf bytes.Buffer
	if err := dec.Decrypt(f, &buf); err != nil {
		return nil, fmt.Errorf("decrypting backup: %w", err)
	}
	return buf.Bytes(), nil
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
