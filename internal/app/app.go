package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"filmcat/internal/catalog"
	"filmcat/internal/config"
	"filmcat/internal/credential"
	"filmcat/internal/encryption"
	"filmcat/internal/store"
)

// ErrNotLoggedIn is returned by operations that need an actor when no
// session is active.
var ErrNotLoggedIn = errors.New("not logged in")

// FilmApp is the application layer between the CLI and the catalog.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw CLI input, and releases resources on Close.
type FilmApp struct {
	cfg       *config.Config
	clock     catalog.Clock
	store     store.Backend
	encryptor catalog.Encryptor
	directory *catalog.Directory
	catalog   *catalog.Catalog
	logger    catalog.Logger
	op        *Operation
	logFile   *os.File
	session   *catalog.Session
}

// Options adjusts how NewFilmApp builds the application.
type Options struct {
	Verbose bool          // mirror log records to stderr
	Clock   catalog.Clock // defaults to catalog.RealClock
}

// NewFilmApp creates a fully wired FilmApp from the given config.
// operation names the CLI command being run (e.g. "film approve").
// The caller must call Close when done.
func NewFilmApp(cfg *config.Config, operation string, opts Options) (*FilmApp, error) {
	clock := opts.Clock
	if clock == nil {
		clock = catalog.RealClock{}
	}
	op := NewOperation(operation, clock.Now())

	slogger, logFile, err := newLogger(cfg.LogDir, op.ID, opts.Verbose)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	a, err := wire(cfg, clock, logger)
	if err != nil {
		logger.Error("startup failed", "operation", operation, "error", err)
		logFile.Close()
		return nil, err
	}
	a.op = op
	a.logFile = logFile
	logger.Debug("operation started", "operation", operation)
	return a, nil
}

func wire(cfg *config.Config, clock catalog.Clock, logger catalog.Logger) (*FilmApp, error) {
	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}
	hasher, err := credential.NewHasherFromConfig(cfg.Credentials)
	if err != nil {
		return nil, fmt.Errorf("creating password hasher: %w", err)
	}
	backend, err := store.NewStoreFromConfig(cfg.Storage, enc, clock, logger)
	if err != nil {
		return nil, fmt.Errorf("creating store: %w", err)
	}

	dir, err := catalog.OpenDirectory(backend, hasher, clock, catalog.UUIDGenerator{}, logger)
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("opening users: %w", err)
	}
	cat, err := catalog.OpenCatalog(backend, clock, logger)
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("opening films: %w", err)
	}

	return &FilmApp{
		cfg:       cfg,
		clock:     clock,
		store:     backend,
		encryptor: enc,
		directory: dir,
		catalog:   cat,
		logger:    logger,
	}, nil
}

// Login starts a session for the account. Later operations act as that user.
func (a *FilmApp) Login(email, password string) (*catalog.User, error) {
	sess, err := a.directory.Login(email, password)
	if err != nil {
		return nil, a.fail(err)
	}
	a.session = sess
	return sess.User(), nil
}

// Logout ends the current session, if any.
func (a *FilmApp) Logout() {
	a.directory.Logout(a.session)
	a.session = nil
}

// CurrentUser returns the logged-in account, or nil.
func (a *FilmApp) CurrentUser() *catalog.User {
	return a.session.User()
}

func (a *FilmApp) actor() (*catalog.User, error) {
	u := a.session.User()
	if u == nil {
		return nil, a.fail(ErrNotLoggedIn)
	}
	return u, nil
}

// Register creates an account. A non-zero adminLevel creates an
// administrator and requires the current session to be an administrator,
// except for the very first account, which bootstraps the directory.
func (a *FilmApp) Register(reg catalog.Registration) (*catalog.User, error) {
	if reg.AdminLevel > 0 && a.directory.Count() > 0 && !a.session.IsAdmin() {
		return nil, a.fail(&catalog.PermissionError{Action: "register administrators", UserID: userID(a.session.User())})
	}
	u, err := a.directory.Register(reg)
	return u, a.fail(err)
}

// Users returns every account in ID order.
func (a *FilmApp) Users() []*catalog.User {
	return a.directory.All()
}

// Promote grants the admin capability to the account with the given ID.
func (a *FilmApp) Promote(userID int64, level int) (*catalog.User, error) {
	actor, err := a.actor()
	if err != nil {
		return nil, err
	}
	u, err := a.directory.Promote(actor, userID, level)
	return u, a.fail(err)
}

// FilmInput carries film attributes as entered on the command line.
// ReleaseDate is YYYY-MM-DD.
type FilmInput struct {
	Title       string
	Genre       string
	ReleaseDate string
	PosterPath  string
	TrailerURL  string
	Description string
}

func (in FilmInput) fields() (catalog.FilmFields, error) {
	released, err := parseDate(in.ReleaseDate)
	if err != nil {
		return catalog.FilmFields{}, err
	}
	return catalog.FilmFields{
		Title:       in.Title,
		Genre:       in.Genre,
		ReleaseDate: released,
		PosterPath:  in.PosterPath,
		TrailerURL:  in.TrailerURL,
		Description: in.Description,
	}, nil
}

// ProposeFilm submits a film for moderation as the current user.
func (a *FilmApp) ProposeFilm(in FilmInput) (*catalog.Film, error) {
	actor, err := a.actor()
	if err != nil {
		return nil, err
	}
	fields, err := in.fields()
	if err != nil {
		return nil, a.fail(err)
	}
	f, err := a.catalog.Propose(fields, actor)
	return f, a.fail(err)
}

// AddFilm adds an approved film as the current administrator.
func (a *FilmApp) AddFilm(in FilmInput) (*catalog.Film, error) {
	actor, err := a.actor()
	if err != nil {
		return nil, err
	}
	fields, err := in.fields()
	if err != nil {
		return nil, a.fail(err)
	}
	f, err := a.catalog.AddApproved(fields, actor)
	return f, a.fail(err)
}

// ApproveFilm approves a pending film.
func (a *FilmApp) ApproveFilm(id int64) (*catalog.Film, error) {
	actor, err := a.actor()
	if err != nil {
		return nil, err
	}
	f, err := a.catalog.Approve(id, actor)
	return f, a.fail(err)
}

// RejectFilm marks a film unapproved.
func (a *FilmApp) RejectFilm(id int64) (*catalog.Film, error) {
	actor, err := a.actor()
	if err != nil {
		return nil, err
	}
	f, err := a.catalog.Reject(id, actor)
	return f, a.fail(err)
}

// FilmUpdate carries the flags given to "film update". Nil fields were not set.
type FilmUpdate struct {
	Title       *string
	Genre       *string
	ReleaseDate *string
	PosterPath  *string
	TrailerURL  *string
	Description *string
}

// UpdateFilm applies the set fields of upd to a film.
func (a *FilmApp) UpdateFilm(id int64, upd FilmUpdate) (*catalog.Film, error) {
	actor, err := a.actor()
	if err != nil {
		return nil, err
	}
	changes := catalog.FilmChanges{
		Title:       upd.Title,
		Genre:       upd.Genre,
		PosterPath:  upd.PosterPath,
		TrailerURL:  upd.TrailerURL,
		Description: upd.Description,
	}
	if upd.ReleaseDate != nil {
		released, err := parseDate(*upd.ReleaseDate)
		if err != nil {
			return nil, a.fail(err)
		}
		changes.ReleaseDate = &released
	}
	f, err := a.catalog.Update(id, changes, actor)
	return f, a.fail(err)
}

// DeleteFilm removes a film.
func (a *FilmApp) DeleteFilm(id int64) error {
	actor, err := a.actor()
	if err != nil {
		return err
	}
	return a.fail(a.catalog.Delete(id, actor))
}

// SearchFilms filters the catalog. released is "", "YYYY" or "YYYY-MM-DD".
func (a *FilmApp) SearchFilms(title, genre, released string, approvedOnly bool) ([]*catalog.Film, error) {
	rf, err := catalog.ParseReleaseFilter(released)
	if err != nil {
		return nil, a.fail(err)
	}
	return a.catalog.Search(catalog.Query{
		Title:        title,
		Genre:        genre,
		Released:     rf,
		ApprovedOnly: approvedOnly,
	}), nil
}

// PendingFilms returns the films awaiting approval.
func (a *FilmApp) PendingFilms() []*catalog.Film {
	return a.catalog.Pending()
}

// FilmCounts returns the total and approved film counts.
func (a *FilmApp) FilmCounts() (total, approved int) {
	return a.catalog.Count()
}

// Film returns a film with up to limit audit entries, newest first.
func (a *FilmApp) Film(id int64, limit int) (*catalog.Film, []catalog.AuditLogEntry, error) {
	f, err := a.catalog.Get(id)
	if err != nil {
		return nil, nil, a.fail(err)
	}
	history, err := a.catalog.History(id, limit)
	if err != nil {
		return nil, nil, a.fail(err)
	}
	return f, history, nil
}

// StoreInfo describes the users and films documents.
func (a *FilmApp) StoreInfo() ([]store.Info, error) {
	var infos []store.Info
	for _, name := range []string{catalog.UsersStore, catalog.FilmsStore} {
		info, err := a.store.Info(name)
		if err != nil {
			return nil, a.fail(err)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Backups lists the retained previous versions of a store, newest first.
func (a *FilmApp) Backups(name string) ([]store.Backup, error) {
	b, err := a.store.Backups(name)
	return b, a.fail(err)
}

// RestoreBackup replaces a store with one of its backups. passphrase
// unlocks the private key for encrypted backups and is ignored otherwise.
func (a *FilmApp) RestoreBackup(name, ref, passphrase string) error {
	var dec catalog.DecryptionContext
	if a.encryptor != nil && passphrase != "" {
		ctx, err := a.encryptor.Unlock(passphrase)
		if err != nil {
			return a.fail(fmt.Errorf("unlocking private key: %w", err))
		}
		dec = ctx
	}
	return a.fail(a.store.Restore(name, ref, dec))
}

// BackupsEncrypted reports whether backups are sealed with the configured key.
func (a *FilmApp) BackupsEncrypted() bool {
	return a.encryptor != nil
}

// InitKeys generates the backup encryption key pair.
func (a *FilmApp) InitKeys(passphrase string) error {
	if a.encryptor == nil {
		return a.fail(fmt.Errorf("encryption is disabled; set [encryption] type in the config first"))
	}
	if err := a.encryptor.Setup(passphrase); err != nil {
		return a.fail(fmt.Errorf("setting up keys: %w", err))
	}
	a.logger.Info("encryption keys created", "public_key", a.cfg.Encryption.PublicKeyPath)
	return nil
}

// Close ends the session, logs the operation outcome and releases resources.
func (a *FilmApp) Close() error {
	a.Logout()

	var firstErr error
	if err := a.store.Close(); err != nil {
		firstErr = fmt.Errorf("closing store: %w", err)
		a.op.Fail(firstErr)
	}

	elapsed := a.clock.Now().Sub(a.op.StartedAt)
	if a.op.Succeeded() {
		a.logger.Info("operation finished", "operation", a.op.Name, "status", a.op.Status, "elapsed", elapsed)
	} else {
		a.logger.Warn("operation finished", "operation", a.op.Name, "status", a.op.Status, "elapsed", elapsed, "error", a.op.Err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}

// fail records err against the operation and returns it unchanged.
func (a *FilmApp) fail(err error) error {
	if err != nil && a.op != nil {
		a.op.Fail(err)
	}
	return err
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, &catalog.ValidationError{
			Field: "release_date",
			Err:   fmt.Errorf("%w: %q is not YYYY-MM-DD", catalog.ErrInvalidField, s),
		}
	}
	return t, nil
}

func userID(u *catalog.User) int64 {
	if u == nil {
		return 0
	}
	return u.ID
}
