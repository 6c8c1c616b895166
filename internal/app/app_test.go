package app

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"filmcat/internal/catalog"
	"filmcat/internal/config"
	"filmcat/internal/testutil"
)

const password = "Pass123!"

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig(t.TempDir())
	cfg.Credentials = config.CredentialsConfig{Hasher: "bcrypt", BcryptCost: 4}
	return cfg
}

func openApp(t *testing.T, cfg *config.Config, clock catalog.Clock) *FilmApp {
	t.Helper()
	a, err := NewFilmApp(cfg, "test", Options{Clock: clock})
	if err != nil {
		t.Fatalf("NewFilmApp() error = %v", err)
	}
	return a
}

func register(t *testing.T, a *FilmApp, username string, adminLevel int) *catalog.User {
	t.Helper()
	u, err := a.Register(catalog.Registration{
		FirstName:  "Film",
		LastName:   "Fan",
		Email:      username + "@example.com",
		Username:   username,
		Password:   password,
		AdminLevel: adminLevel,
	})
	if err != nil {
		t.Fatalf("Register(%s) error = %v", username, err)
	}
	return u
}

func login(t *testing.T, a *FilmApp, username string) {
	t.Helper()
	if _, err := a.Login(username+"@example.com", password); err != nil {
		t.Fatalf("Login(%s) error = %v", username, err)
	}
}

func TestFilmApp_ModerationAcrossRuns(t *testing.T) {
	cfg := newTestConfig(t)
	clock := testutil.FixedClock()

	a := openApp(t, cfg, clock)
	register(t, a, "admin", catalog.AdminLevelSuperAdmin)
	register(t, a, "viewer", 0)
	login(t, a, "viewer")
	film, err := a.ProposeFilm(FilmInput{Title: "Inception", Genre: "Sci-Fi", ReleaseDate: "2010-07-16"})
	if err != nil {
		t.Fatalf("ProposeFilm() error = %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	clock.Advance(time.Hour)
	b := openApp(t, cfg, clock)
	defer b.Close()
	if pending := b.PendingFilms(); len(pending) != 1 || pending[0].ID != film.ID {
		t.Fatalf("PendingFilms() = %v", pending)
	}
	login(t, b, "admin")
	if _, err := b.ApproveFilm(film.ID); err != nil {
		t.Fatalf("ApproveFilm() error = %v", err)
	}

	found, err := b.SearchFilms("incep", "", "2010", true)
	if err != nil {
		t.Fatalf("SearchFilms() error = %v", err)
	}
	if len(found) != 1 || !found[0].Approved {
		t.Errorf("SearchFilms() = %v", found)
	}

	_, history, err := b.Film(film.ID, 0)
	if err != nil {
		t.Fatalf("Film() error = %v", err)
	}
	if len(history) != 2 || history[0].Action != catalog.ActionApproved {
		t.Errorf("history = %+v, want approved newest", history)
	}

	log, err := os.ReadFile(filepath.Join(cfg.LogDir, logFileName))
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	if !strings.Contains(string(log), "operation finished") || !strings.Contains(string(log), "film added") {
		t.Errorf("log file missing operation lines:\n%s", log)
	}
}

func TestFilmApp_RequiresSession(t *testing.T) {
	a := openApp(t, newTestConfig(t), testutil.FixedClock())
	defer a.Close()

	if _, err := a.ProposeFilm(FilmInput{Title: "X", Genre: "Y", ReleaseDate: "2020-01-01"}); !errors.Is(err, ErrNotLoggedIn) {
		t.Errorf("ProposeFilm() error = %v, want ErrNotLoggedIn", err)
	}
	if err := a.DeleteFilm(1); !errors.Is(err, ErrNotLoggedIn) {
		t.Errorf("DeleteFilm() error = %v, want ErrNotLoggedIn", err)
	}
	if a.op.Succeeded() {
		t.Error("operation not marked failed")
	}
}

func TestFilmApp_RegisterAdministrators(t *testing.T) {
	a := openApp(t, newTestConfig(t), testutil.FixedClock())
	defer a.Close()

	register(t, a, "founder", catalog.AdminLevelFull)
	register(t, a, "viewer", 0)

	_, err := a.Register(catalog.Registration{
		Email: "sneaky@example.com", Username: "sneaky", Password: password, AdminLevel: 1,
	})
	var pe *catalog.PermissionError
	if !errors.As(err, &pe) {
		t.Fatalf("Register() of admin without session error = %v, want PermissionError", err)
	}

	login(t, a, "founder")
	if _, err := a.Register(catalog.Registration{
		Email: "mod@example.com", Username: "moderator", Password: password, AdminLevel: 1,
	}); err != nil {
		t.Errorf("Register() by admin error = %v", err)
	}
	if got := len(a.Users()); got != 3 {
		t.Errorf("Users() = %d, want 3", got)
	}
}

func TestFilmApp_InvalidReleaseDate(t *testing.T) {
	a := openApp(t, newTestConfig(t), testutil.FixedClock())
	defer a.Close()
	register(t, a, "viewer", 0)
	login(t, a, "viewer")

	_, err := a.ProposeFilm(FilmInput{Title: "Inception", Genre: "Sci-Fi", ReleaseDate: "July 2010"})
	var ve *catalog.ValidationError
	if !errors.As(err, &ve) || ve.Field != "release_date" {
		t.Errorf("ProposeFilm() error = %v, want ValidationError on release_date", err)
	}

	if _, err := a.SearchFilms("", "", "20x0", false); !errors.Is(err, catalog.ErrInvalidField) {
		t.Errorf("SearchFilms() error = %v, want ErrInvalidField", err)
	}
}

func TestFilmApp_SkipSaves(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Storage.SkipSaves = []string{catalog.FilmsStore}
	clock := testutil.FixedClock()

	a := openApp(t, cfg, clock)
	register(t, a, "admin", catalog.AdminLevelFull)
	login(t, a, "admin")
	if _, err := a.AddFilm(FilmInput{Title: "Inception", Genre: "Sci-Fi", ReleaseDate: "2010-07-16"}); err != nil {
		t.Fatalf("AddFilm() error = %v", err)
	}
	a.Close()

	b := openApp(t, cfg, clock)
	defer b.Close()
	if total, _ := b.FilmCounts(); total != 0 {
		t.Errorf("film persisted despite skip_saves: total = %d", total)
	}
	if len(b.Users()) != 1 {
		t.Errorf("users not persisted: %d", len(b.Users()))
	}
}

func TestFilmApp_EncryptedBackupRestore(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Encryption.Type = "test"
	clock := testutil.FixedClock()

	a := openApp(t, cfg, clock)
	defer a.Close()
	register(t, a, "admin", catalog.AdminLevelFull)
	login(t, a, "admin")
	film, err := a.AddFilm(FilmInput{Title: "Inception", Genre: "Sci-Fi", ReleaseDate: "2010-07-16"})
	if err != nil {
		t.Fatal(err)
	}
	clock.Advance(time.Second)
	if _, err := a.RejectFilm(film.ID); err != nil {
		t.Fatal(err)
	}

	backups, err := a.Backups(catalog.FilmsStore)
	if err != nil {
		t.Fatalf("Backups() error = %v", err)
	}
	if len(backups) != 1 || !backups[0].Encrypted {
		t.Fatalf("Backups() = %+v, want one encrypted backup", backups)
	}

	clock.Advance(time.Second)
	if err := a.RestoreBackup(catalog.FilmsStore, backups[0].Ref, "unused"); err != nil {
		t.Fatalf("RestoreBackup() error = %v", err)
	}

	b := openApp(t, cfg, clock)
	defer b.Close()
	restored, _, err := b.Film(film.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !restored.Approved {
		t.Error("restored film should be the approved version from before the rejection")
	}

	infos, err := b.StoreInfo()
	if err != nil || len(infos) != 2 || !infos[1].Exists {
		t.Errorf("StoreInfo() = %+v, %v", infos, err)
	}
}

func TestFilmApp_InitKeys(t *testing.T) {
	t.Run("disabled encryption", func(t *testing.T) {
		a := openApp(t, newTestConfig(t), testutil.FixedClock())
		defer a.Close()
		if err := a.InitKeys("passphrase"); err == nil {
			t.Error("InitKeys() with encryption disabled should fail")
		}
	})

	t.Run("age keys", func(t *testing.T) {
		cfg := newTestConfig(t)
		cfg.Encryption.Type = "age"
		a := openApp(t, cfg, testutil.FixedClock())
		defer a.Close()

		if err := a.InitKeys("correct horse"); err != nil {
			t.Fatalf("InitKeys() error = %v", err)
		}
		for _, p := range []string{cfg.Encryption.PublicKeyPath, cfg.Encryption.PrivateKeyPath} {
			if _, err := os.Stat(p); err != nil {
				t.Errorf("key file %s missing: %v", p, err)
			}
		}
		if !a.BackupsEncrypted() {
			t.Error("BackupsEncrypted() = false with age configured")
		}
	})
}

func TestNewFilmApp_MalformedStore(t *testing.T) {
	cfg := newTestConfig(t)
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.FilmsPath), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfg.Storage.FilmsPath, []byte("{oops"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := NewFilmApp(cfg, "test", Options{Clock: testutil.FixedClock()})
	var malformed *catalog.MalformedStoreError
	if !errors.As(err, &malformed) {
		t.Errorf("NewFilmApp() error = %v, want *MalformedStoreError", err)
	}
}
