package catalog

import (
	"strings"
	"time"
)

// MaxAuditEntries bounds the per-film audit log. Older entries are evicted first.
const MaxAuditEntries = 100

// Admin levels carried by AdminCapability.
const (
	AdminLevelModerator  = 1
	AdminLevelFull       = 2
	AdminLevelSuperAdmin = 3
)

// Audit log action tags.
const (
	ActionProposed       = "proposed"
	ActionCreatedByAdmin = "created_by_admin"
	ActionApproved       = "approved"
	ActionRejected       = "rejected"
	ActionDeleted        = "deleted"
	ActionUpdatedPrefix  = "updated: "
)

// AdminCapability marks a user as an administrator.
// Level ranges from AdminLevelModerator to AdminLevelSuperAdmin.
type AdminCapability struct {
	Level int
}

// User is an account in the directory. An administrator is a User whose
// Admin field is non-nil.
type User struct {
	ID           int64
	FirstName    string
	LastName     string
	Email        string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
	Admin        *AdminCapability
}

// FullName returns "First Last" with surrounding whitespace trimmed.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// HasAdminCapability reports whether u may perform moderation actions.
func HasAdminCapability(u *User) bool {
	return u != nil && u.Admin != nil
}

func (u *User) clone() *User {
	c := *u
	if u.Admin != nil {
		admin := *u.Admin
		c.Admin = &admin
	}
	return &c
}

// AuditLogEntry records one mutating operation on a film.
type AuditLogEntry struct {
	Action    string
	UserID    int64
	Timestamp time.Time
	FilmID    int64
}

// Film is a catalog entry together with its audit history.
type Film struct {
	ID            int64
	Title         string
	Genre         string
	ReleaseDate   time.Time // calendar date at UTC midnight
	PosterPath    string
	TrailerURL    string
	Description   string
	Approved      bool
	AddedByUserID int64
	Logs          []AuditLogEntry
}

// appendLog adds an entry and evicts the oldest ones beyond MaxAuditEntries.
func (f *Film) appendLog(action string, userID int64, at time.Time) {
	f.Logs = append(f.Logs, AuditLogEntry{
		Action:    action,
		UserID:    userID,
		Timestamp: at,
		FilmID:    f.ID,
	})
	if over := len(f.Logs) - MaxAuditEntries; over > 0 {
		f.Logs = append([]AuditLogEntry(nil), f.Logs[over:]...)
	}
}

// RecentLogs returns up to limit audit entries, newest first.
// A non-positive limit returns the whole log.
func (f *Film) RecentLogs(limit int) []AuditLogEntry {
	n := len(f.Logs)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]AuditLogEntry, 0, limit)
	for i := n - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.Logs[i])
	}
	return out
}

// Age returns the film's age in whole years at now.
func (f *Film) Age(now time.Time) int {
	now = now.UTC()
	years := now.Year() - f.ReleaseDate.Year()
	if now.Month() < f.ReleaseDate.Month() ||
		(now.Month() == f.ReleaseDate.Month() && now.Day() < f.ReleaseDate.Day()) {
		years--
	}
	return years
}

// IsRecent reports whether the film is at most years old at now.
func (f *Film) IsRecent(now time.Time, years int) bool {
	return f.Age(now) <= years
}

func (f *Film) clone() *Film {
	c := *f
	c.Logs = append([]AuditLogEntry(nil), f.Logs...)
	return &c
}

// sameIdentity reports whether f occupies the (title, release date) slot.
func (f *Film) sameIdentity(title string, released time.Time) bool {
	return normalizeTitle(f.Title) == normalizeTitle(title) && f.ReleaseDate.Equal(released)
}

func normalizeTitle(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Date truncates t to a calendar date at UTC midnight.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FilmFields holds the user-supplied attributes of a new film.
type FilmFields struct {
	Title       string
	Genre       string
	ReleaseDate time.Time
	PosterPath  string
	TrailerURL  string
	Description string
}

func (ff FilmFields) validate() error {
	switch {
	case strings.TrimSpace(ff.Title) == "":
		return &ValidationError{Field: "title", Err: ErrInvalidField}
	case strings.TrimSpace(ff.Genre) == "":
		return &ValidationError{Field: "genre", Err: ErrInvalidField}
	case ff.ReleaseDate.IsZero():
		return &ValidationError{Field: "release_date", Err: ErrInvalidField}
	}
	return nil
}

// FilmChanges lists the film fields an update may touch. Nil fields are left alone.
type FilmChanges struct {
	Title       *string
	Genre       *string
	ReleaseDate *time.Time
	PosterPath  *string
	TrailerURL  *string
	Description *string
}
