package catalog

import (
	"fmt"
	"strings"
	"time"
)

// releaseDateLayout is the on-disk format of Film.ReleaseDate.
const releaseDateLayout = "2006-01-02"

const (
	userTypeUser  = "user"
	userTypeAdmin = "admin"
)

type usersDocument struct {
	Users       []userRecord `json:"users"`
	LastUpdated time.Time    `json:"last_updated"`
}

type userRecord struct {
	ID           int64     `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
	AdminLevel   *int      `json:"admin_level,omitempty"`
	UserType     string    `json:"user_type"`
}

type filmsDocument struct {
	Films         []filmRecord `json:"films"`
	LastUpdated   time.Time    `json:"last_updated"`
	TotalFilms    int          `json:"total_films"`
	ApprovedFilms int          `json:"approved_films"`
}

type filmRecord struct {
	ID            int64       `json:"id"`
	Title         string      `json:"title"`
	Genre         string      `json:"genre"`
	ReleaseDate   string      `json:"release_date"`
	PosterPath    string      `json:"poster_path"`
	TrailerURL    string      `json:"trailer_url"`
	Description   string      `json:"description"`
	Approved      bool        `json:"approved"`
	AddedByUserID int64       `json:"added_by_user_id"`
	Logs          []logRecord `json:"logs"`
}

type logRecord struct {
	Action    string    `json:"action"`
	UserID    int64     `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
	FilmID    int64     `json:"film_id"`
}

func newUsersDocument(users []*User, now time.Time) *usersDocument {
	doc := &usersDocument{Users: make([]userRecord, 0, len(users)), LastUpdated: now}
	for _, u := range users {
		rec := userRecord{
			ID:           u.ID,
			FirstName:    u.FirstName,
			LastName:     u.LastName,
			Email:        u.Email,
			Username:     u.Username,
			PasswordHash: u.PasswordHash,
			CreatedAt:    u.CreatedAt,
			UserType:     userTypeUser,
		}
		if u.Admin != nil {
			level := u.Admin.Level
			rec.AdminLevel = &level
			rec.UserType = userTypeAdmin
		}
		doc.Users = append(doc.Users, rec)
	}
	return doc
}

func (d *usersDocument) toUsers() ([]*User, error) {
	users := make([]*User, 0, len(d.Users))
	seen := make(map[int64]bool, len(d.Users))
	emails := make(map[string]bool, len(d.Users))
	usernames := make(map[string]bool, len(d.Users))
	for _, rec := range d.Users {
		if seen[rec.ID] {
			return nil, fmt.Errorf("duplicate user id %d", rec.ID)
		}
		seen[rec.ID] = true

		email, username := strings.ToLower(rec.Email), strings.ToLower(rec.Username)
		if emails[email] {
			return nil, fmt.Errorf("user %d: duplicate email %q", rec.ID, rec.Email)
		}
		if usernames[username] {
			return nil, fmt.Errorf("user %d: duplicate username %q", rec.ID, rec.Username)
		}
		emails[email] = true
		usernames[username] = true

		u := &User{
			ID:           rec.ID,
			FirstName:    rec.FirstName,
			LastName:     rec.LastName,
			Email:        rec.Email,
			Username:     rec.Username,
			PasswordHash: rec.PasswordHash,
			CreatedAt:    rec.CreatedAt,
		}
		switch rec.UserType {
		case "", userTypeUser:
		case userTypeAdmin:
			level := AdminLevelModerator
			if rec.AdminLevel != nil {
				level = *rec.AdminLevel
			}
			if level < AdminLevelModerator || level > AdminLevelSuperAdmin {
				return nil, fmt.Errorf("user %d: admin_level %d out of range", rec.ID, level)
			}
			u.Admin = &AdminCapability{Level: level}
		default:
			return nil, fmt.Errorf("user %d: unknown user_type %q", rec.ID, rec.UserType)
		}
		users = append(users, u)
	}
	return users, nil
}

func newFilmsDocument(films []*Film, now time.Time) *filmsDocument {
	doc := &filmsDocument{Films: make([]filmRecord, 0, len(films)), LastUpdated: now}
	for _, f := range films {
		rec := filmRecord{
			ID:            f.ID,
			Title:         f.Title,
			Genre:         f.Genre,
			ReleaseDate:   f.ReleaseDate.Format(releaseDateLayout),
			PosterPath:    f.PosterPath,
			TrailerURL:    f.TrailerURL,
			Description:   f.Description,
			Approved:      f.Approved,
			AddedByUserID: f.AddedByUserID,
			Logs:          make([]logRecord, len(f.Logs)),
		}
		for i, l := range f.Logs {
			rec.Logs[i] = logRecord(l)
		}
		doc.Films = append(doc.Films, rec)
		if f.Approved {
			doc.ApprovedFilms++
		}
	}
	doc.TotalFilms = len(doc.Films)
	return doc
}

func (d *filmsDocument) toFilms() ([]*Film, error) {
	films := make([]*Film, 0, len(d.Films))
	seen := make(map[int64]bool, len(d.Films))
	for _, rec := range d.Films {
		if seen[rec.ID] {
			return nil, fmt.Errorf("duplicate film id %d", rec.ID)
		}
		seen[rec.ID] = true

		released, err := time.Parse(releaseDateLayout, rec.ReleaseDate)
		if err != nil {
			return nil, fmt.Errorf("film %d: release_date: %w", rec.ID, err)
		}
		f := &Film{
			ID:            rec.ID,
			Title:         rec.Title,
			Genre:         rec.Genre,
			ReleaseDate:   released,
			PosterPath:    rec.PosterPath,
			TrailerURL:    rec.TrailerURL,
			Description:   rec.Description,
			Approved:      rec.Approved,
			AddedByUserID: rec.AddedByUserID,
			Logs:          make([]AuditLogEntry, len(rec.Logs)),
		}
		for i, l := range rec.Logs {
			f.Logs[i] = AuditLogEntry(l)
		}
		films = append(films, f)
	}
	return films, nil
}
