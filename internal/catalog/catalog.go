package catalog

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Catalog owns the film collection and its moderation workflow.
// Films keep insertion order. Every mutation is persisted before it is
// treated as committed; a failed save restores the previous film state.
type Catalog struct {
	store  Store
	clock  Clock
	logger Logger

	mu    sync.Mutex
	films []*Film
}

// OpenCatalog loads the films store and returns a ready Catalog.
// A malformed store is returned as a *MalformedStoreError.
func OpenCatalog(store Store, clock Clock, logger Logger) (*Catalog, error) {
	var doc filmsDocument
	if _, err := store.Load(FilmsStore, &doc); err != nil {
		return nil, asPersistenceError(FilmsStore, "load", err)
	}
	films, err := doc.toFilms()
	if err != nil {
		return nil, &MalformedStoreError{Store: FilmsStore, Err: err}
	}

	logger.Debug("catalog loaded", "films", len(films))
	return &Catalog{
		store:  store,
		clock:  clock,
		logger: logger,
		films:  films,
	}, nil
}

// Propose adds an unapproved film submitted by user.
func (c *Catalog) Propose(fields FilmFields, by *User) (*Film, error) {
	if by == nil {
		return nil, &PermissionError{Action: "propose films"}
	}
	return c.add(fields, by, false, ActionProposed)
}

// AddApproved adds a film that is approved from the start. Only
// administrators may bypass moderation.
func (c *Catalog) AddApproved(fields FilmFields, admin *User) (*Film, error) {
	if !HasAdminCapability(admin) {
		return nil, &PermissionError{Action: "add approved films", UserID: actorID(admin)}
	}
	return c.add(fields, admin, true, ActionCreatedByAdmin)
}

func (c *Catalog) add(fields FilmFields, by *User, approved bool, action string) (*Film, error) {
	if err := fields.validate(); err != nil {
		return nil, err
	}
	released := Date(fields.ReleaseDate)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.identityTaken(fields.Title, released, 0) {
		return nil, &ValidationError{Field: "title", Err: ErrDuplicateFilm}
	}

	film := &Film{
		ID:            c.nextID(),
		Title:         strings.TrimSpace(fields.Title),
		Genre:         strings.TrimSpace(fields.Genre),
		ReleaseDate:   released,
		PosterPath:    fields.PosterPath,
		TrailerURL:    fields.TrailerURL,
		Description:   fields.Description,
		Approved:      approved,
		AddedByUserID: by.ID,
	}
	film.appendLog(action, by.ID, c.clock.Now())

	c.films = append(c.films, film)
	if err := c.persist(); err != nil {
		c.films = c.films[:len(c.films)-1]
		c.logger.Warn("film addition rolled back", "title", film.Title, "error", err)
		return nil, err
	}

	c.logger.Info("film added", "id", film.ID, "title", film.Title, "action", action, "by", by.ID)
	return film.clone(), nil
}

// Approve marks a film approved. Approving an approved film is a no-op
// that records nothing.
func (c *Catalog) Approve(filmID int64, admin *User) (*Film, error) {
	if !HasAdminCapability(admin) {
		return nil, &PermissionError{Action: "approve films", UserID: actorID(admin)}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	film, _ := c.find(filmID)
	if film == nil {
		return nil, &NotFoundError{Entity: "film", ID: filmID}
	}
	if film.Approved {
		return film.clone(), nil
	}

	return c.mutate(film, func(f *Film) {
		f.Approved = true
		f.appendLog(ActionApproved, admin.ID, c.clock.Now())
	})
}

// Reject marks a film unapproved, reverting an approval or flagging a proposal.
func (c *Catalog) Reject(filmID int64, admin *User) (*Film, error) {
	if !HasAdminCapability(admin) {
		return nil, &PermissionError{Action: "reject films", UserID: actorID(admin)}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	film, _ := c.find(filmID)
	if film == nil {
		return nil, &NotFoundError{Entity: "film", ID: filmID}
	}

	return c.mutate(film, func(f *Film) {
		f.Approved = false
		f.appendLog(ActionRejected, admin.ID, c.clock.Now())
	})
}

// Update applies the fields in changes that differ from the film's current
// values and records them in a single audit entry. Administrators and the
// film's proposer may update. ErrNoChange is returned when nothing differs.
func (c *Catalog) Update(filmID int64, changes FilmChanges, by *User) (*Film, error) {
	if by == nil {
		return nil, &PermissionError{Action: "update films"}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	film, _ := c.find(filmID)
	if film == nil {
		return nil, &NotFoundError{Entity: "film", ID: filmID}
	}
	if !HasAdminCapability(by) && film.AddedByUserID != by.ID {
		return nil, &PermissionError{Action: fmt.Sprintf("update film %d", filmID), UserID: by.ID}
	}

	next := film.clone()
	diff, err := applyChanges(next, changes)
	if err != nil {
		return nil, err
	}
	if len(diff) == 0 {
		return nil, &ValidationError{Field: "changes", Err: ErrNoChange}
	}
	if (next.Title != film.Title || !next.ReleaseDate.Equal(film.ReleaseDate)) &&
		c.identityTaken(next.Title, next.ReleaseDate, film.ID) {
		return nil, &ValidationError{Field: "title", Err: ErrDuplicateFilm}
	}

	return c.mutate(film, func(f *Film) {
		f.Title = next.Title
		f.Genre = next.Genre
		f.ReleaseDate = next.ReleaseDate
		f.PosterPath = next.PosterPath
		f.TrailerURL = next.TrailerURL
		f.Description = next.Description
		f.appendLog(ActionUpdatedPrefix+strings.Join(diff, ", "), by.ID, c.clock.Now())
	})
}

// applyChanges writes changes into f and describes each field that changed.
func applyChanges(f *Film, changes FilmChanges) ([]string, error) {
	var diff []string

	if changes.Title != nil {
		title := strings.TrimSpace(*changes.Title)
		if title == "" {
			return nil, &ValidationError{Field: "title", Err: ErrInvalidField}
		}
		if title != f.Title {
			diff = append(diff, fmt.Sprintf("title: %s -> %s", f.Title, title))
			f.Title = title
		}
	}
	if changes.Genre != nil {
		genre := strings.TrimSpace(*changes.Genre)
		if genre == "" {
			return nil, &ValidationError{Field: "genre", Err: ErrInvalidField}
		}
		if genre != f.Genre {
			diff = append(diff, fmt.Sprintf("genre: %s -> %s", f.Genre, genre))
			f.Genre = genre
		}
	}
	if changes.ReleaseDate != nil {
		if changes.ReleaseDate.IsZero() {
			return nil, &ValidationError{Field: "release_date", Err: ErrInvalidField}
		}
		released := Date(*changes.ReleaseDate)
		if !released.Equal(f.ReleaseDate) {
			diff = append(diff, fmt.Sprintf("release_date: %s -> %s",
				f.ReleaseDate.Format(releaseDateLayout), released.Format(releaseDateLayout)))
			f.ReleaseDate = released
		}
	}
	if changes.PosterPath != nil && *changes.PosterPath != f.PosterPath {
		diff = append(diff, "poster_path updated")
		f.PosterPath = *changes.PosterPath
	}
	if changes.TrailerURL != nil && *changes.TrailerURL != f.TrailerURL {
		diff = append(diff, "trailer_url updated")
		f.TrailerURL = *changes.TrailerURL
	}
	if changes.Description != nil && *changes.Description != f.Description {
		diff = append(diff, "description updated")
		f.Description = *changes.Description
	}
	return diff, nil
}

// Delete records a final audit entry and removes the film. The film's audit
// history is not retained once the removal is persisted.
func (c *Catalog) Delete(filmID int64, admin *User) error {
	if !HasAdminCapability(admin) {
		return &PermissionError{Action: "delete films", UserID: actorID(admin)}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	film, idx := c.find(filmID)
	if film == nil {
		return &NotFoundError{Entity: "film", ID: filmID}
	}

	before := film.clone()
	film.appendLog(ActionDeleted, admin.ID, c.clock.Now())
	c.films = append(c.films[:idx:idx], c.films[idx+1:]...)

	if err := c.persist(); err != nil {
		restored := make([]*Film, 0, len(c.films)+1)
		restored = append(restored, c.films[:idx]...)
		restored = append(restored, before)
		restored = append(restored, c.films[idx:]...)
		c.films = restored
		c.logger.Warn("film deletion rolled back", "id", filmID, "error", err)
		return err
	}

	c.logger.Info("film deleted", "id", filmID, "title", film.Title, "by", admin.ID)
	return nil
}

// mutate applies fn to film, persists, and restores the film on failure.
// It must be called with c.mu held.
func (c *Catalog) mutate(film *Film, fn func(*Film)) (*Film, error) {
	before := film.clone()
	fn(film)

	if err := c.persist(); err != nil {
		*film = *before
		c.logger.Warn("film change rolled back", "id", film.ID, "error", err)
		return nil, err
	}

	last := film.Logs[len(film.Logs)-1]
	c.logger.Info("film changed", "id", film.ID, "action", last.Action, "by", last.UserID)
	return film.clone(), nil
}

// Get returns a copy of the film with the given ID.
func (c *Catalog) Get(filmID int64) (*Film, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	film, _ := c.find(filmID)
	if film == nil {
		return nil, &NotFoundError{Entity: "film", ID: filmID}
	}
	return film.clone(), nil
}

// History returns up to limit audit entries for a film, newest first.
func (c *Catalog) History(filmID int64, limit int) ([]AuditLogEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	film, _ := c.find(filmID)
	if film == nil {
		return nil, &NotFoundError{Entity: "film", ID: filmID}
	}
	return film.RecentLogs(limit), nil
}

// All returns every film in insertion order.
func (c *Catalog) All() []*Film {
	return c.filter(func(*Film) bool { return true })
}

// Pending returns the films awaiting approval.
func (c *Catalog) Pending() []*Film {
	return c.filter(func(f *Film) bool { return !f.Approved })
}

// Approved returns the approved films.
func (c *Catalog) Approved() []*Film {
	return c.filter(func(f *Film) bool { return f.Approved })
}

// ByProposer returns the films added by the given user.
func (c *Catalog) ByProposer(userID int64) []*Film {
	return c.filter(func(f *Film) bool { return f.AddedByUserID == userID })
}

// Count returns the total number of films and how many are approved.
func (c *Catalog) Count() (total, approved int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range c.films {
		if f.Approved {
			approved++
		}
	}
	return len(c.films), approved
}

func (c *Catalog) filter(keep func(*Film) bool) []*Film {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := []*Film{}
	for _, f := range c.films {
		if keep(f) {
			out = append(out, f.clone())
		}
	}
	return out
}

func (c *Catalog) find(filmID int64) (*Film, int) {
	for i, f := range c.films {
		if f.ID == filmID {
			return f, i
		}
	}
	return nil, -1
}

// identityTaken reports whether a film other than exceptID already uses
// the (title, release date) pair.
func (c *Catalog) identityTaken(title string, released time.Time, exceptID int64) bool {
	for _, f := range c.films {
		if f.ID != exceptID && f.sameIdentity(title, released) {
			return true
		}
	}
	return false
}

func (c *Catalog) nextID() int64 {
	var maxID int64
	for _, f := range c.films {
		if f.ID > maxID {
			maxID = f.ID
		}
	}
	return maxID + 1
}

// persist must be called with c.mu held.
func (c *Catalog) persist() error {
	if err := c.store.Save(FilmsStore, newFilmsDocument(c.films, c.clock.Now())); err != nil {
		return asPersistenceError(FilmsStore, "save", err)
	}
	return nil
}
