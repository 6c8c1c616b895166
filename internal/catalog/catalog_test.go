package catalog_test

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"filmcat/internal/catalog"
	"filmcat/internal/store"
	"filmcat/internal/testutil"
)

func TestCatalog_Propose(t *testing.T) {
	f := newFixture(t)

	film, err := f.catalog.Propose(inception(), f.user)
	if err != nil {
		t.Fatalf("Propose() error = %v", err)
	}
	if film.ID != 1 || film.Approved || film.AddedByUserID != f.user.ID {
		t.Errorf("proposed film = %+v", film)
	}
	if got := actions(film.Logs); !reflect.DeepEqual(got, []string{catalog.ActionProposed}) {
		t.Errorf("log actions = %v", got)
	}
	if film.Logs[0].FilmID != film.ID || film.Logs[0].UserID != f.user.ID {
		t.Errorf("log entry = %+v", film.Logs[0])
	}

	pending := f.catalog.Pending()
	if len(pending) != 1 || pending[0].ID != film.ID {
		t.Errorf("Pending() = %v", pending)
	}
	if approved := f.catalog.Approved(); len(approved) != 0 {
		t.Errorf("Approved() = %v, want empty", approved)
	}
}

func TestCatalog_ProposeRejects(t *testing.T) {
	tests := []struct {
		name      string
		fields    func() catalog.FilmFields
		wantField string
		wantErr   error
	}{
		{
			name:      "same title and date",
			fields:    inception,
			wantField: "title",
			wantErr:   catalog.ErrDuplicateFilm,
		},
		{
			name: "same title differing in case and spacing",
			fields: func() catalog.FilmFields {
				ff := inception()
				ff.Title = "  INCEPTION "
				return ff
			},
			wantField: "title",
			wantErr:   catalog.ErrDuplicateFilm,
		},
		{
			name: "blank title",
			fields: func() catalog.FilmFields {
				ff := interstellar()
				ff.Title = " "
				return ff
			},
			wantField: "title",
			wantErr:   catalog.ErrInvalidField,
		},
		{
			name: "blank genre",
			fields: func() catalog.FilmFields {
				ff := interstellar()
				ff.Genre = ""
				return ff
			},
			wantField: "genre",
			wantErr:   catalog.ErrInvalidField,
		},
		{
			name: "missing release date",
			fields: func() catalog.FilmFields {
				ff := interstellar()
				ff.ReleaseDate = time.Time{}
				return ff
			},
			wantField: "release_date",
			wantErr:   catalog.ErrInvalidField,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if _, err := f.catalog.Propose(inception(), f.user); err != nil {
				t.Fatal(err)
			}

			_, err := f.catalog.Propose(tt.fields(), f.user)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Propose() error = %v, want %v", err, tt.wantErr)
			}
			var ve *catalog.ValidationError
			if !errors.As(err, &ve) || ve.Field != tt.wantField {
				t.Errorf("Propose() error = %v, want ValidationError on %s", err, tt.wantField)
			}
			if total, _ := f.catalog.Count(); total != 1 {
				t.Errorf("Count() = %d, want 1", total)
			}
		})
	}
}

func TestCatalog_SameTitleDifferentDateAllowed(t *testing.T) {
	f := newFixture(t)
	remake := inception()
	remake.ReleaseDate = date(2030, time.January, 1)

	if _, err := f.catalog.Propose(inception(), f.user); err != nil {
		t.Fatal(err)
	}
	if _, err := f.catalog.Propose(remake, f.user); err != nil {
		t.Errorf("Propose() of remake error = %v", err)
	}
}

func TestCatalog_AddApproved(t *testing.T) {
	f := newFixture(t)

	if _, err := f.catalog.AddApproved(inception(), f.user); !errorsAsPermission(err) {
		t.Errorf("AddApproved() by plain user error = %v, want PermissionError", err)
	}

	film, err := f.catalog.AddApproved(inception(), f.admin)
	if err != nil {
		t.Fatalf("AddApproved() error = %v", err)
	}
	if !film.Approved {
		t.Error("film added by admin is not approved")
	}
	if got := actions(film.Logs); !reflect.DeepEqual(got, []string{catalog.ActionCreatedByAdmin}) {
		t.Errorf("log actions = %v", got)
	}
}

func TestCatalog_ApproveIsIdempotent(t *testing.T) {
	f := newFixture(t)
	film, _ := f.catalog.Propose(inception(), f.user)

	if _, err := f.catalog.Approve(film.ID, f.user); !errorsAsPermission(err) {
		t.Errorf("Approve() by plain user error = %v, want PermissionError", err)
	}

	before := f.store.Attempts()
	for i := 0; i < 2; i++ {
		got, err := f.catalog.Approve(film.ID, f.admin)
		if err != nil {
			t.Fatalf("Approve() #%d error = %v", i+1, err)
		}
		if !got.Approved {
			t.Errorf("Approve() #%d left film unapproved", i+1)
		}
	}

	got, _ := f.catalog.Get(film.ID)
	count := 0
	for _, l := range got.Logs {
		if l.Action == catalog.ActionApproved {
			count++
		}
	}
	if count != 1 {
		t.Errorf("approved entries = %d, want exactly 1", count)
	}
	if n := f.store.Attempts() - before; n != 1 {
		t.Errorf("save attempts = %d, want 1 (second approve must not persist)", n)
	}

	if _, err := f.catalog.Approve(404, f.admin); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("Approve() of unknown film error = %v, want ErrNotFound", err)
	}
}

func TestCatalog_Reject(t *testing.T) {
	f := newFixture(t)
	film, _ := f.catalog.AddApproved(inception(), f.admin)

	got, err := f.catalog.Reject(film.ID, f.admin)
	if err != nil {
		t.Fatalf("Reject() error = %v", err)
	}
	if got.Approved {
		t.Error("rejected film is still approved")
	}
	want := []string{catalog.ActionCreatedByAdmin, catalog.ActionRejected}
	if a := actions(got.Logs); !reflect.DeepEqual(a, want) {
		t.Errorf("log actions = %v, want %v", a, want)
	}
	if _, err := f.catalog.Reject(film.ID, nil); !errorsAsPermission(err) {
		t.Errorf("Reject() with no actor error = %v, want PermissionError", err)
	}
}

func TestCatalog_AuditLogIsCapped(t *testing.T) {
	f := newFixture(t)
	film, _ := f.catalog.Propose(inception(), f.user)

	// Proposal plus 100 moderation toggles is 101 mutations.
	for i := 0; i < 100; i++ {
		var err error
		if i%2 == 0 {
			_, err = f.catalog.Approve(film.ID, f.admin)
		} else {
			_, err = f.catalog.Reject(film.ID, f.admin)
		}
		if err != nil {
			t.Fatalf("mutation %d error = %v", i+1, err)
		}
		f.clock.Advance(time.Minute)
	}

	got, _ := f.catalog.Get(film.ID)
	if len(got.Logs) != catalog.MaxAuditEntries {
		t.Fatalf("log length = %d, want %d", len(got.Logs), catalog.MaxAuditEntries)
	}
	if got.Logs[0].Action != catalog.ActionApproved {
		t.Errorf("oldest entry = %q, want the proposal evicted", got.Logs[0].Action)
	}
	if got.Logs[99].Action != catalog.ActionRejected {
		t.Errorf("newest entry = %q, want %q", got.Logs[99].Action, catalog.ActionRejected)
	}

	history, err := f.catalog.History(film.ID, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 3 || !history[0].Timestamp.After(history[1].Timestamp) {
		t.Errorf("History() = %+v, want 3 entries newest first", history)
	}
}

func TestCatalog_Update(t *testing.T) {
	f := newFixture(t)
	film, _ := f.catalog.Propose(inception(), f.user)

	got, err := f.catalog.Update(film.ID, catalog.FilmChanges{
		Title:       ptr("Inception (Director's Cut)"),
		Genre:       ptr("Sci-Fi"),
		ReleaseDate: ptr(date(2010, time.July, 20)),
		PosterPath:  ptr("/posters/inception.jpg"),
		Description: ptr(film.Description),
	}, f.user)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	want := "updated: title: Inception -> Inception (Director's Cut), " +
		"release_date: 2010-07-16 -> 2010-07-20, poster_path updated"
	if last := got.Logs[len(got.Logs)-1].Action; last != want {
		t.Errorf("update entry = %q, want %q", last, want)
	}
	if got.Title != "Inception (Director's Cut)" || got.PosterPath != "/posters/inception.jpg" {
		t.Errorf("updated film = %+v", got)
	}
	if len(got.Logs) != 2 {
		t.Errorf("log length = %d, want one entry per update", len(got.Logs))
	}
}

func TestCatalog_UpdateRejects(t *testing.T) {
	f := newFixture(t)
	film, _ := f.catalog.Propose(inception(), f.user)
	other, _ := f.catalog.Propose(interstellar(), f.user)
	stranger := testutil.RegisterUser(t, f.dir, "stranger", 0)

	tests := []struct {
		name    string
		id      int64
		changes catalog.FilmChanges
		by      *catalog.User
		check   func(error) bool
	}{
		{
			name:    "no field differs",
			id:      film.ID,
			changes: catalog.FilmChanges{Title: ptr("Inception")},
			by:      f.user,
			check:   func(err error) bool { return errors.Is(err, catalog.ErrNoChange) },
		},
		{
			name:  "empty changes",
			id:    film.ID,
			by:    f.admin,
			check: func(err error) bool { return errors.Is(err, catalog.ErrNoChange) },
		},
		{
			name:    "collides with another film",
			id:      other.ID,
			changes: catalog.FilmChanges{Title: ptr("inception"), ReleaseDate: ptr(date(2010, time.July, 16))},
			by:      f.admin,
			check:   func(err error) bool { return errors.Is(err, catalog.ErrDuplicateFilm) },
		},
		{
			name:    "blank title",
			id:      film.ID,
			changes: catalog.FilmChanges{Title: ptr("")},
			by:      f.user,
			check:   func(err error) bool { return errors.Is(err, catalog.ErrInvalidField) },
		},
		{
			name:    "not the proposer",
			id:      film.ID,
			changes: catalog.FilmChanges{Genre: ptr("Thriller")},
			by:      stranger,
			check:   errorsAsPermission,
		},
		{
			name:    "unknown film",
			id:      404,
			changes: catalog.FilmChanges{Genre: ptr("Thriller")},
			by:      f.admin,
			check:   func(err error) bool { return errors.Is(err, catalog.ErrNotFound) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.catalog.Update(tt.id, tt.changes, tt.by)
			if !tt.check(err) {
				t.Errorf("Update() error = %v", err)
			}
		})
	}

	got, _ := f.catalog.Get(film.ID)
	if len(got.Logs) != 1 {
		t.Errorf("rejected updates were logged: %v", actions(got.Logs))
	}
}

func TestCatalog_Delete(t *testing.T) {
	f := newFixture(t)
	first, _ := f.catalog.Propose(inception(), f.user)
	second, _ := f.catalog.Propose(interstellar(), f.user)

	if err := f.catalog.Delete(first.ID, f.user); !errorsAsPermission(err) {
		t.Errorf("Delete() by plain user error = %v, want PermissionError", err)
	}

	f.store.FailSaves(nil)
	if err := f.catalog.Delete(first.ID, f.admin); err == nil {
		t.Fatal("Delete() with failing store expected error")
	}
	all := f.catalog.All()
	if len(all) != 2 || all[0].ID != first.ID || all[1].ID != second.ID {
		t.Fatalf("after failed delete All() = %v, want original order", all)
	}
	if len(all[0].Logs) != 1 {
		t.Errorf("failed delete left a log entry: %v", actions(all[0].Logs))
	}

	f.store.Recover()
	if err := f.catalog.Delete(first.ID, f.admin); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := f.catalog.Get(first.ID); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("Get() of deleted film error = %v, want ErrNotFound", err)
	}

	third, err := f.catalog.Propose(inception(), f.user)
	if err != nil {
		t.Fatalf("Propose() after delete error = %v", err)
	}
	if third.ID != second.ID+1 {
		t.Errorf("ID = %d, want %d", third.ID, second.ID+1)
	}
}

func TestCatalog_MutationRollsBackOnSaveFailure(t *testing.T) {
	f := newFixture(t)
	film, _ := f.catalog.Propose(inception(), f.user)
	f.store.FailSaves(nil)

	if _, err := f.catalog.Approve(film.ID, f.admin); err == nil {
		t.Fatal("Approve() expected error")
	}
	if _, err := f.catalog.Update(film.ID, catalog.FilmChanges{Genre: ptr("Thriller")}, f.admin); err == nil {
		t.Fatal("Update() expected error")
	}

	got, _ := f.catalog.Get(film.ID)
	if got.Approved || got.Genre != "Sci-Fi" || len(got.Logs) != 1 {
		t.Errorf("film after failed mutations = %+v", got)
	}
}

func TestCatalog_ProposeRollback(t *testing.T) {
	f := newFixture(t)
	f.store.FailSaves(nil)

	_, err := f.catalog.Propose(inception(), f.user)
	var pe *catalog.PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("Propose() error = %v, want PersistenceError", err)
	}
	if pe.Store != catalog.FilmsStore || pe.Op != "save" {
		t.Errorf("PersistenceError = %+v", pe)
	}
	if all := f.catalog.All(); len(all) != 0 {
		t.Errorf("All() = %v, want the film absent", all)
	}
}

func TestCatalog_Queries(t *testing.T) {
	f := newFixture(t)
	a, _ := f.catalog.Propose(inception(), f.user)
	b, _ := f.catalog.AddApproved(interstellar(), f.admin)

	if total, approved := f.catalog.Count(); total != 2 || approved != 1 {
		t.Errorf("Count() = %d, %d, want 2, 1", total, approved)
	}
	if got := f.catalog.ByProposer(f.user.ID); len(got) != 1 || got[0].ID != a.ID {
		t.Errorf("ByProposer() = %v", got)
	}
	if got := f.catalog.Approved(); len(got) != 1 || got[0].ID != b.ID {
		t.Errorf("Approved() = %v", got)
	}

	// Returned films are copies.
	got, _ := f.catalog.Get(a.ID)
	got.Title = "Changed"
	got.Logs[0].Action = "tampered"
	again, _ := f.catalog.Get(a.ID)
	if again.Title != "Inception" || again.Logs[0].Action != catalog.ActionProposed {
		t.Error("mutating a returned film changed the catalog")
	}
}

func TestOpenCatalog_MalformedStore(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "invalid json", doc: `not json`},
		{name: "bad release date", doc: `{"films": [{"id": 1, "title": "X", "release_date": "16/07/2010"}]}`},
		{name: "duplicate ids", doc: `{"films": [{"id": 1, "release_date": "2010-07-16"}, {"id": 1, "release_date": "2010-07-16"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := store.NewMemoryStore()
			mem.Put(catalog.FilmsStore, []byte(tt.doc))
			_, err := catalog.OpenCatalog(mem, testutil.FixedClock(), catalog.NewNopLogger())
			var malformed *catalog.MalformedStoreError
			if !errors.As(err, &malformed) || !strings.Contains(err.Error(), "films") {
				t.Errorf("OpenCatalog() error = %v, want *MalformedStoreError", err)
			}
		})
	}
}
