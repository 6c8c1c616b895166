package catalog_test

import (
	"testing"
	"time"

	"filmcat/internal/catalog"
	"filmcat/internal/store"
	"filmcat/internal/testutil"
)

type fixture struct {
	clock   *testutil.StubClock
	mem     *store.MemoryStore
	store   *testutil.FailingStore
	dir     *catalog.Directory
	catalog *catalog.Catalog
	user    *catalog.User
	admin   *catalog.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{clock: testutil.FixedClock(), mem: store.NewMemoryStore()}
	f.store = testutil.NewFailingStore(f.mem)
	f.dir = testutil.NewTestDirectory(t, f.store, f.clock)
	f.catalog = testutil.NewTestCatalog(t, f.store, f.clock)
	f.user = testutil.RegisterUser(t, f.dir, "viewer", 0)
	f.admin = testutil.RegisterUser(t, f.dir, "curator", catalog.AdminLevelFull)
	return f
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func inception() catalog.FilmFields {
	return catalog.FilmFields{
		Title:       "Inception",
		Genre:       "Sci-Fi",
		ReleaseDate: date(2010, time.July, 16),
		Description: "A thief who steals corporate secrets through dreams.",
	}
}

func interstellar() catalog.FilmFields {
	return catalog.FilmFields{
		Title:       "Interstellar",
		Genre:       "Sci-Fi",
		ReleaseDate: date(2014, time.November, 7),
	}
}

func ptr[T any](v T) *T { return &v }

func actions(logs []catalog.AuditLogEntry) []string {
	out := make([]string, len(logs))
	for i, l := range logs {
		out[i] = l.Action
	}
	return out
}
