package catalog_test

import (
	"testing"
	"time"

	"filmcat/internal/catalog"
)

func TestFilm_Age(t *testing.T) {
	film := &catalog.Film{ReleaseDate: date(2010, time.July, 16)}

	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{name: "day before anniversary", now: date(2020, time.July, 15), want: 9},
		{name: "on anniversary", now: date(2020, time.July, 16), want: 10},
		{name: "earlier month", now: date(2020, time.March, 1), want: 9},
		{name: "release year", now: date(2010, time.December, 1), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := film.Age(tt.now); got != tt.want {
				t.Errorf("Age(%v) = %d, want %d", tt.now, got, tt.want)
			}
		})
	}

	if !film.IsRecent(date(2015, time.January, 1), 5) {
		t.Error("IsRecent() = false for a 4-year-old film with a 5-year window")
	}
	if film.IsRecent(date(2016, time.August, 1), 5) {
		t.Error("IsRecent() = true for a 6-year-old film with a 5-year window")
	}
}

func TestFilm_RecentLogs(t *testing.T) {
	base := date(2024, time.January, 1)
	film := &catalog.Film{Logs: []catalog.AuditLogEntry{
		{Action: "proposed", Timestamp: base},
		{Action: "approved", Timestamp: base.Add(time.Hour)},
		{Action: "rejected", Timestamp: base.Add(2 * time.Hour)},
	}}

	got := film.RecentLogs(2)
	if len(got) != 2 || got[0].Action != "rejected" || got[1].Action != "approved" {
		t.Errorf("RecentLogs(2) = %v", actions(got))
	}
	if all := film.RecentLogs(0); len(all) != 3 || all[2].Action != "proposed" {
		t.Errorf("RecentLogs(0) = %v", actions(all))
	}
	if all := film.RecentLogs(10); len(all) != 3 {
		t.Errorf("RecentLogs(10) = %v", actions(all))
	}
}

func TestDate(t *testing.T) {
	in := time.Date(2010, time.July, 16, 23, 59, 59, 999, time.UTC)
	if got := catalog.Date(in); !got.Equal(date(2010, time.July, 16)) {
		t.Errorf("Date() = %v", got)
	}
}

func TestUser_FullName(t *testing.T) {
	u := &catalog.User{FirstName: "Jane", LastName: "Doe"}
	if got := u.FullName(); got != "Jane Doe" {
		t.Errorf("FullName() = %q", got)
	}
	if got := (&catalog.User{FirstName: "Cher"}).FullName(); got != "Cher" {
		t.Errorf("FullName() = %q", got)
	}
}
