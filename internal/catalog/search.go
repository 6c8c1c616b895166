package catalog

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ReleaseFilter matches a film's release date either exactly or by year.
// The zero value matches every film.
type ReleaseFilter struct {
	date time.Time
	year int
}

// OnDate matches films released on d.
func OnDate(d time.Time) ReleaseFilter { return ReleaseFilter{date: Date(d)} }

// InYear matches films released during year.
func InYear(year int) ReleaseFilter { return ReleaseFilter{year: year} }

// ParseReleaseFilter accepts "YYYY" or "YYYY-MM-DD" with a year of at least 1.
// An empty string yields the zero filter.
func ParseReleaseFilter(s string) (ReleaseFilter, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ReleaseFilter{}, nil
	}
	invalid := &ValidationError{Field: "release_date", Err: fmt.Errorf("%w: %q", ErrInvalidField, s)}
	if len(s) == 4 {
		// Atoi alone would accept signs such as "-123".
		if strings.Trim(s, "0123456789") != "" {
			return ReleaseFilter{}, invalid
		}
		year, err := strconv.Atoi(s)
		if err != nil || year < 1 {
			return ReleaseFilter{}, invalid
		}
		return InYear(year), nil
	}
	d, err := time.Parse(releaseDateLayout, s)
	if err != nil || d.Year() < 1 {
		return ReleaseFilter{}, invalid
	}
	return OnDate(d), nil
}

// IsZero reports whether the filter matches everything.
func (r ReleaseFilter) IsZero() bool { return r.date.IsZero() && r.year == 0 }

func (r ReleaseFilter) matches(released time.Time) bool {
	switch {
	case !r.date.IsZero():
		return released.Equal(r.date)
	case r.year != 0:
		return released.Year() == r.year
	default:
		return true
	}
}

// Query selects films. Empty fields are not applied; set fields are ANDed.
type Query struct {
	Title        string // case-insensitive substring of the title
	Genre        string // case-insensitive exact genre
	Released     ReleaseFilter
	ApprovedOnly bool
}

// Matches reports whether f satisfies every filter in q.
func (q Query) Matches(f *Film) bool {
	if q.ApprovedOnly && !f.Approved {
		return false
	}
	if q.Title != "" && !strings.Contains(strings.ToLower(f.Title), strings.ToLower(q.Title)) {
		return false
	}
	if q.Genre != "" && !strings.EqualFold(f.Genre, q.Genre) {
		return false
	}
	return q.Released.matches(f.ReleaseDate)
}

// Search returns the films matching q in insertion order.
func (c *Catalog) Search(q Query) []*Film {
	return c.filter(q.Matches)
}
