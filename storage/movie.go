package storage

import (
	"fmt"
	"time"
)

// Genre is a deduplicated lookup entity. RemoteID links the genre to its page
// in the remote genre database once that link is known.
type Genre struct {
	ID       int64
	Name     string
	RemoteID *string
}

// StoragePath is one absolute movie folder path under a named storage
// location.
type StoragePath struct {
	ID            int64
	Path          string
	LocationLabel string
	MovieID       int64
}

// Movie is the canonical local catalog entry. Identity is (title, year); a
// movie without a year is unique by title alone. Nullable columns stay nil
// when unset so that absent and zero never get confused.
type Movie struct {
	ID         int64
	RemoteID   *string
	ExternalID *string
	Title      string
	Year       *int
	PosterURL  *string
	Tagline    *string
	Rating     *float64
	Duration   *int
	Rank       *int
	UpdatedAt  *time.Time

	Genres    []Genre
	Actors    []string
	Directors []string
	Countries []string
	Languages []string
	Paths     []StoragePath
}

// UniqueKey is the identity key used to match local movies against remote
// records: "year-title", or the bare title when the year is unknown.
func (m *Movie) UniqueKey() string {
	if m.Year == nil {
		return m.Title
	}
	return fmt.Sprintf("%d-%s", *m.Year, m.Title)
}

// DisplayName renders the movie as "Title (Year)".
func (m *Movie) DisplayName() string {
	if m.Year == nil {
		return m.Title
	}
	return fmt.Sprintf("%s (%d)", m.Title, *m.Year)
}

// Locations returns the distinct storage location labels the movie currently
// has paths under, in first-seen order.
func (m *Movie) Locations() []string {
	var labels []string
	seen := make(map[string]bool)
	for _, path := range m.Paths {
		if !seen[path.LocationLabel] {
			seen[path.LocationLabel] = true
			labels = append(labels, path.LocationLabel)
		}
	}
	return labels
}

// HasLocation reports whether any of the movie's paths lives under the given
// location label.
func (m *Movie) HasLocation(label string) bool {
	for _, path := range m.Paths {
		if path.LocationLabel == label {
			return true
		}
	}
	return false
}

// PosterSource resolves an external catalog id to a poster URL. An empty
// string means the poster is unknown.
type PosterSource interface {
	PosterURL(externalID string) string
}

// RankSource resolves an external catalog id to a popularity rank.
type RankSource interface {
	Rank(externalID string) (int, bool)
}
