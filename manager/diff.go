package manager

import (
	"log"
	"strings"

	"media-manager/notion"
	"media-manager/storage"
)

// moviePair is one identity key present on both sides, subject to field-level
// diffing.
type moviePair struct {
	local  *storage.Movie
	remote *notion.MovieRecord
}

// diffResult partitions the union of both catalogs by identity key: every key
// lands in exactly one of the three sets.
type diffResult struct {
	added       []*storage.Movie
	overlapping []moviePair
	missing     []*notion.MovieRecord
}

// classifyMovies indexes both sides by unique key and splits them into
// added (local only), overlapping (both) and missing (remote only). The
// missing set is the wishlist; it is never mutated. Remote records that
// duplicate an already indexed key are surfaced on the wishlist so they get
// cleaned up by hand.
func classifyMovies(local []*storage.Movie, remote []*notion.MovieRecord) diffResult {
	remoteByKey := make(map[string]*notion.MovieRecord, len(remote))
	var duplicates []*notion.MovieRecord
	duplicate := make(map[*notion.MovieRecord]bool)
	for _, record := range remote {
		key := record.UniqueKey()
		if _, exists := remoteByKey[key]; exists {
			log.Printf("Duplicate remote record %s for %s", record.ID, key)
			duplicate[record] = true
			duplicates = append(duplicates, record)
			continue
		}
		remoteByKey[key] = record
	}

	var result diffResult
	localKeys := make(map[string]bool, len(local))
	for _, movie := range local {
		key := movie.UniqueKey()
		localKeys[key] = true
		if record, ok := remoteByKey[key]; ok {
			result.overlapping = append(result.overlapping, moviePair{local: movie, remote: record})
		} else {
			result.added = append(result.added, movie)
		}
	}

	for _, record := range remote {
		if duplicate[record] || localKeys[record.UniqueKey()] {
			continue
		}
		result.missing = append(result.missing, record)
	}
	result.missing = append(result.missing, duplicates...)

	return result
}

// buildDelta compares each patchable field independently and collects the
// ones that differ. All comparisons are value comparisons after
// normalization, so ordering differences in multi-value fields never force a
// patch. An empty delta means the pair costs zero remote calls.
func buildDelta(movie *storage.Movie, record *notion.MovieRecord) *notion.Delta {
	delta := notion.NewDelta()

	// Locations are merged, never removed here: a label the remote side
	// already lists survives until a prune event explicitly clears it.
	if merged, changed := mergeLocations(record.Locations, movie.Locations()); changed {
		delta.SetLocations(merged)
	}

	localTagline := ""
	if movie.Tagline != nil {
		localTagline = strings.TrimSpace(*movie.Tagline)
	}
	if localTagline != strings.TrimSpace(record.Tagline) {
		delta.SetTagline(localTagline)
	}

	if movie.ExternalID != nil {
		if url := notion.IMDBURL(*movie.ExternalID); url != record.IMDBURL {
			delta.SetIMDBURL(url)
		}
	}

	if stars := notion.Stars(movie.Rating); stars != record.Stars {
		delta.SetStars(stars)
	}

	if !equalIntPtr(movie.Rank, record.Rank) {
		delta.SetRank(movie.Rank)
	}

	return delta
}

// mergeLocations appends local labels missing from the remote tag set,
// keeping the remote order. Both sides are compared as sets.
func mergeLocations(remote, local []string) ([]string, bool) {
	seen := make(map[string]bool, len(remote))
	merged := make([]string, 0, len(remote)+len(local))
	for _, label := range remote {
		label = strings.TrimSpace(label)
		if label == "" || seen[label] {
			continue
		}
		seen[label] = true
		merged = append(merged, label)
	}

	changed := false
	for _, label := range local {
		label = strings.TrimSpace(label)
		if label == "" || seen[label] {
			continue
		}
		seen[label] = true
		merged = append(merged, label)
		changed = true
	}
	return merged, changed
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
