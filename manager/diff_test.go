package manager

import (
	"testing"

	"media-manager/notion"
	"media-manager/storage"
)

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func strPtr(v string) *string { return &v }

func localMovie(title string, year int) *storage.Movie {
	y := year
	return &storage.Movie{Title: title, Year: &y}
}

func remoteRecord(id, title string, year int) *notion.MovieRecord {
	y := year
	return &notion.MovieRecord{ID: id, Title: title, Year: &y}
}

func TestClassifyMoviesPartitionsByKey(t *testing.T) {
	local := []*storage.Movie{
		localMovie("Inception", 2010),
		localMovie("Heat", 1995),
	}
	remote := []*notion.MovieRecord{
		remoteRecord("rec-1", "Inception", 2010),
		remoteRecord("rec-2", "Casablanca", 1942),
	}

	diff := classifyMovies(local, remote)

	if len(diff.added) != 1 || diff.added[0].Title != "Heat" {
		t.Errorf("Expected Heat to be added, got %v", diff.added)
	}
	if len(diff.overlapping) != 1 || diff.overlapping[0].remote.ID != "rec-1" {
		t.Errorf("Expected Inception to overlap, got %v", diff.overlapping)
	}
	if len(diff.missing) != 1 || diff.missing[0].Title != "Casablanca" {
		t.Errorf("Expected Casablanca on the wishlist, got %v", diff.missing)
	}

	total := len(diff.added) + len(diff.overlapping) + len(diff.missing)
	if total != 3 {
		t.Errorf("Expected every key in exactly one set, got %d entries", total)
	}
}

func TestClassifyMoviesSurfacesDuplicateRemoteKeys(t *testing.T) {
	local := []*storage.Movie{localMovie("Inception", 2010)}
	remote := []*notion.MovieRecord{
		remoteRecord("rec-1", "Inception", 2010),
		remoteRecord("rec-2", "Inception", 2010),
	}

	diff := classifyMovies(local, remote)

	if len(diff.overlapping) != 1 || diff.overlapping[0].remote.ID != "rec-1" {
		t.Errorf("Expected the first record to overlap, got %v", diff.overlapping)
	}
	if len(diff.missing) != 1 || diff.missing[0].ID != "rec-2" {
		t.Errorf("Expected the duplicate on the wishlist, got %v", diff.missing)
	}

	total := len(diff.added) + len(diff.overlapping) + len(diff.missing)
	if total != 2 {
		t.Errorf("Expected every record in exactly one set, got %d entries", total)
	}
}

func TestClassifyMoviesDistinguishesYears(t *testing.T) {
	local := []*storage.Movie{localMovie("King Kong", 2005)}
	remote := []*notion.MovieRecord{remoteRecord("rec-1", "King Kong", 1933)}

	diff := classifyMovies(local, remote)
	if len(diff.overlapping) != 0 {
		t.Errorf("Expected remakes not to overlap, got %v", diff.overlapping)
	}
	if len(diff.added) != 1 || len(diff.missing) != 1 {
		t.Errorf("Expected one added and one missing, got %d/%d", len(diff.added), len(diff.missing))
	}
}

func TestBuildDeltaEmptyWhenInSync(t *testing.T) {
	movie := localMovie("Inception", 2010)
	movie.Tagline = strPtr("Your mind is the scene of the crime.")
	movie.Rating = floatPtr(8.8)
	movie.Rank = intPtr(14)
	movie.ExternalID = strPtr("tt1375666")
	movie.Paths = []storage.StoragePath{{Path: "/movies/Inception (2010)", LocationLabel: "NAS"}}

	record := remoteRecord("rec-1", "Inception", 2010)
	record.Tagline = "Your mind is the scene of the crime."
	record.Stars = "★★★★"
	record.Rank = intPtr(14)
	record.IMDBURL = "https://www.imdb.com/title/tt1375666/"
	record.Locations = []string{"NAS"}

	delta := buildDelta(movie, record)
	if !delta.Empty() {
		t.Errorf("Expected empty delta for matching sides, got %v", delta.Fields())
	}
}

func TestBuildDeltaTaglineOnly(t *testing.T) {
	movie := localMovie("Inception", 2010)
	movie.Tagline = strPtr("A new plot summary.")
	movie.Paths = []storage.StoragePath{{Path: "/movies/Inception (2010)", LocationLabel: "NAS"}}

	record := remoteRecord("rec-1", "Inception", 2010)
	record.Tagline = "The old plot summary."
	record.Locations = []string{"NAS"}

	delta := buildDelta(movie, record)
	fields := delta.Fields()
	if len(fields) != 1 {
		t.Fatalf("Expected a tagline-only delta, got %v", fields)
	}
}

func TestBuildDeltaMergesLocations(t *testing.T) {
	movie := localMovie("Inception", 2010)
	movie.Paths = []storage.StoragePath{
		{Path: "/movies/Inception (2010)", LocationLabel: "NAS"},
		{Path: "/backup/I/Inception (2010)", LocationLabel: "Backup"},
	}

	record := remoteRecord("rec-1", "Inception", 2010)
	record.Locations = []string{"Shelf", "NAS"}

	delta := buildDelta(movie, record)
	if delta.Empty() {
		t.Fatal("Expected a locations delta")
	}

	merged, changed := mergeLocations(record.Locations, movie.Locations())
	if !changed {
		t.Fatal("Expected the merge to report a change")
	}
	want := []string{"Shelf", "NAS", "Backup"}
	if len(merged) != len(want) {
		t.Fatalf("Expected %v, got %v", want, merged)
	}
	for i := range want {
		if merged[i] != want[i] {
			t.Errorf("Expected %v, got %v", want, merged)
			break
		}
	}
}

func TestMergeLocationsKeepsRemoteOnlyLabels(t *testing.T) {
	merged, changed := mergeLocations([]string{"Shelf"}, nil)
	if changed {
		t.Error("Expected no change when local adds nothing")
	}
	if len(merged) != 1 || merged[0] != "Shelf" {
		t.Errorf("Expected remote-only label to survive, got %v", merged)
	}
}

func TestBuildDeltaClearsRank(t *testing.T) {
	movie := localMovie("Inception", 2010)
	movie.Paths = []storage.StoragePath{{Path: "/movies/Inception (2010)", LocationLabel: "NAS"}}

	record := remoteRecord("rec-1", "Inception", 2010)
	record.Rank = intPtr(250)
	record.Locations = []string{"NAS"}

	delta := buildDelta(movie, record)
	if delta.Empty() {
		t.Fatal("Expected a rank delta when the movie left the chart")
	}
}

func TestBuildDeltaSkipsIMDBWithoutExternalID(t *testing.T) {
	movie := localMovie("Inception", 2010)
	movie.Paths = []storage.StoragePath{{Path: "/movies/Inception (2010)", LocationLabel: "NAS"}}

	record := remoteRecord("rec-1", "Inception", 2010)
	record.IMDBURL = "https://www.imdb.com/title/tt1375666/"
	record.Locations = []string{"NAS"}

	delta := buildDelta(movie, record)
	if !delta.Empty() {
		t.Errorf("Expected no delta when the local side has no external id, got %v", delta.Fields())
	}
}
