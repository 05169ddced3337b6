package storage

import (
	"testing"

	"media-manager/nfo"
)

type fakePosters struct {
	urls  map[string]string
	calls int
}

func (f *fakePosters) PosterURL(externalID string) string {
	f.calls++
	return f.urls[externalID]
}

type fakeRanks map[string]int

func (f fakeRanks) Rank(externalID string) (int, bool) {
	rank, ok := f[externalID]
	return rank, ok
}

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	storage := NewSQLiteStorage(t.TempDir())
	if err := storage.Initialize(); err != nil {
		t.Fatalf("Failed to initialize storage: %v", err)
	}
	t.Cleanup(func() { storage.Close() })
	return storage
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func testMetadata() *nfo.Metadata {
	return &nfo.Metadata{
		Title:      "Inception",
		Year:       intPtr(2010),
		Duration:   intPtr(8880),
		Rating:     floatPtr(8.8),
		Tagline:    "Your mind is the scene of the crime.",
		ExternalID: "tt1375666",
		Genres:     []string{"Science Fiction", "Thriller"},
		Actors:     []string{"Leonardo DiCaprio", "Joseph Gordon-Levitt"},
		Directors:  []string{"Christopher Nolan"},
		Countries:  []string{"USA"},
		Languages:  []string{"English"},
	}
}

func TestUpsertMovieIsIdempotent(t *testing.T) {
	storage := newTestStorage(t)
	posters := &fakePosters{urls: map[string]string{"tt1375666": "https://img/poster.jpg"}}
	ranks := fakeRanks{"tt1375666": 14}

	first, err := storage.UpsertMovie(testMetadata(), "NAS", "/movies/Inception (2010)", posters, ranks)
	if err != nil {
		t.Fatalf("First upsert failed: %v", err)
	}
	second, err := storage.UpsertMovie(testMetadata(), "NAS", "/movies/Inception (2010)", posters, ranks)
	if err != nil {
		t.Fatalf("Second upsert failed: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("Expected same movie id, got %d and %d", first.ID, second.ID)
	}

	movies, err := storage.AllMovies()
	if err != nil {
		t.Fatalf("Failed to load movies: %v", err)
	}
	if len(movies) != 1 {
		t.Fatalf("Expected 1 movie, got %d", len(movies))
	}

	movie := movies[0]
	if len(movie.Paths) != 1 {
		t.Errorf("Expected 1 path, got %d", len(movie.Paths))
	}
	if len(movie.Genres) != 2 {
		t.Errorf("Expected 2 genres, got %d", len(movie.Genres))
	}
	if len(movie.Actors) != 2 {
		t.Errorf("Expected 2 actors, got %d", len(movie.Actors))
	}
	if movie.PosterURL == nil || *movie.PosterURL != "https://img/poster.jpg" {
		t.Errorf("Expected poster url to be filled, got %v", movie.PosterURL)
	}
	if movie.Rank == nil || *movie.Rank != 14 {
		t.Errorf("Expected rank 14, got %v", movie.Rank)
	}
}

func TestUpsertMovieKeepsFirstValues(t *testing.T) {
	storage := newTestStorage(t)

	if _, err := storage.UpsertMovie(testMetadata(), "NAS", "/movies/Inception (2010)", nil, nil); err != nil {
		t.Fatalf("First upsert failed: %v", err)
	}

	// A second copy of the same movie with conflicting sidecar values must
	// not overwrite what the first copy set.
	other := testMetadata()
	other.Duration = intPtr(9000)
	other.Rating = floatPtr(7.1)
	other.Tagline = "A different cut."
	movie, err := storage.UpsertMovie(other, "Backup", "/backup/I/Inception (2010)", nil, nil)
	if err != nil {
		t.Fatalf("Second upsert failed: %v", err)
	}

	if movie.Duration == nil || *movie.Duration != 8880 {
		t.Errorf("Expected duration 8880, got %v", movie.Duration)
	}
	if movie.Rating == nil || *movie.Rating != 8.8 {
		t.Errorf("Expected rating 8.8, got %v", movie.Rating)
	}
	if movie.Tagline == nil || *movie.Tagline != "Your mind is the scene of the crime." {
		t.Errorf("Expected original tagline, got %v", movie.Tagline)
	}

	movies, err := storage.AllMovies()
	if err != nil {
		t.Fatalf("Failed to load movies: %v", err)
	}
	locations := movies[0].Locations()
	if len(locations) != 2 {
		t.Fatalf("Expected 2 locations, got %v", locations)
	}
}

func TestUpsertMovieFillsGapsLater(t *testing.T) {
	storage := newTestStorage(t)

	sparse := &nfo.Metadata{Title: "Inception", Year: intPtr(2010)}
	if _, err := storage.UpsertMovie(sparse, "NAS", "/movies/Inception (2010)", nil, nil); err != nil {
		t.Fatalf("First upsert failed: %v", err)
	}

	movie, err := storage.UpsertMovie(testMetadata(), "NAS", "/movies/Inception (2010)", nil, nil)
	if err != nil {
		t.Fatalf("Second upsert failed: %v", err)
	}
	if movie.Rating == nil || *movie.Rating != 8.8 {
		t.Errorf("Expected rating to be filled in later, got %v", movie.Rating)
	}
	if movie.ExternalID == nil || *movie.ExternalID != "tt1375666" {
		t.Errorf("Expected external id to be filled in later, got %v", movie.ExternalID)
	}
}

func TestUpsertMovieClearsRankOffChart(t *testing.T) {
	storage := newTestStorage(t)

	ranked, err := storage.UpsertMovie(testMetadata(), "NAS", "/movies/Inception (2010)", nil, fakeRanks{"tt1375666": 14})
	if err != nil {
		t.Fatalf("First upsert failed: %v", err)
	}
	if ranked.Rank == nil || *ranked.Rank != 14 {
		t.Fatalf("Expected rank 14, got %v", ranked.Rank)
	}

	// The next refresh no longer lists the movie; the rank goes away
	// instead of sticking around stale.
	unranked, err := storage.UpsertMovie(testMetadata(), "NAS", "/movies/Inception (2010)", nil, fakeRanks{})
	if err != nil {
		t.Fatalf("Second upsert failed: %v", err)
	}
	if unranked.Rank != nil {
		t.Errorf("Expected the rank to be cleared, got %d", *unranked.Rank)
	}
}

func TestFindByIdentity(t *testing.T) {
	storage := newTestStorage(t)

	if _, err := storage.UpsertMovie(testMetadata(), "NAS", "/movies/Inception (2010)", nil, nil); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	movie, err := storage.FindByIdentity("Inception", intPtr(2010))
	if err != nil {
		t.Fatalf("FindByIdentity failed: %v", err)
	}
	if movie == nil || movie.Title != "Inception" {
		t.Fatalf("Expected to find Inception, got %v", movie)
	}

	movie, err = storage.FindByIdentity("Inception", intPtr(2011))
	if err != nil {
		t.Fatalf("FindByIdentity failed: %v", err)
	}
	if movie != nil {
		t.Errorf("Expected no match for the wrong year, got %v", movie)
	}

	movie, err = storage.FindByIdentity("Inception", nil)
	if err != nil {
		t.Fatalf("FindByIdentity failed: %v", err)
	}
	if movie != nil {
		t.Errorf("Expected no match without a year, got %v", movie)
	}
}

func TestMoviesWithoutYearAreDistinct(t *testing.T) {
	storage := newTestStorage(t)

	noYear := &nfo.Metadata{Title: "Inception"}
	withYear := &nfo.Metadata{Title: "Inception", Year: intPtr(2010)}

	if _, err := storage.UpsertMovie(noYear, "NAS", "/movies/Inception", nil, nil); err != nil {
		t.Fatalf("Upsert without year failed: %v", err)
	}
	if _, err := storage.UpsertMovie(withYear, "NAS", "/movies/Inception (2010)", nil, nil); err != nil {
		t.Fatalf("Upsert with year failed: %v", err)
	}

	movies, err := storage.AllMovies()
	if err != nil {
		t.Fatalf("Failed to load movies: %v", err)
	}
	if len(movies) != 2 {
		t.Fatalf("Expected 2 distinct movies, got %d", len(movies))
	}
}

func TestPruneOrphans(t *testing.T) {
	storage := newTestStorage(t)

	movie, err := storage.UpsertMovie(testMetadata(), "NAS", "/movies/Inception (2010)", nil, nil)
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := storage.SetRemoteID(movie.ID, "remote-123"); err != nil {
		t.Fatalf("Failed to set remote id: %v", err)
	}

	keeper := &nfo.Metadata{Title: "Heat", Year: intPtr(1995)}
	if _, err := storage.UpsertMovie(keeper, "NAS", "/movies/Heat (1995)", nil, nil); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	paths, err := storage.PathsForLocation("NAS")
	if err != nil {
		t.Fatalf("Failed to load paths: %v", err)
	}
	var doomed []StoragePath
	for _, path := range paths {
		if path.MovieID == movie.ID {
			doomed = append(doomed, path)
		}
	}
	if err := storage.DeletePaths(doomed); err != nil {
		t.Fatalf("Failed to delete paths: %v", err)
	}

	prunedIDs, err := storage.PruneOrphans()
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if len(prunedIDs) != 1 || prunedIDs[0] != "remote-123" {
		t.Fatalf("Expected pruned remote ids [remote-123], got %v", prunedIDs)
	}

	movies, err := storage.AllMovies()
	if err != nil {
		t.Fatalf("Failed to load movies: %v", err)
	}
	if len(movies) != 1 || movies[0].Title != "Heat" {
		t.Fatalf("Expected only Heat to survive, got %d movies", len(movies))
	}
}

func TestPruneOrphansSkipsUnlinkedMovies(t *testing.T) {
	storage := newTestStorage(t)

	movie, err := storage.UpsertMovie(testMetadata(), "NAS", "/movies/Inception (2010)", nil, nil)
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	paths, err := storage.PathsForLocation("NAS")
	if err != nil {
		t.Fatalf("Failed to load paths: %v", err)
	}
	if err := storage.DeletePaths(paths); err != nil {
		t.Fatalf("Failed to delete paths: %v", err)
	}

	prunedIDs, err := storage.PruneOrphans()
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if len(prunedIDs) != 0 {
		t.Fatalf("Expected no remote ids for never-linked movie, got %v", prunedIDs)
	}

	movies, err := storage.AllMovies()
	if err != nil {
		t.Fatalf("Failed to load movies: %v", err)
	}
	for _, m := range movies {
		if m.ID == movie.ID {
			t.Fatal("Expected movie without paths to be deleted")
		}
	}
}

func TestAddPath(t *testing.T) {
	storage := newTestStorage(t)

	movie, err := storage.UpsertMovie(testMetadata(), "NAS", "/movies/Inception (2010)", nil, nil)
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := storage.AddPath(movie.ID, "Backup", "/backup/I/Inception (2010)"); err != nil {
		t.Fatalf("AddPath failed: %v", err)
	}

	paths, err := storage.PathsForLocation("Backup")
	if err != nil {
		t.Fatalf("Failed to load paths: %v", err)
	}
	if len(paths) != 1 || paths[0].Path != "/backup/I/Inception (2010)" {
		t.Fatalf("Expected the backup path to be registered, got %v", paths)
	}
}

func TestLastModifiedWatermark(t *testing.T) {
	storage := newTestStorage(t)

	watermark, err := storage.LastModifiedWatermark()
	if err != nil {
		t.Fatalf("Watermark on empty catalog failed: %v", err)
	}
	if watermark != nil {
		t.Fatalf("Expected nil watermark on empty catalog, got %v", watermark)
	}

	if _, err := storage.UpsertMovie(testMetadata(), "NAS", "/movies/Inception (2010)", nil, nil); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	watermark, err = storage.LastModifiedWatermark()
	if err != nil {
		t.Fatalf("Watermark failed: %v", err)
	}
	if watermark == nil {
		t.Fatal("Expected a watermark after the first upsert")
	}
}

func TestUpdateGenreRemoteIDs(t *testing.T) {
	storage := newTestStorage(t)

	if _, err := storage.UpsertMovie(testMetadata(), "NAS", "/movies/Inception (2010)", nil, nil); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	linked, err := storage.UpdateGenreRemoteIDs(map[string]string{
		"Science Fiction": "genre-scifi",
		"Western":         "genre-western",
	})
	if err != nil {
		t.Fatalf("UpdateGenreRemoteIDs failed: %v", err)
	}
	if linked != 1 {
		t.Fatalf("Expected 1 linked genre, got %d", linked)
	}

	movies, err := storage.AllMovies()
	if err != nil {
		t.Fatalf("Failed to load movies: %v", err)
	}
	for _, genre := range movies[0].Genres {
		switch genre.Name {
		case "Science Fiction":
			if genre.RemoteID == nil || *genre.RemoteID != "genre-scifi" {
				t.Errorf("Expected Science Fiction to be linked, got %v", genre.RemoteID)
			}
		case "Thriller":
			if genre.RemoteID != nil {
				t.Errorf("Expected Thriller to stay unlinked, got %v", genre.RemoteID)
			}
		}
	}
}
