package storage

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"media-manager/nfo"
)

// lookupTable describes one deduplicated name table and the join table that
// associates it with movies.
type lookupTable struct {
	table      string
	idColumn   string
	nameColumn string
	joinTable  string
	joinColumn string
}

var (
	genreLookup    = lookupTable{"genres", "genre_id", "name", "movie_genres", "genre_id"}
	actorLookup    = lookupTable{"persons", "person_id", "fullname", "movie_actors", "person_id"}
	directorLookup = lookupTable{"persons", "person_id", "fullname", "movie_directors", "person_id"}
	countryLookup  = lookupTable{"countries", "country_id", "name", "movie_countries", "country_id"}
	languageLookup = lookupTable{"languages", "language_id", "name", "movie_languages", "language_id"}
)

const movieColumns = "movie_id, remote_id, external_id, title, year, poster_url, tagline, rating, duration, rank, updated_at"

// FindByIdentity returns the movie matching (title, year) exactly, without
// associations loaded, or nil when no such movie exists.
func (s *SQLiteStorage) FindByIdentity(title string, year *int) (*Movie, error) {
	var row *sql.Row
	if year == nil {
		row = s.db.QueryRow("SELECT "+movieColumns+" FROM movies WHERE title = ? AND year IS NULL", title)
	} else {
		row = s.db.QueryRow("SELECT "+movieColumns+" FROM movies WHERE title = ? AND year = ?", title, *year)
	}

	movie, err := scanMovie(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find movie %q: %v", title, err)
	}
	return movie, nil
}

// UpsertMovie creates or updates the movie matching the metadata identity in
// one transaction. Scalar fields follow a first-write-wins policy: duration,
// rating, external id, poster and tagline are only filled while unset, so a
// later partial rescan never erases previously captured values. The poster is
// looked up lazily once an external id is known, and the popularity rank is
// refreshed whenever the ranking knows the external id. Associations are
// appended, never replaced.
func (s *SQLiteStorage) UpsertMovie(meta *nfo.Metadata, label, moviePath string, posters PosterSource, ranks RankSource) (*Movie, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %v", err)
	}

	movie, err := upsertMovieTx(tx, meta, label, moviePath, posters, ranks)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit upsert for %q: %v", meta.Title, err)
	}
	return movie, nil
}

func upsertMovieTx(tx *sql.Tx, meta *nfo.Metadata, label, moviePath string, posters PosterSource, ranks RankSource) (*Movie, error) {
	movie, err := findByIdentityTx(tx, meta.Title, meta.Year)
	if err != nil {
		return nil, err
	}

	if movie == nil {
		log.Printf("Creating new movie %q", meta.Title)
		result, err := tx.Exec(
			"INSERT INTO movies (title, year, created_at, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)",
			meta.Title, toNullInt(meta.Year))
		if err != nil {
			return nil, fmt.Errorf("failed to insert movie %q: %v", meta.Title, err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("failed to get movie id for %q: %v", meta.Title, err)
		}
		movie = &Movie{ID: id, Title: meta.Title, Year: meta.Year}
	}

	changed := false
	if movie.Duration == nil && meta.Duration != nil {
		movie.Duration = meta.Duration
		changed = true
	}
	if movie.Rating == nil && meta.Rating != nil {
		movie.Rating = meta.Rating
		changed = true
	}
	if movie.ExternalID == nil && meta.ExternalID != "" {
		externalID := meta.ExternalID
		movie.ExternalID = &externalID
		changed = true
	}
	if movie.PosterURL == nil && movie.ExternalID != nil && posters != nil {
		if url := posters.PosterURL(*movie.ExternalID); url != "" {
			movie.PosterURL = &url
			changed = true
		}
	}
	if (movie.Tagline == nil || *movie.Tagline == "") && meta.Tagline != "" {
		tagline := meta.Tagline
		movie.Tagline = &tagline
		changed = true
	}
	if movie.ExternalID != nil && ranks != nil {
		if rank, ok := ranks.Rank(*movie.ExternalID); ok {
			if movie.Rank == nil || *movie.Rank != rank {
				movie.Rank = &rank
				changed = true
			}
		} else if movie.Rank != nil {
			// The movie dropped off the chart.
			movie.Rank = nil
			changed = true
		}
	}

	if changed {
		_, err := tx.Exec(
			"UPDATE movies SET external_id = ?, poster_url = ?, tagline = ?, rating = ?, duration = ?, rank = ?, updated_at = CURRENT_TIMESTAMP WHERE movie_id = ?",
			toNullString(movie.ExternalID), toNullString(movie.PosterURL), toNullString(movie.Tagline),
			toNullFloat(movie.Rating), toNullInt(movie.Duration), toNullInt(movie.Rank), movie.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to update movie %q: %v", meta.Title, err)
		}
	}

	if err := appendPath(tx, movie.ID, label, moviePath); err != nil {
		return nil, err
	}
	if err := appendAssociations(tx, movie.ID, meta.Genres, genreLookup); err != nil {
		return nil, err
	}
	if err := appendAssociations(tx, movie.ID, meta.Actors, actorLookup); err != nil {
		return nil, err
	}
	if err := appendAssociations(tx, movie.ID, meta.Directors, directorLookup); err != nil {
		return nil, err
	}
	if err := appendAssociations(tx, movie.ID, meta.Countries, countryLookup); err != nil {
		return nil, err
	}
	if err := appendAssociations(tx, movie.ID, meta.Languages, languageLookup); err != nil {
		return nil, err
	}

	return movie, nil
}

func findByIdentityTx(tx *sql.Tx, title string, year *int) (*Movie, error) {
	var row *sql.Row
	if year == nil {
		row = tx.QueryRow("SELECT "+movieColumns+" FROM movies WHERE title = ? AND year IS NULL", title)
	} else {
		row = tx.QueryRow("SELECT "+movieColumns+" FROM movies WHERE title = ? AND year = ?", title, *year)
	}

	movie, err := scanMovie(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find movie %q: %v", title, err)
	}
	return movie, nil
}

// appendPath links the movie to a path under the labelled storage location.
// The location row is created lazily on first use. A path already associated
// with the movie is left alone.
func appendPath(tx *sql.Tx, movieID int64, label, moviePath string) error {
	var pathID int64
	err := tx.QueryRow("SELECT path_id FROM storage_paths WHERE path = ? AND movie_id = ?", moviePath, movieID).Scan(&pathID)
	if err == nil {
		return nil
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("failed to check path %s: %v", moviePath, err)
	}

	var locationID int64
	err = tx.QueryRow("SELECT location_id FROM storage_locations WHERE label = ?", label).Scan(&locationID)
	if err == sql.ErrNoRows {
		log.Printf("Creating storage location %q", label)
		result, err := tx.Exec("INSERT INTO storage_locations (label) VALUES (?)", label)
		if err != nil {
			return fmt.Errorf("failed to create storage location %q: %v", label, err)
		}
		locationID, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get location id for %q: %v", label, err)
		}
	} else if err != nil {
		return fmt.Errorf("failed to find storage location %q: %v", label, err)
	}

	if _, err := tx.Exec("INSERT INTO storage_paths (path, location_id, movie_id) VALUES (?, ?, ?)", moviePath, locationID, movieID); err != nil {
		return fmt.Errorf("failed to add path %s: %v", moviePath, err)
	}
	return nil
}

// appendAssociations links the movie to the named lookup entities, creating
// unseen names on first reference and skipping names already associated.
func appendAssociations(tx *sql.Tx, movieID int64, names []string, spec lookupTable) error {
	for _, name := range names {
		var id int64
		query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", spec.idColumn, spec.table, spec.nameColumn)
		err := tx.QueryRow(query, name).Scan(&id)
		if err == sql.ErrNoRows {
			result, err := tx.Exec(fmt.Sprintf("INSERT INTO %s (%s) VALUES (?)", spec.table, spec.nameColumn), name)
			if err != nil {
				return fmt.Errorf("failed to create %s entry %q: %v", spec.table, name, err)
			}
			id, err = result.LastInsertId()
			if err != nil {
				return fmt.Errorf("failed to get id for %s entry %q: %v", spec.table, name, err)
			}
		} else if err != nil {
			return fmt.Errorf("failed to look up %s entry %q: %v", spec.table, name, err)
		}

		insert := fmt.Sprintf("INSERT OR IGNORE INTO %s (movie_id, %s) VALUES (?, ?)", spec.joinTable, spec.joinColumn)
		if _, err := tx.Exec(insert, movieID, id); err != nil {
			return fmt.Errorf("failed to associate %s entry %q: %v", spec.table, name, err)
		}
	}
	return nil
}

// AddPath registers one more path for an existing movie, creating the
// storage location row on first use.
func (s *SQLiteStorage) AddPath(movieID int64, label, path string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	if err := appendPath(tx, movieID, label, path); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit path: %v", err)
	}
	return nil
}

// PathsForLocation returns all storage paths registered under the given
// location label.
func (s *SQLiteStorage) PathsForLocation(label string) ([]StoragePath, error) {
	rows, err := s.db.Query(`
	SELECT sp.path_id, sp.path, sl.label, sp.movie_id
	FROM storage_paths sp
	JOIN storage_locations sl ON sp.location_id = sl.location_id
	WHERE sl.label = ?
	`, label)
	if err != nil {
		return nil, fmt.Errorf("failed to query paths for %q: %v", label, err)
	}
	defer rows.Close()

	var paths []StoragePath
	for rows.Next() {
		var path StoragePath
		if err := rows.Scan(&path.ID, &path.Path, &path.LocationLabel, &path.MovieID); err != nil {
			return nil, fmt.Errorf("failed to scan path: %v", err)
		}
		paths = append(paths, path)
	}
	return paths, rows.Err()
}

// DeletePaths removes the given storage paths in one transaction.
func (s *SQLiteStorage) DeletePaths(paths []StoragePath) error {
	if len(paths) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}

	for _, path := range paths {
		if _, err := tx.Exec("DELETE FROM storage_paths WHERE path_id = ?", path.ID); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to delete path %s: %v", path.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit path deletion: %v", err)
	}
	return nil
}

// PruneOrphans deletes every movie left without a storage path, detaching all
// of its lookup associations first. It returns the remote ids of pruned
// movies that were linked remotely so the caller can scrub their location
// markers; movies never linked are dropped silently.
func (s *SQLiteStorage) PruneOrphans() ([]string, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %v", err)
	}

	rows, err := tx.Query("SELECT movie_id, remote_id, title FROM movies WHERE movie_id NOT IN (SELECT movie_id FROM storage_paths)")
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to query orphaned movies: %v", err)
	}

	var orphanIDs []int64
	var remoteIDs []string
	for rows.Next() {
		var id int64
		var remoteID sql.NullString
		var title string
		if err := rows.Scan(&id, &remoteID, &title); err != nil {
			rows.Close()
			tx.Rollback()
			return nil, fmt.Errorf("failed to scan orphaned movie: %v", err)
		}
		orphanIDs = append(orphanIDs, id)
		if remoteID.Valid {
			remoteIDs = append(remoteIDs, remoteID.String)
		}
		log.Printf("Deleting movie %q (no storage paths left)", title)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		tx.Rollback()
		return nil, fmt.Errorf("failed to read orphaned movies: %v", err)
	}
	rows.Close()

	// Detach all relations explicitly before removing the movie itself.
	joinTables := []string{"movie_genres", "movie_actors", "movie_directors", "movie_countries", "movie_languages"}
	for _, id := range orphanIDs {
		for _, table := range joinTables {
			if _, err := tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE movie_id = ?", table), id); err != nil {
				tx.Rollback()
				return nil, fmt.Errorf("failed to detach %s for movie %d: %v", table, id, err)
			}
		}
		if _, err := tx.Exec("DELETE FROM movies WHERE movie_id = ?", id); err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("failed to delete movie %d: %v", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit prune: %v", err)
	}

	if len(orphanIDs) > 0 {
		log.Printf("Pruned %d movies without storage paths", len(orphanIDs))
	}
	return remoteIDs, nil
}

// SetRemoteID stores the remote record id on a movie, either after creating
// the record or to fix a stale link found during reconciliation.
func (s *SQLiteStorage) SetRemoteID(movieID int64, remoteID string) error {
	if _, err := s.db.Exec("UPDATE movies SET remote_id = ?, updated_at = CURRENT_TIMESTAMP WHERE movie_id = ?", remoteID, movieID); err != nil {
		return fmt.Errorf("failed to set remote id for movie %d: %v", movieID, err)
	}
	return nil
}

// LastModifiedWatermark returns the newest updated_at across all movies, or
// nil for an empty catalog. Advisory only; the reconciliation diff does not
// depend on it.
func (s *SQLiteStorage) LastModifiedWatermark() (*time.Time, error) {
	var value sql.NullString
	if err := s.db.QueryRow("SELECT MAX(updated_at) FROM movies").Scan(&value); err != nil {
		return nil, fmt.Errorf("failed to query last update: %v", err)
	}
	if !value.Valid {
		return nil, nil
	}
	watermark, err := time.Parse("2006-01-02 15:04:05", value.String)
	if err != nil {
		return nil, fmt.Errorf("failed to parse last update %q: %v", value.String, err)
	}
	return &watermark, nil
}

// AllMovies loads the full catalog with every association populated.
func (s *SQLiteStorage) AllMovies() ([]*Movie, error) {
	rows, err := s.db.Query("SELECT " + movieColumns + " FROM movies ORDER BY movie_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query movies: %v", err)
	}
	defer rows.Close()

	var movies []*Movie
	byID := make(map[int64]*Movie)
	for rows.Next() {
		movie, err := scanMovie(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan movie: %v", err)
		}
		movies = append(movies, movie)
		byID[movie.ID] = movie
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read movies: %v", err)
	}

	if err := s.loadGenres(byID); err != nil {
		return nil, err
	}
	if err := s.loadNames(byID, "movie_actors", "person_id", "persons", "fullname", func(m *Movie, name string) { m.Actors = append(m.Actors, name) }); err != nil {
		return nil, err
	}
	if err := s.loadNames(byID, "movie_directors", "person_id", "persons", "fullname", func(m *Movie, name string) { m.Directors = append(m.Directors, name) }); err != nil {
		return nil, err
	}
	if err := s.loadNames(byID, "movie_countries", "country_id", "countries", "name", func(m *Movie, name string) { m.Countries = append(m.Countries, name) }); err != nil {
		return nil, err
	}
	if err := s.loadNames(byID, "movie_languages", "language_id", "languages", "name", func(m *Movie, name string) { m.Languages = append(m.Languages, name) }); err != nil {
		return nil, err
	}
	if err := s.loadPaths(byID); err != nil {
		return nil, err
	}

	return movies, nil
}

func (s *SQLiteStorage) loadGenres(byID map[int64]*Movie) error {
	rows, err := s.db.Query(`
	SELECT mg.movie_id, g.genre_id, g.name, g.remote_id
	FROM movie_genres mg
	JOIN genres g ON mg.genre_id = g.genre_id
	`)
	if err != nil {
		return fmt.Errorf("failed to query movie genres: %v", err)
	}
	defer rows.Close()

	for rows.Next() {
		var movieID int64
		var genre Genre
		var remoteID sql.NullString
		if err := rows.Scan(&movieID, &genre.ID, &genre.Name, &remoteID); err != nil {
			return fmt.Errorf("failed to scan movie genre: %v", err)
		}
		if remoteID.Valid {
			genre.RemoteID = &remoteID.String
		}
		if movie, ok := byID[movieID]; ok {
			movie.Genres = append(movie.Genres, genre)
		}
	}
	return rows.Err()
}

func (s *SQLiteStorage) loadNames(byID map[int64]*Movie, joinTable, joinColumn, table, nameColumn string, add func(*Movie, string)) error {
	query := fmt.Sprintf("SELECT j.movie_id, t.%s FROM %s j JOIN %s t ON j.%s = t.%s",
		nameColumn, joinTable, table, joinColumn, joinColumn)
	rows, err := s.db.Query(query)
	if err != nil {
		return fmt.Errorf("failed to query %s: %v", joinTable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var movieID int64
		var name string
		if err := rows.Scan(&movieID, &name); err != nil {
			return fmt.Errorf("failed to scan %s: %v", joinTable, err)
		}
		if movie, ok := byID[movieID]; ok {
			add(movie, name)
		}
	}
	return rows.Err()
}

func (s *SQLiteStorage) loadPaths(byID map[int64]*Movie) error {
	rows, err := s.db.Query(`
	SELECT sp.path_id, sp.path, sl.label, sp.movie_id
	FROM storage_paths sp
	JOIN storage_locations sl ON sp.location_id = sl.location_id
	`)
	if err != nil {
		return fmt.Errorf("failed to query storage paths: %v", err)
	}
	defer rows.Close()

	for rows.Next() {
		var path StoragePath
		if err := rows.Scan(&path.ID, &path.Path, &path.LocationLabel, &path.MovieID); err != nil {
			return fmt.Errorf("failed to scan storage path: %v", err)
		}
		if movie, ok := byID[path.MovieID]; ok {
			movie.Paths = append(movie.Paths, path)
		}
	}
	return rows.Err()
}

// UpdateGenreRemoteIDs fills in the remote id on genre rows that do not have
// one yet, using the synonym lookup loaded from the remote genre database.
// Returns the number of genres linked.
func (s *SQLiteStorage) UpdateGenreRemoteIDs(lookup map[string]string) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %v", err)
	}

	rows, err := tx.Query("SELECT genre_id, name FROM genres WHERE remote_id IS NULL")
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("failed to query unlinked genres: %v", err)
	}

	type genreRow struct {
		id   int64
		name string
	}
	var unlinked []genreRow
	for rows.Next() {
		var row genreRow
		if err := rows.Scan(&row.id, &row.name); err != nil {
			rows.Close()
			tx.Rollback()
			return 0, fmt.Errorf("failed to scan genre: %v", err)
		}
		unlinked = append(unlinked, row)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		tx.Rollback()
		return 0, fmt.Errorf("failed to read genres: %v", err)
	}
	rows.Close()

	linked := 0
	for _, row := range unlinked {
		remoteID, ok := lookup[row.name]
		if !ok {
			continue
		}
		if _, err := tx.Exec("UPDATE genres SET remote_id = ? WHERE genre_id = ?", remoteID, row.id); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("failed to link genre %q: %v", row.name, err)
		}
		linked++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit genre links: %v", err)
	}
	return linked, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanMovie(row scanner) (*Movie, error) {
	var movie Movie
	var remoteID, externalID, posterURL, tagline sql.NullString
	var year, duration, rank sql.NullInt64
	var rating sql.NullFloat64
	var updatedAt sql.NullTime

	err := row.Scan(&movie.ID, &remoteID, &externalID, &movie.Title, &year,
		&posterURL, &tagline, &rating, &duration, &rank, &updatedAt)
	if err != nil {
		return nil, err
	}

	movie.RemoteID = fromNullString(remoteID)
	movie.ExternalID = fromNullString(externalID)
	movie.PosterURL = fromNullString(posterURL)
	movie.Tagline = fromNullString(tagline)
	movie.Year = fromNullInt(year)
	movie.Duration = fromNullInt(duration)
	movie.Rank = fromNullInt(rank)
	if rating.Valid {
		movie.Rating = &rating.Float64
	}
	if updatedAt.Valid {
		movie.UpdatedAt = &updatedAt.Time
	}
	return &movie, nil
}

func fromNullString(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	return &value.String
}

func fromNullInt(value sql.NullInt64) *int {
	if !value.Valid {
		return nil
	}
	n := int(value.Int64)
	return &n
}

func toNullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func toNullInt(value *int) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*value), Valid: true}
}

func toNullFloat(value *float64) sql.NullFloat64 {
	if value == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *value, Valid: true}
}
