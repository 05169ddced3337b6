package notion

import (
	"fmt"
	"log"

	"media-manager/storage"
)

// Catalog is the adapter between local movie entities and the remote movie
// and genre databases.
type Catalog struct {
	client          *Client
	movieDatabaseID string
	genreDatabaseID string
}

func NewCatalog(client *Client, movieDatabaseID, genreDatabaseID string) *Catalog {
	return &Catalog{
		client:          client,
		movieDatabaseID: movieDatabaseID,
		genreDatabaseID: genreDatabaseID,
	}
}

// LoadAllMovies loads the complete remote movie set. Records that cannot be
// interpreted are logged and skipped rather than failing the run.
func (c *Catalog) LoadAllMovies() ([]*MovieRecord, error) {
	records, err := c.client.LoadRecords(c.movieDatabaseID)
	if err != nil {
		return nil, err
	}

	var movies []*MovieRecord
	for _, record := range records {
		movie, err := ParseMovieRecord(record)
		if err != nil {
			log.Printf("Could not read movie record %s: %v", record.URL, err)
			continue
		}
		movies = append(movies, movie)
	}
	return movies, nil
}

// LoadGenreLinks builds the genre-name lookup from the remote genre database:
// every synonym listed on a genre page maps to that page's id.
func (c *Catalog) LoadGenreLinks() (map[string]string, error) {
	records, err := c.client.LoadRecords(c.genreDatabaseID)
	if err != nil {
		return nil, err
	}

	links := make(map[string]string)
	for _, record := range records {
		for _, synonym := range readMultiSelect(record.Properties, propSynonyms) {
			links[synonym] = record.ID
		}
	}
	return links, nil
}

// CreateMovie creates a remote record for the movie and returns the assigned
// record id.
func (c *Catalog) CreateMovie(movie *storage.Movie) (string, error) {
	return c.client.CreateRecord(c.movieDatabaseID, RecordProperties(movie))
}

// PatchMovie applies a field-level delta to an existing record.
func (c *Catalog) PatchMovie(recordID string, delta *Delta) error {
	if delta.Empty() {
		return nil
	}
	return c.client.UpdateRecord(recordID, delta.props)
}

// ClearLocations empties the locations tag set of each record. The records
// themselves are left intact for manual curation.
func (c *Catalog) ClearLocations(recordIDs []string) error {
	for _, recordID := range recordIDs {
		if err := c.client.UpdateRecord(recordID, Properties{propLocations: MultiSelect{}}); err != nil {
			return fmt.Errorf("failed to clear locations on %s: %v", recordID, err)
		}
		log.Printf("Cleared locations on remote record %s", recordID)
	}
	return nil
}

// IMDBURL derives the external catalog link from an external id.
func IMDBURL(externalID string) string {
	return fmt.Sprintf("https://www.imdb.com/title/%s/", externalID)
}

// RecordProperties maps a local movie onto the full remote property set used
// when creating its record. Genres without a known remote id are left out of
// the relation; they get linked on a later run once the genre lookup knows
// them.
func RecordProperties(movie *storage.Movie) Properties {
	properties := Properties{
		propTitle: Title{Text: movie.Title},
	}

	if movie.Year != nil {
		properties[propYear] = NumberOf(*movie.Year)
	}
	if movie.Duration != nil {
		properties[propDuration] = NumberOf(*movie.Duration)
	}
	if movie.Rank != nil {
		properties[propRank] = NumberOf(*movie.Rank)
	}
	if movie.Tagline != nil && *movie.Tagline != "" {
		properties[propTagline] = RichText{Text: *movie.Tagline}
	}
	if stars := Stars(movie.Rating); stars != "" {
		properties[propRating] = Select{Name: stars}
	}
	if movie.ExternalID != nil {
		properties[propIMDB] = URL{Value: IMDBURL(*movie.ExternalID)}
	}
	if movie.PosterURL != nil && *movie.PosterURL != "" {
		properties[propPoster] = ExternalFile{Name: *movie.PosterURL, URL: *movie.PosterURL}
	}
	if locations := movie.Locations(); len(locations) > 0 {
		properties[propLocations] = MultiSelect{Names: locations}
	}
	if len(movie.Countries) > 0 {
		properties[propCountries] = MultiSelect{Names: movie.Countries}
	}
	if len(movie.Languages) > 0 {
		properties[propLanguages] = MultiSelect{Names: movie.Languages}
	}
	if len(movie.Directors) > 0 {
		properties[propDirectors] = MultiSelect{Names: movie.Directors}
	}
	if len(movie.Actors) > 0 {
		properties[propActors] = MultiSelect{Names: movie.Actors}
	}

	var genreIDs []string
	for _, genre := range movie.Genres {
		if genre.RemoteID != nil {
			genreIDs = append(genreIDs, *genre.RemoteID)
		}
	}
	if len(genreIDs) > 0 {
		properties[propGenres] = Relation{IDs: genreIDs}
	}

	return properties
}

// Delta accumulates the properties of a field-level patch. An empty delta
// issues no remote call at all.
type Delta struct {
	props Properties
}

func NewDelta() *Delta {
	return &Delta{props: make(Properties)}
}

func (d *Delta) Empty() bool {
	return len(d.props) == 0
}

// Wire renders the delta's payload as it goes over the API.
func (d *Delta) Wire() map[string]interface{} {
	return d.props.Wire()
}

// Fields lists the property names present in the delta.
func (d *Delta) Fields() []string {
	var names []string
	for name := range d.props {
		names = append(names, name)
	}
	return names
}

// SetTagline overwrites the remote tagline; an empty text clears it.
func (d *Delta) SetTagline(text string) {
	d.props[propTagline] = RichText{Text: text}
}

// SetLocations replaces the remote locations tag set.
func (d *Delta) SetLocations(labels []string) {
	d.props[propLocations] = MultiSelect{Names: labels}
}

// SetIMDBURL patches the derived external catalog link.
func (d *Delta) SetIMDBURL(url string) {
	d.props[propIMDB] = URL{Value: url}
}

// SetStars patches the star-glyph rating select; an empty string clears it.
func (d *Delta) SetStars(stars string) {
	d.props[propRating] = Select{Name: stars}
}

// SetRank patches the popularity rank; nil clears it.
func (d *Delta) SetRank(rank *int) {
	if rank == nil {
		d.props[propRank] = Number{}
		return
	}
	d.props[propRank] = NumberOf(*rank)
}
