package notion

import (
	"fmt"
	"strings"
	"time"
)

// Property names of the user's movie database schema.
const (
	propTitle     = "Titel"
	propYear      = "Jahr"
	propTagline   = "Handlung"
	propRating    = "Rating"
	propDuration  = "Dauer"
	propRank      = "Rang"
	propLanguages = "Sprachen"
	propCountries = "Länder"
	propLocations = "Speicherorte"
	propGenres    = "Genre"
	propIMDB      = "Imdb"
	propPoster    = "Poster"
	propDirectors = "Regie"
	propActors    = "Schauspieler"
	propSynonyms  = "Synonyms"
)

// MovieRecord is the internal value object for one remote movie page. It
// mirrors the semantic fields of the local movie plus the free-form locations
// tag set. Only the local side is authoritative for structural fields.
type MovieRecord struct {
	ID         string
	Title      string
	Year       *int
	Tagline    string
	Stars      string
	Duration   *int
	Rank       *int
	Languages  []string
	Countries  []string
	Locations  []string
	GenreIDs   []string
	IMDBURL    string
	PosterName string
	LastEdited time.Time
}

// UniqueKey matches the local identity key: "year-title", bare title when the
// year is unset.
func (r *MovieRecord) UniqueKey() string {
	if r.Year == nil {
		return r.Title
	}
	return fmt.Sprintf("%d-%s", *r.Year, r.Title)
}

func (r *MovieRecord) String() string {
	if r.Year == nil {
		return r.Title
	}
	return fmt.Sprintf("%s (%d)", r.Title, *r.Year)
}

// ParseMovieRecord interprets the typed properties of a raw record.
func ParseMovieRecord(record Record) (*MovieRecord, error) {
	title := readTitle(record.Properties, propTitle)
	if title == "" {
		return nil, fmt.Errorf("record %s has no title", record.ID)
	}

	movie := &MovieRecord{
		ID:         record.ID,
		Title:      title,
		Tagline:    readRichText(record.Properties, propTagline),
		Stars:      readSelect(record.Properties, propRating),
		Languages:  readMultiSelect(record.Properties, propLanguages),
		Countries:  readMultiSelect(record.Properties, propCountries),
		Locations:  readMultiSelect(record.Properties, propLocations),
		GenreIDs:   readRelation(record.Properties, propGenres),
		IMDBURL:    readURL(record.Properties, propIMDB),
		PosterName: readFileName(record.Properties, propPoster),
		LastEdited: record.LastEditedTime,
	}

	if year := readNumber(record.Properties, propYear); year != nil {
		y := int(*year)
		movie.Year = &y
	}
	if duration := readNumber(record.Properties, propDuration); duration != nil {
		d := int(*duration)
		movie.Duration = &d
	}
	if rank := readNumber(record.Properties, propRank); rank != nil {
		r := int(*rank)
		movie.Rank = &r
	}

	return movie, nil
}

// The readers below navigate the decoded JSON of one typed property. A
// missing property, a null value and a mismatched kind all read as absent.

func propertyValue(properties map[string]interface{}, name, kind string) interface{} {
	property, ok := properties[name].(map[string]interface{})
	if !ok {
		return nil
	}
	return property[kind]
}

func readTitle(properties map[string]interface{}, name string) string {
	return joinRichText(propertyValue(properties, name, "title"))
}

func readRichText(properties map[string]interface{}, name string) string {
	return joinRichText(propertyValue(properties, name, "rich_text"))
}

func joinRichText(value interface{}) string {
	fragments, ok := value.([]interface{})
	if !ok {
		return ""
	}
	var parts []string
	for _, fragment := range fragments {
		chunk, ok := fragment.(map[string]interface{})
		if !ok {
			continue
		}
		if plain, ok := chunk["plain_text"].(string); ok {
			parts = append(parts, plain)
			continue
		}
		if text, ok := chunk["text"].(map[string]interface{}); ok {
			if content, ok := text["content"].(string); ok {
				parts = append(parts, content)
			}
		}
	}
	return strings.Join(parts, "")
}

func readNumber(properties map[string]interface{}, name string) *float64 {
	number, ok := propertyValue(properties, name, "number").(float64)
	if !ok {
		return nil
	}
	return &number
}

func readSelect(properties map[string]interface{}, name string) string {
	option, ok := propertyValue(properties, name, "select").(map[string]interface{})
	if !ok {
		return ""
	}
	selected, _ := option["name"].(string)
	return selected
}

func readMultiSelect(properties map[string]interface{}, name string) []string {
	options, ok := propertyValue(properties, name, "multi_select").([]interface{})
	if !ok {
		return nil
	}
	var names []string
	for _, option := range options {
		if tag, ok := option.(map[string]interface{}); ok {
			if tagName, ok := tag["name"].(string); ok {
				names = append(names, tagName)
			}
		}
	}
	return names
}

func readRelation(properties map[string]interface{}, name string) []string {
	references, ok := propertyValue(properties, name, "relation").([]interface{})
	if !ok {
		return nil
	}
	var ids []string
	for _, reference := range references {
		if page, ok := reference.(map[string]interface{}); ok {
			if id, ok := page["id"].(string); ok {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

func readURL(properties map[string]interface{}, name string) string {
	url, _ := propertyValue(properties, name, "url").(string)
	return url
}

func readFileName(properties map[string]interface{}, name string) string {
	files, ok := propertyValue(properties, name, "files").([]interface{})
	if !ok || len(files) == 0 {
		return ""
	}
	file, ok := files[0].(map[string]interface{})
	if !ok {
		return ""
	}
	filename, _ := file["name"].(string)
	return filename
}
