package nfo

import (
	"encoding/xml"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// MaxActors limits how many credited performers are taken from a sidecar
// file, in document order.
const MaxActors = 3

// CanonicalFilename is the name every sidecar file is renamed to before
// parsing.
const CanonicalFilename = "movie.nfo"

// ParseError indicates a sidecar file that could not be read or decoded.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError indicates a well-formed sidecar file missing the required
// title.
type ValidationError struct {
	Path string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("no title found in %s", e.Path)
}

// Metadata is the normalized record extracted from one sidecar file. Numeric
// fields that are missing from the document stay nil, never zero.
type Metadata struct {
	Title         string
	OriginalTitle string
	Year          *int
	Duration      *int // seconds
	Rating        *float64
	Tagline       string
	ExternalID    string
	Genres        []string
	Actors        []string
	Directors     []string
	Countries     []string
	Languages     []string
}

// document mirrors the Kodi-style movie XML layout.
type document struct {
	Title         string   `xml:"title"`
	OriginalTitle string   `xml:"originaltitle"`
	Year          string   `xml:"year"`
	Tagline       string   `xml:"tagline"`
	ExternalID    string   `xml:"id"`
	Rating        string   `xml:"rating"`
	Genres        []string `xml:"genre"`
	Directors     []string `xml:"director"`
	Countries     []string `xml:"country"`
	Actors        []struct {
		Name string `xml:"name"`
	} `xml:"actor"`
	FileInfo struct {
		StreamDetails struct {
			Video []struct {
				DurationInSeconds string `xml:"durationinseconds"`
			} `xml:"video"`
			Audio []struct {
				Language string `xml:"language"`
			} `xml:"audio"`
		} `xml:"streamdetails"`
	} `xml:"fileinfo"`
}

// IsSidecarFile reports whether the given path looks like a sidecar metadata
// file.
func IsSidecarFile(path string) bool {
	return strings.HasSuffix(path, ".nfo")
}

// RenameToCanonical renames a sidecar file to movie.nfo in place. Renaming is
// idempotent: a file that is already canonical is left alone, and any rename
// failure falls back to the original path so parsing can still be attempted.
func RenameToCanonical(path string) string {
	if !IsSidecarFile(path) {
		log.Printf("%s is not a sidecar file, not renaming", path)
		return path
	}
	if filepath.Base(path) == CanonicalFilename {
		return path
	}

	canonical := filepath.Join(filepath.Dir(path), CanonicalFilename)
	if err := os.Rename(path, canonical); err != nil {
		log.Printf("Failed to rename %s to %s: %v", path, CanonicalFilename, err)
		return path
	}
	log.Printf("Renamed %s to %s", path, CanonicalFilename)
	return canonical
}

// Parse reads a sidecar file and extracts the movie metadata. It returns a
// *ParseError when the document cannot be decoded and a *ValidationError when
// no title is present.
func Parse(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	var doc document
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	meta := &Metadata{
		Title:         strings.TrimSpace(doc.Title),
		OriginalTitle: strings.TrimSpace(doc.OriginalTitle),
		Tagline:       strings.TrimSpace(doc.Tagline),
		ExternalID:    strings.TrimSpace(doc.ExternalID),
		Year:          parseInt(doc.Year),
		Rating:        parseFloat(doc.Rating),
	}
	if meta.Title == "" {
		return nil, &ValidationError{Path: path}
	}

	for _, video := range doc.FileInfo.StreamDetails.Video {
		if duration := parseInt(video.DurationInSeconds); duration != nil {
			meta.Duration = duration
			break
		}
	}

	meta.Genres = cleanNames(doc.Genres)
	meta.Directors = cleanNames(doc.Directors)
	meta.Countries = cleanNames(doc.Countries)

	for _, actor := range doc.Actors {
		name := strings.TrimSpace(actor.Name)
		if name == "" {
			continue
		}
		meta.Actors = append(meta.Actors, name)
		if len(meta.Actors) >= MaxActors {
			break
		}
	}

	for _, audio := range doc.FileInfo.StreamDetails.Audio {
		if language := strings.TrimSpace(audio.Language); language != "" {
			meta.Languages = append(meta.Languages, language)
		}
	}

	return meta, nil
}

// parseInt returns nil on empty or malformed input; a value that cannot be
// converted is treated as absent.
func parseInt(value string) *int {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return nil
	}
	return &n
}

func parseFloat(value string) *float64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil
	}
	return &f
}

func cleanNames(values []string) []string {
	var names []string
	for _, value := range values {
		if name := strings.TrimSpace(value); name != "" {
			names = append(names, name)
		}
	}
	return names
}
