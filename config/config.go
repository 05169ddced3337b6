package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Location describes one storage root holding movie folders. MountPoint is
// optional; when set, the location is skipped entirely while the mount is
// absent.
type Location struct {
	Label      string `json:"label"`
	Path       string `json:"path"`
	MountPoint string `json:"mount_point,omitempty"`
}

// Config holds the full application configuration, loaded from a JSON file
// with secrets supplied via environment variables.
type Config struct {
	DataPath        string     `json:"data_path"`
	NotionAPIKey    string     `json:"notion_api_key,omitempty"`
	MovieDatabaseID string     `json:"movie_database_id"`
	GenreDatabaseID string     `json:"genre_database_id"`
	OMDBAPIKey      string     `json:"omdb_api_key,omitempty"`
	MovieLocations  []Location `json:"movie_locations"`
	PrimaryLabels   []string   `json:"primary_labels"`
	BackupLabel     string     `json:"backup_label"`
}

// Load reads the configuration file and applies environment overrides.
// API keys set in the environment always win over values in the file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %v", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %v", path, err)
	}

	if cfg.DataPath == "" {
		cfg.DataPath = getEnv("DATA_PATH", "./data")
	}
	if key := os.Getenv("NOTION_API_KEY"); key != "" {
		cfg.NotionAPIKey = key
	}
	if key := os.Getenv("OMDB_API_KEY"); key != "" {
		cfg.OMDBAPIKey = key
	}
	if cfg.BackupLabel == "" {
		cfg.BackupLabel = "Backup"
	}

	return &cfg, nil
}

// LocationsByLabel filters the configured movie locations. The selector "all"
// (or an empty selector) returns every location.
func (c *Config) LocationsByLabel(selector string) []Location {
	if selector == "" || selector == "all" {
		return c.MovieLocations
	}
	var locations []Location
	for _, location := range c.MovieLocations {
		if strings.EqualFold(location.Label, selector) {
			locations = append(locations, location)
		}
	}
	return locations
}

// BackupLocation returns the configured backup location, if any.
func (c *Config) BackupLocation() (Location, bool) {
	for _, location := range c.MovieLocations {
		if strings.EqualFold(location.Label, c.BackupLabel) {
			return location, true
		}
	}
	return Location{}, false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
