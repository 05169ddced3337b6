package storage

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteStorage struct {
	db       *sql.DB
	dbPath   string
	dataPath string
}

func NewSQLiteStorage(dataPath string) *SQLiteStorage {
	dbPath := filepath.Join(dataPath, "media.sqlite")
	return &SQLiteStorage{
		dbPath:   dbPath,
		dataPath: dataPath,
	}
}

func (s *SQLiteStorage) Initialize() error {
	// Create data directory if it doesn't exist
	if err := os.MkdirAll(s.dataPath, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %v", err)
	}

	// Open database connection
	db, err := sql.Open("sqlite3", s.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %v", err)
	}

	s.db = db

	// The cascading cleanup in PruneOrphans relies on the join tables
	// actually enforcing their references.
	if _, err := s.db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %v", err)
	}

	// Initialize and run migrations using Goose
	migrationManager := NewMigrationManager(s.db)
	if err := migrationManager.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize migrations: %v", err)
	}

	if err := migrationManager.Up(); err != nil {
		return fmt.Errorf("failed to run migrations: %v", err)
	}

	log.Printf("SQLite database initialized at: %s", s.dbPath)
	return nil
}

func (s *SQLiteStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStorage) GetDB() (*sql.DB, error) {
	if s.db == nil {
		// Open database connection if not already open
		db, err := sql.Open("sqlite3", s.dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %v", err)
		}
		s.db = db
	}
	return s.db, nil
}

func (s *SQLiteStorage) GetStats() (map[string]int, error) {
	stats := make(map[string]int)

	counts := map[string]string{
		"movies":    "SELECT COUNT(*) FROM movies",
		"persons":   "SELECT COUNT(*) FROM persons",
		"genres":    "SELECT COUNT(*) FROM genres",
		"paths":     "SELECT COUNT(*) FROM storage_paths",
		"locations": "SELECT COUNT(*) FROM storage_locations",
	}

	for name, query := range counts {
		var count int
		if err := s.db.QueryRow(query).Scan(&count); err != nil {
			return nil, fmt.Errorf("failed to get %s count: %v", name, err)
		}
		stats[name] = count
	}

	return stats, nil
}

// Migration management methods
func (s *SQLiteStorage) GetMigrationManager() *MigrationManager {
	return NewMigrationManager(s.db)
}

func (s *SQLiteStorage) GetDatabaseVersion() (int64, error) {
	migrationManager := s.GetMigrationManager()
	if err := migrationManager.Initialize(); err != nil {
		return 0, err
	}
	return migrationManager.Version()
}

func (s *SQLiteStorage) RunMigrations() error {
	migrationManager := s.GetMigrationManager()
	if err := migrationManager.Initialize(); err != nil {
		return err
	}
	return migrationManager.Up()
}

func (s *SQLiteStorage) RollbackMigration() error {
	migrationManager := s.GetMigrationManager()
	if err := migrationManager.Initialize(); err != nil {
		return err
	}
	return migrationManager.Down()
}

func (s *SQLiteStorage) ResetDatabase() error {
	migrationManager := s.GetMigrationManager()
	if err := migrationManager.Initialize(); err != nil {
		return err
	}
	return migrationManager.Reset()
}
