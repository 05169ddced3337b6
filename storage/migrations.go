package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"log"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// MigrationManager drives the embedded catalog schema migrations.
type MigrationManager struct {
	db *sql.DB
}

func NewMigrationManager(db *sql.DB) *MigrationManager {
	return &MigrationManager{db: db}
}

func (m *MigrationManager) Initialize() error {
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %v", err)
	}

	return nil
}

func (m *MigrationManager) Up() error {
	if err := goose.Up(m.db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %v", err)
	}
	log.Println("Catalog schema migrations completed successfully")
	return nil
}

func (m *MigrationManager) Down() error {
	if err := goose.Down(m.db, "migrations"); err != nil {
		return fmt.Errorf("failed to rollback migration: %v", err)
	}
	log.Println("Catalog schema migration rolled back successfully")
	return nil
}

func (m *MigrationManager) Status() error {
	if err := goose.Status(m.db, "migrations"); err != nil {
		return fmt.Errorf("failed to get migration status: %v", err)
	}
	return nil
}

func (m *MigrationManager) Version() (int64, error) {
	version, err := goose.GetDBVersion(m.db)
	if err != nil {
		return 0, fmt.Errorf("failed to get database version: %v", err)
	}
	return version, nil
}

func (m *MigrationManager) Reset() error {
	if err := goose.Reset(m.db, "migrations"); err != nil {
		return fmt.Errorf("failed to reset database: %v", err)
	}
	log.Println("Catalog database reset completed")
	return nil
}
