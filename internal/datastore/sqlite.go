package datastore

import (
	"fmt"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SQLiteStore implements Interface for SQLite
type SQLiteStore struct {
	DataStore
}

func validateSQLiteConfig(path string) error {
	if path == "" {
		return validationError("sqlite path cannot be empty", "database.sqlite.path", path)
	}
	return nil
}

// Open sets up the SQLite database connection
func (store *SQLiteStore) Open() error {
	path := store.Settings.Database.SQLite.Path
	if err := validateSQLiteConfig(path); err != nil {
		return err
	}

	absolutePath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve SQLite path %s: %w", path, err)
	}

	db, err := gorm.Open(sqlite.Open(absolutePath), &gorm.Config{Logger: createGormLogger()})
	if err != nil {
		return fmt.Errorf("failed to open SQLite database: %w", err)
	}

	store.DB = db
	return performAutoMigration(db, store.Settings.Debug, "SQLite", absolutePath)
}

// Close closes the SQLite database connection
func (store *SQLiteStore) Close() error {
	if store.DB == nil {
		return nil
	}
	sqlDB, err := store.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to access underlying SQLite connection: %w", err)
	}
	return sqlDB.Close()
}
