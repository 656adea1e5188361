package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// ProfileFile is the name of the profile database inside the profile directory
const ProfileFile = "profile.duckdb"

const schema = `
CREATE TABLE IF NOT EXISTS credentials (
	name       VARCHAR PRIMARY KEY,
	value      VARCHAR NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`

// Open opens (creating if needed) the DuckDB profile database at path and ensures its schema.
// An empty path opens a throwaway in-memory database.
func Open(path string) (*sql.DB, error) {
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create profile directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open DuckDB: %w", err)
	}

	// DuckDB works best with a single connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create profile schema: %w", err)
	}

	return db, nil
}

// OpenProfile opens the profile database inside the given profile directory
func OpenProfile(profileDir string) (*sql.DB, error) {
	return Open(filepath.Join(profileDir, ProfileFile))
}
