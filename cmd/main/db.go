package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// openDB opens a SQLite database with the given driver, creating the parent
// directory of the database file if needed.
func openDB(driver, dataSource string) (*sql.DB, error) {
	path, _, _ := strings.Cut(dataSource, "?")
	if dir := filepath.Dir(path); path != "" && path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("could not create database directory: %w", err)
		}
	}

	db, err := sql.Open(driver, dataSource)
	if err != nil {
		return nil, err
	}
	// One connection: SQLite has a single writer.
	db.SetMaxOpenConns(1)
	if err = db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}
	return db, nil
}
