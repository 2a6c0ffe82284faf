package database

import (
	"database/sql"
	"fmt"
	"log"

	_ "github.com/mattn/go-sqlite3"
)

// InitDB opens the sqlite database at path and makes sure every table exists.
// The same schema serves the server's document store and a client's local state.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	// Create documents table (one JSON document per path)
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS documents (
		path TEXT PRIMARY KEY,
		collection TEXT NOT NULL,
		data TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create documents table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create documents index: %w", err)
	}

	// Create local state table (will store JSON snapshots keyed by store name)
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS local_state (
		key TEXT PRIMARY KEY,
		data TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create local_state table: %w", err)
	}

	log.Printf("Database initialized successfully: %s", path)
	return db, nil
}
