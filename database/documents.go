package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// DocumentService handles database operations for path-addressed documents
type DocumentService struct {
	db *sql.DB
}

func NewDocumentService(db *sql.DB) *DocumentService {
	return &DocumentService{db: db}
}

// GetCollection returns every document directly under a collection path, ordered by path.
// An unknown collection yields an empty slice.
func (s *DocumentService) GetCollection(path string) ([]json.RawMessage, error) {
	segments, err := SplitPath(path)
	if err != nil {
		return nil, err
	}
	if len(segments)%2 != 1 {
		return nil, fmt.Errorf("%w: %s is not a collection", ErrInvalidPath, path)
	}

	rows, err := s.db.Query("SELECT data FROM documents WHERE collection = ? ORDER BY path", strings.Join(segments, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}
	defer rows.Close()

	docs := []json.RawMessage{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, json.RawMessage(data))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate collection: %w", err)
	}
	return docs, nil
}

// Get returns the document stored at path.
func (s *DocumentService) Get(path string) (json.RawMessage, error) {
	key, _, err := documentKey(path)
	if err != nil {
		return nil, err
	}

	var data string
	err = s.db.QueryRow("SELECT data FROM documents WHERE path = ?", key).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query document: %w", err)
	}
	return json.RawMessage(data), nil
}

// Set creates or replaces the document at path. The body must be a JSON object.
func (s *DocumentService) Set(path string, data json.RawMessage) error {
	key, collection, err := documentKey(path)
	if err != nil {
		return err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if fields == nil {
		return ErrInvalidDocument
	}

	_, err = s.db.Exec(`
		INSERT INTO documents (path, collection, data, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(path) DO UPDATE SET
			data = excluded.data,
			updated_at = CURRENT_TIMESTAMP
	`, key, collection, string(data))
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}
	return nil
}

// Update shallow-merges fields into the existing document at path.
// Returns ErrDocumentNotFound when nothing is stored there.
func (s *DocumentService) Update(path string, fields map[string]json.RawMessage) error {
	key, _, err := documentKey(path)
	if err != nil {
		return err
	}

	// Begin transaction
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var dataStr string
	err = tx.QueryRow("SELECT data FROM documents WHERE path = ?", key).Scan(&dataStr)
	if err == sql.ErrNoRows {
		return ErrDocumentNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to query document: %w", err)
	}

	var current map[string]json.RawMessage
	if err := json.Unmarshal([]byte(dataStr), &current); err != nil {
		return fmt.Errorf("failed to unmarshal document: %w", err)
	}
	if current == nil {
		current = make(map[string]json.RawMessage)
	}
	for k, v := range fields {
		current[k] = v
	}

	merged, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	_, err = tx.Exec("UPDATE documents SET data = ?, updated_at = CURRENT_TIMESTAMP WHERE path = ?", string(merged), key)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}

	// Commit transaction
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Delete removes the document at path. Deleting a missing document is not an error.
func (s *DocumentService) Delete(path string) error {
	key, _, err := documentKey(path)
	if err != nil {
		return err
	}

	if _, err := s.db.Exec("DELETE FROM documents WHERE path = ?", key); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// documentKey normalizes a document path and returns it with its parent collection.
func documentKey(path string) (string, string, error) {
	segments, err := SplitPath(path)
	if err != nil {
		return "", "", err
	}
	if len(segments)%2 != 0 {
		return "", "", fmt.Errorf("%w: %s is not a document", ErrInvalidPath, path)
	}
	key := strings.Join(segments, "/")
	collection, err := collectionOf(key)
	if err != nil {
		return "", "", err
	}
	return key, collection, nil
}
