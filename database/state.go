package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// StateService persists JSON snapshots of client side state, one row per key.
// It backs the local durable storage of a kanban session.
type StateService struct {
	db *sql.DB
}

func NewStateService(db *sql.DB) *StateService {
	return &StateService{db: db}
}

// Load decodes the snapshot stored under key into v.
// It reports false without touching v when the key has never been saved.
func (s *StateService) Load(key string, v any) (bool, error) {
	var dataStr string
	err := s.db.QueryRow("SELECT data FROM local_state WHERE key = ?", key).Scan(&dataStr)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query state %s: %w", key, err)
	}

	if err := json.Unmarshal([]byte(dataStr), v); err != nil {
		return false, fmt.Errorf("failed to unmarshal state %s: %w", key, err)
	}
	return true, nil
}

// Save upserts the snapshot for key
func (s *StateService) Save(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal state %s: %w", key, err)
	}

	_, err = s.db.Exec(`
		INSERT INTO local_state (key, data, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			data = excluded.data,
			updated_at = CURRENT_TIMESTAMP
	`, key, string(data))
	if err != nil {
		return fmt.Errorf("failed to upsert state %s: %w", key, err)
	}
	return nil
}
