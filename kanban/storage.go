package kanban

import (
	"encoding/json"
	"sync"
)

// LocalStorage is key-value persistence that survives restarts. Each store
// keeps its full snapshot under one key.
type LocalStorage interface {
	Load(key string, v any) (bool, error)
	Save(key string, v any) error
}

const (
	boardsStorageKey  = "boards-storage"
	columnsStorageKey = "columns-storage"
	cardsStorageKey   = "cards-storage"
	queueStorageKey   = "pending-queue"
)

// MemoryStorage is a LocalStorage that lives only as long as the process.
// Values are stored as JSON so loads never alias saved state.
type MemoryStorage struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string][]byte)}
}

func (m *MemoryStorage) Load(key string, v any) (bool, error) {
	m.mu.Lock()
	raw, ok := m.data[key]
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, err
	}
	return true, nil
}

func (m *MemoryStorage) Save(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data[key] = raw
	m.mu.Unlock()
	return nil
}
