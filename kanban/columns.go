package kanban

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
)

// ColumnStore holds columns indexed by board id.
type ColumnStore struct {
	mu      sync.Mutex
	columns map[string][]Column
	mirror  *mirror
	storage LocalStorage
	logger  *log.Logger
}

func newColumnStore(m *mirror, storage LocalStorage, logger *log.Logger) (*ColumnStore, error) {
	s := &ColumnStore{columns: make(map[string][]Column), mirror: m, storage: storage, logger: logger}
	if _, err := storage.Load(columnsStorageKey, &s.columns); err != nil {
		return nil, fmt.Errorf("failed to load columns: %w", err)
	}
	if s.columns == nil {
		s.columns = make(map[string][]Column)
	}
	return s, nil
}

// Add appends a column to a board. Its order is the creation time in milliseconds.
func (s *ColumnStore) Add(ctx context.Context, boardID, title string) (Column, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Column{}, ErrEmptyTitle
	}
	if boardID == "" {
		return Column{}, fmt.Errorf("board: %w", ErrNotFound)
	}

	now := s.mirror.now()
	c := Column{
		ID:        NewID(),
		BoardID:   boardID,
		Title:     title,
		Order:     now.UnixMilli(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.columns[boardID] = append(s.columns[boardID], c)
	s.persistLocked()
	s.mu.Unlock()

	s.mirror.write(ctx, s.logger, columnAction(ActionAdd, c))
	s.publish(Message{Type: MessageAdd, Column: &c})
	return c, nil
}

// Rename changes a column's title.
func (s *ColumnStore) Rename(ctx context.Context, boardID, id, title string) (Column, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Column{}, ErrEmptyTitle
	}

	s.mu.Lock()
	i := s.indexLocked(boardID, id)
	if i < 0 {
		s.mu.Unlock()
		return Column{}, fmt.Errorf("column %s: %w", id, ErrNotFound)
	}
	col := &s.columns[boardID][i]
	col.Title = title
	col.UpdatedAt = s.mirror.now()
	c := *col
	s.persistLocked()
	s.mu.Unlock()

	s.mirror.write(ctx, s.logger, columnAction(ActionUpdate, c))
	s.publish(Message{Type: MessageUpdate, Column: &c})
	return c, nil
}

// Delete soft-deletes one column. Its cards are left alone; see DeleteBoardCascade.
func (s *ColumnStore) Delete(ctx context.Context, boardID, id string) error {
	s.mu.Lock()
	i := s.indexLocked(boardID, id)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("column %s: %w", id, ErrNotFound)
	}
	col := &s.columns[boardID][i]
	if !col.IsActive() {
		s.mu.Unlock()
		return nil
	}
	now := s.mirror.now()
	col.DeletedAt = timePtr(now)
	col.UpdatedAt = now
	c := *col
	s.persistLocked()
	s.mu.Unlock()

	s.mirror.write(ctx, s.logger, columnAction(ActionDelete, c))
	s.publish(Message{Type: MessageDelete, Column: &c})
	return nil
}

// DeleteAll soft-deletes every active column of a board with one timestamp
// and returns the columns it deleted.
func (s *ColumnStore) DeleteAll(ctx context.Context, boardID string) ([]Column, error) {
	now := s.mirror.now()

	s.mu.Lock()
	deleted := []Column{}
	cols := s.columns[boardID]
	for i := range cols {
		if !cols[i].IsActive() {
			continue
		}
		cols[i].DeletedAt = timePtr(now)
		cols[i].UpdatedAt = now
		deleted = append(deleted, cols[i])
	}
	if len(deleted) > 0 {
		s.persistLocked()
	}
	s.mu.Unlock()

	if len(deleted) == 0 {
		return deleted, nil
	}
	for _, c := range deleted {
		s.mirror.write(ctx, s.logger, columnAction(ActionDelete, c))
	}
	s.publish(Message{Type: MessageDeleteAll, Scope: &Scope{BoardID: boardID, DeletedAt: now}})
	return deleted, nil
}

// Get returns a column of a board, deleted or not.
func (s *ColumnStore) Get(boardID, id string) (Column, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(boardID, id)
	if i < 0 {
		return Column{}, false
	}
	return s.columns[boardID][i], true
}

// All returns every column of a board including soft-deleted ones.
func (s *ColumnStore) All(boardID string) []Column {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Column{}, s.columns[boardID]...)
}

// Active returns the board's columns without deletedAt, sorted by order
// with ties broken by id.
func (s *ColumnStore) Active(boardID string) []Column {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []Column{}
	for _, c := range s.columns[boardID] {
		if c.IsActive() {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Sync replaces the board's columns with the remote collection and returns
// the active ones.
func (s *ColumnStore) Sync(ctx context.Context, boardID string) ([]Column, error) {
	docs, err := s.mirror.remote.GetCollection(ctx, ColumnsPath(boardID))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch columns for board %s: %w", boardID, err)
	}

	cols := []Column{}
	for _, doc := range docs {
		var c Column
		if err := json.Unmarshal(doc, &c); err != nil {
			s.logger.Printf("WARNING: Skipping malformed column document: %v", err)
			continue
		}
		if c.BoardID == "" {
			c.BoardID = boardID
		}
		cols = append(cols, c)
	}

	s.mu.Lock()
	s.columns[boardID] = cols
	s.persistLocked()
	s.mu.Unlock()

	return s.Active(boardID), nil
}

// HandleBroadcast applies a column change made by another tab.
func (s *ColumnStore) HandleBroadcast(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch msg.Type {
	case MessageAdd, MessageUpdate, MessageDelete:
		if msg.Column == nil {
			s.logger.Printf("WARNING: Ignoring column %s message without payload", msg.Type)
			return
		}
		s.upsertLocked(*msg.Column)
	case MessageDeleteAll:
		if msg.Scope == nil {
			s.logger.Printf("WARNING: Ignoring column delete-all message without scope")
			return
		}
		cols := s.columns[msg.Scope.BoardID]
		for i := range cols {
			if cols[i].IsActive() {
				cols[i].DeletedAt = timePtr(msg.Scope.DeletedAt)
				cols[i].UpdatedAt = msg.Scope.DeletedAt
			}
		}
	default:
		s.logger.Printf("WARNING: Ignoring unsupported column message %q", msg.Type)
		return
	}
	s.persistLocked()
}

func (s *ColumnStore) upsertLocked(c Column) {
	if i := s.indexLocked(c.BoardID, c.ID); i >= 0 {
		s.columns[c.BoardID][i] = c
		return
	}
	s.columns[c.BoardID] = append(s.columns[c.BoardID], c)
}

func (s *ColumnStore) indexLocked(boardID, id string) int {
	for i, c := range s.columns[boardID] {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (s *ColumnStore) persistLocked() {
	if err := s.storage.Save(columnsStorageKey, s.columns); err != nil {
		s.logger.Printf("WARNING: Failed to persist columns: %v", err)
	}
}

func (s *ColumnStore) publish(msg Message) {
	msg.Entity = EntityColumn
	s.mirror.publish(msg)
}
