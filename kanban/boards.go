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

// BoardStore holds every board the session knows about, including
// soft-deleted ones.
type BoardStore struct {
	mu      sync.Mutex
	boards  []Board
	mirror  *mirror
	storage LocalStorage
	logger  *log.Logger
}

func newBoardStore(m *mirror, storage LocalStorage, logger *log.Logger) (*BoardStore, error) {
	s := &BoardStore{mirror: m, storage: storage, logger: logger}
	if _, err := storage.Load(boardsStorageKey, &s.boards); err != nil {
		return nil, fmt.Errorf("failed to load boards: %w", err)
	}
	return s, nil
}

// Add creates a board owned by owner, who becomes its only member.
func (s *BoardStore) Add(ctx context.Context, name string, owner Identity) (Board, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Board{}, ErrEmptyTitle
	}
	email := normalizeEmail(owner.Email)
	if !validEmail(email) {
		return Board{}, ErrInvalidEmail
	}

	now := s.mirror.now()
	b := Board{
		ID:        NewID(),
		Name:      name,
		OwnerID:   owner.UID,
		Members:   []Member{{Email: email, Role: RoleOwner, InvitedAt: now}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.boards = append(s.boards, b)
	s.persistLocked()
	s.mu.Unlock()

	s.mirror.write(ctx, s.logger, boardAction(ActionAdd, b))
	s.publish(MessageAdd, b)
	return b.clone(), nil
}

// Update renames a board.
func (s *BoardStore) Update(ctx context.Context, id, name string) (Board, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Board{}, ErrEmptyTitle
	}

	b, err := s.modify(id, func(b *Board) error {
		b.Name = name
		return nil
	})
	if err != nil {
		return Board{}, err
	}

	s.mirror.write(ctx, s.logger, boardAction(ActionUpdate, b))
	s.publish(MessageUpdate, b)
	return b, nil
}

// Delete soft-deletes a board. Deleting an already deleted board changes nothing.
func (s *BoardStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("board %s: %w", id, ErrNotFound)
	}
	if !s.boards[i].IsActive() {
		s.mu.Unlock()
		return nil
	}
	now := s.mirror.now()
	s.boards[i].DeletedAt = timePtr(now)
	s.boards[i].UpdatedAt = now
	b := s.boards[i].clone()
	s.persistLocked()
	s.mu.Unlock()

	s.mirror.write(ctx, s.logger, boardAction(ActionDelete, b))
	s.publish(MessageDelete, b)
	return nil
}

// Share adds email to the board's members with role, or changes the role of
// an existing member. Owners cannot be demoted.
func (s *BoardStore) Share(ctx context.Context, id, email string, role Role) (Board, error) {
	email = normalizeEmail(email)
	if !validEmail(email) {
		return Board{}, ErrInvalidEmail
	}
	if !role.Valid() {
		return Board{}, ErrInvalidRole
	}

	b, err := s.modify(id, func(b *Board) error {
		for i := range b.Members {
			if normalizeEmail(b.Members[i].Email) != email {
				continue
			}
			if b.Members[i].Role == RoleOwner && role != RoleOwner {
				return ErrOwnerRemoval
			}
			b.Members[i].Role = role
			return nil
		}
		b.Members = append(b.Members, Member{Email: email, Role: role, InvitedAt: s.mirror.now()})
		return nil
	})
	if err != nil {
		return Board{}, err
	}

	s.mirror.write(ctx, s.logger, boardAction(ActionUpdate, b))
	s.publish(MessageUpdate, b)
	return b, nil
}

// RemoveMember takes email off the board's member list.
func (s *BoardStore) RemoveMember(ctx context.Context, id, email string) (Board, error) {
	email = normalizeEmail(email)

	b, err := s.modify(id, func(b *Board) error {
		for i, m := range b.Members {
			if normalizeEmail(m.Email) != email {
				continue
			}
			if m.Role == RoleOwner {
				return ErrOwnerRemoval
			}
			b.Members = append(b.Members[:i:i], b.Members[i+1:]...)
			return nil
		}
		return fmt.Errorf("member %s: %w", email, ErrNotFound)
	})
	if err != nil {
		return Board{}, err
	}

	s.mirror.write(ctx, s.logger, boardAction(ActionUpdate, b))
	s.publish(MessageUpdate, b)
	return b, nil
}

// Get returns the board with id, deleted or not.
func (s *BoardStore) Get(id string) (Board, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return Board{}, false
	}
	return s.boards[i].clone(), true
}

// All returns every board including soft-deleted ones.
func (s *BoardStore) All() []Board {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Board, 0, len(s.boards))
	for _, b := range s.boards {
		out = append(out, b.clone())
	}
	return out
}

// Active returns boards without deletedAt, oldest first.
func (s *BoardStore) Active() []Board {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []Board{}
	for _, b := range s.boards {
		if b.IsActive() {
			out = append(out, b.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Sync replaces local boards with the remote boards email is a member of and
// returns the active ones. On error local state is left untouched.
func (s *BoardStore) Sync(ctx context.Context, email string) ([]Board, error) {
	docs, err := s.mirror.remote.GetCollection(ctx, BoardsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch boards: %w", err)
	}

	boards := []Board{}
	for _, doc := range docs {
		var b Board
		if err := json.Unmarshal(doc, &b); err != nil {
			s.logger.Printf("WARNING: Skipping malformed board document: %v", err)
			continue
		}
		if !b.HasMember(email) {
			continue
		}
		boards = append(boards, b)
	}

	s.mu.Lock()
	s.boards = boards
	s.persistLocked()
	s.mu.Unlock()

	s.logger.Printf("Synced %d boards for %s", len(boards), email)
	return s.Active(), nil
}

// HandleBroadcast applies a board change made by another tab.
func (s *BoardStore) HandleBroadcast(msg Message) {
	switch msg.Type {
	case MessageAdd, MessageUpdate, MessageDelete:
		if msg.Board == nil {
			s.logger.Printf("WARNING: Ignoring board %s message without payload", msg.Type)
			return
		}
		s.mu.Lock()
		s.upsertLocked(msg.Board.clone())
		s.persistLocked()
		s.mu.Unlock()
	default:
		s.logger.Printf("WARNING: Ignoring unsupported board message %q", msg.Type)
	}
}

// modify applies fn to a copy of the board and stores the result if fn
// succeeds, refreshing updatedAt.
func (s *BoardStore) modify(id string, fn func(*Board) error) (Board, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return Board{}, fmt.Errorf("board %s: %w", id, ErrNotFound)
	}
	b := s.boards[i].clone()
	if err := fn(&b); err != nil {
		return Board{}, err
	}
	b.UpdatedAt = s.mirror.now()
	s.boards[i] = b
	s.persistLocked()
	return b.clone(), nil
}

func (s *BoardStore) upsertLocked(b Board) {
	if i := s.indexLocked(b.ID); i >= 0 {
		s.boards[i] = b
		return
	}
	s.boards = append(s.boards, b)
}

func (s *BoardStore) indexLocked(id string) int {
	for i := range s.boards {
		if s.boards[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *BoardStore) persistLocked() {
	if err := s.storage.Save(boardsStorageKey, s.boards); err != nil {
		s.logger.Printf("WARNING: Failed to persist boards: %v", err)
	}
}

func (s *BoardStore) publish(typ MessageType, b Board) {
	s.mirror.publish(Message{Type: typ, Entity: EntityBoard, Board: &b})
}
