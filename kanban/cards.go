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

// CardStore holds cards indexed by board id, then column id, mirroring the
// remote path layout.
type CardStore struct {
	mu      sync.Mutex
	cards   map[string]map[string][]Card
	mirror  *mirror
	storage LocalStorage
	logger  *log.Logger
}

func newCardStore(m *mirror, storage LocalStorage, logger *log.Logger) (*CardStore, error) {
	s := &CardStore{cards: make(map[string]map[string][]Card), mirror: m, storage: storage, logger: logger}
	if _, err := storage.Load(cardsStorageKey, &s.cards); err != nil {
		return nil, fmt.Errorf("failed to load cards: %w", err)
	}
	if s.cards == nil {
		s.cards = make(map[string]map[string][]Card)
	}
	return s, nil
}

// Add appends a card with an empty description to a column.
func (s *CardStore) Add(ctx context.Context, boardID, columnID, title string) (Card, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Card{}, ErrEmptyTitle
	}
	if boardID == "" || columnID == "" {
		return Card{}, fmt.Errorf("column: %w", ErrNotFound)
	}

	now := s.mirror.now()
	c := Card{
		ID:        NewID(),
		BoardID:   boardID,
		ColumnID:  columnID,
		Title:     title,
		Order:     now.UnixMilli(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.appendLocked(c)
	s.persistLocked()
	s.mu.Unlock()

	s.mirror.write(ctx, s.logger, cardAction(ActionAdd, c))
	s.publish(Message{Type: MessageAdd, Card: &c})
	return c, nil
}

// Update replaces a card's title and description.
func (s *CardStore) Update(ctx context.Context, boardID, columnID, id, title, description string) (Card, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Card{}, ErrEmptyTitle
	}

	s.mu.Lock()
	i := s.indexLocked(boardID, columnID, id)
	if i < 0 {
		s.mu.Unlock()
		return Card{}, fmt.Errorf("card %s: %w", id, ErrNotFound)
	}
	card := &s.cards[boardID][columnID][i]
	card.Title = title
	card.Description = strings.TrimSpace(description)
	card.UpdatedAt = s.mirror.now()
	c := *card
	s.persistLocked()
	s.mu.Unlock()

	s.mirror.write(ctx, s.logger, cardAction(ActionUpdate, c))
	s.publish(Message{Type: MessageUpdate, Card: &c})
	return c, nil
}

// Delete soft-deletes one card.
func (s *CardStore) Delete(ctx context.Context, boardID, columnID, id string) error {
	s.mu.Lock()
	i := s.indexLocked(boardID, columnID, id)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("card %s: %w", id, ErrNotFound)
	}
	card := &s.cards[boardID][columnID][i]
	if !card.IsActive() {
		s.mu.Unlock()
		return nil
	}
	now := s.mirror.now()
	card.DeletedAt = timePtr(now)
	card.UpdatedAt = now
	c := *card
	s.persistLocked()
	s.mu.Unlock()

	s.mirror.write(ctx, s.logger, cardAction(ActionDelete, c))
	s.publish(Message{Type: MessageDelete, Card: &c})
	return nil
}

// DeleteAll soft-deletes every active card of a column with one timestamp
// and returns the cards it deleted.
func (s *CardStore) DeleteAll(ctx context.Context, boardID, columnID string) ([]Card, error) {
	now := s.mirror.now()

	s.mu.Lock()
	deleted := []Card{}
	cards := s.cards[boardID][columnID]
	for i := range cards {
		if !cards[i].IsActive() {
			continue
		}
		cards[i].DeletedAt = timePtr(now)
		cards[i].UpdatedAt = now
		deleted = append(deleted, cards[i])
	}
	if len(deleted) > 0 {
		s.persistLocked()
	}
	s.mu.Unlock()

	if len(deleted) == 0 {
		return deleted, nil
	}
	for _, c := range deleted {
		s.mirror.write(ctx, s.logger, cardAction(ActionDelete, c))
	}
	s.publish(Message{Type: MessageDeleteAll, Scope: &Scope{BoardID: boardID, ColumnID: columnID, DeletedAt: now}})
	return deleted, nil
}

// Move takes an active card out of one column and appends it to another.
// Moving a card onto its own column returns it unchanged.
func (s *CardStore) Move(ctx context.Context, boardID, fromColumnID, toColumnID, id string) (Card, error) {
	s.mu.Lock()
	i := s.indexLocked(boardID, fromColumnID, id)
	if i < 0 || !s.cards[boardID][fromColumnID][i].IsActive() {
		s.mu.Unlock()
		return Card{}, fmt.Errorf("card %s: %w", id, ErrNotFound)
	}
	if fromColumnID == toColumnID {
		c := s.cards[boardID][fromColumnID][i]
		s.mu.Unlock()
		return c, nil
	}

	src := s.cards[boardID][fromColumnID]
	c := src[i]
	s.cards[boardID][fromColumnID] = append(src[:i:i], src[i+1:]...)

	now := s.mirror.now()
	c.ColumnID = toColumnID
	c.Order = now.UnixMilli()
	c.UpdatedAt = now
	s.appendLocked(c)
	s.persistLocked()
	s.mu.Unlock()

	s.mirror.write(ctx, s.logger, moveAction(c, fromColumnID, toColumnID))
	s.publish(Message{Type: MessageMove, Move: &CardMove{Card: c, FromColumnID: fromColumnID, ToColumnID: toColumnID}})
	return c, nil
}

// Get returns a card of a column, deleted or not.
func (s *CardStore) Get(boardID, columnID, id string) (Card, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(boardID, columnID, id)
	if i < 0 {
		return Card{}, false
	}
	return s.cards[boardID][columnID][i], true
}

// All returns every card of a column including soft-deleted ones.
func (s *CardStore) All(boardID, columnID string) []Card {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Card{}, s.cards[boardID][columnID]...)
}

// Active returns the column's cards without deletedAt, sorted by order with
// ties broken by id.
func (s *CardStore) Active(boardID, columnID string) []Card {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []Card{}
	for _, c := range s.cards[boardID][columnID] {
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

// Sync replaces the column's cards with the remote collection and returns
// the active ones.
func (s *CardStore) Sync(ctx context.Context, boardID, columnID string) ([]Card, error) {
	docs, err := s.mirror.remote.GetCollection(ctx, CardsPath(boardID, columnID))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch cards for column %s: %w", columnID, err)
	}

	cards := []Card{}
	for _, doc := range docs {
		var c Card
		if err := json.Unmarshal(doc, &c); err != nil {
			s.logger.Printf("WARNING: Skipping malformed card document: %v", err)
			continue
		}
		c.BoardID = boardID
		c.ColumnID = columnID
		cards = append(cards, c)
	}

	s.mu.Lock()
	if s.cards[boardID] == nil {
		s.cards[boardID] = make(map[string][]Card)
	}
	s.cards[boardID][columnID] = cards
	s.persistLocked()
	s.mu.Unlock()

	return s.Active(boardID, columnID), nil
}

// HandleBroadcast applies a card change made by another tab.
func (s *CardStore) HandleBroadcast(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch msg.Type {
	case MessageAdd, MessageUpdate, MessageDelete:
		if msg.Card == nil {
			s.logger.Printf("WARNING: Ignoring card %s message without payload", msg.Type)
			return
		}
		s.placeLocked(*msg.Card)
	case MessageDeleteAll:
		if msg.Scope == nil {
			s.logger.Printf("WARNING: Ignoring card delete-all message without scope")
			return
		}
		cards := s.cards[msg.Scope.BoardID][msg.Scope.ColumnID]
		for i := range cards {
			if cards[i].IsActive() {
				cards[i].DeletedAt = timePtr(msg.Scope.DeletedAt)
				cards[i].UpdatedAt = msg.Scope.DeletedAt
			}
		}
	case MessageMove:
		if msg.Move == nil {
			s.logger.Printf("WARNING: Ignoring card move message without payload")
			return
		}
		c := msg.Move.Card
		c.ColumnID = msg.Move.ToColumnID
		s.placeLocked(c)
	default:
		s.logger.Printf("WARNING: Ignoring unsupported card message %q", msg.Type)
		return
	}
	s.persistLocked()
}

// placeLocked stores c under its column, replacing the same card wherever
// it sits on the board. A tab that missed a move still ends up with one copy.
func (s *CardStore) placeLocked(c Card) {
	for columnID, cards := range s.cards[c.BoardID] {
		if columnID == c.ColumnID {
			continue
		}
		for i := range cards {
			if cards[i].ID == c.ID {
				s.cards[c.BoardID][columnID] = append(cards[:i:i], cards[i+1:]...)
				break
			}
		}
	}
	if i := s.indexLocked(c.BoardID, c.ColumnID, c.ID); i >= 0 {
		s.cards[c.BoardID][c.ColumnID][i] = c
		return
	}
	s.appendLocked(c)
}

func (s *CardStore) appendLocked(c Card) {
	cols := s.cards[c.BoardID]
	if cols == nil {
		cols = make(map[string][]Card)
		s.cards[c.BoardID] = cols
	}
	cols[c.ColumnID] = append(cols[c.ColumnID], c)
}

func (s *CardStore) indexLocked(boardID, columnID, id string) int {
	for i, c := range s.cards[boardID][columnID] {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (s *CardStore) persistLocked() {
	if err := s.storage.Save(cardsStorageKey, s.cards); err != nil {
		s.logger.Printf("WARNING: Failed to persist cards: %v", err)
	}
}

func (s *CardStore) publish(msg Message) {
	msg.Entity = EntityCard
	s.mirror.publish(msg)
}
