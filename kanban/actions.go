package kanban

import (
	"context"
	"fmt"
	"time"
)

type ActionType string

const (
	ActionAdd    ActionType = "ADD"
	ActionUpdate ActionType = "UPDATE"
	ActionDelete ActionType = "DELETE"
	ActionMove   ActionType = "MOVE"
)

type Entity string

const (
	EntityBoard  Entity = "board"
	EntityColumn Entity = "column"
	EntityCard   Entity = "card"
)

// CardMove is the payload of a card moving between two columns of one board.
type CardMove struct {
	Card         Card   `json:"card"`
	FromColumnID string `json:"fromColumnId"`
	ToColumnID   string `json:"toColumnId"`
}

// PendingAction is a remote write deferred until the device is online.
// Exactly one payload field is set, chosen by Entity and Type: Board, Column
// or Card for ADD, UPDATE and DELETE, and Move for a card MOVE.
type PendingAction struct {
	ID        string     `json:"id"`
	Type      ActionType `json:"type"`
	Entity    Entity     `json:"entity"`
	Board     *Board     `json:"board,omitempty"`
	Column    *Column    `json:"column,omitempty"`
	Card      *Card      `json:"card,omitempty"`
	Move      *CardMove  `json:"move,omitempty"`
	Timestamp int64      `json:"timestamp"`
}

func boardAction(typ ActionType, b Board) PendingAction {
	b = b.clone()
	return PendingAction{Type: typ, Entity: EntityBoard, Board: &b}
}

func columnAction(typ ActionType, c Column) PendingAction {
	return PendingAction{Type: typ, Entity: EntityColumn, Column: &c}
}

func cardAction(typ ActionType, c Card) PendingAction {
	return PendingAction{Type: typ, Entity: EntityCard, Card: &c}
}

func moveAction(card Card, fromColumnID, toColumnID string) PendingAction {
	return PendingAction{
		Type:   ActionMove,
		Entity: EntityCard,
		Move:   &CardMove{Card: card, FromColumnID: fromColumnID, ToColumnID: toColumnID},
	}
}

// SubjectID is the id of the record the action writes.
func (a PendingAction) SubjectID() string {
	switch {
	case a.Board != nil:
		return a.Board.ID
	case a.Column != nil:
		return a.Column.ID
	case a.Card != nil:
		return a.Card.ID
	case a.Move != nil:
		return a.Move.Card.ID
	}
	return ""
}

func (a PendingAction) String() string {
	return fmt.Sprintf("%s %s %s", a.Entity, a.Type, a.SubjectID())
}

// apply performs the remote write an action describes.
func apply(ctx context.Context, remote RemoteStore, a PendingAction) error {
	switch a.Entity {
	case EntityBoard:
		if a.Board == nil {
			return fmt.Errorf("%w: %s without board payload", ErrUnsupportedAction, a)
		}
		return applyBoard(ctx, remote, a.Type, *a.Board)
	case EntityColumn:
		if a.Column == nil {
			return fmt.Errorf("%w: %s without column payload", ErrUnsupportedAction, a)
		}
		return applyColumn(ctx, remote, a.Type, *a.Column)
	case EntityCard:
		if a.Type == ActionMove {
			if a.Move == nil {
				return fmt.Errorf("%w: %s without move payload", ErrUnsupportedAction, a)
			}
			return applyMove(ctx, remote, *a.Move)
		}
		if a.Card == nil {
			return fmt.Errorf("%w: %s without card payload", ErrUnsupportedAction, a)
		}
		return applyCard(ctx, remote, a.Type, *a.Card)
	}
	return fmt.Errorf("%w: unknown entity %q", ErrUnsupportedAction, a.Entity)
}

func applyBoard(ctx context.Context, remote RemoteStore, typ ActionType, b Board) error {
	path := BoardPath(b.ID)
	switch typ {
	case ActionAdd:
		return remote.Set(ctx, path, b)
	case ActionUpdate:
		return remote.Update(ctx, path, map[string]any{
			"name":      b.Name,
			"members":   b.Members,
			"updatedAt": b.UpdatedAt,
		})
	case ActionDelete:
		return remote.Update(ctx, path, deletedFields(b.DeletedAt, b.UpdatedAt))
	}
	return fmt.Errorf("%w: board %s", ErrUnsupportedAction, typ)
}

func applyColumn(ctx context.Context, remote RemoteStore, typ ActionType, c Column) error {
	path := ColumnPath(c.BoardID, c.ID)
	switch typ {
	case ActionAdd:
		return remote.Set(ctx, path, c)
	case ActionUpdate:
		return remote.Update(ctx, path, map[string]any{
			"title":     c.Title,
			"order":     c.Order,
			"updatedAt": c.UpdatedAt,
		})
	case ActionDelete:
		return remote.Update(ctx, path, deletedFields(c.DeletedAt, c.UpdatedAt))
	}
	return fmt.Errorf("%w: column %s", ErrUnsupportedAction, typ)
}

func applyCard(ctx context.Context, remote RemoteStore, typ ActionType, c Card) error {
	path := CardPath(c.BoardID, c.ColumnID, c.ID)
	switch typ {
	case ActionAdd:
		return remote.Set(ctx, path, c)
	case ActionUpdate:
		return remote.Update(ctx, path, map[string]any{
			"title":       c.Title,
			"description": c.Description,
			"order":       c.Order,
			"updatedAt":   c.UpdatedAt,
		})
	case ActionDelete:
		return remote.Update(ctx, path, deletedFields(c.DeletedAt, c.UpdatedAt))
	}
	return fmt.Errorf("%w: card %s", ErrUnsupportedAction, typ)
}

// applyMove creates the card under its new column, then removes the old path.
func applyMove(ctx context.Context, remote RemoteStore, m CardMove) error {
	card := m.Card
	card.ColumnID = m.ToColumnID
	if err := remote.Set(ctx, CardPath(card.BoardID, m.ToColumnID, card.ID), card); err != nil {
		return fmt.Errorf("failed to write moved card: %w", err)
	}
	if err := remote.Delete(ctx, CardPath(card.BoardID, m.FromColumnID, card.ID)); err != nil {
		return fmt.Errorf("failed to remove card from source column: %w", err)
	}
	return nil
}

func deletedFields(deletedAt *time.Time, updatedAt time.Time) map[string]any {
	at := updatedAt
	if deletedAt != nil {
		at = *deletedAt
	}
	return map[string]any{
		"deletedAt": at,
		"updatedAt": updatedAt,
	}
}
