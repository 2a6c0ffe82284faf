package kanban

import (
	"context"
	"encoding/json"
)

// RemoteStore is a path-addressed document store. Paths follow the board
// hierarchy: boards/{boardId}/columns/{columnId}/cards/{cardId}.
type RemoteStore interface {
	// GetCollection returns every document directly under a collection path.
	GetCollection(ctx context.Context, path string) ([]json.RawMessage, error)
	// Set creates or replaces the document at path.
	Set(ctx context.Context, path string, doc any) error
	// Update merges fields into the existing document at path.
	Update(ctx context.Context, path string, fields map[string]any) error
	// Delete removes the document at path.
	Delete(ctx context.Context, path string) error
}

const BoardsPath = "boards"

func BoardPath(boardID string) string {
	return BoardsPath + "/" + boardID
}

func ColumnsPath(boardID string) string {
	return BoardPath(boardID) + "/columns"
}

func ColumnPath(boardID, columnID string) string {
	return ColumnsPath(boardID) + "/" + columnID
}

func CardsPath(boardID, columnID string) string {
	return ColumnPath(boardID, columnID) + "/cards"
}

func CardPath(boardID, columnID, cardID string) string {
	return CardsPath(boardID, columnID) + "/" + cardID
}
