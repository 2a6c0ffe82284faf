package kanban

import (
	"context"
	"fmt"
	"log"
	"os"
)

// DeleteBoardCascade soft-deletes a board together with its columns and
// their cards, children first. The first failing step stops the cascade and
// is returned; steps already applied stay applied.
func DeleteBoardCascade(ctx context.Context, boards *BoardStore, columns *ColumnStore, cards *CardStore, boardID string, logger *log.Logger) error {
	if logger == nil {
		logger = log.New(os.Stderr, "[cascade] ", log.LstdFlags)
	}

	err := deleteBoardCascade(ctx, boards, columns, cards, boardID)
	if err != nil {
		logger.Printf("ERROR: Failed to delete board %s: %v", boardID, err)
		return err
	}
	logger.Printf("Completed cascade delete for board %s", boardID)
	return nil
}

func deleteBoardCascade(ctx context.Context, boards *BoardStore, columns *ColumnStore, cards *CardStore, boardID string) error {
	if _, ok := boards.Get(boardID); !ok {
		return fmt.Errorf("board %s: %w", boardID, ErrNotFound)
	}

	for _, col := range columns.Active(boardID) {
		if _, err := cards.DeleteAll(ctx, boardID, col.ID); err != nil {
			return fmt.Errorf("failed to delete cards of column %s: %w", col.ID, err)
		}
	}

	if _, err := columns.DeleteAll(ctx, boardID); err != nil {
		return fmt.Errorf("failed to delete columns: %w", err)
	}

	if err := boards.Delete(ctx, boardID); err != nil {
		return fmt.Errorf("failed to delete board: %w", err)
	}
	return nil
}
