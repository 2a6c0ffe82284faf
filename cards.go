package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/CrowderSoup/flow-board/kanban"
	"github.com/spf13/cobra"
)

var cardsCmd = &cobra.Command{
	Use:     "cards",
	GroupID: "kanban",
	Short:   "List and manage the cards in a column",
}

var cardsListCmd = &cobra.Command{
	Use:   "list BOARD COLUMN",
	Short: "List a column's cards in order",
	Args:  cobra.ExactArgs(2),
	RunE: runSession(func(ctx context.Context, cmd *cobra.Command, s *kanban.Session, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tDESCRIPTION")
		for _, c := range s.Cards.Active(args[0], args[1]) {
			fmt.Fprintf(w, "%s\t%s\t%s\n", c.ID, c.Title, c.Description)
		}
		return w.Flush()
	}),
}

var cardsAddCmd = &cobra.Command{
	Use:   "add BOARD COLUMN TITLE",
	Short: "Add a card to the bottom of a column",
	Args:  cobra.ExactArgs(3),
	RunE: runSession(func(ctx context.Context, cmd *cobra.Command, s *kanban.Session, args []string) error {
		if _, ok := s.Columns.Get(args[0], args[1]); !ok {
			return fmt.Errorf("column %s: %w", args[1], kanban.ErrNotFound)
		}
		card, err := s.Cards.Add(ctx, args[0], args[1], args[2])
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("description") {
			description, _ := cmd.Flags().GetString("description")
			if card, err = s.Cards.Update(ctx, args[0], args[1], card.ID, card.Title, description); err != nil {
				return err
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), card.ID)
		return nil
	}),
}

var cardsUpdateCmd = &cobra.Command{
	Use:   "update BOARD COLUMN ID TITLE",
	Short: "Change a card's title and description",
	Args:  cobra.ExactArgs(4),
	RunE: runSession(func(ctx context.Context, cmd *cobra.Command, s *kanban.Session, args []string) error {
		card, ok := s.Cards.Get(args[0], args[1], args[2])
		if !ok {
			return fmt.Errorf("card %s: %w", args[2], kanban.ErrNotFound)
		}
		description := card.Description
		if cmd.Flags().Changed("description") {
			description, _ = cmd.Flags().GetString("description")
		}
		_, err := s.Cards.Update(ctx, args[0], args[1], args[2], args[3], description)
		return err
	}),
}

var cardsMoveCmd = &cobra.Command{
	Use:   "move BOARD FROM TO ID",
	Short: "Move a card to the bottom of another column",
	Args:  cobra.ExactArgs(4),
	RunE: runSession(func(ctx context.Context, cmd *cobra.Command, s *kanban.Session, args []string) error {
		if _, ok := s.Columns.Get(args[0], args[2]); !ok {
			return fmt.Errorf("column %s: %w", args[2], kanban.ErrNotFound)
		}
		_, err := s.Cards.Move(ctx, args[0], args[1], args[2], args[3])
		return err
	}),
}

var cardsDeleteCmd = &cobra.Command{
	Use:   "delete BOARD COLUMN ID",
	Short: "Delete a card",
	Args:  cobra.ExactArgs(3),
	RunE: runSession(func(ctx context.Context, cmd *cobra.Command, s *kanban.Session, args []string) error {
		return s.Cards.Delete(ctx, args[0], args[1], args[2])
	}),
}

func init() {
	cardsAddCmd.Flags().String("description", "", "card description")
	cardsUpdateCmd.Flags().String("description", "", "new description (unchanged when omitted)")

	cardsCmd.AddCommand(cardsListCmd, cardsAddCmd, cardsUpdateCmd, cardsMoveCmd, cardsDeleteCmd)
	rootCmd.AddCommand(cardsCmd)
}
