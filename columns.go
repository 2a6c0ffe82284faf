package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/CrowderSoup/flow-board/kanban"
	"github.com/spf13/cobra"
)

var columnsCmd = &cobra.Command{
	Use:     "columns",
	GroupID: "kanban",
	Short:   "List and manage a board's columns",
}

var columnsListCmd = &cobra.Command{
	Use:   "list BOARD",
	Short: "List a board's columns in order",
	Args:  cobra.ExactArgs(1),
	RunE: runSession(func(ctx context.Context, cmd *cobra.Command, s *kanban.Session, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tCARDS")
		for _, c := range s.Columns.Active(args[0]) {
			fmt.Fprintf(w, "%s\t%s\t%d\n", c.ID, c.Title, len(s.Cards.Active(args[0], c.ID)))
		}
		return w.Flush()
	}),
}

var columnsAddCmd = &cobra.Command{
	Use:   "add BOARD TITLE",
	Short: "Append a column to a board",
	Args:  cobra.ExactArgs(2),
	RunE: runSession(func(ctx context.Context, cmd *cobra.Command, s *kanban.Session, args []string) error {
		if _, ok := s.Boards.Get(args[0]); !ok {
			return fmt.Errorf("board %s: %w", args[0], kanban.ErrNotFound)
		}
		c, err := s.Columns.Add(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), c.ID)
		return nil
	}),
}

var columnsRenameCmd = &cobra.Command{
	Use:   "rename BOARD ID TITLE",
	Short: "Rename a column",
	Args:  cobra.ExactArgs(3),
	RunE: runSession(func(ctx context.Context, cmd *cobra.Command, s *kanban.Session, args []string) error {
		_, err := s.Columns.Rename(ctx, args[0], args[1], args[2])
		return err
	}),
}

var columnsDeleteCmd = &cobra.Command{
	Use:   "delete BOARD ID",
	Short: "Delete a column",
	Args:  cobra.ExactArgs(2),
	RunE: runSession(func(ctx context.Context, cmd *cobra.Command, s *kanban.Session, args []string) error {
		return s.Columns.Delete(ctx, args[0], args[1])
	}),
}

func init() {
	columnsCmd.AddCommand(columnsListCmd, columnsAddCmd, columnsRenameCmd, columnsDeleteCmd)
	rootCmd.AddCommand(columnsCmd)
}
