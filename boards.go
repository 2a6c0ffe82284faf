package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/CrowderSoup/flow-board/kanban"
	"github.com/spf13/cobra"
)

var boardsCmd = &cobra.Command{
	Use:     "boards",
	GroupID: "kanban",
	Short:   "List and manage boards",
}

var boardsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the boards you own or were invited to",
	Args:  cobra.NoArgs,
	RunE: runSession(func(ctx context.Context, cmd *cobra.Command, s *kanban.Session, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tROLE\tMEMBERS")
		for _, b := range s.Boards.Active() {
			role := "-"
			if r, ok := b.RoleOf(s.Identity().Email); ok {
				role = string(r)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", b.ID, b.Name, role, len(b.Members))
		}
		return w.Flush()
	}),
}

var boardsAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Create a board owned by you",
	Args:  cobra.ExactArgs(1),
	RunE: runSession(func(ctx context.Context, cmd *cobra.Command, s *kanban.Session, args []string) error {
		b, err := s.AddBoard(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), b.ID)
		return nil
	}),
}

var boardsRenameCmd = &cobra.Command{
	Use:   "rename ID NAME",
	Short: "Rename a board",
	Args:  cobra.ExactArgs(2),
	RunE: runSession(func(ctx context.Context, cmd *cobra.Command, s *kanban.Session, args []string) error {
		_, err := s.Boards.Update(ctx, args[0], args[1])
		return err
	}),
}

var boardsShareCmd = &cobra.Command{
	Use:   "share ID EMAIL",
	Short: "Invite someone to a board, or change their role",
	Args:  cobra.ExactArgs(2),
	RunE: runSession(func(ctx context.Context, cmd *cobra.Command, s *kanban.Session, args []string) error {
		role, _ := cmd.Flags().GetString("role")
		_, err := s.Boards.Share(ctx, args[0], args[1], kanban.Role(role))
		return err
	}),
}

var boardsUnshareCmd = &cobra.Command{
	Use:   "unshare ID EMAIL",
	Short: "Remove a member from a board",
	Args:  cobra.ExactArgs(2),
	RunE: runSession(func(ctx context.Context, cmd *cobra.Command, s *kanban.Session, args []string) error {
		_, err := s.Boards.RemoveMember(ctx, args[0], args[1])
		return err
	}),
}

var boardsDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a board with all of its columns and cards",
	Args:  cobra.ExactArgs(1),
	RunE: runSession(func(ctx context.Context, cmd *cobra.Command, s *kanban.Session, args []string) error {
		return s.DeleteBoard(ctx, args[0])
	}),
}

func init() {
	boardsShareCmd.Flags().String("role", string(kanban.RoleEditor), "member role (owner or editor)")

	boardsCmd.AddCommand(boardsListCmd, boardsAddCmd, boardsRenameCmd, boardsShareCmd, boardsUnshareCmd, boardsDeleteCmd)
	rootCmd.AddCommand(boardsCmd)
}
