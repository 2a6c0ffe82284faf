package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var queueCmd = &cobra.Command{
	Use:     "queue",
	GroupID: "kanban",
	Short:   "Inspect and replay changes made while offline",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queued changes in replay order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openClient(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tACTION\tENTITY\tSUBJECT\tQUEUED")
		for _, a := range c.session.Queue.Actions() {
			queued := time.UnixMilli(a.Timestamp).Format(time.RFC3339)
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", a.ID, a.Type, a.Entity, a.SubjectID(), queued)
		}
		return w.Flush()
	},
}

var queueFlushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Replay queued changes against the server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openClient(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		if !c.session.Online() {
			return fmt.Errorf("server %s is unreachable; %d change(s) still queued", c.cfg.ServerURL, c.session.Queue.Len())
		}

		result := c.flush(cmd.Context())
		fmt.Fprintf(cmd.OutOrStdout(), "attempted %d, flushed %d, failed %d\n", result.Attempted, result.Flushed, result.Failed)
		if result.Failed > 0 {
			return fmt.Errorf("%d change(s) failed to replay", result.Failed)
		}
		return nil
	},
}

func init() {
	queueCmd.AddCommand(queueListCmd, queueFlushCmd)
	rootCmd.AddCommand(queueCmd)
}
