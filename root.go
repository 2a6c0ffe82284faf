package main

import (
	"github.com/CrowderSoup/flow-board/services"
	"github.com/spf13/cobra"
)

var (
	configFile string
	v          = services.NewViper()
)

var rootCmd = &cobra.Command{
	Use:   "flowboard",
	Short: "Offline-first kanban boards",
	Long: `flowboard keeps boards, columns and cards in a local store, mirrors every
change to a flow-board server, and queues writes made while offline so they
are replayed once the server is reachable again.

Run "flowboard serve" to start a server, "flowboard login EMAIL" to get a
token, then manage boards from the command line:
  flowboard boards add "Roadmap"
  flowboard columns add BOARD "To do"
  flowboard cards add BOARD COLUMN "Write docs"`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "server", Title: "Server:"},
		&cobra.Group{ID: "kanban", Title: "Boards, columns and cards:"},
	)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (default ./flowboard.yaml or $HOME/.flowboard/flowboard.yaml)")
	flags.String("server", "", "flow-board server URL")
	flags.String("token", "", "API token from \"flowboard login\"")
	flags.String("state", "", "path of the local state database")

	_ = v.BindPFlag("server_url", flags.Lookup("server"))
	_ = v.BindPFlag("token", flags.Lookup("token"))
	_ = v.BindPFlag("state_path", flags.Lookup("state"))
}

func loadConfig() (*services.Config, error) {
	return services.LoadConfig(v, configFile)
}
