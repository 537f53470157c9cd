package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vidsaver/vidsaver/cmd/vidsaver/commands"
)

var rootCmd = &cobra.Command{
	Use:   "vidsaver",
	Short: "VidSaver - durable URL download queue",
	Long: `VidSaver - a durable download queue server.

Submitted URLs are persisted before they are acknowledged, downloaded in
the background with bounded retries, and survive process crashes.

Examples:
  vidsaver serve                # Start the queue server
  vidsaver jobs                 # List recent download jobs
  vidsaver jobs --status failed # List terminally failed jobs`,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default: vidsaver.toml in . or ~/.config/vidsaver)")

	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.JobsCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
