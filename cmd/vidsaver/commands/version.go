package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags
var Version = "dev"

// VersionCmd prints the vidsaver version
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the vidsaver version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("vidsaver %s\n", Version)
	},
}
