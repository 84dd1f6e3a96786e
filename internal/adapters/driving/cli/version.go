package cli

import (
	"github.com/spf13/cobra"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the stashdrop version",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("stashdrop %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
