// Package cli provides the cobra command surface of stashdrop: the
// long-running serve daemon and the one-shot vault commands.
package cli

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/stashdrop-labs/stashdrop/internal/logger"
)

var (
	verboseFlag  bool
	vaultDirFlag string
)

var rootCmd = &cobra.Command{
	Use:   "stashdrop",
	Short: "A personal dump vault with semantic search",
	Long: `stashdrop captures anything - text, links, dropped files - into a
local content-addressed vault and finds it again by meaning, not
filename. Everything is single-user, local, and offline.`,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.SetVerbose(verboseFlag)
		// Endpoint keys may live in a .env in the working directory.
		_ = godotenv.Load()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false,
		"print pipeline debug output to stderr")
	rootCmd.PersistentFlags().StringVar(&vaultDirFlag, "vault", "",
		"vault directory (default ~/.stashdrop/vault)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// vaultDir resolves the vault directory from the --vault flag, the
// STASHDROP_VAULT environment variable, or the default.
func vaultDir() (string, error) {
	if vaultDirFlag != "" {
		return vaultDirFlag, nil
	}
	if fromEnv := os.Getenv("STASHDROP_VAULT"); fromEnv != "" {
		return fromEnv, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".stashdrop", "vault"), nil
}
