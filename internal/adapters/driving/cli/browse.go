package cli

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/stashdrop-labs/stashdrop/internal/adapters/driving/tui"
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse the vault in the terminal",
	Long:  `Opens an interactive browser: type to search, arrows to move, ctrl+d to delete.`,
	RunE:  runBrowse,
}

func init() {
	rootCmd.AddCommand(browseCmd)
}

func runBrowse(_ *cobra.Command, _ []string) error {
	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.close()

	program := tea.NewProgram(tui.NewApp(a.engine), tea.WithAltScreen())
	_, err = program.Run()
	return err
}
