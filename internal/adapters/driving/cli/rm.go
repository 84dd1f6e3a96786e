package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/stashdrop-labs/stashdrop/internal/core/domain"
)

var rmCmd = &cobra.Command{
	Use:   "rm [id...]",
	Short: "Delete items from the vault",
	Long: `Deletes items by ID. The embedding goes with the record; the blob is
garbage-collected once no other item references it.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRm,
}

func init() {
	rootCmd.AddCommand(rmCmd)
}

func runRm(cmd *cobra.Command, args []string) error {
	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()
	for _, id := range args {
		if err := a.engine.Delete(ctx, id); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				cmd.Printf("no item %s\n", id)
				continue
			}
			return err
		}
		cmd.Printf("deleted %s\n", id)
	}
	return nil
}
