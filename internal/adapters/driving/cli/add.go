package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stashdrop-labs/stashdrop/internal/core/domain"
)

var (
	addFile string
	addLink string
)

var addCmd = &cobra.Command{
	Use:   "add [text...]",
	Short: "Capture text, a link, or a file into the vault",
	Long: `Captures a payload without the overlay. Text arguments become a text
item (or a link when they look like a URL); --file ingests a file by
path; --link ingests a URL explicitly.`,
	Args: cobra.ArbitraryArgs,
	RunE: runAdd,
}

func init() {
	addCmd.Flags().StringVarP(&addFile, "file", "f", "", "ingest a file by path")
	addCmd.Flags().StringVarP(&addLink, "link", "l", "", "ingest a URL")
	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()
	var item *domain.Item

	switch {
	case addFile != "":
		item, err = a.engine.IngestFile(ctx, addFile)
	case addLink != "":
		item, err = a.engine.IngestLink(ctx, addLink, "")
	case len(args) > 0:
		item, err = a.engine.IngestText(ctx, strings.Join(args, " "))
	default:
		return errors.New("nothing to add: pass text, --file, or --link")
	}

	if err != nil {
		if reason := domain.Reason(err); reason != "" {
			return fmt.Errorf("%s (%w)", reason, err)
		}
		return err
	}

	cmd.Printf("saved %s %s (%s)\n", item.Kind, item.ID, item.Category)
	return nil
}
