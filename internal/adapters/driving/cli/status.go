package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/stashdrop-labs/stashdrop/internal/core/domain"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show vault statistics",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()

	items, err := a.engine.List(ctx, domain.ListFilter{})
	if err != nil {
		return err
	}

	counts := make(map[domain.Category]int)
	damaged := 0
	for _, item := range items {
		counts[item.Category]++
		if item.Damaged {
			damaged++
		}
	}

	hashes, err := a.blobs.Hashes(ctx)
	if err != nil {
		return err
	}

	cmd.Printf("vault:       %s\n", a.items.Path())
	cmd.Printf("items:       %d\n", len(items))
	cmd.Printf("blobs:       %d\n", len(hashes))
	cmd.Printf("embeddings:  %d\n", a.vectors.Size())
	if dims := a.vectors.Dimensions(); dims > 0 {
		cmd.Printf("dimensions:  %d\n", dims)
	}
	if damaged > 0 {
		cmd.Printf("damaged:     %d\n", damaged)
	}
	if len(counts) > 0 {
		cmd.Println("by category:")
		for _, category := range []domain.Category{
			domain.CategoryIdeas, domain.CategoryLinks, domain.CategoryCode,
			domain.CategoryNotes, domain.CategoryImages, domain.CategoryDocuments,
			domain.CategoryVideos, domain.CategoryCSV, domain.CategoryText,
		} {
			if n := counts[category]; n > 0 {
				cmd.Printf("  %-10s %d\n", category, n)
			}
		}
	}
	return nil
}
