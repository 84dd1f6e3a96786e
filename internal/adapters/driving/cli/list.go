package cli

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/stashdrop-labs/stashdrop/internal/core/domain"
)

var (
	listKind     string
	listCategory string
	listLimit    int
	listJSON     bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List captured items, newest first",
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listKind, "kind", "", "filter by kind (text, image, file, link)")
	listCmd.Flags().StringVar(&listCategory, "category", "", "filter by category")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 50, "maximum number of items")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "output items as JSON")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, _ []string) error {
	filter := domain.ListFilter{Limit: listLimit}
	if listKind != "" {
		kind, err := domain.ParseKind(listKind)
		if err != nil {
			return err
		}
		filter.Kind = kind
	}
	if listCategory != "" {
		category, err := domain.ParseCategory(listCategory)
		if err != nil {
			return err
		}
		filter.Category = category
	}

	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.close()

	items, err := a.engine.List(context.Background(), filter)
	if err != nil {
		return err
	}

	if listJSON {
		data, err := json.MarshalIndent(items, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(data))
		return nil
	}

	if len(items) == 0 {
		cmd.Println("The vault is empty.")
		return nil
	}

	for _, item := range items {
		marker := " "
		if item.Damaged {
			marker = "!"
		}
		cmd.Printf("%s %s  %-5s %-9s  %s  %s\n",
			marker, item.CreatedAt.Local().Format("2006-01-02 15:04"),
			item.Kind, item.Category, item.ID, truncate(item.Title, 48))
	}
	return nil
}
