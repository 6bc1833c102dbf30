package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hoangvle/recall-cycle/internal/search"
	"github.com/hoangvle/recall-cycle/internal/store"
)

// NewSearchCmd creates the 'search' command over the item store.
func NewSearchCmd() *cobra.Command {
	var flags commonFlags
	var limit int
	var domain string

	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Full-text search over item questions and domains",
		Args:  cobra.MinimumNArgs(1),
		Example: `  recall-cycle search closed channel
  recall-cycle search --domain go/http listen`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			items, err := store.ReadItems(cfg.ItemsPath())
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Println("No items yet.")
				return nil
			}

			ix, err := search.NewMemOnly()
			if err != nil {
				return err
			}
			defer ix.Close()
			if err := ix.IndexItems(items); err != nil {
				return err
			}

			query := strings.Join(args, " ")
			var hits []search.Result
			if domain != "" {
				hits, err = ix.SearchDomain(query, domain, limit)
			} else {
				hits, err = ix.Search(query, limit)
			}
			if err != nil {
				return err
			}
			if len(hits) == 0 {
				fmt.Println("No matches.")
				return nil
			}
			for _, h := range hits {
				fmt.Printf("%s  [%s]  (%.2f)\n", h.ItemID, h.DomainPath, h.Score)
				fmt.Printf("  %s\n", h.Question)
				if h.SourceTitle != "" {
					fmt.Printf("  source: %s, %s\n", h.SourceTitle, h.Locator)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&flags.configPath, "config", "c", "", "Config file path")
	cmd.Flags().StringVarP(&flags.space, "space", "s", "", "Space to search")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum hits")
	cmd.Flags().StringVarP(&domain, "domain", "d", "", "Restrict to one domain path")

	return cmd
}
