package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/hoangvle/recall-cycle/internal/gate"
	"github.com/hoangvle/recall-cycle/internal/logging"
)

// NewUsageCmd creates the 'usage' command reporting provider budgets.
func NewUsageCmd() *cobra.Command {
	var flags commonFlags
	var provider string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show today's provider call usage and budget warnings",
		Example: `  recall-cycle usage
  recall-cycle usage --provider groq --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			if provider == "" {
				provider = cfg.LLM.Provider
			}

			g := gate.New(cfg.RateLimit, cfg.UsagePath(), logging.Discard())
			snap, err := g.Usage(provider)
			if err != nil {
				return err
			}
			warnings, err := g.Warnings(provider)
			if err != nil {
				return err
			}

			if jsonOutput {
				return json.NewEncoder(os.Stdout).Encode(map[string]any{
					"usage":    snap,
					"warnings": warnings,
				})
			}

			fmt.Printf("Provider %s, %s (UTC)\n", snap.Provider, snap.Date)
			fmt.Printf("  Day total:  %d\n", snap.DayTotal)
			fmt.Printf("  Hour total: %d\n", snap.HourTotal)
			if len(snap.ByType) > 0 {
				types := make([]string, 0, len(snap.ByType))
				for t := range snap.ByType {
					types = append(types, t)
				}
				sort.Strings(types)
				fmt.Println("  By call type:")
				for _, t := range types {
					fmt.Printf("    %-12s %d\n", t, snap.ByType[t])
				}
			}
			for _, w := range warnings {
				fmt.Printf("  ! %s\n", w)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&flags.configPath, "config", "c", "", "Config file path")
	cmd.Flags().StringVarP(&flags.space, "space", "s", "", "Space (usage is shared across spaces)")
	cmd.Flags().StringVarP(&provider, "provider", "p", "", "Provider to inspect (defaults to configured)")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	return cmd
}
