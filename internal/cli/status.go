package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hoangvle/recall-cycle/internal/config"
	"github.com/hoangvle/recall-cycle/internal/logging"
	"github.com/hoangvle/recall-cycle/internal/notestore"
	"github.com/hoangvle/recall-cycle/internal/runlog"
	"github.com/hoangvle/recall-cycle/internal/store"
)

// NewStatusCmd creates the 'status' command summarizing space health.
func NewStatusCmd() *cobra.Command {
	var flags commonFlags
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show note store connectivity, item counts and the last run",
		Example: `  recall-cycle status
  recall-cycle status --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			return runStatus(cmd, cfg, jsonOutput)
		},
	}

	cmd.Flags().StringVarP(&flags.configPath, "config", "c", "", "Config file path")
	cmd.Flags().StringVarP(&flags.space, "space", "s", "", "Space to inspect")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	return cmd
}

type statusReport struct {
	Space          string            `json:"space"`
	StoreReachable bool              `json:"store_reachable"`
	StoreVersion   int               `json:"store_version,omitempty"`
	StoreError     string            `json:"store_error,omitempty"`
	ItemsTotal     int               `json:"items_total"`
	ItemsActive    int               `json:"items_active"`
	QueuePending   int               `json:"queue_pending"`
	LastRun        *runlog.RunRecord `json:"last_run,omitempty"`
}

func runStatus(cmd *cobra.Command, cfg *config.Config, jsonOutput bool) error {
	report := statusReport{Space: cfg.Space}

	client := notestore.NewHTTPClient(cfg.NoteStore.URL, cfg.NoteStore.Version)
	if version, err := client.Version(cmd.Context()); err != nil {
		report.StoreError = err.Error()
	} else {
		report.StoreReachable = true
		report.StoreVersion = version
	}

	items, err := store.ReadItems(cfg.ItemsPath())
	if err != nil {
		return err
	}
	report.ItemsTotal = len(items)
	for _, item := range items {
		if !item.Retired {
			report.ItemsActive++
		}
	}

	queue, err := store.ReadQueue(cfg.QueuePath())
	if err != nil {
		return err
	}
	ledger, err := store.ReadLedger(cfg.LedgerPath())
	if err != nil {
		return err
	}
	used := store.UsedSourceIDs(ledger)
	for _, src := range queue {
		if !used[src.SourceID] {
			report.QueuePending++
		}
	}

	runs := runlog.NewStore(cfg.RunlogPath(), logging.Discard())
	if err := runs.Init(); err == nil {
		defer runs.Close()
		if last, lerr := runs.LastRun(cfg.Space); lerr == nil {
			report.LastRun = last
		}
	}

	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(report)
	}

	fmt.Printf("Space: %s\n", report.Space)
	if report.StoreReachable {
		fmt.Printf("Note store: reachable (version %d)\n", report.StoreVersion)
	} else {
		fmt.Printf("Note store: UNREACHABLE (%s)\n", report.StoreError)
	}
	fmt.Printf("Items: %d total, %d active\n", report.ItemsTotal, report.ItemsActive)
	fmt.Printf("Queue: %d sources pending\n", report.QueuePending)
	if report.LastRun != nil {
		outcome := "ok"
		if report.LastRun.ErrorCode != "" {
			outcome = report.LastRun.ErrorCode
		} else if report.LastRun.Degraded {
			outcome = "degraded"
		}
		fmt.Printf("Last run: %s at %s (%s, today=%d)\n",
			report.LastRun.RunID,
			report.LastRun.FinishedAt.Format("2006-01-02 15:04:05"),
			outcome, report.LastRun.TodayCount)
	} else {
		fmt.Println("Last run: none recorded")
	}
	return nil
}
