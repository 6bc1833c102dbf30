package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hoangvle/recall-cycle/internal/config"
	"github.com/hoangvle/recall-cycle/internal/phase"
)

// NewRunCmd creates the 'run' command executing one full cycle.
func NewRunCmd() *cobra.Command {
	var flags commonFlags
	var batch bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one cycle run (selfcheck, generate, reconcile, select, apply)",
		Long: `Run the full daily cycle against the configured note store.

Batch mode skips note reconciliation and the post-commit sync, for
catch-up runs against a store that is synced elsewhere.`,
		Example: `  recall-cycle run
  recall-cycle run --space golang
  recall-cycle run --batch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			mode := phase.ModeDaily
			if batch {
				mode = phase.ModeBatch
			}
			return runCycle(cmd, cfg, mode)
		},
	}

	cmd.Flags().StringVarP(&flags.configPath, "config", "c", "", "Config file path")
	cmd.Flags().StringVarP(&flags.space, "space", "s", "", "Space to run (overrides config)")
	cmd.Flags().BoolVarP(&batch, "batch", "b", false, "Batch mode: skip reconcile and sync")

	return cmd
}

func runCycle(cmd *cobra.Command, cfg *config.Config, mode string) error {
	rt, err := newRuntime(cfg, "run")
	if err != nil {
		return err
	}
	defer rt.close()

	rec, err := rt.runner.Run(cmd.Context(), mode)
	if err != nil {
		return fmt.Errorf("%s", exitMessage(err))
	}

	fmt.Printf("Run %s finished (%s mode)\n", rec.RunID, rec.Mode)
	fmt.Printf("  Today set:     %d notes\n", rec.TodayCount)
	fmt.Printf("  New generated: %d attempted, %d accepted\n", rec.NewGenerated, rec.NewAccepted)
	if rec.Degraded {
		fmt.Printf("  Degraded:      yes (%s)\n", rec.DegradedReason)
	}
	return nil
}
