/*
Package main is the entry point for the recall-cycle CLI.

recall-cycle curates a spaced-repetition study bank: it selects a
deterministic daily study set from an external note store, generates new
items from queued source excerpts through a rate-gated LLM provider, and
reconciles the authoritative item store into notes.

Usage:
  recall-cycle [command]

Available Commands:
  run         Execute one cycle run
  status      Show space health and the last run
  usage       Show provider call budgets
  ingest      Queue text excerpts for generation
  search      Full-text search over items
  serve       Serve the REST API
  version     Print version information

Examples:
  # Daily cycle for the default space
  recall-cycle run

  # Queue study material and inspect the result
  recall-cycle ingest --domain go/concurrency notes/channels.txt
  recall-cycle status
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hoangvle/recall-cycle/internal/cli"
)

// Version information (set via ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "recall-cycle",
		Short: "Daily study-set curator for an external spaced-repetition store",
		Long: `recall-cycle runs a daily cycle over a spaced-repetition note store:
it verifies the store, generates new study items from ingested sources,
reconciles the item store into notes, and tags a deterministic Today set
selected from scheduling telemetry (due, lapses, stability).

When the cycle cannot complete, a reduced Safe-Degrade selection keeps
the day studyable instead of leaving the store half-tagged.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	}

	rootCmd.AddCommand(cli.NewRunCmd())
	rootCmd.AddCommand(cli.NewStatusCmd())
	rootCmd.AddCommand(cli.NewUsageCmd())
	rootCmd.AddCommand(cli.NewIngestCmd())
	rootCmd.AddCommand(cli.NewSearchCmd())
	rootCmd.AddCommand(cli.NewServeCmd())
	rootCmd.AddCommand(cli.NewVersionCmd(version, commit, date))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
