package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hoangvle/recall-cycle/internal/ingest"
	"github.com/hoangvle/recall-cycle/internal/logging"
)

// NewIngestCmd creates the 'ingest' command feeding the source queue.
func NewIngestCmd() *cobra.Command {
	var flags commonFlags
	var title string
	var domain string
	var watchDir string

	cmd := &cobra.Command{
		Use:   "ingest [files...]",
		Short: "Queue text excerpts for generation",
		Long: `Read text files, split them into excerpt-sized sources and append
them to the space's queue. Re-ingesting the same content is a no-op.

With --watch, ingest runs until interrupted and picks up .txt and .md
files dropped into the watched directory.`,
		Example: `  recall-cycle ingest notes/channels.txt
  recall-cycle ingest --domain go/concurrency notes/*.txt
  recall-cycle ingest --watch ~/inbox`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			logger := logging.New(logging.Config{Level: cfg.Log.Level, LogDir: cfg.Log.Dir, Service: "ingest"})
			defer logger.Close()
			in := ingest.New(cfg, logger)

			if watchDir != "" {
				return in.Watch(cmd.Context(), watchDir)
			}
			if len(args) == 0 {
				return fmt.Errorf("no files given; pass paths or --watch")
			}

			var total ingest.Result
			for _, path := range args {
				res, err := in.File(path, title, domain)
				if err != nil {
					return err
				}
				total.Queued += res.Queued
				total.Duplicate += res.Duplicate
				total.Quarantined += res.Quarantined
			}
			fmt.Printf("Queued %d sources (%d duplicate, %d quarantined)\n",
				total.Queued, total.Duplicate, total.Quarantined)
			return nil
		},
	}

	cmd.Flags().StringVarP(&flags.configPath, "config", "c", "", "Config file path")
	cmd.Flags().StringVarP(&flags.space, "space", "s", "", "Space to ingest into")
	cmd.Flags().StringVarP(&title, "title", "t", "", "Source title (defaults to file name)")
	cmd.Flags().StringVarP(&domain, "domain", "d", "", "Domain path (a/b/c)")
	cmd.Flags().StringVarP(&watchDir, "watch", "w", "", "Watch a directory instead of reading files")

	return cmd
}
