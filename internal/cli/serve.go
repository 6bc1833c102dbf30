package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hoangvle/recall-cycle/internal/api"
)

// NewServeCmd creates the 'serve' command hosting the REST API.
func NewServeCmd() *cobra.Command {
	var flags commonFlags
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API (status, runs, usage, metrics)",
		Example: `  recall-cycle serve
  recall-cycle serve --addr 0.0.0.0:8337`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.API.Addr = addr
			}

			rt, err := newRuntime(cfg, "serve")
			if err != nil {
				return err
			}
			defer rt.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			server := api.New(cfg, rt.client, rt.runner, rt.gate, rt.runs, rt.logger)
			return server.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVarP(&flags.configPath, "config", "c", "", "Config file path")
	cmd.Flags().StringVarP(&flags.space, "space", "s", "", "Space to serve")
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (overrides config)")

	return cmd
}
