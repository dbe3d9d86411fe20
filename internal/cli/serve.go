package cli

import (
	"github.com/spf13/cobra"
	"github.com/vulnsight/vulnsight/internal/runner"
	"github.com/vulnsight/vulnsight/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	var listen string
	var origins []string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web dashboard",
		Long: `Start the web dashboard for browsing scan history, starting scans and
downloading reports.

Examples:
  # Default address from the config file (127.0.0.1:8080)
  vulnsight serve

  # Allow external connections (use with caution!)
  vulnsight serve --listen 0.0.0.0:8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			cfg := &server.Config{
				Listen:         a.cfg.Server.Listen,
				AllowedOrigins: a.cfg.Server.CORSOrigins,
				Debug:          a.debug,
			}
			if listen != "" {
				cfg.Listen = listen
			}
			if len(origins) > 0 {
				cfg.AllowedOrigins = origins
			}

			srv, err := server.New(cfg, store, func(progress func(runner.ProgressUpdate)) server.Scanner {
				opts := append([]runner.Option{runner.WithProgress(progress)}, runnerOptions...)
				return runner.New(a.cfg, store, opts...)
			})
			if err != nil {
				return err
			}
			return srv.Start(ctx)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Address to listen on (default from config: 127.0.0.1:8080)")
	cmd.Flags().StringSliceVar(&origins, "cors-origin", nil, "Allowed CORS origins")
	return cmd
}
