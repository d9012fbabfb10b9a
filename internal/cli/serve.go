package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/sightline/pkg/server"
)

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr    string
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the visibility HTTP service",
		Long: `Run the HTTP service. Scenes are uploaded to /v1/scenes and queried with
POST /v1/scenes/{id}/visibility. Storage and caching backends come from the
config file and SIGHTLINE_* environment variables.`,
		Example: `  sightline serve --addr :9000
  SIGHTLINE_STORE=mongo SIGHTLINE_MONGO_URI=mongodb://localhost:27017 sightline serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}

			st, err := newStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			runner, err := c.newRunner(ctx, cfg, noCache)
			if err != nil {
				return err
			}
			defer runner.Close()

			opts := cfg.PipelineOptions()
			opts.Logger = logger
			srv := server.New(st, runner, logger, server.Options{
				Query:          opts,
				MaxBodyBytes:   cfg.Server.MaxBodyBytes,
				RequestTimeout: cfg.Server.RequestTimeout.Duration,
			})
			logger.Info("listening", "addr", cfg.Server.Addr, "store", cfg.Store.Backend, "cache", cfg.Cache.Backend)
			return srv.ListenAndServe(ctx, cfg.Server.Addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")

	return cmd
}
