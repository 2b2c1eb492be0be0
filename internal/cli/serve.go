package cli

import (
	"github.com/spf13/cobra"

	"github.com/probelens/probelens/pkg/cache"
	"github.com/probelens/probelens/pkg/server"
)

// newServeCmd creates the serve command, which runs the HTTP and websocket
// API for live investigation sessions.
func newServeCmd(configPath *string) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the investigation session server",
		Long: `Serve starts an HTTP server exposing session management, event ingestion,
snapshot and render endpoints, plus a websocket feed that pushes a fresh
snapshot after every applied event. Sessions live in memory; a redis cache
configured in probelens.toml is used for rendered artifacts.`,
		Example: `  probelens serve
  probelens serve --addr :9000
  probelens serve --config deploy/probelens.toml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			cfg, err := LoadConfig(*configPath)
			if err != nil {
				return err
			}
			engineOpts, err := cfg.EngineOptions()
			if err != nil {
				return err
			}

			srvCfg := server.DefaultConfig()
			srvCfg.Addr = cfg.ServerAddr()
			if addr != "" {
				srvCfg.Addr = addr
			}
			srvCfg.SafetyTimeout = cfg.SafetyTimeout()

			opts := []server.Option{server.WithEngineOptions(engineOpts...)}
			if cfg.Cache.RedisURL != "" {
				backend, err := cache.NewRedisCacheFromURL(ctx, cfg.Cache.RedisURL)
				if err != nil {
					return err
				}
				defer backend.Close()
				opts = append(opts, server.WithBackendCache(backend))
			}

			srv, err := server.New(srvCfg, logger, opts...)
			if err != nil {
				return err
			}

			logger.Info("serving", "addr", srvCfg.Addr, "safety_timeout", srvCfg.SafetyTimeout)
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config, default :8080)")
	return cmd
}
