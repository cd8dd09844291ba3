package commands

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/conduit-lang/pim/internal/cache"
	"github.com/conduit-lang/pim/internal/cli/config"
	"github.com/conduit-lang/pim/internal/logging"
	"github.com/conduit-lang/pim/internal/server"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCommand(opts *options) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the local schema and data over HTTP",
		Long: `Serve the local schema and data files over HTTP.

The server answers the same endpoints as the remote service, so another pim
configured with backend.mode: remote can point at it.

Examples:
  pim serve
  pim serve --addr :9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Development: cfg.Log.Development})
			if err != nil {
				return err
			}
			defer logger.Sync()

			engine, err := openEngine(cfg, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, err := cache.Open(ctx, cfg.Cache.Driver, cache.RedisConfig{
				Addr:     cfg.Cache.Redis.Addr,
				Password: cfg.Cache.Redis.Password,
				DB:       cfg.Cache.Redis.DB,
				Config:   cache.Config{TTL: cfg.Cache.TTL, Prefix: cfg.Cache.Prefix},
			})
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
			}

			serverConfig := server.DefaultConfig()
			serverConfig.Address = cfg.Server.Address()
			if addr != "" {
				serverConfig.Address = addr
			}
			serverConfig.Logger = logger
			limiter, closeLimiter, err := newLimiter(cfg)
			if err != nil {
				return err
			}
			defer closeLimiter()
			serverConfig.Limiter = limiter

			srv, err := server.New(cache.Wrap(engine, store, cache.BackendConfig{Logger: logger}), serverConfig)
			if err != nil {
				return err
			}

			logger.Info("serving", zap.String("address", serverConfig.Address), zap.String("cache", cfg.Cache.Driver))
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: server.host:server.port from config)")
	return cmd
}

// newLimiter builds the request limiter of the server and the function releasing it.
// Servers sharing a Redis cache share their limits too.
func newLimiter(cfg *config.Config) (server.Limiter, func() error, error) {
	if cfg.Server.RateLimit == 0 {
		return nil, func() error { return nil }, nil
	}
	if cfg.Cache.Driver != cache.DriverRedis {
		tb := server.NewTokenBucket(cfg.Server.RateLimit, cfg.Server.RateWindow)
		return tb, tb.Close, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
	})
	limiter, err := server.NewRedisLimiter(client, cfg.Server.RateLimit, cfg.Server.RateWindow, cfg.Cache.Prefix+"ratelimit:")
	if err != nil {
		return nil, nil, errors.Join(err, client.Close())
	}
	return limiter, client.Close, nil
}
