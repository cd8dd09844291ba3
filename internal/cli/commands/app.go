package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/conduit-lang/pim/internal/cache"
	"github.com/conduit-lang/pim/internal/cli/config"
	"github.com/conduit-lang/pim/internal/logging"
	"github.com/conduit-lang/pim/pkg/backend"
	"github.com/conduit-lang/pim/pkg/local"
	"github.com/conduit-lang/pim/pkg/remote"
	"github.com/conduit-lang/pim/pkg/thing"
	"go.uber.org/zap"
)

// app holds what a command needs once configuration is loaded
type app struct {
	config  *config.Config
	logger  *zap.Logger
	backend backend.Backend
	session *thing.Session
	closers []func() error
}

func loadConfig(opts *options) (*config.Config, error) {
	return config.LoadWithOptions(config.Options{File: opts.configFile, Paths: []string{"."}})
}

// openApp loads configuration, builds the backend and opens a session on it
func openApp(ctx context.Context, opts *options) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Development: cfg.Log.Development})
	if err != nil {
		return nil, err
	}

	a := &app{config: cfg, logger: logger}
	a.closers = append(a.closers, func() error {
		_ = logger.Sync()
		return nil
	})

	b, err := newBackend(cfg, logger)
	if err != nil {
		return nil, errors.Join(err, a.close())
	}

	store, err := cache.Open(ctx, cfg.Cache.Driver, cache.RedisConfig{
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
		Config:   cache.Config{TTL: cfg.Cache.TTL, Prefix: cfg.Cache.Prefix},
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to open cache: %w", err), a.close())
	}
	if store != nil {
		a.closers = append(a.closers, store.Close)
	}
	a.backend = cache.Wrap(b, store, cache.BackendConfig{Logger: logger})

	a.session, err = thing.Open(ctx, a.backend, thing.SessionConfig{Logger: logger, MaxFanOut: 8})
	if err != nil {
		return nil, errors.Join(err, a.close())
	}

	lang := opts.lang
	if lang == "" {
		lang = cfg.Language
	}
	if lang != "" {
		a.session.Graph().SetLang(lang)
	}
	return a, nil
}

func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

func newBackend(cfg *config.Config, logger *zap.Logger) (backend.Backend, error) {
	switch cfg.Backend.Mode {
	case config.ModeRemote:
		return remote.NewWithConfig(remote.Config{
			BaseURL:    cfg.Backend.URL,
			Token:      cfg.Backend.Token,
			Timeout:    cfg.Backend.Timeout,
			MaxRetries: cfg.Backend.MaxRetries,
			Backoff:    500 * time.Millisecond,
			Logger:     logger,
		})
	default:
		return openEngine(cfg, logger)
	}
}

// openEngine seeds a local engine from the configured schema and data files
func openEngine(cfg *config.Config, logger *zap.Logger) (*local.Engine, error) {
	schemaJSON, err := os.ReadFile(cfg.Local.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}
	var data []byte
	if cfg.Local.Data != "" {
		if data, err = os.ReadFile(cfg.Local.Data); err != nil {
			return nil, fmt.Errorf("failed to read data: %w", err)
		}
	}

	e, err := local.Open(schemaJSON, data, local.EngineConfig{Logger: logger})
	if err != nil {
		return nil, err
	}
	logger.Debug("local engine ready", zap.Int("things", e.Store().Len()))
	return e, nil
}
