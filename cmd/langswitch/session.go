package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/langswitch/internal/autoswitch"
	"github.com/dshills/langswitch/internal/config"
	"github.com/dshills/langswitch/internal/logging"
	"github.com/dshills/langswitch/internal/syntax"
)

// session is the controller plus config reloading shared by the hosts.
type session struct {
	cfg     config.Config
	logger  *logging.Logger
	parser  syntax.Parser
	ctrl    *autoswitch.Controller
	watcher *config.Watcher
}

func newSession(cfg config.Config, logger *logging.Logger) (*session, error) {
	parser, err := syntax.ParserByName(cfg.Parser)
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, logger: logger, parser: parser}
	s.ctrl = autoswitch.New(cfg,
		autoswitch.WithLogger(logger),
		autoswitch.WithConfigPath(configPath),
	)

	w, err := config.NewWatcher(configPath,
		config.WithWatcherLogger(logger.WithComponent("config")),
		config.WithReloadHandler(s.reload),
	)
	if err != nil {
		// The directory may not exist until the first toggle saves it.
		logger.Warn("config reload disabled", "path", configPath, "error", err)
	} else {
		s.watcher = w
	}
	return s, nil
}

func (s *session) reload(cfg config.Config) {
	cfg, err := applyFlags(cfg)
	if err != nil {
		s.logger.Warn("ignoring reloaded config", "error", err)
		return
	}
	s.ctrl.ApplyConfig(cfg)
}

// run drives the controller, the watcher and host until host returns or a
// termination signal arrives.
func (s *session) run(ctx context.Context, host func(ctx context.Context) error) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.ctrl.Run(gctx)
	})
	if s.watcher != nil {
		g.Go(func() error {
			return s.watcher.Run(gctx)
		})
	}
	g.Go(func() error {
		defer cancel()
		if err := host(gctx); err != nil {
			return fmt.Errorf("host: %w", err)
		}
		return nil
	})

	err := g.Wait()
	s.logger.Info("session ended")
	_ = s.logger.Sync()
	return err
}
