package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mrjoshuak/nlecore/internal/command"
	"github.com/mrjoshuak/nlecore/internal/config"
	"github.com/mrjoshuak/nlecore/internal/logging"
	"github.com/mrjoshuak/nlecore/internal/media"
	"github.com/mrjoshuak/nlecore/internal/model"
	"github.com/mrjoshuak/nlecore/internal/store"
	"github.com/mrjoshuak/nlecore/internal/uistate"
)

// app bundles the wiring every subcommand needs: an open store, a ready
// registry, and a dispatcher sitting on top of both.
type app struct {
	cfg        *config.Config
	gateway    *store.Gateway
	dispatcher *command.Dispatcher
	logger     *zap.SugaredLogger
}

// newApp loads configuration, opens the store, runs pending migrations, and
// builds a dispatcher wired to every registered command.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	gw, err := store.Open(cfg.StoreDSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := model.Migrate(gw); err != nil {
		return nil, fmt.Errorf("migrate store: %w", err)
	}

	reg := command.NewRegistry()
	command.RegisterAll(reg)

	disp := command.NewDispatcher(reg, gw, uistate.NewNopCache(), media.NewStaticProber(), logger, cfg.MaxRippleRetries)

	return &app{cfg: cfg, gateway: gw, dispatcher: disp, logger: logger}, nil
}

func (a *app) Close() {
	_ = a.gateway.Close()
	_ = a.logger.Sync()
}
