package main

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/bz-harshitha-alikepalli/example-collab-ide/backend/internal/bus"
	"github.com/bz-harshitha-alikepalli/example-collab-ide/backend/internal/config"
	"github.com/bz-harshitha-alikepalli/example-collab-ide/backend/internal/logging"
	"github.com/bz-harshitha-alikepalli/example-collab-ide/backend/internal/room"
	"github.com/bz-harshitha-alikepalli/example-collab-ide/backend/internal/server"
	"github.com/bz-harshitha-alikepalli/example-collab-ide/backend/internal/signaling"
)

func newLogger(cfg *config.Config) *slog.Logger {
	return logging.Init(cfg.LogLevel, cfg.LogFormat)
}

func main() {
	fx.New(
		fx.NopLogger,
		fx.Provide(
			config.Load,
			newLogger,

			bus.New,
			room.NewRegistry,
			signaling.NewHub,
		),
		server.Module,
	).Run()
}
