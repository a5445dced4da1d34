package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"

	echo "github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"github.com/bz-harshitha-alikepalli/example-collab-ide/backend/internal/config"
	"github.com/bz-harshitha-alikepalli/example-collab-ide/backend/internal/signaling"
)

// Server is the HTTP front of the hub.
type Server struct {
	echo *echo.Echo
	hub  *signaling.Hub
	cfg  *config.Config
}

// New builds the router. It does not listen until Start.
func New(cfg *config.Config, hub *signaling.Hub, logger *slog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = httpErrorHandler(e, logger)

	s := &Server{echo: e, hub: hub, cfg: cfg}
	s.routes()
	return s
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start binds the listen address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return err
	}
	s.echo.Listener = ln

	go func() {
		if err := s.echo.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server stopped", "error", err)
		}
	}()
	slog.Info("signaling server listening", "addr", ln.Addr().String())
	return nil
}

// Shutdown closes every websocket, then drains in-flight HTTP requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.CloseAll()
	return s.echo.Shutdown(ctx)
}

func register(lc fx.Lifecycle, s *Server) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return s.Start()
		},
		OnStop: func(ctx context.Context) error {
			slog.Info("shutting down signaling server")
			return s.Shutdown(ctx)
		},
	})
}

// Module provides the server and ties it to the application lifecycle.
var Module = fx.Module("http",
	fx.Provide(New),
	fx.Invoke(register),
)
