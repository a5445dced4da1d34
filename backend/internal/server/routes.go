package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	echo "github.com/labstack/echo/v4"

	"github.com/bz-harshitha-alikepalli/example-collab-ide/pkg/protocol"
)

// Configure the websocket upgrader
var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024, // 64 KB
	WriteBufferSize: 64 * 1024, // 64 KB

	// Browser clients are served from a different origin than the server.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// CreateRoomResponse is returned by POST /api/rooms.
type CreateRoomResponse struct {
	RoomID string `json:"roomId"`
}

func (s *Server) routes() {
	s.echo.GET("/ws", s.serveWs)
	s.echo.GET("/health", s.health)
	s.echo.GET("/stats", s.stats)
	s.echo.POST("/api/rooms", s.createRoom)
}

// serveWs upgrades the request and starts the client's pumps. The wire
// codec is chosen with ?codec=json|msgpack and defaults to JSON.
func (s *Server) serveWs(c echo.Context) error {
	codec, err := protocol.SelectCodec(c.QueryParam("codec"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		slog.Warn("failed to upgrade connection", "remote", c.RealIP(), "error", err)
		return nil
	}

	client := s.hub.NewClient(conn, codec)
	slog.Debug("websocket connected", "conn", client.ID(), "remote", c.RealIP(), "codec", codec.Name())

	go client.WritePump()
	go client.ReadPump()
	return nil
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) stats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.hub.Stats())
}

// createRoom hands out a fresh room id. The room itself only comes to
// life when the first participant joins it.
func (s *Server) createRoom(c echo.Context) error {
	return c.JSON(http.StatusCreated, CreateRoomResponse{RoomID: protocol.NewRoomID()})
}

func httpErrorHandler(e *echo.Echo, logger *slog.Logger) func(err error, c echo.Context) {
	return func(err error, c echo.Context) {
		logger.Error(err.Error(), slog.String("request", fmt.Sprintf("%s %s", c.Request().Method, c.Request().URL.Path)))
		e.DefaultHTTPErrorHandler(err, c)
	}
}
