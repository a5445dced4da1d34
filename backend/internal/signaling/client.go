package signaling

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/bz-harshitha-alikepalli/example-collab-ide/pkg/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

var (
	errSendQueueFull = errors.New("send queue full")
	errClientClosed  = errors.New("client closed")
)

// Client is a wrapper for a single websocket connection. It implements
// bus.Conn so rooms can publish to it directly.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn

	// codec is chosen at upgrade time and fixed for the connection.
	codec protocol.Codec

	// send is a buffered queue of outbound messages drained by WritePump.
	send chan *protocol.Message

	// limiter bounds inbound events.
	limiter *rate.Limiter

	// roomID and clientType are only touched from the ReadPump goroutine.
	roomID     string
	clientType string

	done      chan struct{}
	closeOnce sync.Once
}

func newClient(id string, hub *Hub, conn *websocket.Conn, codec protocol.Codec) *Client {
	return &Client{
		id:      id,
		hub:     hub,
		conn:    conn,
		codec:   codec,
		send:    make(chan *protocol.Message, hub.settings.SendBuffer),
		limiter: rate.NewLimiter(rate.Limit(hub.settings.RateLimit), hub.settings.RateBurst),
		done:    make(chan struct{}),
	}
}

// ID returns the connection id.
func (c *Client) ID() string {
	return c.id
}

// RoomID returns the room the client currently belongs to.
func (c *Client) RoomID() string {
	return c.roomID
}

// Send queues msg without blocking.
func (c *Client) Send(msg *protocol.Message) error {
	select {
	case <-c.done:
		return errClientClosed
	default:
	}

	select {
	case c.send <- msg:
		return nil
	default:
		return errSendQueueFull
	}
}

// Close asks WritePump to send a close frame and drop the connection,
// which in turn ends ReadPump. Safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	return nil
}

// ReadPump pumps messages from the websocket connection to the hub.
//
// The application runs ReadPump in a per-connection goroutine. All hub
// dispatch for this client happens here, so a client's own events are
// handled in the order it sent them.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Disconnect(c)
		c.Close()
	}()

	c.conn.SetReadLimit(c.hub.settings.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("websocket read failed", "conn", c.id, "error", err)
			}
			return
		}

		var msg protocol.Message
		if err := c.codec.Decode(data, &msg); err != nil {
			slog.Debug("dropping undecodable frame", "conn", c.id, "codec", c.codec.Name(), "error", err)
			c.Send(protocol.NewError(protocol.ErrUnknownEvent))
			continue
		}

		if !c.limiter.Allow() {
			c.hub.rateLimited.Inc()
			c.Send(protocol.NewError(protocol.ErrRateLimited))
			continue
		}

		c.hub.Dispatch(c, &msg)
	}
}

// WritePump pumps messages from the send queue to the websocket connection.
//
// A goroutine running WritePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
		c.conn.Close()
	}()

	frameType := websocket.TextMessage
	if c.codec.Binary() {
		frameType = websocket.BinaryMessage
	}

	for {
		select {
		case msg := <-c.send:
			data, err := c.codec.Encode(msg)
			if err != nil {
				slog.Error("failed to encode message", "conn", c.id, "event", msg.Type, "error", err)
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(frameType, data); err != nil {
				slog.Debug("websocket write failed", "conn", c.id, "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}
