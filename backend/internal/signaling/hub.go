package signaling

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"go.uber.org/atomic"

	"github.com/bz-harshitha-alikepalli/example-collab-ide/backend/internal/bus"
	"github.com/bz-harshitha-alikepalli/example-collab-ide/backend/internal/config"
	"github.com/bz-harshitha-alikepalli/example-collab-ide/backend/internal/room"
	"github.com/bz-harshitha-alikepalli/example-collab-ide/pkg/protocol"
)

// Hub routes inbound events from clients to the room registry and relays
// media signals between participants of the same room. It holds no room
// state of its own; dispatch runs on each client's read goroutine and
// rooms provide the locking.
type Hub struct {
	registry *room.Registry
	bus      *bus.Bus
	settings *config.Config

	clients map[string]*Client
	mu      sync.Mutex

	connected   atomic.Int64
	accepted    atomic.Uint64
	events      atomic.Uint64
	relayed     atomic.Uint64
	dropped     atomic.Uint64
	rateLimited atomic.Uint64
}

// Stats is the /stats payload.
type Stats struct {
	Rooms            int    `json:"rooms"`
	Participants     int    `json:"participants"`
	Connections      int64  `json:"connections"`
	TotalConnections uint64 `json:"totalConnections"`
	Events           uint64 `json:"events"`
	SignalsRelayed   uint64 `json:"signalsRelayed"`
	Dropped          uint64 `json:"dropped"`
	RateLimited      uint64 `json:"rateLimited"`
}

// NewHub creates a hub over reg. Connections the bus cannot deliver to are
// closed, which runs the normal disconnect path.
func NewHub(cfg *config.Config, reg *room.Registry, b *bus.Bus) *Hub {
	h := &Hub{
		registry: reg,
		bus:      b,
		settings: cfg,
		clients:  make(map[string]*Client),
	}
	b.OnDrop(func(conn bus.Conn) {
		h.dropped.Inc()
		conn.Close()
	})
	return h
}

// NewClient wraps an upgraded connection and registers it with the hub.
// The caller starts the pumps.
func (h *Hub) NewClient(conn *websocket.Conn, codec protocol.Codec) *Client {
	c := newClient(ulid.Make().String(), h, conn, codec)
	h.register(c)
	return c
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()

	h.connected.Inc()
	h.accepted.Inc()
	slog.Debug("client registered", "conn", c.id, "codec", c.codec.Name())
}

// Disconnect is the cleanup path for a closed connection. An active
// membership is left exactly as an explicit "leave room" would.
func (h *Hub) Disconnect(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c.id]
	delete(h.clients, c.id)
	h.mu.Unlock()

	if !ok {
		return
	}
	h.leave(c)
	h.connected.Dec()
	slog.Debug("client unregistered", "conn", c.id)
}

// Dispatch handles one inbound event. Refusals are reported to the sender
// as an error event; nothing is broadcast for a refused request.
func (h *Hub) Dispatch(c *Client, msg *protocol.Message) {
	h.events.Inc()

	var err error
	switch msg.Type {
	case protocol.EventJoinRoom:
		err = h.join(c, msg)
	case protocol.EventUpdateCode:
		err = h.inRoom(c, msg, func() error {
			return h.registry.ApplyEdit(c.roomID, c.id, msg.Code)
		})
	case protocol.EventUpdateLanguage:
		err = h.inRoom(c, msg, func() error {
			return h.registry.ApplyLanguage(c.roomID, c.id, msg.Language)
		})
	case protocol.EventJoinMedia:
		err = h.inRoom(c, msg, func() error {
			return h.registerPeer(c, msg.PeerID)
		})
	case protocol.EventLeaveRoom:
		h.leave(c)
	case protocol.EventSignal:
		err = h.inRoom(c, msg, func() error {
			return h.relay(c, msg.Signal)
		})
	default:
		err = fmt.Errorf("%w: %q", protocol.ErrUnknownEvent, msg.Type)
	}

	if err != nil {
		slog.Debug("request refused", "conn", c.id, "room", c.roomID, "event", msg.Type, "error", err)
		c.Send(protocol.NewError(err))
	}
}

// join admits c to a room. A client is in at most one room, so a join for
// a different room leaves the current one first.
func (h *Hub) join(c *Client, msg *protocol.Message) error {
	if err := protocol.ValidateRoomID(msg.RoomID); err != nil {
		return err
	}
	if c.roomID != "" && c.roomID != msg.RoomID {
		h.leave(c)
	}

	if _, err := h.registry.Join(msg.RoomID, msg.DisplayName, c); err != nil {
		return err
	}
	c.roomID = msg.RoomID
	c.clientType = msg.ClientType
	return nil
}

// leave drops the current membership, if any.
func (h *Hub) leave(c *Client) {
	if c.roomID == "" {
		return
	}
	h.registry.Leave(c.roomID, c.id)
	c.roomID = ""
}

// inRoom runs fn when msg targets the client's current room. Events that
// omit the room id apply to the current one.
func (h *Hub) inRoom(c *Client, msg *protocol.Message, fn func() error) error {
	if c.roomID == "" {
		return protocol.ErrNotInRoom
	}
	if msg.RoomID != "" && msg.RoomID != c.roomID {
		return protocol.ErrNotInRoom
	}
	return fn()
}

// registerPeer associates a media peer id with the caller and republishes
// the client list so everyone can reconcile their calls.
func (h *Hub) registerPeer(c *Client, peerID string) error {
	if peerID == "" {
		return fmt.Errorf("%w: empty peer id", protocol.ErrInvalidSignal)
	}
	return h.registry.Do(c.roomID, func(r *room.Room) error {
		p := r.Participant(c.id)
		if p == nil {
			return protocol.ErrNotInRoom
		}
		if owner := r.PeerOwner(peerID); owner != nil && owner != p {
			return fmt.Errorf("%w: peer id %s already registered", protocol.ErrInvalidSignal, peerID)
		}
		p.PeerID = peerID
		r.PublishClientList()
		slog.Info("peer registered", "room", r.ID(), "conn", c.id, "peer", peerID)
		return nil
	})
}

// relay forwards a signal to the participant owning sig.To. The server
// stamps the sender's registered peer id so a client cannot speak for
// another.
func (h *Hub) relay(c *Client, sig *protocol.Signal) error {
	if sig == nil || sig.To == "" {
		return fmt.Errorf("%w: missing target", protocol.ErrInvalidSignal)
	}
	switch sig.Kind {
	case protocol.SignalOffer, protocol.SignalAnswer, protocol.SignalCandidate, protocol.SignalHangup:
	default:
		return fmt.Errorf("%w: kind %q", protocol.ErrInvalidSignal, sig.Kind)
	}

	return h.registry.Do(c.roomID, func(r *room.Room) error {
		sender := r.Participant(c.id)
		if sender == nil {
			return protocol.ErrNotInRoom
		}
		if sender.PeerID == "" {
			return fmt.Errorf("%w: sender has no peer id", protocol.ErrInvalidSignal)
		}

		target := r.PeerOwner(sig.To)
		if target == nil {
			// The target may have left while the signal was in flight.
			slog.Debug("signal target gone", "room", r.ID(), "peer", sig.To)
			return nil
		}

		forwarded := *sig
		forwarded.From = sender.PeerID
		err := r.SendTo(target.ConnectionID, &protocol.Message{
			Type:   protocol.EventSignal,
			RoomID: r.ID(),
			Signal: &forwarded,
		})
		if err != nil {
			slog.Warn("signal relay failed", "room", r.ID(), "peer", sig.To, "error", err)
			return nil
		}
		h.relayed.Inc()
		return nil
	})
}

// Stats reports live and lifetime counters.
func (h *Hub) Stats() Stats {
	rooms, participants := h.registry.Stats()
	return Stats{
		Rooms:            rooms,
		Participants:     participants,
		Connections:      h.connected.Load(),
		TotalConnections: h.accepted.Load(),
		Events:           h.events.Load(),
		SignalsRelayed:   h.relayed.Load(),
		Dropped:          h.dropped.Load(),
		RateLimited:      h.rateLimited.Load(),
	}
}

// CloseAll closes every connection. Used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
	slog.Info("closed all clients", "count", len(clients))
}
