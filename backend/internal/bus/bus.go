package bus

import (
	"log/slog"
	"sync"

	"github.com/bz-harshitha-alikepalli/example-collab-ide/pkg/protocol"
)

// Conn is a registered connection. Send must not block: implementations
// queue the message and fail when the queue is full.
type Conn interface {
	ID() string
	Send(msg *protocol.Message) error
	Close() error
}

// Bus fans events out to the connections subscribed to a room. Callers
// that need per-room ordering publish while holding the room's lock; each
// connection then delivers in publish order from its own FIFO queue.
type Bus struct {
	rooms map[string]map[string]Conn
	mu    sync.RWMutex

	// onDrop is invoked for connections that could not accept a message.
	onDrop func(Conn)
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{
		rooms: make(map[string]map[string]Conn),
	}
}

// OnDrop registers the handler for connections whose queue overflowed.
// It runs on its own goroutine so publishers never re-enter room locks.
func (b *Bus) OnDrop(fn func(Conn)) {
	b.mu.Lock()
	b.onDrop = fn
	b.mu.Unlock()
}

// Subscribe adds conn to the room's delivery set.
func (b *Bus) Subscribe(roomID string, conn Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()

	conns, ok := b.rooms[roomID]
	if !ok {
		conns = make(map[string]Conn)
		b.rooms[roomID] = conns
	}
	conns[conn.ID()] = conn
}

// Unsubscribe removes a connection. Unknown ids are ignored.
func (b *Bus) Unsubscribe(roomID, connID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	conns, ok := b.rooms[roomID]
	if !ok {
		return
	}
	delete(conns, connID)
	if len(conns) == 0 {
		delete(b.rooms, roomID)
	}
}

// Publish delivers msg to every connection in the room except exclude and
// returns the number of connections that accepted it.
func (b *Bus) Publish(roomID string, msg *protocol.Message, exclude string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for id, conn := range b.rooms[roomID] {
		if id == exclude {
			continue
		}
		if err := conn.Send(msg); err != nil {
			b.drop(conn, roomID, msg.Type, err)
			continue
		}
		delivered++
	}
	return delivered
}

// SendTo delivers msg to a single subscribed connection.
func (b *Bus) SendTo(roomID, connID string, msg *protocol.Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	conn, ok := b.rooms[roomID][connID]
	if !ok {
		return protocol.ErrNotInRoom
	}
	if err := conn.Send(msg); err != nil {
		b.drop(conn, roomID, msg.Type, err)
		return err
	}
	return nil
}

// Stats reports the number of rooms and subscribed connections.
func (b *Bus) Stats() (rooms, conns int) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, c := range b.rooms {
		conns += len(c)
	}
	return len(b.rooms), conns
}

// drop must be called with b.mu held.
func (b *Bus) drop(conn Conn, roomID, event string, err error) {
	slog.Warn("dropping slow connection", "room", roomID, "conn", conn.ID(), "event", event, "error", err)
	if b.onDrop != nil {
		go b.onDrop(conn)
	}
}
