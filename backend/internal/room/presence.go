package room

import (
	"log/slog"

	"github.com/bz-harshitha-alikepalli/example-collab-ide/backend/internal/bus"
	"github.com/bz-harshitha-alikepalli/example-collab-ide/pkg/protocol"
)

// Join admits conn to the room under displayName. The joiner receives the
// snapshot, the others a "new member joined" notice, then everyone the full
// client list, all before the room lock is released. Joining twice only
// resends the snapshot.
func (reg *Registry) Join(roomID, displayName string, conn bus.Conn) (Snapshot, error) {
	if err := protocol.ValidateRoomID(roomID); err != nil {
		return Snapshot{}, err
	}
	name, err := protocol.ValidateDisplayName(displayName)
	if err != nil {
		return Snapshot{}, err
	}

	r := reg.acquire(roomID, true)
	defer reg.release(r)

	if r.Participant(conn.ID()) != nil {
		snap := r.Snapshot()
		if err := r.SendTo(conn.ID(), snap.Message()); err != nil {
			slog.Warn("failed to send snapshot", "room", r.id, "conn", conn.ID(), "error", err)
		}
		return snap, nil
	}

	r.participants = append(r.participants, &Participant{
		ConnectionID: conn.ID(),
		DisplayName:  name,
	})
	reg.bus.Subscribe(r.id, conn)

	snap := r.Snapshot()
	if err := r.SendTo(conn.ID(), snap.Message()); err != nil {
		slog.Warn("failed to send snapshot", "room", r.id, "conn", conn.ID(), "error", err)
	}

	r.Publish(&protocol.Message{
		Type:        protocol.EventMemberJoined,
		RoomID:      r.id,
		DisplayName: name,
	}, conn.ID())
	r.PublishClientList()

	slog.Info("participant joined", "room", r.id, "conn", conn.ID(), "name", name, "participants", len(r.participants))
	return snap, nil
}

// Leave removes the connection from the room. It is idempotent and is the
// single cleanup path for explicit leaves and disconnects. The removed
// participant is returned, or nil when it was not present.
func (reg *Registry) Leave(roomID, connID string) *Participant {
	r := reg.acquire(roomID, false)
	if r == nil {
		return nil
	}
	defer reg.release(r)

	idx := -1
	for i, p := range r.participants {
		if p.ConnectionID == connID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}

	left := r.participants[idx]
	r.participants = append(r.participants[:idx], r.participants[idx+1:]...)
	reg.bus.Unsubscribe(r.id, connID)

	slog.Info("participant left", "room", r.id, "conn", connID, "name", left.DisplayName, "participants", len(r.participants))

	if len(r.participants) == 0 {
		return left
	}

	r.Publish(&protocol.Message{
		Type:        protocol.EventMemberLeft,
		RoomID:      r.id,
		DisplayName: left.DisplayName,
	}, "")
	r.PublishClientList()

	if left.PeerID != "" {
		r.Publish(&protocol.Message{
			Type:   protocol.EventPeerLeft,
			RoomID: r.id,
			PeerID: left.PeerID,
		}, "")
	}
	return left
}
