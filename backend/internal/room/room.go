package room

import (
	"sync"

	"github.com/bz-harshitha-alikepalli/example-collab-ide/backend/internal/bus"
	"github.com/bz-harshitha-alikepalli/example-collab-ide/pkg/protocol"
)

// Participant is one connection admitted to a room.
type Participant struct {
	ConnectionID string
	DisplayName  string

	// PeerID is empty until the client finished its media peer setup.
	PeerID string
}

// Document is the shared editor state. Keybindings are per-client and
// never stored here.
type Document struct {
	Text     string
	Language protocol.Language
}

// Snapshot is what a joiner needs to render the room.
type Snapshot struct {
	RoomID   string
	Users    []string
	PeerIDs  []string
	Document Document
}

// Message converts the snapshot to the join response.
func (s Snapshot) Message() *protocol.Message {
	return &protocol.Message{
		Type:     protocol.EventJoinedRoom,
		RoomID:   s.RoomID,
		Users:    s.Users,
		PeerIDs:  s.PeerIDs,
		Code:     s.Document.Text,
		Language: string(s.Document.Language),
	}
}

// Room holds the presence list and document of one room. All exported
// methods except ID expect the caller to hold the room through
// Registry.Do or to be inside a Registry operation.
type Room struct {
	id           string
	participants []*Participant
	document     Document
	bus          *bus.Bus

	// removed is set once the registry dropped the room; a join racing
	// with the last leave must create a new room instead.
	removed bool
	mu      sync.Mutex
}

func newRoom(id string, b *bus.Bus) *Room {
	return &Room{
		id:       id,
		bus:      b,
		document: Document{Language: protocol.DefaultLanguage},
	}
}

// ID returns the room id.
func (r *Room) ID() string {
	return r.id
}

// Participant returns the participant for a connection, or nil.
func (r *Room) Participant(connID string) *Participant {
	for _, p := range r.participants {
		if p.ConnectionID == connID {
			return p
		}
	}
	return nil
}

// PeerOwner returns the participant that registered peerID, or nil.
func (r *Room) PeerOwner(peerID string) *Participant {
	if peerID == "" {
		return nil
	}
	for _, p := range r.participants {
		if p.PeerID == peerID {
			return p
		}
	}
	return nil
}

// Len returns the number of participants.
func (r *Room) Len() int {
	return len(r.participants)
}

// Snapshot copies the current presence list and document.
func (r *Room) Snapshot() Snapshot {
	users := make([]string, 0, len(r.participants))
	peers := make([]string, 0, len(r.participants))
	for _, p := range r.participants {
		users = append(users, p.DisplayName)
		if p.PeerID != "" {
			peers = append(peers, p.PeerID)
		}
	}
	return Snapshot{
		RoomID:   r.id,
		Users:    users,
		PeerIDs:  peers,
		Document: r.document,
	}
}

// Publish fans msg out to the room, skipping exclude.
func (r *Room) Publish(msg *protocol.Message, exclude string) {
	r.bus.Publish(r.id, msg, exclude)
}

// SendTo delivers msg to a single participant.
func (r *Room) SendTo(connID string, msg *protocol.Message) error {
	return r.bus.SendTo(r.id, connID, msg)
}

// PublishClientList sends the full presence list, peer ids included, to
// everyone. Clients replace their local list with it.
func (r *Room) PublishClientList() {
	snap := r.Snapshot()
	r.Publish(&protocol.Message{
		Type:    protocol.EventClientList,
		RoomID:  r.id,
		Users:   snap.Users,
		PeerIDs: snap.PeerIDs,
	}, "")
}
