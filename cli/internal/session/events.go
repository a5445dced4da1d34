package session

import "github.com/bz-harshitha-alikepalli/example-collab-ide/pkg/protocol"

// Event is delivered on Session.Events in the order the server sent the
// underlying messages. Consumers switch on the concrete type.
type Event interface {
	event()
}

// SnapshotEvent replaces all local room state. It follows every
// successful join, including rejoins after a reconnect.
type SnapshotEvent struct {
	RoomID   string
	Users    []string
	PeerIDs  []string
	Document Document
}

// PresenceEvent carries the full participant list.
type PresenceEvent struct {
	Users   []string
	PeerIDs []string
}

// MemberEvent announces a participant arriving or leaving.
type MemberEvent struct {
	Name   string
	Joined bool
}

// CodeEvent is a remote edit.
type CodeEvent struct {
	Text string
}

// LanguageEvent is a remote language change.
type LanguageEvent struct {
	Language protocol.Language
}

// PeerLeftEvent means the media peer is gone and its link must close.
type PeerLeftEvent struct {
	PeerID string
}

// SignalEvent is connection-setup data addressed to the local peer.
type SignalEvent struct {
	Signal *protocol.Signal
}

// NoticeEvent reports a recoverable problem.
type NoticeEvent struct {
	Err error
}

// ConnectionState describes the transport during reconnects.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Reconnecting
	Reconnected
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Reconnecting:
		return "reconnecting"
	case Reconnected:
		return "reconnected"
	}
	return "unknown"
}

// ConnectionEvent reports transport loss and recovery.
type ConnectionEvent struct {
	State   ConnectionState
	Attempt int
	Err     error
}

// ClosedEvent is the last event of a session. Err is nil after Leave.
type ClosedEvent struct {
	Err error
}

func (SnapshotEvent) event()   {}
func (PresenceEvent) event()   {}
func (MemberEvent) event()     {}
func (CodeEvent) event()       {}
func (LanguageEvent) event()   {}
func (PeerLeftEvent) event()   {}
func (SignalEvent) event()     {}
func (NoticeEvent) event()     {}
func (ConnectionEvent) event() {}
func (ClosedEvent) event()     {}
