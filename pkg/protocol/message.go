package protocol

// Message is the single envelope exchanged over the room event channel in
// both directions. Only the fields relevant to Type are populated.
type Message struct {
	Type        string        `json:"type" msgpack:"type"`
	RoomID      string        `json:"roomId,omitempty" msgpack:"roomId,omitempty"`
	DisplayName string        `json:"displayName,omitempty" msgpack:"displayName,omitempty"`
	ClientType  string        `json:"clientType,omitempty" msgpack:"clientType,omitempty"`
	Code        string        `json:"code,omitempty" msgpack:"code,omitempty"`
	Language    string        `json:"language,omitempty" msgpack:"language,omitempty"`
	PeerID      string        `json:"peerMediaId,omitempty" msgpack:"peerMediaId,omitempty"`
	Users       []string      `json:"userslist,omitempty" msgpack:"userslist,omitempty"`
	PeerIDs     []string      `json:"peerIds,omitempty" msgpack:"peerIds,omitempty"`
	Signal      *Signal       `json:"signal,omitempty" msgpack:"signal,omitempty"`
	Error       *ErrorPayload `json:"error,omitempty" msgpack:"error,omitempty"`
}

// Event type constants. Client to server first, then server to client.
const (
	EventJoinRoom       = "join room"
	EventUpdateCode     = "update code"
	EventUpdateLanguage = "update language"
	EventJoinMedia      = "join-room"
	EventLeaveRoom      = "leave room"
	EventSignal         = "signal"

	EventJoinedRoom     = "joined room"
	EventClientList     = "updating client list"
	EventMemberJoined   = "new member joined"
	EventMemberLeft     = "member left"
	EventCodeChange     = "on code change"
	EventLanguageChange = "on language change"
	EventPeerLeft       = "peer left"
	EventError          = "error"
)

// Client types reported on join.
const (
	ClientTypeCLI = "cli"
	ClientTypeWeb = "web"
)

// Signal kinds relayed between peers.
const (
	SignalOffer     = "offer"
	SignalAnswer    = "answer"
	SignalCandidate = "candidate"
	SignalHangup    = "hangup"
)

// Signal carries connection-setup metadata between two peer media ids.
// Candidate holds a JSON encoded ICE candidate init.
type Signal struct {
	From      string `json:"from" msgpack:"from"`
	To        string `json:"to" msgpack:"to"`
	Kind      string `json:"kind" msgpack:"kind"`
	SDP       string `json:"sdp,omitempty" msgpack:"sdp,omitempty"`
	Candidate string `json:"candidate,omitempty" msgpack:"candidate,omitempty"`
}

// ErrorPayload is sent by the server when a request is refused.
type ErrorPayload struct {
	Code    string `json:"code" msgpack:"code"`
	Message string `json:"message" msgpack:"message"`
}

// NewError builds an error message for err. Unknown errors map to
// CodeInternal.
func NewError(err error) *Message {
	return &Message{
		Type: EventError,
		Error: &ErrorPayload{
			Code:    CodeOf(err),
			Message: err.Error(),
		},
	}
}
