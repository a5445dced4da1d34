package call

// State is the lifecycle of one peer link.
type State int

const (
	Unconnected State = iota
	Calling
	Receiving
	Connected
	Closed
)

func (s State) String() string {
	switch s {
	case Unconnected:
		return "unconnected"
	case Calling:
		return "calling"
	case Receiving:
		return "receiving"
	case Connected:
		return "connected"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// ShouldCall decides which side of a pair places the call: the peer with
// the lexicographically smaller id. Both sides evaluate it to the same
// answer, so a pair never opens two links.
func ShouldCall(localID, remoteID string) bool {
	return localID != "" && remoteID != "" && localID < remoteID
}

// PeerInfo describes one link for display.
type PeerInfo struct {
	PeerID        string
	State         State
	BytesReceived uint64
	Err           error
}
