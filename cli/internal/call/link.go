package call

import (
	"context"
	"errors"

	"github.com/bz-harshitha-alikepalli/example-collab-ide/pkg/protocol"
)

var (
	ErrMediaAcquisitionFailed = errors.New("media acquisition failed")
	ErrLinkFailed             = errors.New("peer link failed")
	ErrRemoteHangup           = errors.New("remote hung up")
)

// Signaler delivers connection-setup data to another peer through the
// signaling server.
type Signaler interface {
	SendSignal(sig *protocol.Signal) error
}

// LocalMedia is a captured set of local tracks shared by every link.
type LocalMedia interface {
	Close() error
}

// MediaSource captures local media. Acquire may be slow and is always
// called off the event path.
type MediaSource interface {
	Acquire(ctx context.Context) (LocalMedia, error)
}

// LinkEvents are the callbacks a Link fires from its own goroutines.
type LinkEvents struct {
	OnCandidate func(candidate string)
	OnConnected func()
	OnFailed    func(err error)
}

// Link is one media connection to a remote peer.
type Link interface {
	// Offer creates and applies the local offer.
	Offer(ctx context.Context) (string, error)
	// Answer applies a remote offer and returns the local answer.
	Answer(ctx context.Context, offer string) (string, error)
	// SetAnswer applies the remote answer to a previously sent offer.
	SetAnswer(answer string) error
	AddCandidate(candidate string) error
	BytesReceived() uint64
	Close() error
}

// LinkFactory builds links with the local media attached.
type LinkFactory interface {
	NewLink(peerID string, media LocalMedia, events LinkEvents) (Link, error)
}
