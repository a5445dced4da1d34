package webrtc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	pion "github.com/pion/webrtc/v4"
	"go.uber.org/atomic"

	"github.com/bz-harshitha-alikepalli/example-collab-ide/cli/internal/call"
	"github.com/bz-harshitha-alikepalli/example-collab-ide/cli/internal/config"
)

var ErrConnectionFailed = errors.New("peer connection failed")

// NewPeerConnection builds a pion peer connection with the configured
// STUN and TURN servers, forcing relay when direct paths are unlikely.
func NewPeerConnection(cfg *config.Config) (*pion.PeerConnection, error) {
	var iceServers []pion.ICEServer
	if stunServers := cfg.GetSTUNServers(); stunServers != nil {
		iceServers = append(iceServers, pion.ICEServer{URLs: stunServers})
	}

	turnServers := cfg.GetTURNServers()
	if turnServers != nil {
		username, password := cfg.GetTURNCredentials()
		iceServers = append(iceServers, pion.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}

	policy := pion.ICETransportPolicyAll
	if turnServers != nil && (cfg.ForceRelay || ShouldForceRelay()) {
		policy = pion.ICETransportPolicyRelay
	}

	pc, err := pion.NewPeerConnection(pion.Configuration{
		ICEServers:         iceServers,
		ICETransportPolicy: policy,
	})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}
	return pc, nil
}

// LinkFactory creates pion backed links.
type LinkFactory struct {
	cfg *config.Config
}

// NewLinkFactory returns a factory using cfg for ICE configuration.
func NewLinkFactory(cfg *config.Config) *LinkFactory {
	return &LinkFactory{cfg: cfg}
}

// NewLink creates a peer connection for peerID with media attached. Kinds
// without a local track are negotiated receive-only so remote media still
// arrives.
func (f *LinkFactory) NewLink(peerID string, media call.LocalMedia, events call.LinkEvents) (call.Link, error) {
	pc, err := NewPeerConnection(f.cfg)
	if err != nil {
		return nil, err
	}

	l := &MediaLink{peerID: peerID, pc: pc, events: events}

	sending := map[pion.RTPCodecType]bool{}
	if m, ok := media.(*Media); ok && m != nil {
		for _, track := range m.Tracks() {
			sender, err := pc.AddTrack(track)
			if err != nil {
				pc.Close()
				return nil, fmt.Errorf("add %s track: %w", track.Kind(), err)
			}
			sending[track.Kind()] = true
			go drainRTCP(sender)
		}
	}
	for _, kind := range []pion.RTPCodecType{pion.RTPCodecTypeAudio, pion.RTPCodecTypeVideo} {
		if sending[kind] {
			continue
		}
		_, err := pc.AddTransceiverFromKind(kind, pion.RTPTransceiverInit{
			Direction: pion.RTPTransceiverDirectionRecvonly,
		})
		if err != nil {
			pc.Close()
			return nil, fmt.Errorf("add %s transceiver: %w", kind, err)
		}
	}

	pc.OnICECandidate(func(c *pion.ICECandidate) {
		if c == nil {
			return
		}
		data, err := json.Marshal(c.ToJSON())
		if err != nil {
			slog.Warn("failed to encode candidate", "peer", peerID, "error", err)
			return
		}
		events.OnCandidate(string(data))
	})

	pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		slog.Debug("peer connection state", "peer", peerID, "state", state.String())
		switch state {
		case pion.PeerConnectionStateConnected:
			events.OnConnected()
		case pion.PeerConnectionStateFailed:
			events.OnFailed(ErrConnectionFailed)
		}
	})

	pc.OnTrack(func(track *pion.TrackRemote, _ *pion.RTPReceiver) {
		slog.Info("remote track", "peer", peerID, "kind", track.Kind().String(), "codec", track.Codec().MimeType)
		go l.consume(track)
	})

	return l, nil
}

// MediaLink is a call.Link over a pion peer connection. Remote tracks are
// drained and counted; the terminal has nowhere to render them.
type MediaLink struct {
	peerID string
	pc     *pion.PeerConnection
	events call.LinkEvents

	received  atomic.Uint64
	closeOnce sync.Once
}

// Offer creates and applies the local offer.
func (l *MediaLink) Offer(ctx context.Context) (string, error) {
	offer, err := l.pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("create offer: %w", err)
	}
	if err := l.pc.SetLocalDescription(offer); err != nil {
		return "", fmt.Errorf("set local description: %w", err)
	}
	return l.pc.LocalDescription().SDP, ctx.Err()
}

// Answer applies the remote offer and returns the local answer.
func (l *MediaLink) Answer(ctx context.Context, offer string) (string, error) {
	err := l.pc.SetRemoteDescription(pion.SessionDescription{Type: pion.SDPTypeOffer, SDP: offer})
	if err != nil {
		return "", fmt.Errorf("set remote description: %w", err)
	}

	answer, err := l.pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("create answer: %w", err)
	}
	if err := l.pc.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("set local description: %w", err)
	}
	return l.pc.LocalDescription().SDP, ctx.Err()
}

// SetAnswer applies the remote answer.
func (l *MediaLink) SetAnswer(answer string) error {
	err := l.pc.SetRemoteDescription(pion.SessionDescription{Type: pion.SDPTypeAnswer, SDP: answer})
	if err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	return nil
}

// AddCandidate adds a JSON encoded remote ICE candidate.
func (l *MediaLink) AddCandidate(candidate string) error {
	var ice pion.ICECandidateInit
	if err := json.Unmarshal([]byte(candidate), &ice); err != nil {
		return fmt.Errorf("parse ICE candidate: %w", err)
	}
	if err := l.pc.AddICECandidate(ice); err != nil {
		return fmt.Errorf("add ICE candidate: %w", err)
	}
	return nil
}

// BytesReceived is the total RTP payload read from remote tracks.
func (l *MediaLink) BytesReceived() uint64 {
	return l.received.Load()
}

// Close tears down the peer connection once.
func (l *MediaLink) Close() error {
	var err error
	l.closeOnce.Do(func() {
		err = l.pc.Close()
	})
	return err
}

func (l *MediaLink) consume(track *pion.TrackRemote) {
	buf := make([]byte, 1500)
	for {
		n, _, err := track.Read(buf)
		if err != nil {
			return
		}
		l.received.Add(uint64(n))
	}
}

// drainRTCP reads RTCP so interceptors such as NACK keep working.
func drainRTCP(sender *pion.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}
