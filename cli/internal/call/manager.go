package call

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/bz-harshitha-alikepalli/example-collab-ide/pkg/protocol"
)

type peer struct {
	id    string
	state State
	link  Link

	// pending holds remote candidates that arrived before the remote
	// description was applied.
	pending   []string
	remoteSet bool

	// outbox holds local candidates gathered before our offer or answer
	// went out, so the remote never sees a candidate for an unknown call.
	outbox    []string
	described bool

	ctx    context.Context
	cancel context.CancelFunc
}

// Manager keeps one link per remote peer in a full mesh. Presence and
// signal handling never block on media capture or SDP work; those run on
// per-peer goroutines that are cancelled when the peer closes.
type Manager struct {
	localID  string
	signaler Signaler
	factory  LinkFactory
	source   MediaSource
	observer func(PeerInfo)

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	peers  map[string]*peer
	media  LocalMedia
	closed bool

	capture singleflight.Group
	wg      sync.WaitGroup
}

// Option configures a Manager.
type Option func(*Manager)

// WithObserver registers fn for state changes. It is called without locks
// held, possibly from several goroutines.
func WithObserver(fn func(PeerInfo)) Option {
	return func(m *Manager) { m.observer = fn }
}

// NewManager creates a manager for the local peer id.
func NewManager(localID string, signaler Signaler, factory LinkFactory, source MediaSource, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		localID:  localID,
		signaler: signaler,
		factory:  factory,
		source:   source,
		ctx:      ctx,
		cancel:   cancel,
		peers:    make(map[string]*peer),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// LocalID returns the local peer id.
func (m *Manager) LocalID() string {
	return m.localID
}

// Reconcile brings the link set in line with the room's peer ids: new
// peers this side should call are called, links to peers that are gone
// are closed. Running it twice with the same list changes nothing.
func (m *Manager) Reconcile(peerIDs []string) {
	present := make(map[string]bool, len(peerIDs))
	var added, gone []*peer

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	for _, id := range peerIDs {
		if id == m.localID || id == "" {
			continue
		}
		present[id] = true
		if _, ok := m.peers[id]; ok {
			continue
		}
		if ShouldCall(m.localID, id) {
			p := m.addPeerLocked(id, Calling)
			added = append(added, p)
			m.spawn(func() { m.call(p) })
		}
	}
	for id, p := range m.peers {
		if !present[id] {
			gone = append(gone, p)
		}
	}
	m.mu.Unlock()

	for _, p := range added {
		m.notify(PeerInfo{PeerID: p.id, State: Calling})
	}
	for _, p := range gone {
		m.closePeer(p, nil, false)
	}
}

// HandleSignal applies a signal addressed to the local peer.
func (m *Manager) HandleSignal(sig *protocol.Signal) {
	if sig == nil || sig.To != m.localID || sig.From == "" || sig.From == m.localID {
		return
	}

	switch sig.Kind {
	case protocol.SignalOffer:
		m.handleOffer(sig)
	case protocol.SignalAnswer:
		m.handleAnswer(sig)
	case protocol.SignalCandidate:
		m.handleCandidate(sig)
	case protocol.SignalHangup:
		if p := m.lookup(sig.From); p != nil {
			m.closePeer(p, ErrRemoteHangup, false)
		}
	default:
		slog.Debug("ignoring signal", "peer", sig.From, "kind", sig.Kind)
	}
}

func (m *Manager) handleOffer(sig *protocol.Signal) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	old := m.peers[sig.From]
	if old != nil && ShouldCall(m.localID, sig.From) {
		// Our own call wins; the remote will get our offer.
		m.mu.Unlock()
		slog.Debug("ignoring offer from callee", "peer", sig.From)
		return
	}
	if old != nil {
		delete(m.peers, sig.From)
	}
	p := m.addPeerLocked(sig.From, Receiving)
	m.spawn(func() { m.answer(p, sig.SDP) })
	m.mu.Unlock()

	if old != nil {
		m.closePeer(old, nil, false)
	}
	m.notify(PeerInfo{PeerID: p.id, State: Receiving})
}

func (m *Manager) handleAnswer(sig *protocol.Signal) {
	m.mu.Lock()
	p := m.peers[sig.From]
	if p == nil || p.state != Calling || p.link == nil || p.remoteSet {
		m.mu.Unlock()
		slog.Debug("unexpected answer", "peer", sig.From)
		return
	}
	link := p.link
	m.mu.Unlock()

	if err := link.SetAnswer(sig.SDP); err != nil {
		m.closePeer(p, fmt.Errorf("%w: %v", ErrLinkFailed, err), true)
		return
	}
	m.flushCandidates(p)
}

func (m *Manager) handleCandidate(sig *protocol.Signal) {
	m.mu.Lock()
	p := m.peers[sig.From]
	if p == nil {
		m.mu.Unlock()
		return
	}
	if p.link == nil || !p.remoteSet {
		p.pending = append(p.pending, sig.Candidate)
		m.mu.Unlock()
		return
	}
	link := p.link
	m.mu.Unlock()

	if err := link.AddCandidate(sig.Candidate); err != nil {
		slog.Warn("failed to add candidate", "peer", p.id, "error", err)
	}
}

// flushCandidates marks the remote description applied and adds the
// candidates that were waiting for it.
func (m *Manager) flushCandidates(p *peer) {
	m.mu.Lock()
	p.remoteSet = true
	pending := p.pending
	p.pending = nil
	link := p.link
	m.mu.Unlock()

	for _, c := range pending {
		if err := link.AddCandidate(c); err != nil {
			slog.Warn("failed to add candidate", "peer", p.id, "error", err)
		}
	}
}

// PeerLeft closes the link to a departed peer.
func (m *Manager) PeerLeft(peerID string) {
	if p := m.lookup(peerID); p != nil {
		m.closePeer(p, nil, false)
	}
}

// CloseAll closes every link but keeps captured media for the next
// membership. Used when the transport drops.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	peers := make([]*peer, 0, len(m.peers))
	for _, p := range m.peers {
		peers = append(peers, p)
	}
	m.mu.Unlock()

	for _, p := range peers {
		m.closePeer(p, nil, false)
	}
}

// Close releases every link and the local media. Safe to call twice.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.CloseAll()
	m.cancel()
	m.wg.Wait()

	m.mu.Lock()
	media := m.media
	m.media = nil
	m.mu.Unlock()

	if media != nil {
		return media.Close()
	}
	return nil
}

// Peers lists current links ordered by peer id.
func (m *Manager) Peers() []PeerInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]PeerInfo, 0, len(m.peers))
	for _, p := range m.peers {
		info := PeerInfo{PeerID: p.id, State: p.state}
		if p.link != nil {
			info.BytesReceived = p.link.BytesReceived()
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeerID < out[j].PeerID })
	return out
}

func (m *Manager) addPeerLocked(id string, state State) *peer {
	ctx, cancel := context.WithCancel(m.ctx)
	p := &peer{id: id, state: state, ctx: ctx, cancel: cancel}
	m.peers[id] = p
	return p
}

func (m *Manager) lookup(id string) *peer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peers[id]
}

func (m *Manager) spawn(fn func()) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		fn()
	}()
}

// call places an outgoing call: capture, link, offer.
func (m *Manager) call(p *peer) {
	link, err := m.prepare(p)
	if err != nil {
		m.setupFailed(p, err, false)
		return
	}

	offer, err := link.Offer(p.ctx)
	if err != nil {
		m.setupFailed(p, fmt.Errorf("%w: %v", ErrLinkFailed, err), false)
		return
	}
	m.signal(p, protocol.SignalOffer, offer, "")
	m.sendOutbox(p)
}

// answer accepts an incoming call. A capture failure rejects the leg with
// a hangup.
func (m *Manager) answer(p *peer, offer string) {
	link, err := m.prepare(p)
	if err != nil {
		m.setupFailed(p, err, true)
		return
	}

	answer, err := link.Answer(p.ctx, offer)
	if err != nil {
		m.setupFailed(p, fmt.Errorf("%w: %v", ErrLinkFailed, err), true)
		return
	}
	m.flushCandidates(p)
	m.signal(p, protocol.SignalAnswer, answer, "")
	m.sendOutbox(p)
}

func (m *Manager) sendOutbox(p *peer) {
	m.mu.Lock()
	p.described = true
	out := p.outbox
	p.outbox = nil
	m.mu.Unlock()

	for _, c := range out {
		m.signal(p, protocol.SignalCandidate, "", c)
	}
}

// prepare acquires media and builds the link for p.
func (m *Manager) prepare(p *peer) (Link, error) {
	media, err := m.acquire(p.ctx)
	if err != nil {
		return nil, err
	}

	link, err := m.factory.NewLink(p.id, media, m.linkEvents(p))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLinkFailed, err)
	}

	m.mu.Lock()
	if p.state == Closed {
		m.mu.Unlock()
		link.Close()
		return nil, context.Canceled
	}
	p.link = link
	m.mu.Unlock()
	return link, nil
}

// acquire returns the shared local media, capturing it once for all
// concurrent callers. A failed capture is retried by the next link.
func (m *Manager) acquire(ctx context.Context) (LocalMedia, error) {
	m.mu.Lock()
	media := m.media
	m.mu.Unlock()
	if media != nil {
		return media, nil
	}

	ch := m.capture.DoChan("media", func() (any, error) {
		media, err := m.source.Acquire(m.ctx)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.media = media
		m.mu.Unlock()
		return media, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			if errors.Is(res.Err, context.Canceled) {
				return nil, res.Err
			}
			return nil, fmt.Errorf("%w: %v", ErrMediaAcquisitionFailed, res.Err)
		}
		return res.Val.(LocalMedia), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Manager) setupFailed(p *peer, err error, hangup bool) {
	if errors.Is(err, context.Canceled) {
		// closed while setting up
		return
	}
	slog.Warn("call setup failed", "peer", p.id, "error", err)
	m.closePeer(p, err, hangup)
}

func (m *Manager) linkEvents(p *peer) LinkEvents {
	return LinkEvents{
		OnCandidate: func(candidate string) {
			m.mu.Lock()
			if !p.described {
				p.outbox = append(p.outbox, candidate)
				m.mu.Unlock()
				return
			}
			m.mu.Unlock()
			m.signal(p, protocol.SignalCandidate, "", candidate)
		},
		OnConnected: func() {
			m.mu.Lock()
			if p.state != Calling && p.state != Receiving {
				m.mu.Unlock()
				return
			}
			p.state = Connected
			m.mu.Unlock()

			slog.Info("peer connected", "peer", p.id)
			m.notify(PeerInfo{PeerID: p.id, State: Connected})
		},
		OnFailed: func(err error) {
			m.closePeer(p, fmt.Errorf("%w: %v", ErrLinkFailed, err), false)
		},
	}
}

// signal sends to p unless it closed meanwhile.
func (m *Manager) signal(p *peer, kind, sdp, candidate string) {
	m.mu.Lock()
	closed := p.state == Closed
	m.mu.Unlock()
	if closed {
		return
	}

	err := m.signaler.SendSignal(&protocol.Signal{
		From:      m.localID,
		To:        p.id,
		Kind:      kind,
		SDP:       sdp,
		Candidate: candidate,
	})
	if err != nil {
		slog.Warn("failed to send signal", "peer", p.id, "kind", kind, "error", err)
	}
}

// closePeer moves p to Closed exactly once and releases its link.
func (m *Manager) closePeer(p *peer, err error, hangup bool) {
	m.mu.Lock()
	if p.state == Closed {
		m.mu.Unlock()
		return
	}
	p.state = Closed
	if m.peers[p.id] == p {
		delete(m.peers, p.id)
	}
	link := p.link
	m.mu.Unlock()

	p.cancel()
	if link != nil {
		if cerr := link.Close(); cerr != nil {
			slog.Debug("closing link", "peer", p.id, "error", cerr)
		}
	}
	if hangup {
		err := m.signaler.SendSignal(&protocol.Signal{From: m.localID, To: p.id, Kind: protocol.SignalHangup})
		if err != nil {
			slog.Debug("failed to send hangup", "peer", p.id, "error", err)
		}
	}

	slog.Info("peer closed", "peer", p.id, "error", err)
	m.notify(PeerInfo{PeerID: p.id, State: Closed, Err: err})
}

func (m *Manager) notify(info PeerInfo) {
	if m.observer != nil {
		m.observer(info)
	}
}
