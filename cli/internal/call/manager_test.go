package call

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bz-harshitha-alikepalli/example-collab-ide/pkg/protocol"
)

type fakeMedia struct {
	closed atomic.Bool
}

func (f *fakeMedia) Close() error {
	f.closed.Store(true)
	return nil
}

type fakeSource struct {
	calls atomic.Int32
	err   error
	delay time.Duration
	media *fakeMedia
}

func (s *fakeSource) Acquire(ctx context.Context) (LocalMedia, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	if s.media == nil {
		s.media = &fakeMedia{}
	}
	return s.media, nil
}

type fakeLink struct {
	local, remote string
	events        LinkEvents

	mu         sync.Mutex
	candidates []string
	answer     string
	closed     bool
}

func (l *fakeLink) Offer(ctx context.Context) (string, error) {
	l.events.OnCandidate("cand:" + l.local)
	return "offer:" + l.local, nil
}

func (l *fakeLink) Answer(ctx context.Context, offer string) (string, error) {
	l.events.OnCandidate("cand:" + l.local)
	l.events.OnConnected()
	return "answer:" + l.local, nil
}

func (l *fakeLink) SetAnswer(answer string) error {
	l.mu.Lock()
	l.answer = answer
	l.mu.Unlock()
	l.events.OnConnected()
	return nil
}

func (l *fakeLink) AddCandidate(candidate string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.candidates = append(l.candidates, candidate)
	return nil
}

func (l *fakeLink) BytesReceived() uint64 { return 42 }

func (l *fakeLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

func (l *fakeLink) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

type fakeFactory struct {
	local string

	mu    sync.Mutex
	links map[string][]*fakeLink
}

func (f *fakeFactory) NewLink(peerID string, media LocalMedia, events LinkEvents) (Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.links == nil {
		f.links = make(map[string][]*fakeLink)
	}
	l := &fakeLink{local: f.local, remote: peerID, events: events}
	f.links[peerID] = append(f.links[peerID], l)
	return l, nil
}

func (f *fakeFactory) linksTo(peerID string) []*fakeLink {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeLink(nil), f.links[peerID]...)
}

func (f *fakeFactory) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, l := range f.links {
		n += len(l)
	}
	return n
}

// mesh routes signals between managers like the relay does.
type mesh struct {
	mu       sync.Mutex
	managers map[string]*Manager
	signals  []*protocol.Signal
}

func (n *mesh) SendSignal(sig *protocol.Signal) error {
	n.mu.Lock()
	n.signals = append(n.signals, sig)
	target := n.managers[sig.To]
	n.mu.Unlock()

	if target != nil {
		target.HandleSignal(sig)
	}
	return nil
}

func (n *mesh) count(kind string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, s := range n.signals {
		if s.Kind == kind {
			c++
		}
	}
	return c
}

func (n *mesh) last(kind string) *protocol.Signal {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.signals) - 1; i >= 0; i-- {
		if n.signals[i].Kind == kind {
			return n.signals[i]
		}
	}
	return nil
}

type node struct {
	manager *Manager
	factory *fakeFactory
	source  *fakeSource
	infos   chan PeerInfo
}

func (n *mesh) add(t *testing.T, id string, source *fakeSource) *node {
	t.Helper()
	nd := &node{
		factory: &fakeFactory{local: id},
		source:  source,
		infos:   make(chan PeerInfo, 64),
	}
	nd.manager = NewManager(id, n, nd.factory, source, WithObserver(func(info PeerInfo) {
		select {
		case nd.infos <- info:
		default:
		}
	}))
	t.Cleanup(func() { nd.manager.Close() })

	n.mu.Lock()
	if n.managers == nil {
		n.managers = make(map[string]*Manager)
	}
	n.managers[id] = nd.manager
	n.mu.Unlock()
	return nd
}

func allConnected(m *Manager, want int) func() bool {
	return func() bool {
		peers := m.Peers()
		if len(peers) != want {
			return false
		}
		for _, p := range peers {
			if p.State != Connected {
				return false
			}
		}
		return true
	}
}

func TestShouldCall(t *testing.T) {
	assert.True(t, ShouldCall("a", "b"))
	assert.False(t, ShouldCall("b", "a"))
	assert.False(t, ShouldCall("a", "a"))
	assert.False(t, ShouldCall("", "b"))

	ids := []string{"p-1", "p-2", "p-10", "z", "A"}
	for _, x := range ids {
		for _, y := range ids {
			if x == y {
				continue
			}
			assert.NotEqual(t, ShouldCall(x, y), ShouldCall(y, x), "%s/%s", x, y)
			assert.Equal(t, ShouldCall(x, y), ShouldCall(x, y))
		}
	}
}

func TestFullMeshOneLinkPerPair(t *testing.T) {
	net := &mesh{}
	ids := []string{"a", "b", "c"}
	nodes := map[string]*node{}
	for _, id := range ids {
		nodes[id] = net.add(t, id, &fakeSource{})
	}

	for round := 0; round < 2; round++ {
		for _, id := range ids {
			nodes[id].manager.Reconcile(ids)
		}
	}

	for _, id := range ids {
		assert.Eventually(t, allConnected(nodes[id].manager, 2), 2*time.Second, 5*time.Millisecond, id)
	}

	assert.Equal(t, 3, net.count(protocol.SignalOffer), "one offer per pair")
	assert.Equal(t, 3, net.count(protocol.SignalAnswer))
	for _, id := range ids {
		assert.Equal(t, 2, nodes[id].factory.total(), "links created by %s", id)
	}

	// The callee got the caller's candidate even though it was gathered
	// before the offer went out.
	links := nodes["b"].factory.linksTo("a")
	require.Len(t, links, 1)
	assert.Eventually(t, func() bool {
		links[0].mu.Lock()
		defer links[0].mu.Unlock()
		return len(links[0].candidates) == 1 && links[0].candidates[0] == "cand:a"
	}, time.Second, 5*time.Millisecond)

	for _, p := range nodes["a"].manager.Peers() {
		assert.Equal(t, uint64(42), p.BytesReceived)
	}
}

func TestMediaFailureRejectsIncomingCall(t *testing.T) {
	net := &mesh{}
	a := net.add(t, "a", &fakeSource{})
	b := net.add(t, "b", &fakeSource{err: errors.New("no camera")})

	a.manager.Reconcile([]string{"a", "b"})

	assert.Eventually(t, func() bool { return net.count(protocol.SignalHangup) == 1 }, 2*time.Second, 5*time.Millisecond)
	hangup := net.last(protocol.SignalHangup)
	assert.Equal(t, "b", hangup.From)
	assert.Equal(t, "a", hangup.To)

	assert.Eventually(t, func() bool { return len(a.manager.Peers()) == 0 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, b.manager.Peers())

	var failure error
	for failure == nil {
		select {
		case info := <-b.infos:
			if info.State == Closed {
				failure = info.Err
			}
		case <-time.After(time.Second):
			t.Fatal("no closed notification")
		}
	}
	assert.ErrorIs(t, failure, ErrMediaAcquisitionFailed)

	links := a.factory.linksTo("b")
	require.Len(t, links, 1)
	assert.True(t, links[0].isClosed())
}

func TestCaptureIsShared(t *testing.T) {
	net := &mesh{}
	source := &fakeSource{delay: 20 * time.Millisecond}
	a := net.add(t, "a", source)

	a.manager.Reconcile([]string{"a", "b", "c", "d"})

	assert.Eventually(t, func() bool { return a.factory.total() == 3 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), source.calls.Load())

	// Later links reuse the capture.
	a.manager.Reconcile([]string{"a", "b", "c", "d", "e"})
	assert.Eventually(t, func() bool { return a.factory.total() == 4 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), source.calls.Load())
}

func TestCandidatesWaitForAnswer(t *testing.T) {
	net := &mesh{}
	a := net.add(t, "a", &fakeSource{})

	a.manager.Reconcile([]string{"a", "b"})
	assert.Eventually(t, func() bool { return net.count(protocol.SignalOffer) == 1 }, time.Second, 5*time.Millisecond)

	a.manager.HandleSignal(&protocol.Signal{From: "b", To: "a", Kind: protocol.SignalCandidate, Candidate: "c1"})
	links := a.factory.linksTo("b")
	require.Len(t, links, 1)
	assert.Empty(t, links[0].candidates)

	a.manager.HandleSignal(&protocol.Signal{From: "b", To: "a", Kind: protocol.SignalAnswer, SDP: "answer:b"})
	assert.Equal(t, "answer:b", links[0].answer)
	assert.Equal(t, []string{"c1"}, links[0].candidates)
	assert.True(t, allConnected(a.manager, 1)())

	a.manager.HandleSignal(&protocol.Signal{From: "b", To: "a", Kind: protocol.SignalCandidate, Candidate: "c2"})
	assert.Equal(t, []string{"c1", "c2"}, links[0].candidates)

	// Signals for someone else are ignored.
	a.manager.HandleSignal(&protocol.Signal{From: "b", To: "z", Kind: protocol.SignalHangup})
	assert.Len(t, a.manager.Peers(), 1)
}

func TestOfferFromCalleeIsIgnored(t *testing.T) {
	net := &mesh{}
	a := net.add(t, "a", &fakeSource{})

	a.manager.Reconcile([]string{"a", "b"})
	assert.Eventually(t, func() bool { return a.factory.total() == 1 }, time.Second, 5*time.Millisecond)

	a.manager.HandleSignal(&protocol.Signal{From: "b", To: "a", Kind: protocol.SignalOffer, SDP: "offer:b"})
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, 1, a.factory.total())
	peers := a.manager.Peers()
	require.Len(t, peers, 1)
	assert.Equal(t, Calling, peers[0].State)
}

func TestLinksCloseWhenPeersGo(t *testing.T) {
	net := &mesh{}
	a := net.add(t, "a", &fakeSource{})
	b := net.add(t, "b", &fakeSource{})
	c := net.add(t, "c", &fakeSource{})
	ids := []string{"a", "b", "c"}
	for _, n := range []*node{a, b, c} {
		n.manager.Reconcile(ids)
	}
	require.Eventually(t, allConnected(a.manager, 2), 2*time.Second, 5*time.Millisecond)

	// peer left
	a.manager.PeerLeft("c")
	assert.True(t, a.factory.linksTo("c")[0].isClosed())

	// dropped from the client list
	a.manager.Reconcile([]string{"a"})
	assert.Empty(t, a.manager.Peers())
	assert.True(t, a.factory.linksTo("b")[0].isClosed())

	// remote hangup
	require.Eventually(t, func() bool { return len(b.manager.Peers()) == 2 }, time.Second, 5*time.Millisecond)
	b.manager.HandleSignal(&protocol.Signal{From: "c", To: "b", Kind: protocol.SignalHangup})
	assert.True(t, b.factory.linksTo("c")[0].isClosed())
}

func TestCloseReleasesMedia(t *testing.T) {
	net := &mesh{}
	source := &fakeSource{}
	a := net.add(t, "a", source)
	net.add(t, "b", &fakeSource{})

	a.manager.Reconcile([]string{"a", "b"})
	require.Eventually(t, allConnected(a.manager, 1), 2*time.Second, 5*time.Millisecond)

	require.NoError(t, a.manager.Close())
	require.NoError(t, a.manager.Close())
	assert.True(t, source.media.closed.Load())
	assert.Empty(t, a.manager.Peers())

	a.manager.Reconcile([]string{"a", "c"})
	a.manager.HandleSignal(&protocol.Signal{From: "c", To: "a", Kind: protocol.SignalOffer})
	assert.Empty(t, a.manager.Peers())
}
