package signaling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bz-harshitha-alikepalli/example-collab-ide/backend/internal/bus"
	"github.com/bz-harshitha-alikepalli/example-collab-ide/backend/internal/config"
	"github.com/bz-harshitha-alikepalli/example-collab-ide/backend/internal/room"
	"github.com/bz-harshitha-alikepalli/example-collab-ide/pkg/protocol"
)

func testConfig() *config.Config {
	return &config.Config{
		MaxMessageSize: config.DefaultMaxMessageSize,
		SendBuffer:     64,
		RateLimit:      config.DefaultRateLimit,
		RateBurst:      config.DefaultRateBurst,
	}
}

func newTestHub(cfg *config.Config) *Hub {
	b := bus.New()
	return NewHub(cfg, room.NewRegistry(b), b)
}

func connect(h *Hub, id string) *Client {
	c := newClient(id, h, nil, protocol.JSON)
	h.register(c)
	return c
}

// drain returns everything queued for c so far.
func drain(c *Client) []*protocol.Message {
	var out []*protocol.Message
	for {
		select {
		case msg := <-c.send:
			out = append(out, msg)
		default:
			return out
		}
	}
}

func ofType(msgs []*protocol.Message, eventType string) []*protocol.Message {
	var out []*protocol.Message
	for _, m := range msgs {
		if m.Type == eventType {
			out = append(out, m)
		}
	}
	return out
}

func requireError(t *testing.T, c *Client, code string) {
	t.Helper()
	errs := ofType(drain(c), protocol.EventError)
	require.Len(t, errs, 1)
	assert.Equal(t, code, errs[0].Error.Code)
}

func join(h *Hub, c *Client, roomID, name string) {
	h.Dispatch(c, &protocol.Message{
		Type:        protocol.EventJoinRoom,
		RoomID:      roomID,
		DisplayName: name,
		ClientType:  protocol.ClientTypeCLI,
	})
}

func registerPeer(h *Hub, c *Client, peerID string) {
	h.Dispatch(c, &protocol.Message{Type: protocol.EventJoinMedia, RoomID: c.RoomID(), PeerID: peerID})
}

func TestDispatchRefusals(t *testing.T) {
	h := newTestHub(testConfig())
	c := connect(h, "a")

	join(h, c, "lobby", "alice")
	requireError(t, c, protocol.CodeInvalidRoom)

	join(h, c, protocol.NewRoomID(), "")
	requireError(t, c, protocol.CodeMissingIdentity)
	assert.Empty(t, c.RoomID())

	h.Dispatch(c, &protocol.Message{Type: protocol.EventUpdateCode, Code: "x"})
	requireError(t, c, protocol.CodeNotInRoom)

	h.Dispatch(c, &protocol.Message{Type: "teleport"})
	requireError(t, c, protocol.CodeUnknownEvent)

	stats := h.Stats()
	assert.Zero(t, stats.Rooms)
	assert.Equal(t, int64(1), stats.Connections)
}

func TestAliceBobScenario(t *testing.T) {
	h := newTestHub(testConfig())
	roomID := protocol.NewRoomID()
	alice := connect(h, "a")
	bob := connect(h, "b")

	join(h, alice, roomID, "alice")
	aliceMsgs := drain(alice)
	require.Len(t, ofType(aliceMsgs, protocol.EventJoinedRoom), 1)
	assert.Equal(t, []string{"alice"}, ofType(aliceMsgs, protocol.EventClientList)[0].Users)

	join(h, bob, roomID, "bob")
	bobMsgs := drain(bob)
	snap := ofType(bobMsgs, protocol.EventJoinedRoom)
	require.Len(t, snap, 1)
	assert.Equal(t, []string{"alice", "bob"}, snap[0].Users)
	assert.Equal(t, "java", snap[0].Language)

	aliceMsgs = drain(alice)
	require.Len(t, ofType(aliceMsgs, protocol.EventMemberJoined), 1)
	assert.Equal(t, "bob", ofType(aliceMsgs, protocol.EventMemberJoined)[0].DisplayName)

	h.Dispatch(alice, &protocol.Message{Type: protocol.EventUpdateCode, RoomID: roomID, Code: "print(1)"})
	changes := ofType(drain(bob), protocol.EventCodeChange)
	require.Len(t, changes, 1)
	assert.Equal(t, "print(1)", changes[0].Code)
	assert.Empty(t, drain(alice))

	h.Dispatch(bob, &protocol.Message{Type: protocol.EventUpdateLanguage, RoomID: roomID, Language: "python"})
	langs := ofType(drain(alice), protocol.EventLanguageChange)
	require.Len(t, langs, 1)
	assert.Equal(t, "python", langs[0].Language)

	h.Dispatch(bob, &protocol.Message{Type: protocol.EventUpdateLanguage, RoomID: roomID, Language: "cobol"})
	requireError(t, bob, protocol.CodeUnsupportedLanguage)
	assert.Empty(t, drain(alice))

	h.Disconnect(bob)
	aliceMsgs = drain(alice)
	require.Len(t, ofType(aliceMsgs, protocol.EventMemberLeft), 1)
	assert.Equal(t, []string{"alice"}, ofType(aliceMsgs, protocol.EventClientList)[0].Users)

	snapshot, ok := h.registry.Snapshot(roomID)
	require.True(t, ok)
	assert.Equal(t, "print(1)", snapshot.Document.Text)
	assert.Equal(t, protocol.LanguagePython, snapshot.Document.Language)
}

func TestSupersedingJoinLeavesFirstRoom(t *testing.T) {
	h := newTestHub(testConfig())
	first, second := protocol.NewRoomID(), protocol.NewRoomID()
	alice := connect(h, "a")
	bob := connect(h, "b")

	join(h, bob, first, "bob")
	join(h, alice, first, "alice")
	drain(bob)

	join(h, alice, second, "alice")
	assert.Equal(t, second, alice.RoomID())

	bobMsgs := drain(bob)
	require.Len(t, ofType(bobMsgs, protocol.EventMemberLeft), 1)
	assert.Equal(t, []string{"bob"}, ofType(bobMsgs, protocol.EventClientList)[0].Users)

	stats := h.Stats()
	assert.Equal(t, 2, stats.Rooms)
	assert.Equal(t, 2, stats.Participants)
}

func TestRegisterPeerPublishesList(t *testing.T) {
	h := newTestHub(testConfig())
	roomID := protocol.NewRoomID()
	alice := connect(h, "a")
	bob := connect(h, "b")
	join(h, alice, roomID, "alice")
	join(h, bob, roomID, "bob")
	drain(alice)
	drain(bob)

	registerPeer(h, alice, "peer-a")
	lists := ofType(drain(bob), protocol.EventClientList)
	require.Len(t, lists, 1)
	assert.Equal(t, []string{"peer-a"}, lists[0].PeerIDs)

	registerPeer(h, bob, "peer-a")
	requireError(t, bob, protocol.CodeInvalidSignal)

	registerPeer(h, bob, "")
	requireError(t, bob, protocol.CodeInvalidSignal)
}

func TestSignalRelayTargetsOnePeer(t *testing.T) {
	h := newTestHub(testConfig())
	roomID := protocol.NewRoomID()
	alice := connect(h, "a")
	bob := connect(h, "b")
	carol := connect(h, "c")
	for _, p := range []struct {
		c    *Client
		name string
	}{{alice, "alice"}, {bob, "bob"}, {carol, "carol"}} {
		join(h, p.c, roomID, p.name)
		registerPeer(h, p.c, "peer-"+p.name)
	}
	drain(alice)
	drain(bob)
	drain(carol)

	h.Dispatch(alice, &protocol.Message{
		Type: protocol.EventSignal,
		Signal: &protocol.Signal{
			From: "peer-carol",
			To:   "peer-bob",
			Kind: protocol.SignalOffer,
			SDP:  "v=0",
		},
	})

	signals := ofType(drain(bob), protocol.EventSignal)
	require.Len(t, signals, 1)
	assert.Equal(t, "peer-alice", signals[0].Signal.From, "sender id is stamped by the server")
	assert.Equal(t, "v=0", signals[0].Signal.SDP)
	assert.Empty(t, drain(carol))
	assert.Empty(t, drain(alice))
	assert.Equal(t, uint64(1), h.Stats().SignalsRelayed)

	h.Dispatch(alice, &protocol.Message{
		Type:   protocol.EventSignal,
		Signal: &protocol.Signal{To: "peer-bob", Kind: "shout"},
	})
	requireError(t, alice, protocol.CodeInvalidSignal)

	// Unknown targets are ignored.
	h.Dispatch(alice, &protocol.Message{
		Type:   protocol.EventSignal,
		Signal: &protocol.Signal{To: "peer-zed", Kind: protocol.SignalHangup},
	})
	assert.Empty(t, drain(alice))
}

func TestSignalRequiresMembership(t *testing.T) {
	h := newTestHub(testConfig())
	roomID := protocol.NewRoomID()
	alice := connect(h, "a")
	outsider := connect(h, "x")
	join(h, alice, roomID, "alice")
	registerPeer(h, alice, "peer-a")
	drain(alice)

	h.Dispatch(outsider, &protocol.Message{
		Type:   protocol.EventSignal,
		RoomID: roomID,
		Signal: &protocol.Signal{To: "peer-a", Kind: protocol.SignalOffer},
	})
	requireError(t, outsider, protocol.CodeNotInRoom)
	assert.Empty(t, drain(alice))
}

func TestLeaveNotifiesPeerLeft(t *testing.T) {
	h := newTestHub(testConfig())
	roomID := protocol.NewRoomID()
	alice := connect(h, "a")
	bob := connect(h, "b")
	join(h, alice, roomID, "alice")
	join(h, bob, roomID, "bob")
	registerPeer(h, bob, "peer-b")
	drain(alice)

	h.Dispatch(bob, &protocol.Message{Type: protocol.EventLeaveRoom, RoomID: roomID, PeerID: "peer-b"})
	assert.Empty(t, bob.RoomID())

	peerLeft := ofType(drain(alice), protocol.EventPeerLeft)
	require.Len(t, peerLeft, 1)
	assert.Equal(t, "peer-b", peerLeft[0].PeerID)

	// A second leave and the later disconnect are no-ops.
	h.Dispatch(bob, &protocol.Message{Type: protocol.EventLeaveRoom, RoomID: roomID})
	h.Disconnect(bob)
	h.Disconnect(bob)
	assert.Empty(t, drain(alice))
	assert.Equal(t, int64(1), h.Stats().Connections)
}

func TestSlowConsumerIsClosed(t *testing.T) {
	cfg := testConfig()
	cfg.SendBuffer = 8
	h := newTestHub(cfg)
	roomID := protocol.NewRoomID()
	alice := connect(h, "a")
	slow := connect(h, "s")

	join(h, alice, roomID, "alice")
	join(h, slow, roomID, "slow")
	drain(alice)

	for i := 0; i < 10; i++ {
		h.Dispatch(alice, &protocol.Message{Type: protocol.EventUpdateCode, Code: "x"})
	}

	assert.Eventually(t, func() bool {
		select {
		case <-slow.done:
			return true
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
	assert.NotZero(t, h.Stats().Dropped)
	assert.Empty(t, ofType(drain(alice), protocol.EventError))
	assert.ErrorIs(t, slow.Send(&protocol.Message{}), errClientClosed)
}
