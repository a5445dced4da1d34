package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bz-harshitha-alikepalli/example-collab-ide/backend/internal/bus"
	"github.com/bz-harshitha-alikepalli/example-collab-ide/backend/internal/config"
	"github.com/bz-harshitha-alikepalli/example-collab-ide/backend/internal/room"
	"github.com/bz-harshitha-alikepalli/example-collab-ide/backend/internal/signaling"
	"github.com/bz-harshitha-alikepalli/example-collab-ide/pkg/protocol"
)

func newTestServer(t *testing.T) (*httptest.Server, *signaling.Hub) {
	t.Helper()
	cfg := &config.Config{
		Port:           "0",
		MaxMessageSize: config.DefaultMaxMessageSize,
		SendBuffer:     config.DefaultSendBuffer,
		RateLimit:      config.DefaultRateLimit,
		RateBurst:      config.DefaultRateBurst,
	}
	b := bus.New()
	hub := signaling.NewHub(cfg, room.NewRegistry(b), b)
	srv := New(cfg, hub, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		hub.CloseAll()
		ts.Close()
	})
	return ts, hub
}

type wsPeer struct {
	t     *testing.T
	conn  *websocket.Conn
	codec protocol.Codec
}

func dial(t *testing.T, ts *httptest.Server, codec protocol.Codec) *wsPeer {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?codec=" + codec.Name()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &wsPeer{t: t, conn: conn, codec: codec}
}

func (p *wsPeer) send(msg *protocol.Message) {
	p.t.Helper()
	data, err := p.codec.Encode(msg)
	require.NoError(p.t, err)

	frameType := websocket.TextMessage
	if p.codec.Binary() {
		frameType = websocket.BinaryMessage
	}
	require.NoError(p.t, p.conn.WriteMessage(frameType, data))
}

// await reads until a message of eventType arrives.
func (p *wsPeer) await(eventType string) *protocol.Message {
	p.t.Helper()
	p.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, data, err := p.conn.ReadMessage()
		require.NoError(p.t, err, "waiting for %q", eventType)

		var msg protocol.Message
		require.NoError(p.t, p.codec.Decode(data, &msg))
		if msg.Type == eventType {
			return &msg
		}
	}
}

func TestHealthAndRooms(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/api/rooms", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created CreateRoomResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.NoError(t, protocol.ValidateRoomID(created.RoomID))
}

func TestUnknownCodecIsRejected(t *testing.T) {
	ts, _ := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?codec=xml"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCollaborationEndToEnd(t *testing.T) {
	ts, hub := newTestServer(t)
	roomID := protocol.NewRoomID()

	// The CLI speaks msgpack, the browser JSON; both share one room.
	alice := dial(t, ts, protocol.Msgpack)
	bob := dial(t, ts, protocol.JSON)

	alice.send(&protocol.Message{Type: protocol.EventJoinRoom, RoomID: roomID, DisplayName: "alice", ClientType: protocol.ClientTypeCLI})
	snap := alice.await(protocol.EventJoinedRoom)
	assert.Equal(t, []string{"alice"}, snap.Users)
	assert.Equal(t, "java", snap.Language)

	bob.send(&protocol.Message{Type: protocol.EventJoinRoom, RoomID: roomID, DisplayName: "bob", ClientType: protocol.ClientTypeWeb})
	snap = bob.await(protocol.EventJoinedRoom)
	assert.Equal(t, []string{"alice", "bob"}, snap.Users)

	joined := alice.await(protocol.EventMemberJoined)
	assert.Equal(t, "bob", joined.DisplayName)
	list := alice.await(protocol.EventClientList)
	assert.Equal(t, []string{"alice", "bob"}, list.Users)

	alice.send(&protocol.Message{Type: protocol.EventUpdateCode, RoomID: roomID, Code: "print(1)"})
	change := bob.await(protocol.EventCodeChange)
	assert.Equal(t, "print(1)", change.Code)

	bob.send(&protocol.Message{Type: protocol.EventUpdateLanguage, RoomID: roomID, Language: "python"})
	lang := alice.await(protocol.EventLanguageChange)
	assert.Equal(t, "python", lang.Language)

	// Media signaling between the two registered peers.
	alice.send(&protocol.Message{Type: protocol.EventJoinMedia, RoomID: roomID, PeerID: "peer-alice"})
	assert.Equal(t, []string{"peer-alice"}, bob.await(protocol.EventClientList).PeerIDs)
	assert.Equal(t, []string{"peer-alice"}, alice.await(protocol.EventClientList).PeerIDs)
	bob.send(&protocol.Message{Type: protocol.EventJoinMedia, RoomID: roomID, PeerID: "peer-bob"})
	assert.Equal(t, []string{"peer-alice", "peer-bob"}, alice.await(protocol.EventClientList).PeerIDs)

	alice.send(&protocol.Message{
		Type:   protocol.EventSignal,
		RoomID: roomID,
		Signal: &protocol.Signal{To: "peer-bob", Kind: protocol.SignalOffer, SDP: "v=0"},
	})
	offer := bob.await(protocol.EventSignal)
	require.NotNil(t, offer.Signal)
	assert.Equal(t, "peer-alice", offer.Signal.From)
	assert.Equal(t, protocol.SignalOffer, offer.Signal.Kind)

	// Closing bob's socket is an implicit leave.
	bob.conn.Close()
	left := alice.await(protocol.EventMemberLeft)
	assert.Equal(t, "bob", left.DisplayName)
	peerLeft := alice.await(protocol.EventPeerLeft)
	assert.Equal(t, "peer-bob", peerLeft.PeerID)

	assert.Eventually(t, func() bool {
		return hub.Stats().Participants == 1
	}, 2*time.Second, 20*time.Millisecond)

	resp, err := http.Get(ts.URL + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	var stats signaling.Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 1, stats.Rooms)
	assert.Equal(t, uint64(1), stats.SignalsRelayed)
}
