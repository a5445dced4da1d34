package signaling

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bz-harshitha-alikepalli/example-collab-ide/pkg/protocol"
)

// echoServer answers every message with a "joined room" carrying the same
// room id, then hangs up once it sees "leave room".
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		codec, err := protocol.SelectCodec(r.URL.Query().Get("codec"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			frameType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg protocol.Message
			if err := codec.Decode(data, &msg); err != nil {
				return
			}
			if msg.Type == protocol.EventLeaveRoom {
				return
			}
			reply, _ := codec.Encode(&protocol.Message{Type: protocol.EventJoinedRoom, RoomID: msg.RoomID})
			if err := conn.WriteMessage(frameType, reply); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server, codec string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?codec=" + codec
}

func receive(t *testing.T, c *Client) *protocol.Message {
	t.Helper()
	select {
	case msg, ok := <-c.Incoming():
		require.True(t, ok, "incoming closed")
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestClientRoundTrip(t *testing.T) {
	srv := echoServer(t)

	for _, codec := range []string{protocol.CodecJSON, protocol.CodecMsgpack} {
		t.Run(codec, func(t *testing.T) {
			c, err := Dial(context.Background(), wsURL(srv, codec))
			require.NoError(t, err)
			defer c.Close()

			require.NoError(t, c.Send(&protocol.Message{Type: protocol.EventJoinRoom, RoomID: "r1"}))
			msg := receive(t, c)
			assert.Equal(t, protocol.EventJoinedRoom, msg.Type)
			assert.Equal(t, "r1", msg.RoomID)
		})
	}
}

func TestClientRemoteClose(t *testing.T) {
	srv := echoServer(t)
	c, err := Dial(context.Background(), wsURL(srv, protocol.CodecJSON))
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Send(&protocol.Message{Type: protocol.EventLeaveRoom}))

	select {
	case _, ok := <-c.Incoming():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("incoming was not closed")
	}
	assert.Error(t, c.Err())
	assert.ErrorIs(t, c.Send(&protocol.Message{}), ErrClosed)
}

func TestClientLocalClose(t *testing.T) {
	srv := echoServer(t)
	c, err := Dial(context.Background(), wsURL(srv, protocol.CodecMsgpack))
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-c.Incoming():
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
	assert.NoError(t, c.Err())
	assert.ErrorIs(t, c.Send(&protocol.Message{}), ErrClosed)
}

func TestDialRejectsUnknownCodec(t *testing.T) {
	_, err := Dial(context.Background(), "ws://127.0.0.1:1/ws?codec=xml")
	assert.Error(t, err)
}
