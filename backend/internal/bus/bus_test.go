package bus

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bz-harshitha-alikepalli/example-collab-ide/pkg/protocol"
)

type mockConn struct {
	id       string
	received []*protocol.Message
	closed   bool
	sendErr  error
	mu       sync.Mutex
}

func (m *mockConn) ID() string { return m.id }

func (m *mockConn) Send(msg *protocol.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.received = append(m.received, msg)
	return nil
}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockConn) codes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.received))
	for _, msg := range m.received {
		out = append(out, msg.Code)
	}
	return out
}

func TestBus_Publish(t *testing.T) {
	tests := []struct {
		name         string
		exclude      string
		wantReceived map[string]int
		wantCount    int
	}{
		{
			name:         "excludes originator",
			exclude:      "a",
			wantReceived: map[string]int{"a": 0, "b": 1, "c": 1, "other": 0},
			wantCount:    2,
		},
		{
			name:         "no exclusion",
			exclude:      "",
			wantReceived: map[string]int{"a": 1, "b": 1, "c": 1, "other": 0},
			wantCount:    3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New()
			conns := map[string]*mockConn{
				"a":     {id: "a"},
				"b":     {id: "b"},
				"c":     {id: "c"},
				"other": {id: "other"},
			}
			for id, c := range conns {
				room := "room1"
				if id == "other" {
					room = "room2"
				}
				b.Subscribe(room, c)
			}

			n := b.Publish("room1", &protocol.Message{Type: protocol.EventCodeChange, Code: "x"}, tt.exclude)
			assert.Equal(t, tt.wantCount, n)

			for id, want := range tt.wantReceived {
				assert.Len(t, conns[id].codes(), want, id)
			}
		})
	}
}

func TestBus_PublishPreservesOrder(t *testing.T) {
	b := New()
	c := &mockConn{id: "c"}
	b.Subscribe("room", c)

	for _, code := range []string{"1", "2", "3", "4"} {
		b.Publish("room", &protocol.Message{Type: protocol.EventCodeChange, Code: code}, "")
	}

	assert.Equal(t, []string{"1", "2", "3", "4"}, c.codes())
}

func TestBus_DropsFailingConnection(t *testing.T) {
	b := New()
	dropped := make(chan string, 1)
	b.OnDrop(func(c Conn) { dropped <- c.ID() })

	good := &mockConn{id: "good"}
	bad := &mockConn{id: "bad", sendErr: errors.New("queue full")}
	b.Subscribe("room", good)
	b.Subscribe("room", bad)

	n := b.Publish("room", &protocol.Message{Type: protocol.EventCodeChange}, "")
	assert.Equal(t, 1, n)

	select {
	case id := <-dropped:
		assert.Equal(t, "bad", id)
	case <-time.After(time.Second):
		t.Fatal("drop handler not called")
	}
}

func TestBus_SendTo(t *testing.T) {
	b := New()
	c := &mockConn{id: "c"}
	b.Subscribe("room", c)

	require.NoError(t, b.SendTo("room", "c", &protocol.Message{Type: protocol.EventSignal}))
	assert.Len(t, c.codes(), 1)

	assert.ErrorIs(t, b.SendTo("room", "missing", &protocol.Message{}), protocol.ErrNotInRoom)
}

func TestBus_UnsubscribeRemovesEmptyRooms(t *testing.T) {
	b := New()
	b.Subscribe("room", &mockConn{id: "a"})
	b.Subscribe("room", &mockConn{id: "b"})

	rooms, conns := b.Stats()
	assert.Equal(t, 1, rooms)
	assert.Equal(t, 2, conns)

	b.Unsubscribe("room", "a")
	b.Unsubscribe("room", "a")
	b.Unsubscribe("room", "b")
	b.Unsubscribe("missing", "b")

	rooms, conns = b.Stats()
	assert.Zero(t, rooms)
	assert.Zero(t, conns)
}
