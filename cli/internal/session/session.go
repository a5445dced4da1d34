package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bz-harshitha-alikepalli/example-collab-ide/pkg/protocol"
)

const (
	DefaultJoinTimeout   = 10 * time.Second
	DefaultMaxReconnects = 5
	DefaultBackoff       = 500 * time.Millisecond
	eventBuffer          = 256
)

// Transport is one connection to the signaling server.
type Transport interface {
	Send(msg *protocol.Message) error
	Incoming() <-chan *protocol.Message
	Err() error
	Close() error
}

// Dialer opens a new transport. It is called once per membership and again
// for every reconnect attempt.
type Dialer func(ctx context.Context) (Transport, error)

// Options configures a session.
type Options struct {
	RoomID     string
	Name       string
	ClientType string

	JoinTimeout time.Duration

	// MaxReconnects of zero uses DefaultMaxReconnects; negative disables
	// reconnecting. Backoff doubles after every failed attempt.
	MaxReconnects int
	Backoff       time.Duration
}

// Session is the client side of one room membership. It owns the transport
// and the local document; Run processes server events on one goroutine and
// republishes them on Events.
type Session struct {
	opts   Options
	dial   Dialer
	events chan Event

	mu        sync.Mutex
	transport Transport
	doc       Document
	users     []string
	peerIDs   []string
	localPeer string
	joined    bool
	left      bool

	closed    chan struct{}
	closeOnce sync.Once
}

// New validates the identity and room before anything touches the network.
func New(dial Dialer, opts Options) (*Session, error) {
	if err := protocol.ValidateRoomID(opts.RoomID); err != nil {
		return nil, NewError("join", err)
	}
	name, err := protocol.ValidateDisplayName(opts.Name)
	if err != nil {
		return nil, NewError("join", err)
	}
	opts.Name = name

	if opts.ClientType == "" {
		opts.ClientType = protocol.ClientTypeCLI
	}
	if opts.JoinTimeout <= 0 {
		opts.JoinTimeout = DefaultJoinTimeout
	}
	if opts.MaxReconnects < 0 {
		opts.MaxReconnects = 0
	} else if opts.MaxReconnects == 0 {
		opts.MaxReconnects = DefaultMaxReconnects
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}

	return &Session{
		opts:   opts,
		dial:   dial,
		events: make(chan Event, eventBuffer),
		doc:    Document{Language: protocol.DefaultLanguage, Keybinding: KeybindingDefault},
		closed: make(chan struct{}),
	}, nil
}

// Events delivers room events until a ClosedEvent.
func (s *Session) Events() <-chan Event {
	return s.events
}

// RoomID returns the joined room.
func (s *Session) RoomID() string {
	return s.opts.RoomID
}

// Name returns the local display name.
func (s *Session) Name() string {
	return s.opts.Name
}

// Document returns a copy of the local document.
func (s *Session) Document() Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

// Users returns the current presence list.
func (s *Session) Users() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.users...)
}

// PeerIDs returns the media peer ids of the room.
func (s *Session) PeerIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.peerIDs...)
}

// Join connects, requests the room and waits for its snapshot. Server
// refusals come back as *Error wrapping the protocol sentinel.
func (s *Session) Join(ctx context.Context) error {
	s.mu.Lock()
	if s.joined {
		s.mu.Unlock()
		return NewError("join", ErrAlreadyJoined)
	}
	if s.left {
		s.mu.Unlock()
		return NewError("join", ErrLeft)
	}
	s.joined = true
	s.mu.Unlock()

	t, snap, err := s.connect(ctx)
	if err != nil {
		return err
	}
	s.install(t, snap)
	return nil
}

// connect dials and performs the join handshake.
func (s *Session) connect(ctx context.Context) (Transport, *protocol.Message, error) {
	t, err := s.dial(ctx)
	if err != nil {
		return nil, nil, WrapError("join", ErrTransportDisconnected, err.Error())
	}

	err = t.Send(&protocol.Message{
		Type:        protocol.EventJoinRoom,
		RoomID:      s.opts.RoomID,
		DisplayName: s.opts.Name,
		ClientType:  s.opts.ClientType,
	})
	if err != nil {
		t.Close()
		return nil, nil, WrapError("join", ErrTransportDisconnected, err.Error())
	}

	timeout := time.NewTimer(s.opts.JoinTimeout)
	defer timeout.Stop()

	for {
		select {
		case msg, ok := <-t.Incoming():
			if !ok {
				return nil, nil, WrapError("join", ErrTransportDisconnected, fmt.Sprint(t.Err()))
			}
			switch msg.Type {
			case protocol.EventJoinedRoom:
				return t, msg, nil
			case protocol.EventError:
				t.Close()
				return nil, nil, NewError("join", protocol.ErrorFromPayload(msg.Error))
			default:
				slog.Debug("ignoring event before snapshot", "event", msg.Type)
			}
		case <-timeout.C:
			t.Close()
			return nil, nil, NewError("join", ErrJoinTimeout)
		case <-ctx.Done():
			t.Close()
			return nil, nil, NewError("join", ctx.Err())
		}
	}
}

// install makes t the live transport and replaces local state with the
// snapshot. The keybinding survives.
func (s *Session) install(t Transport, snap *protocol.Message) {
	lang, err := protocol.ParseLanguage(snap.Language)
	if err != nil {
		lang = protocol.DefaultLanguage
	}

	s.mu.Lock()
	s.transport = t
	s.doc.Text = snap.Code
	s.doc.Language = lang
	s.users = snap.Users
	s.peerIDs = snap.PeerIDs
	doc := s.doc
	localPeer := s.localPeer
	s.mu.Unlock()

	if localPeer != "" {
		s.send("register peer", &protocol.Message{Type: protocol.EventJoinMedia, RoomID: s.opts.RoomID, PeerID: localPeer})
	}

	slog.Info("joined room", "room", s.opts.RoomID, "users", len(snap.Users))
	s.emit(SnapshotEvent{
		RoomID:   s.opts.RoomID,
		Users:    append([]string(nil), snap.Users...),
		PeerIDs:  append([]string(nil), snap.PeerIDs...),
		Document: doc,
	})
}

// Run processes server events until ctx ends or the session leaves. A lost
// transport is treated as an implicit leave followed by bounded reconnects
// with exponential backoff; Run returns the error once they are exhausted.
func (s *Session) Run(ctx context.Context) error {
	var err error
	defer func() {
		s.emit(ClosedEvent{Err: err})
		s.shutdown()
	}()

	for {
		s.mu.Lock()
		t := s.transport
		s.mu.Unlock()
		if t == nil {
			err = NewError("run", ErrTransportDisconnected)
			return err
		}

		cause := s.pump(ctx, t)
		if ctx.Err() != nil || s.hasLeft() {
			return nil
		}

		slog.Warn("transport lost", "room", s.opts.RoomID, "error", cause)
		s.emit(ConnectionEvent{State: Disconnected, Err: cause})

		if err = s.reconnect(ctx); err != nil {
			if ctx.Err() != nil || s.hasLeft() {
				err = nil
			}
			return err
		}
	}
}

func (s *Session) pump(ctx context.Context, t Transport) error {
	for {
		select {
		case msg, ok := <-t.Incoming():
			if !ok {
				if err := t.Err(); err != nil {
					return err
				}
				return ErrTransportDisconnected
			}
			s.handle(msg)
		case <-ctx.Done():
			return ctx.Err()
		case <-s.closed:
			return nil
		}
	}
}

func (s *Session) reconnect(ctx context.Context) error {
	delay := s.opts.Backoff
	var last error

	for attempt := 1; attempt <= s.opts.MaxReconnects; attempt++ {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		case <-s.closed:
			return ErrLeft
		}
		delay *= 2

		s.emit(ConnectionEvent{State: Reconnecting, Attempt: attempt})
		t, snap, err := s.connect(ctx)
		if err != nil {
			last = err
			slog.Warn("reconnect failed", "room", s.opts.RoomID, "attempt", attempt, "error", err)
			// A refused join will be refused again.
			if errors.Is(err, protocol.ErrInvalidRoom) || errors.Is(err, protocol.ErrMissingIdentity) {
				return err
			}
			continue
		}

		if s.hasLeft() {
			t.Close()
			return ErrLeft
		}
		s.install(t, snap)
		s.emit(ConnectionEvent{State: Reconnected, Attempt: attempt})
		return nil
	}

	return WrapError("reconnect", ErrTransportDisconnected,
		fmt.Sprintf("%d attempts failed, last: %v", s.opts.MaxReconnects, last))
}

// EditText replaces the local text and sends it to the room. Text too
// large to relay is refused and the local document is left as it was.
func (s *Session) EditText(text string) error {
	msg := &protocol.Message{Type: protocol.EventUpdateCode, RoomID: s.opts.RoomID, Code: text}
	if err := protocol.CheckFrameSize(msg); err != nil {
		return NewError("edit", err)
	}

	s.mu.Lock()
	s.doc.Text = text
	s.mu.Unlock()

	return s.send("edit", msg)
}

// ChangeLanguage validates and sets the room language.
func (s *Session) ChangeLanguage(language string) error {
	lang, err := protocol.ParseLanguage(language)
	if err != nil {
		return NewError("change language", err)
	}

	s.mu.Lock()
	s.doc.Language = lang
	s.mu.Unlock()

	return s.send("change language", &protocol.Message{Type: protocol.EventUpdateLanguage, RoomID: s.opts.RoomID, Language: string(lang)})
}

// ChangeKeybinding updates the local preference only.
func (s *Session) ChangeKeybinding(keybinding string) error {
	kb, err := ParseKeybinding(keybinding)
	if err != nil {
		return NewError("change keybinding", err)
	}

	s.mu.Lock()
	s.doc.Keybinding = kb
	s.mu.Unlock()
	return nil
}

// RegisterPeer announces the local media peer id. It is re-sent after
// every reconnect.
func (s *Session) RegisterPeer(peerID string) error {
	s.mu.Lock()
	s.localPeer = peerID
	s.mu.Unlock()

	return s.send("register peer", &protocol.Message{Type: protocol.EventJoinMedia, RoomID: s.opts.RoomID, PeerID: peerID})
}

// SendSignal relays connection-setup data to another peer.
func (s *Session) SendSignal(sig *protocol.Signal) error {
	return s.send("signal", &protocol.Message{Type: protocol.EventSignal, RoomID: s.opts.RoomID, Signal: sig})
}

// Leave announces the departure and tears the transport down. Calling it
// again is a no-op.
func (s *Session) Leave() error {
	s.mu.Lock()
	if s.left {
		s.mu.Unlock()
		return nil
	}
	s.left = true
	t := s.transport
	localPeer := s.localPeer
	s.mu.Unlock()

	var err error
	if t != nil {
		err = t.Send(&protocol.Message{Type: protocol.EventLeaveRoom, RoomID: s.opts.RoomID, PeerID: localPeer})
	}
	s.shutdown()
	slog.Info("left room", "room", s.opts.RoomID)
	return err
}

func (s *Session) send(op string, msg *protocol.Message) error {
	s.mu.Lock()
	t := s.transport
	left := s.left
	s.mu.Unlock()

	if left {
		return NewError(op, ErrLeft)
	}
	if t == nil {
		return NewError(op, ErrTransportDisconnected)
	}
	if err := t.Send(msg); err != nil {
		return WrapError(op, ErrTransportDisconnected, err.Error())
	}
	return nil
}

func (s *Session) hasLeft() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.left
}

// shutdown closes the transport and stops Run.
func (s *Session) shutdown() {
	s.closeOnce.Do(func() {
		close(s.closed)
	})

	s.mu.Lock()
	t := s.transport
	s.mu.Unlock()
	if t != nil {
		t.Close()
	}
}

// emit blocks only while the session is live.
func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	case <-s.closed:
		// Still try to hand over the final event without blocking.
		select {
		case s.events <- ev:
		default:
		}
	}
}
