package session

import (
	"log/slog"

	"github.com/bz-harshitha-alikepalli/example-collab-ide/pkg/protocol"
)

// handle routes one server message to local state and the event stream.
func (s *Session) handle(msg *protocol.Message) {
	switch msg.Type {

	case protocol.EventJoinedRoom:
		s.mu.Lock()
		t := s.transport
		s.mu.Unlock()
		s.install(t, msg)

	case protocol.EventClientList:
		s.mu.Lock()
		s.users = msg.Users
		s.peerIDs = msg.PeerIDs
		s.mu.Unlock()
		s.emit(PresenceEvent{
			Users:   append([]string(nil), msg.Users...),
			PeerIDs: append([]string(nil), msg.PeerIDs...),
		})

	case protocol.EventMemberJoined:
		s.emit(MemberEvent{Name: msg.DisplayName, Joined: true})

	case protocol.EventMemberLeft:
		s.emit(MemberEvent{Name: msg.DisplayName, Joined: false})

	case protocol.EventCodeChange:
		s.mu.Lock()
		s.doc.Text = msg.Code
		s.mu.Unlock()
		s.emit(CodeEvent{Text: msg.Code})

	case protocol.EventLanguageChange:
		lang, err := protocol.ParseLanguage(msg.Language)
		if err != nil {
			slog.Warn("ignoring unknown language from server", "language", msg.Language)
			return
		}
		s.mu.Lock()
		s.doc.Language = lang
		s.mu.Unlock()
		s.emit(LanguageEvent{Language: lang})

	case protocol.EventPeerLeft:
		s.emit(PeerLeftEvent{PeerID: msg.PeerID})

	case protocol.EventSignal:
		if msg.Signal == nil {
			return
		}
		s.emit(SignalEvent{Signal: msg.Signal})

	case protocol.EventError:
		s.emit(NoticeEvent{Err: NewError("server", protocol.ErrorFromPayload(msg.Error))})

	default:
		slog.Debug("ignoring unknown event", "event", msg.Type)
	}
}
