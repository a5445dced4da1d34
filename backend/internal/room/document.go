package room

import (
	"github.com/bz-harshitha-alikepalli/example-collab-ide/pkg/protocol"
)

// ApplyEdit overwrites the room's text and broadcasts it to everyone but
// the originator, who already holds the value. There is no versioning:
// concurrent edits resolve by arrival order and the last one wins.
func (reg *Registry) ApplyEdit(roomID, connID, text string) error {
	return reg.Do(roomID, func(r *Room) error {
		if r.Participant(connID) == nil {
			return protocol.ErrNotInRoom
		}
		r.document.Text = text
		r.Publish(&protocol.Message{
			Type:   protocol.EventCodeChange,
			RoomID: r.id,
			Code:   text,
		}, connID)
		return nil
	})
}

// ApplyLanguage validates and overwrites the room's language, broadcasting
// the change to everyone but the originator.
func (reg *Registry) ApplyLanguage(roomID, connID, language string) error {
	lang, err := protocol.ParseLanguage(language)
	if err != nil {
		return err
	}

	return reg.Do(roomID, func(r *Room) error {
		if r.Participant(connID) == nil {
			return protocol.ErrNotInRoom
		}
		r.document.Language = lang
		r.Publish(&protocol.Message{
			Type:     protocol.EventLanguageChange,
			RoomID:   r.id,
			Language: string(lang),
		}, connID)
		return nil
	})
}
