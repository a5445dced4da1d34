package session

import (
	"fmt"

	"github.com/bz-harshitha-alikepalli/example-collab-ide/pkg/protocol"
)

// Keybinding is a personal editing preference. It is never sent to the
// server or to other participants.
type Keybinding string

const (
	KeybindingDefault Keybinding = "default"
	KeybindingEmacs   Keybinding = "emacs"
	KeybindingVim     Keybinding = "vim"
)

// Keybindings lists the supported keybindings in menu order.
var Keybindings = []Keybinding{KeybindingDefault, KeybindingEmacs, KeybindingVim}

// ParseKeybinding validates s.
func ParseKeybinding(s string) (Keybinding, error) {
	for _, k := range Keybindings {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKeybinding, s)
}

// Document is the local copy of the room's editor state plus the local
// keybinding.
type Document struct {
	Text       string
	Language   protocol.Language
	Keybinding Keybinding
}
