package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/bz-harshitha-alikepalli/example-collab-ide/cli/internal/call"
)

func styledTable(headers []string, rows [][]string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})
}

// ParticipantsView renders the room members in join order. The local
// participant is marked.
func ParticipantsView(users []string, self string, width int) string {
	if len(users) == 0 {
		return MutedStyle.Render("Nobody here yet")
	}

	rows := make([][]string, 0, len(users))
	marked := false
	for _, name := range users {
		label := truncateString(name, max(width-12, 6))
		if name == self && !marked {
			label += MutedStyle.Render(" (you)")
			marked = true
		}
		rows = append(rows, []string{Avatar(name), label})
	}

	return table.New().
		Border(lipgloss.HiddenBorder()).
		Rows(rows...).
		Render()
}

// CallsView renders one row per media link.
func CallsView(peers []call.PeerInfo) string {
	if len(peers) == 0 {
		return MutedStyle.Render("No calls")
	}

	rows := make([][]string, 0, len(peers))
	for _, p := range peers {
		state := p.State.String()
		if p.Err != nil {
			state = ErrorStyle.Render(state)
		} else if p.State == call.Connected {
			state = SuccessStyle.Render(state)
		}
		rows = append(rows, []string{truncateString(p.PeerID, 8), state, formatBytes(p.BytesReceived)})
	}
	return styledTable([]string{"Peer", "State", "Recv"}, rows).Render()
}

type RoomInfo struct {
	RoomID   string
	RoomLink string
}

func NewRoomInfo(roomID, roomLink string) *RoomInfo {
	return &RoomInfo{
		RoomID:   roomID,
		RoomLink: roomLink,
	}
}

func (r *RoomInfo) View() string {
	content := fmt.Sprintf("%s Room Created!\n\n%s Room ID:    %s\n%s Room Link:  %s",
		IconSuccess,
		IconCopy, BoldStyle.Foreground(Primary).Render(r.RoomID),
		IconWeb, MutedStyle.Render(r.RoomLink),
	)

	return SuccessBoxStyle.Render(content)
}

func (r *RoomInfo) Render() {
	fmt.Println(r.View())
}
