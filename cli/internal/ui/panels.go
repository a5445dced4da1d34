package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// PanelID names a region of the room screen.
type PanelID int

const (
	PanelEditor PanelID = iota
	PanelOutput
	PanelParticipants
	PanelCalls
)

// Panel renders one region of the room screen from the model state.
type Panel interface {
	Title(m *RoomModel) string
	Body(m *RoomModel, width int) string
}

// panelRegistry resolves every panel once at model construction.
type panelRegistry map[PanelID]Panel

func newPanelRegistry() panelRegistry {
	return panelRegistry{
		PanelEditor:       editorPanel{},
		PanelOutput:       outputPanel{},
		PanelParticipants: participantsPanel{},
		PanelCalls:        callsPanel{},
	}
}

var (
	mainColumn = []PanelID{PanelEditor, PanelOutput}
	sideColumn = []PanelID{PanelParticipants, PanelCalls}
)

// render draws the panels of one column, highlighting the focused one.
func (r panelRegistry) render(m *RoomModel, ids []PanelID, width int) string {
	views := make([]string, 0, len(ids))
	for _, id := range ids {
		p, ok := r[id]
		if !ok {
			continue
		}

		style := PanelStyle
		if id == m.focus {
			style = FocusedPanelStyle
		}
		inner := max(width-style.GetHorizontalFrameSize(), 1)
		content := PanelTitleStyle.Render(p.Title(m)) + "\n" + p.Body(m, inner)
		views = append(views, style.Width(width-style.GetHorizontalBorderSize()).Render(content))
	}
	return lipgloss.JoinVertical(lipgloss.Left, views...)
}

type editorPanel struct{}

func (editorPanel) Title(m *RoomModel) string {
	title := IconFile + " " + string(m.doc.Language)
	if mode := m.modeLabel(); mode != "" {
		title += MutedStyle.Render(" " + mode)
	}
	return title
}

func (editorPanel) Body(m *RoomModel, _ int) string {
	return m.editor.View()
}

type outputPanel struct{}

func (outputPanel) Title(m *RoomModel) string {
	if m.running {
		return IconRun + " Output " + m.spinner.View()
	}
	return IconRun + " Output"
}

func (outputPanel) Body(m *RoomModel, _ int) string {
	return m.output.View()
}

type participantsPanel struct{}

func (participantsPanel) Title(m *RoomModel) string {
	return IconPeer + " Participants"
}

func (participantsPanel) Body(m *RoomModel, width int) string {
	return ParticipantsView(m.users, m.self, width)
}

type callsPanel struct{}

func (callsPanel) Title(m *RoomModel) string {
	return IconCall + " Calls"
}

func (callsPanel) Body(m *RoomModel, _ int) string {
	if m.noMedia {
		return MutedStyle.Render("Media disabled")
	}
	return CallsView(m.calls)
}

// toastsView stacks live notices, newest last.
func toastsView(toasts []toast) string {
	if len(toasts) == 0 {
		return ""
	}
	lines := make([]string, 0, len(toasts))
	for _, t := range toasts {
		lines = append(lines, t.style.Render(t.text))
	}
	return ToastStyle.Render(strings.Join(lines, "\n"))
}
