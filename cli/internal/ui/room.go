package ui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bz-harshitha-alikepalli/example-collab-ide/cli/internal/call"
	"github.com/bz-harshitha-alikepalli/example-collab-ide/cli/internal/execution"
	"github.com/bz-harshitha-alikepalli/example-collab-ide/cli/internal/files"
	"github.com/bz-harshitha-alikepalli/example-collab-ide/cli/internal/session"
	"github.com/bz-harshitha-alikepalli/example-collab-ide/pkg/protocol"
)

const (
	toastTTL     = 4 * time.Second
	maxToasts    = 4
	sidebarWidth = 40
)

// Controller is what the room screen drives: document changes go to the
// session and runs go to the execution service.
type Controller interface {
	EditText(text string) error
	ChangeLanguage(language string) error
	ChangeKeybinding(keybinding string) error
	Run(ctx context.Context, language protocol.Language, source string) (execution.Result, error)
}

// CallsMsg replaces the contents of the calls panel.
type CallsMsg []call.PeerInfo

// CallMsg is one link changing state. A closed link with an error is
// reported to the user.
type CallMsg call.PeerInfo

// CallObserver adapts call manager notifications for the room screen:
// every change is forwarded as a CallMsg followed by a fresh link list.
func CallObserver(send func(tea.Msg), peers func() []call.PeerInfo) func(call.PeerInfo) {
	return func(info call.PeerInfo) {
		send(CallMsg(info))
		send(CallsMsg(peers()))
	}
}

type runResultMsg struct {
	result execution.Result
	err    error
}

type toastTickMsg time.Time

func toastTick() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return toastTickMsg(t)
	})
}

type toast struct {
	text    string
	style   lipgloss.Style
	expires time.Time
}

type RoomOption func(*RoomModel)

// WithExportDir sets where ctrl+s writes run output.
func WithExportDir(dir string) RoomOption {
	return func(m *RoomModel) { m.exportDir = dir }
}

// WithoutMedia hides the calls panel contents.
func WithoutMedia() RoomOption {
	return func(m *RoomModel) { m.noMedia = true }
}

// RoomModel is the Bubble Tea model for a joined room: the shared editor,
// the run output, the participant list and the call links.
type RoomModel struct {
	ctx    context.Context
	ctrl   Controller
	panels panelRegistry

	roomID string
	self   string
	users  []string
	calls  []call.PeerInfo
	doc    session.Document
	status string

	editor    textarea.Model
	output    viewport.Model
	spinner   spinner.Model
	focus     PanelID
	vimNormal bool

	running    bool
	lastOutput string
	exportDir  string
	noMedia    bool

	toasts   []toast
	now      func() time.Time
	reported map[string]bool

	width  int
	height int

	err error
}

// NewRoomModel builds the room screen from the state returned by a
// successful join.
func NewRoomModel(ctx context.Context, ctrl Controller, roomID, self string, doc session.Document, users []string, opts ...RoomOption) *RoomModel {
	editor := textarea.New()
	editor.ShowLineNumbers = true
	editor.CharLimit = files.MaxSourceSize
	editor.MaxHeight = 0
	editor.Placeholder = "Start typing, everyone in the room sees it..."
	editor.SetValue(doc.Text)
	editor.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	m := &RoomModel{
		ctx:       ctx,
		ctrl:      ctrl,
		panels:    newPanelRegistry(),
		roomID:    roomID,
		self:      self,
		users:     users,
		doc:       doc,
		editor:    editor,
		output:    viewport.New(60, 6),
		spinner:   s,
		focus:     PanelEditor,
		exportDir: ".",
		now:       time.Now,
		reported:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.output.SetContent(MutedStyle.Render("Press ctrl+r to run the code"))
	m.resize(100, 32)
	return m
}

func (m *RoomModel) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick, toastTick())
}

func (m *RoomModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)

	case toastTickMsg:
		m.expireToasts()
		cmd = toastTick()

	case runResultMsg:
		m.finishRun(msg)

	case CallMsg:
		m.updateCall(call.PeerInfo(msg))

	case CallsMsg:
		m.updateCalls(msg)

	case session.Event:
		cmd = m.handleEvent(msg)

	default:
		m.editor, cmd = m.editor.Update(msg)
	}

	return m, cmd
}

func (m *RoomModel) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+c", "ctrl+q":
		return tea.Quit
	case "ctrl+r":
		return m.startRun()
	case "ctrl+l":
		m.cycleLanguage()
		return nil
	case "ctrl+g":
		m.cycleKeybinding()
		return nil
	case "ctrl+s":
		m.exportOutput()
		return nil
	case "ctrl+o":
		return m.toggleFocus()
	}

	var cmd tea.Cmd
	if m.focus == PanelOutput {
		m.output, cmd = m.output.Update(msg)
		return cmd
	}

	if m.doc.Keybinding == session.KeybindingVim {
		var ok bool
		if msg, ok = m.vimKey(msg); !ok {
			return nil
		}
	}

	before := m.editor.Value()
	m.editor, cmd = m.editor.Update(msg)
	if value := m.editor.Value(); value != before {
		err := m.ctrl.EditText(value)
		switch {
		case errors.Is(err, protocol.ErrMessageTooLarge):
			m.editor.SetValue(before)
			m.pushToast(IconError+" Document is too large to share, edit not sent", ErrorStyle)
		case err != nil:
			m.doc.Text = value
			m.pushToast(err.Error(), ErrorStyle)
		default:
			m.doc.Text = value
		}
	}
	return cmd
}

// vimKey maps a small normal-mode vocabulary onto editor keys. The bool
// is false when the key was consumed.
func (m *RoomModel) vimKey(msg tea.KeyMsg) (tea.KeyMsg, bool) {
	if !m.vimNormal {
		if msg.Type == tea.KeyEsc {
			m.vimNormal = true
			return msg, false
		}
		return msg, true
	}

	switch msg.String() {
	case "i":
		m.vimNormal = false
	case "h":
		return tea.KeyMsg{Type: tea.KeyLeft}, true
	case "j":
		return tea.KeyMsg{Type: tea.KeyDown}, true
	case "k":
		return tea.KeyMsg{Type: tea.KeyUp}, true
	case "l":
		return tea.KeyMsg{Type: tea.KeyRight}, true
	case "0":
		return tea.KeyMsg{Type: tea.KeyHome}, true
	case "$":
		return tea.KeyMsg{Type: tea.KeyEnd}, true
	case "x":
		return tea.KeyMsg{Type: tea.KeyDelete}, true
	}
	return msg, false
}

func (m *RoomModel) modeLabel() string {
	switch m.doc.Keybinding {
	case session.KeybindingVim:
		if m.vimNormal {
			return "[NORMAL]"
		}
		return "[INSERT]"
	case session.KeybindingEmacs:
		return "[emacs]"
	}
	return ""
}

func (m *RoomModel) toggleFocus() tea.Cmd {
	if m.focus == PanelEditor {
		m.focus = PanelOutput
		m.editor.Blur()
		return nil
	}
	m.focus = PanelEditor
	return m.editor.Focus()
}

func (m *RoomModel) handleEvent(ev session.Event) tea.Cmd {
	switch ev := ev.(type) {
	case session.SnapshotEvent:
		m.roomID = ev.RoomID
		m.users = ev.Users
		m.doc.Text = ev.Document.Text
		m.doc.Language = ev.Document.Language
		m.setEditorText(ev.Document.Text)

	case session.PresenceEvent:
		m.users = ev.Users

	case session.MemberEvent:
		if ev.Joined {
			m.pushToast(fmt.Sprintf("%s %s joined", IconPeer, ev.Name), SuccessStyle)
		} else {
			m.pushToast(fmt.Sprintf("%s %s left", IconPeer, ev.Name), WarningStyle)
		}

	case session.CodeEvent:
		m.doc.Text = ev.Text
		m.setEditorText(ev.Text)

	case session.LanguageEvent:
		m.doc.Language = ev.Language
		m.pushToast(fmt.Sprintf("%s Language changed to %s", IconLanguage, ev.Language), MutedStyle)

	case session.NoticeEvent:
		m.pushToast(ev.Err.Error(), ErrorStyle)

	case session.ConnectionEvent:
		m.status = ev.State.String()
		switch ev.State {
		case session.Reconnected:
			m.status = ""
			m.pushToast(IconConnect+" Reconnected", SuccessStyle)
		case session.Reconnecting:
			m.status = fmt.Sprintf("reconnecting (attempt %d)", ev.Attempt)
		default:
			m.pushToast(IconConnect+" Connection lost", WarningStyle)
		}

	case session.ClosedEvent:
		m.err = ev.Err
		return tea.Quit
	}
	return nil
}

// updateCall raises one notice per failed link. A peer that starts a new
// link can be reported again.
func (m *RoomModel) updateCall(info call.PeerInfo) {
	switch {
	case info.Err != nil:
		if m.reported[info.PeerID] {
			return
		}
		m.reported[info.PeerID] = true
		m.pushToast(fmt.Sprintf("%s call with %s: %v", IconCall, truncateString(info.PeerID, 8), info.Err), ErrorStyle)
	case info.State != call.Closed:
		delete(m.reported, info.PeerID)
	}
}

// updateCalls replaces the link list.
func (m *RoomModel) updateCalls(peers []call.PeerInfo) {
	m.calls = peers
}

// setEditorText applies a remote document. The whole text is replaced, so
// the cursor moves to the end.
func (m *RoomModel) setEditorText(text string) {
	if m.editor.Value() != text {
		m.editor.SetValue(text)
	}
}

func (m *RoomModel) cycleLanguage() {
	i := slices.Index(protocol.Languages, m.doc.Language)
	next := protocol.Languages[(i+1)%len(protocol.Languages)]
	if err := m.ctrl.ChangeLanguage(string(next)); err != nil {
		m.pushToast(err.Error(), ErrorStyle)
		return
	}
	m.doc.Language = next
}

func (m *RoomModel) cycleKeybinding() {
	i := slices.Index(session.Keybindings, m.doc.Keybinding)
	next := session.Keybindings[(i+1)%len(session.Keybindings)]
	if err := m.ctrl.ChangeKeybinding(string(next)); err != nil {
		m.pushToast(err.Error(), ErrorStyle)
		return
	}
	m.doc.Keybinding = next
	m.vimNormal = false
}

func (m *RoomModel) startRun() tea.Cmd {
	if m.running {
		m.pushToast(IconWaiting+" A run is already in progress", WarningStyle)
		return nil
	}
	m.running = true

	ctx, ctrl := m.ctx, m.ctrl
	lang, source := m.doc.Language, m.editor.Value()
	return func() tea.Msg {
		result, err := ctrl.Run(ctx, lang, source)
		return runResultMsg{result: result, err: err}
	}
}

func (m *RoomModel) finishRun(msg runResultMsg) {
	m.running = false

	var header string
	switch {
	case errors.Is(msg.err, execution.ErrExecutionTimeout):
		header = ErrorStyle.Render(IconTime + " Execution timed out")
		m.lastOutput = msg.err.Error()
	case msg.err != nil:
		header = ErrorStyle.Render(IconError + " Run failed")
		m.lastOutput = msg.err.Error()
	case msg.result.Success:
		header = SuccessStyle.Render(fmt.Sprintf("%s %s in %s", IconSuccess, msg.result.Status, formatDuration(msg.result.Duration)))
		m.lastOutput = msg.result.Output()
	default:
		header = ErrorStyle.Render(IconError + " " + msg.result.Status)
		m.lastOutput = msg.result.Output()
	}

	m.output.SetContent(header + "\n" + m.lastOutput)
	m.output.GotoTop()
}

// exportOutput writes the last run's output to a file in the export
// directory.
func (m *RoomModel) exportOutput() {
	if m.lastOutput == "" {
		m.pushToast(IconWarning+" Nothing to export yet", WarningStyle)
		return
	}

	prefix := m.roomID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	name := fmt.Sprintf("coderoom-%s-%s.txt", prefix, m.now().Format("20060102-150405"))
	path := filepath.Join(m.exportDir, name)

	if err := os.WriteFile(path, []byte(m.lastOutput+"\n"), 0o644); err != nil {
		m.pushToast(fmt.Sprintf("export failed: %v", err), ErrorStyle)
		return
	}
	m.pushToast(fmt.Sprintf("%s Saved %s", IconSave, name), SuccessStyle)
}

func (m *RoomModel) pushToast(text string, style lipgloss.Style) {
	m.toasts = append(m.toasts, toast{text: text, style: style, expires: m.now().Add(toastTTL)})
	if len(m.toasts) > maxToasts {
		m.toasts = m.toasts[len(m.toasts)-maxToasts:]
	}
}

func (m *RoomModel) expireToasts() {
	now := m.now()
	m.toasts = slices.DeleteFunc(m.toasts, func(t toast) bool {
		return !now.Before(t.expires)
	})
}

func (m *RoomModel) resize(width, height int) {
	m.width, m.height = width, height

	side := min(sidebarWidth, width/3)
	frame := PanelStyle.GetHorizontalFrameSize()
	inner := max(width-side-frame, 10)

	outputHeight := max(height/4, 4)
	// header, footer, two panel titles and two borders
	editorHeight := max(height-outputHeight-8, 3)

	m.editor.SetWidth(inner)
	m.editor.SetHeight(editorHeight)
	m.output.Width = inner
	m.output.Height = outputHeight
}

func (m *RoomModel) View() string {
	side := min(sidebarWidth, m.width/3)

	title := fmt.Sprintf("%s CodeRoom  %s", IconRoom, m.roomID)
	if m.status != "" {
		title += "  " + WarningStyle.Render(m.status)
	}
	header := HeaderStyle.Render(title)

	sideView := m.panels.render(m, sideColumn, side)
	if toasts := toastsView(m.toasts); toasts != "" {
		sideView = lipgloss.JoinVertical(lipgloss.Left, sideView, toasts)
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		m.panels.render(m, mainColumn, m.width-side),
		sideView,
	)

	footer := FooterStyle.Render("ctrl+r run · ctrl+l language · ctrl+g keys · ctrl+o focus · ctrl+s export · ctrl+q leave")
	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

// Err is the reason the session ended, nil after a normal leave.
func (m *RoomModel) Err() error {
	return m.err
}

// Document returns the local view of the shared document.
func (m *RoomModel) Document() session.Document {
	return m.doc
}
