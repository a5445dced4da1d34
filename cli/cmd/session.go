package cmd

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bz-harshitha-alikepalli/example-collab-ide/cli/internal/call"
	"github.com/bz-harshitha-alikepalli/example-collab-ide/cli/internal/config"
	"github.com/bz-harshitha-alikepalli/example-collab-ide/cli/internal/execution"
	"github.com/bz-harshitha-alikepalli/example-collab-ide/cli/internal/session"
	"github.com/bz-harshitha-alikepalli/example-collab-ide/cli/internal/signaling"
	"github.com/bz-harshitha-alikepalli/example-collab-ide/cli/internal/ui"
	"github.com/bz-harshitha-alikepalli/example-collab-ide/cli/internal/webrtc"
	"github.com/bz-harshitha-alikepalli/example-collab-ide/pkg/protocol"
)

// callsRefresh is how often the calls panel picks up byte counters.
const callsRefresh = time.Second

// dialer opens one signaling connection per attempt.
func dialer(cfg *config.Config) session.Dialer {
	return func(ctx context.Context) (session.Transport, error) {
		return signaling.Dial(ctx, cfg.WebSocketURL)
	}
}

// roomController lets the room screen drive the session and the
// execution service.
type roomController struct {
	*session.Session
	exec *execution.Client
}

func (c roomController) Run(ctx context.Context, lang protocol.Language, source string) (execution.Result, error) {
	return c.exec.Run(ctx, lang, source, "")
}

// RoomContext wires a joined session to the call manager and the terminal
// UI for the lifetime of one membership.
type RoomContext struct {
	Config  *config.Config
	Session *session.Session
	Calls   *call.Manager
	Program *tea.Program
	Model   *ui.RoomModel
}

// NewRoomContext builds the UI and, unless media is disabled, a call
// manager registered under a fresh peer id.
func NewRoomContext(ctx context.Context, cfg *config.Config, sess *session.Session) (*RoomContext, error) {
	var opts []ui.RoomOption
	if cfg.NoMedia {
		opts = append(opts, ui.WithoutMedia())
	}

	ctrl := roomController{Session: sess, exec: newExecutionClient(cfg)}
	model := ui.NewRoomModel(ctx, ctrl, sess.RoomID(), sess.Name(), sess.Document(), sess.Users(), opts...)

	rc := &RoomContext{
		Config:  cfg,
		Session: sess,
		Model:   model,
		Program: tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)),
	}

	if cfg.NoMedia {
		return rc, nil
	}

	source := &webrtc.FileSource{VideoFile: cfg.VideoFile, AudioFile: cfg.AudioFile}
	rc.Calls = call.NewManager(uuid.NewString(), sess, webrtc.NewLinkFactory(cfg), source,
		call.WithObserver(ui.CallObserver(rc.Program.Send, func() []call.PeerInfo { return rc.Calls.Peers() })),
	)
	if err := sess.RegisterPeer(rc.Calls.LocalID()); err != nil {
		rc.Calls.Close()
		return nil, err
	}
	return rc, nil
}

// Run drives the session, the event router and the UI until the user
// leaves or the session ends. It returns why the session ended.
func (rc *RoomContext) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var g errgroup.Group
	g.Go(func() error { return rc.Session.Run(runCtx) })
	g.Go(func() error {
		rc.route(runCtx)
		return nil
	})

	_, uiErr := rc.Program.Run()

	rc.Session.Leave()
	cancel()
	if rc.Calls != nil {
		rc.Calls.Close()
	}
	runErr := g.Wait()

	switch {
	case rc.Model.Err() != nil:
		return rc.Model.Err()
	case uiErr != nil && !errors.Is(uiErr, tea.ErrProgramKilled):
		return uiErr
	}
	return runErr
}

// route hands every session event to the call manager first, then to the
// UI, preserving server order.
func (rc *RoomContext) route(ctx context.Context) {
	ticker := time.NewTicker(callsRefresh)
	defer ticker.Stop()

	for {
		select {
		case ev := <-rc.Session.Events():
			rc.dispatch(ev)
			rc.Program.Send(ev)
			if _, ok := ev.(session.ClosedEvent); ok {
				return
			}
		case <-ticker.C:
			rc.refreshCalls()
		case <-ctx.Done():
			return
		}
	}
}

func (rc *RoomContext) dispatch(ev session.Event) {
	if rc.Calls == nil {
		return
	}

	switch ev := ev.(type) {
	case session.SnapshotEvent:
		rc.Calls.Reconcile(ev.PeerIDs)
	case session.PresenceEvent:
		rc.Calls.Reconcile(ev.PeerIDs)
	case session.SignalEvent:
		rc.Calls.HandleSignal(ev.Signal)
	case session.PeerLeftEvent:
		rc.Calls.PeerLeft(ev.PeerID)
	case session.ConnectionEvent:
		if ev.State == session.Disconnected {
			rc.Calls.CloseAll()
		}
	}
}

func (rc *RoomContext) refreshCalls() {
	if rc.Calls != nil {
		rc.Program.Send(ui.CallsMsg(rc.Calls.Peers()))
	}
}
