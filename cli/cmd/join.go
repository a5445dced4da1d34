package cmd

import (
	"github.com/spf13/cobra"

	"github.com/bz-harshitha-alikepalli/example-collab-ide/cli/internal/config"
	"github.com/bz-harshitha-alikepalli/example-collab-ide/cli/internal/files"
	"github.com/bz-harshitha-alikepalli/example-collab-ide/cli/internal/session"
	"github.com/bz-harshitha-alikepalli/example-collab-ide/cli/internal/ui"
)

var (
	flagVideo   string
	flagAudio   string
	flagNoMedia bool
	flagOpen    string
)

var joinCmd = &cobra.Command{
	Use:     "join <room-id|room-link>",
	Aliases: []string{"j"},
	Short:   "Join a room to edit, run code and call",
	Long: `Join a room by id or by its link. The shared document opens in an editor;
changes from everyone appear live. Media links to the other participants are
negotiated automatically; without --video/--audio the call is receive-only.

Examples:
  coderoom join 3f2b8c1e-9a4d-4e6f-8b7a-1c2d3e4f5a6b
  coderoom join https://coderoom.dev/room/3f2b8c1e-9a4d-4e6f-8b7a-1c2d3e4f5a6b
  coderoom join --open main.go --video clip.ivf --audio voice.ogg <room-id>`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roomID, err := config.ParseRoomArg(args[0])
		if err != nil {
			return err
		}

		var src *files.Source
		if flagOpen != "" {
			if src, err = files.LoadSource(flagOpen); err != nil {
				return err
			}
		}

		cfg, err := loadConfig(config.Options{
			VideoFile: flagVideo,
			AudioFile: flagAudio,
			NoMedia:   flagNoMedia,
		})
		if err != nil {
			return err
		}

		sess, err := session.New(dialer(cfg), session.Options{RoomID: roomID, Name: cfg.Name})
		if err != nil {
			return err
		}

		sp := ui.NewConnectionSpinner("Joining room...")
		sp.Start()
		err = sess.Join(cmd.Context())
		sp.Stop()
		if err != nil {
			return err
		}

		if src != nil {
			if err := sess.ChangeLanguage(string(src.Language)); err != nil {
				sess.Leave()
				return err
			}
			if err := sess.EditText(src.Text); err != nil {
				sess.Leave()
				return err
			}
		}

		rc, err := NewRoomContext(cmd.Context(), cfg, sess)
		if err != nil {
			sess.Leave()
			return err
		}
		return rc.Run(cmd.Context())
	},
}

func init() {
	joinCmd.Flags().StringVar(&flagVideo, "video", "", "IVF (VP8/VP9/AV1) file streamed as your camera")
	joinCmd.Flags().StringVar(&flagAudio, "audio", "", "Ogg/Opus file streamed as your microphone")
	joinCmd.Flags().BoolVar(&flagNoMedia, "no-media", false, "Do not take part in calls")
	joinCmd.Flags().StringVar(&flagOpen, "open", "", "Replace the room document with this file after joining")
	rootCmd.AddCommand(joinCmd)
}
