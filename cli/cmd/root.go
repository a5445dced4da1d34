package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bz-harshitha-alikepalli/example-collab-ide/cli/internal/config"
	"github.com/bz-harshitha-alikepalli/example-collab-ide/cli/internal/logging"
	"github.com/bz-harshitha-alikepalli/example-collab-ide/cli/internal/session"
	"github.com/bz-harshitha-alikepalli/example-collab-ide/cli/internal/ui"
	"github.com/bz-harshitha-alikepalli/example-collab-ide/cli/internal/version"
)

var (
	flagDomain     string
	flagInsecure   bool
	flagCodec      string
	flagName       string
	flagSTUN       string
	flagTURN       string
	flagTURNUser   string
	flagTURNPass   string
	flagRelay      bool
	flagJudge      string
	flagRunTimeout time.Duration
	flagLogFile    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "coderoom",
	Short: "Collaborative code rooms with live editing, code runs and mesh calls",
	Long: `CodeRoom joins you to a shared code room from the terminal. Everyone in the
room edits the same document, runs it through a remote execution service and
can hold a peer-to-peer audio/video call over WebRTC.`,
	Version: version.Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if flagLogFile == "" {
			return nil
		}
		closer, err := logging.InitFile(flagLogFile)
		if err != nil {
			return err
		}
		cobra.OnFinalize(func() { closer.Close() })
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&flagDomain, "domain", "d", "", "Server domain (env DOMAIN)")
	flags.BoolVar(&flagInsecure, "insecure", false, "Use ws:// and http:// (local servers)")
	flags.StringVar(&flagCodec, "codec", "", "Wire codec: json or msgpack (env CODEROOM_CODEC)")
	flags.StringVarP(&flagName, "name", "n", "", "Display name (env CODEROOM_NAME, random if unset)")
	flags.StringVar(&flagSTUN, "stun", "", "STUN server URL (env STUN_SERVER)")
	flags.StringVar(&flagTURN, "turn", "", "TURN server URL (env TURN_SERVER)")
	flags.StringVar(&flagTURNUser, "turn-user", "", "TURN username (env TURN_USERNAME)")
	flags.StringVar(&flagTURNPass, "turn-pass", "", "TURN password (env TURN_PASSWORD)")
	flags.BoolVar(&flagRelay, "relay", false, "Force TURN relay for media")
	flags.StringVar(&flagJudge, "judge", "", "Code execution service URL (env JUDGE_URL)")
	flags.DurationVar(&flagRunTimeout, "run-timeout", 0, "Give up on a code run after this long (default 30s)")
	flags.StringVar(&flagLogFile, "log-file", "", "Write logs to this file instead of stderr")
}

// loadConfig merges the persistent flags with command specific options.
func loadConfig(opts config.Options) (*config.Config, error) {
	opts.Domain = flagDomain
	opts.Insecure = flagInsecure
	opts.Codec = flagCodec
	opts.Name = flagName
	opts.STUNServer = flagSTUN
	opts.TURNServer = flagTURN
	opts.TURNUser = flagTURNUser
	opts.TURNPass = flagTURNPass
	opts.ForceRelay = flagRelay
	opts.JudgeURL = flagJudge
	opts.RunTimeout = flagRunTimeout

	cfg, err := config.Load(opts)
	if err != nil {
		return nil, session.NewError("load config", err)
	}

	if cfg.ForceRelay && cfg.GetTURNServers() == nil {
		return nil, fmt.Errorf("cannot force relay mode without TURN server configured")
	}

	return cfg, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.PrintError(err.Error())
		stop()
		os.Exit(1)
	}
}
