package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bz-harshitha-alikepalli/example-collab-ide/cli/internal/config"
	"github.com/bz-harshitha-alikepalli/example-collab-ide/cli/internal/execution"
	"github.com/bz-harshitha-alikepalli/example-collab-ide/cli/internal/files"
	"github.com/bz-harshitha-alikepalli/example-collab-ide/cli/internal/session"
	"github.com/bz-harshitha-alikepalli/example-collab-ide/cli/internal/ui"
	"github.com/bz-harshitha-alikepalli/example-collab-ide/pkg/protocol"
)

var errRunFailed = errors.New("run did not succeed")

var (
	flagRunLang  string
	flagRunStdin string
)

var runCmd = &cobra.Command{
	Use:     "run <file>",
	Aliases: []string{"r"},
	Short:   "Run a source file through the code execution service",
	Long: `Run a local source file the same way the room's run button does. The language
is inferred from the file extension unless --lang is given.

Examples:
  coderoom run main.py
  coderoom run --lang c_cpp solution.txt
  coderoom run --stdin input.txt Main.java`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := files.LoadSource(args[0])
		if err != nil {
			return err
		}
		if flagRunLang != "" {
			if src.Language, err = protocol.ParseLanguage(flagRunLang); err != nil {
				return err
			}
		}

		var stdin string
		if flagRunStdin != "" {
			data, err := os.ReadFile(flagRunStdin)
			if err != nil {
				return session.NewError("read stdin", err)
			}
			stdin = string(data)
		}

		cfg, err := loadConfig(config.Options{})
		if err != nil {
			return err
		}

		client := newExecutionClient(cfg)

		sp := ui.NewSpinner(fmt.Sprintf("Running %s as %s...", src.Name, src.Language))
		sp.Start()
		result, err := client.Run(cmd.Context(), src.Language, src.Text, stdin)
		sp.Stop()
		if err != nil {
			return session.NewError("run", err)
		}

		ui.RenderRunSummary(os.Stdout, ui.RunSummary{File: src.Name, Language: src.Language, Result: result})
		if !result.Success {
			return errRunFailed
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&flagRunLang, "lang", "l", "", "Language override (javascript, java, c_cpp, python, typescript, golang)")
	runCmd.Flags().StringVar(&flagRunStdin, "stdin", "", "File fed to the program's standard input")
	rootCmd.AddCommand(runCmd)
}

func newExecutionClient(cfg *config.Config) *execution.Client {
	opts := []execution.Option{execution.WithTimeout(cfg.RunTimeout)}
	if cfg.JudgeToken != "" {
		opts = append(opts, execution.WithAuthToken(cfg.JudgeToken))
	}
	return execution.NewClient(cfg.JudgeURL, opts...)
}
