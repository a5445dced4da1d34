package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/bz-harshitha-alikepalli/example-collab-ide/cli/internal/config"
	"github.com/bz-harshitha-alikepalli/example-collab-ide/cli/internal/dns"
	"github.com/bz-harshitha-alikepalli/example-collab-ide/cli/internal/ui"
	"github.com/bz-harshitha-alikepalli/example-collab-ide/pkg/protocol"
)

const createTimeout = 10 * time.Second

var flagLocalID bool

var createCmd = &cobra.Command{
	Use:     "create",
	Aliases: []string{"c", "new"},
	Short:   "Create a new room and print its id and link",
	Long: `Create a new room id. The server hands out the id; with --local (or when the
server cannot be reached) a random id is generated on this machine, which works
just as well because rooms come into existence on first join.

Examples:
  coderoom create
  coderoom create --local`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(config.Options{})
		if err != nil {
			return err
		}

		roomID := protocol.NewRoomID()
		if !flagLocalID {
			sp := ui.NewConnectionSpinner("Creating room...")
			sp.Start()
			id, err := requestRoom(cmd.Context(), cfg)
			sp.Stop()
			if err != nil {
				slog.Warn("room request failed", "error", err)
				ui.PrintWarning(fmt.Sprintf("server unavailable, generated a local room id (%v)", err))
			} else {
				roomID = id
			}
		}

		ui.NewRoomInfo(roomID, cfg.GetRoomLink(roomID)).Render()
		fmt.Println()
		ui.PrintInfof("Join with: coderoom join %s", roomID)
		return nil
	},
}

func init() {
	createCmd.Flags().BoolVar(&flagLocalID, "local", false, "Generate the room id locally without contacting the server")
	rootCmd.AddCommand(createCmd)
}

// requestRoom asks the server for a fresh room id.
func requestRoom(ctx context.Context, cfg *config.Config) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, createTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL()+"/api/rooms", nil)
	if err != nil {
		return "", err
	}

	client := &http.Client{Transport: &http.Transport{DialContext: dns.DialContext}}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}

	var body struct {
		RoomID string `json:"roomId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if err := protocol.ValidateRoomID(body.RoomID); err != nil {
		return "", err
	}
	return body.RoomID, nil
}
