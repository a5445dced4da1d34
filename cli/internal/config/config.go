package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/bz-harshitha-alikepalli/example-collab-ide/pkg/protocol"
)

// Default configuration values (production)
const (
	DefaultDomain     = "coderoom.dev"
	DefaultSTUN       = "stun:stun.l.google.com:19302"
	DefaultTURN       = "" // Optional, empty by default
	DefaultTURNUser   = "coderoom"
	DefaultTURNPass   = "coderoom-secret"
	DefaultJudgeURL   = "https://ce.judge0.com"
	DefaultRunTimeout = 30 * time.Second
	DefaultCodec      = protocol.CodecMsgpack
)

// Config holds application configuration
type Config struct {
	// Domain is the backend server domain
	Domain string

	// Insecure switches to ws:// and http:// for local servers
	Insecure bool

	// WebSocketURL is constructed from domain and codec
	WebSocketURL string

	// Codec is the wire codec requested from the server
	Codec string

	// Name is the display name used when joining rooms
	Name string

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool

	// Media files streamed to peers; empty means receive-only
	VideoFile string
	AudioFile string
	NoMedia   bool

	// Code execution service
	JudgeURL   string
	JudgeToken string
	RunTimeout time.Duration
}

// Options for loading config with CLI flag overrides
type Options struct {
	Domain     string
	Insecure   bool
	Codec      string
	Name       string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool
	VideoFile  string
	AudioFile  string
	NoMedia    bool
	JudgeURL   string
	RunTimeout time.Duration
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	cfg := &Config{
		Domain:     pick(opts.Domain, "DOMAIN", DefaultDomain),
		Insecure:   opts.Insecure || os.Getenv("CODEROOM_INSECURE") == "1",
		Codec:      pick(opts.Codec, "CODEROOM_CODEC", DefaultCodec),
		Name:       strings.TrimSpace(pick(opts.Name, "CODEROOM_NAME", "")),
		STUNServer: pick(opts.STUNServer, "STUN_SERVER", DefaultSTUN),
		TURNServer: pick(opts.TURNServer, "TURN_SERVER", DefaultTURN),
		TURNUser:   pick(opts.TURNUser, "TURN_USERNAME", DefaultTURNUser),
		TURNPass:   pick(opts.TURNPass, "TURN_PASSWORD", DefaultTURNPass),
		ForceRelay: opts.ForceRelay,
		VideoFile:  opts.VideoFile,
		AudioFile:  opts.AudioFile,
		NoMedia:    opts.NoMedia,
		JudgeURL:   strings.TrimRight(pick(opts.JudgeURL, "JUDGE_URL", DefaultJudgeURL), "/"),
		JudgeToken: os.Getenv("JUDGE_AUTH_TOKEN"),
		RunTimeout: opts.RunTimeout,
	}

	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = DefaultRunTimeout
		if v := os.Getenv("CODEROOM_RUN_TIMEOUT"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return nil, fmt.Errorf("invalid CODEROOM_RUN_TIMEOUT: %w", err)
			}
			cfg.RunTimeout = d
		}
	}

	if cfg.Name == "" {
		cfg.Name = RandomName()
	}

	if _, err := protocol.SelectCodec(cfg.Codec); err != nil {
		return nil, err
	}

	scheme := "wss"
	if cfg.Insecure {
		scheme = "ws"
	}
	cfg.WebSocketURL = fmt.Sprintf("%s://%s/ws?codec=%s", scheme, cfg.Domain, cfg.Codec)

	return cfg, nil
}

func pick(flag, env, def string) string {
	if flag != "" {
		return flag
	}
	if v := os.Getenv(env); v != "" {
		return v
	}
	return def
}

// BaseURL returns the HTTP origin of the server.
func (c *Config) BaseURL() string {
	if c.Insecure {
		return "http://" + c.Domain
	}
	return "https://" + c.Domain
}

// GetRoomLink returns the webapp URL for a room ID
func (c *Config) GetRoomLink(roomID string) string {
	return fmt.Sprintf("%s/room/%s", c.BaseURL(), roomID)
}

// ParseRoomArg accepts a bare room id or a room link such as
// https://coderoom.dev/room/<id> and returns the validated id.
func ParseRoomArg(arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if strings.Contains(arg, "://") {
		u, err := url.Parse(arg)
		if err != nil {
			return "", fmt.Errorf("%w: %v", protocol.ErrInvalidRoom, err)
		}
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) != 2 || parts[0] != "room" {
			return "", fmt.Errorf("%w: expected a /room/<id> link", protocol.ErrInvalidRoom)
		}
		arg = parts[1]
	}

	if err := protocol.ValidateRoomID(arg); err != nil {
		return "", err
	}
	return arg, nil
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	if c.STUNServer == "" {
		return nil
	}
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("%s:3478?transport=udp", c.TURNServer),
		fmt.Sprintf("%s:3478?transport=tcp", c.TURNServer),
		fmt.Sprintf("turns:%s:5349?transport=tcp", strings.TrimPrefix(c.TURNServer, "turn:")),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}
