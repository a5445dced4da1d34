package logging

import (
	"io"
	"log/slog"
	"os"
)

// Init installs the CLI logger. It writes to stderr at error level unless
// LOG_LEVEL says otherwise, so the TUI is left alone.
func Init() {
	slog.SetDefault(New(os.Stderr, os.Getenv("LOG_LEVEL")))
}

// InitFile redirects logging to path while the TUI owns the terminal.
func InitFile(path string) (io.Closer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(New(f, os.Getenv("LOG_LEVEL")))
	return f, nil
}

// New builds a text logger for w.
func New(w io.Writer, level string) *slog.Logger {
	return slog.New(
		slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: parseLevel(level),
		}),
	)
}

func parseLevel(l string) slog.Level {
	switch l {
	case "dev", "development", "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	default:
		// production only shows errors
		return slog.LevelError
	}
}
