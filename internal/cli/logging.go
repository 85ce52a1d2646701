package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lu-zhengda/venvkiller/internal/utils"
)

func debugLogPath() string {
	return filepath.Join(utils.DataDir(), "debug.log")
}

// setupLogger returns a discarding logger unless debug is set, in which case
// records go to a file; the TUI owns the terminal.
func setupLogger(debug bool) (*slog.Logger, error) {
	if !debug {
		return slog.New(slog.DiscardHandler), nil
	}
	path := debugLogPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open debug log: %w", err)
	}
	l := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug})).
		With("pid", os.Getpid(), "version", version)
	slog.SetDefault(l)
	return l, nil
}
