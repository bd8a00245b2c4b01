package logger

import (
	"log/slog"
	"os"
)

// New returns the process logger: structured text to stdout.
func New() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}
