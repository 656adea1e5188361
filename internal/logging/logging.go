package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// LogFile is the TUI log file inside the profile directory
const LogFile = "negocio.log"

// New creates a JSON logger writing to w at the given level
func New(w io.Writer, level string) zerolog.Logger {
	return zerolog.New(w).Level(parseLevel(level)).With().Timestamp().Logger()
}

// Console creates a human readable logger on stderr for non-interactive commands
func Console(level string) zerolog.Logger {
	return New(zerolog.ConsoleWriter{Out: os.Stderr}, level)
}

// File creates a logger appending JSON lines to the log file in the profile directory.
// The TUI logs here so that nothing is written over the screen.
func File(profileDir, level string) (zerolog.Logger, io.Closer, error) {
	if err := os.MkdirAll(profileDir, 0o700); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("failed to create profile directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(profileDir, LogFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return New(f, level), f, nil
}

func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}
