package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fredcamaral/reloadrelay/internal/domain/entities"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New builds the process logger from cfg. Records go to out and, when
// cfg.File is set, are appended to that file as well. The returned io.Closer
// releases the file and must be deferred by the caller.
func New(cfg entities.LoggingConfig, out io.Writer) (*slog.Logger, io.Closer, error) {
	if out == nil {
		out = os.Stderr
	}

	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600) // #nosec G304 - path is validated config
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file %s: %w", cfg.File, err)
		}
		out = io.MultiWriter(out, f)
		closer = f
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.GetLevel())}

	var handler slog.Handler
	if cfg.JSONFormat {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	return slog.New(handler), closer, nil
}

// ParseLevel converts a configured level to slog.Level. Defaults to LevelInfo.
func ParseLevel(level entities.LogLevel) slog.Level {
	switch level {
	case entities.LogLevelDebug:
		return slog.LevelDebug
	case entities.LogLevelWarn:
		return slog.LevelWarn
	case entities.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
