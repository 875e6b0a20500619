// Package pipeline ties sources, the glyph engine, the effect resolver and
// the compositor into the per-frame render step shared by every driver.
package pipeline

import (
	"log/slog"
	"sync/atomic"
)

var logger atomic.Pointer[slog.Logger]

func init() {
	logger.Store(slog.New(slog.DiscardHandler))
}

// SetLogger installs the diagnostics logger. nil restores the silent default.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	logger.Store(l)
}

// Logger returns the diagnostics logger.
func Logger() *slog.Logger {
	return logger.Load()
}
