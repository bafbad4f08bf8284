package logger

import (
	"log"
	"log/slog"
)

// Std bridges a slog.Logger into the *log.Logger expected by net/http.
// Lines are emitted at warn level with a component attribute.
func Std(base *slog.Logger, component string) *log.Logger {
	if base == nil {
		base = slog.Default()
	}
	return slog.NewLogLogger(base.With("component", component).Handler(), slog.LevelWarn)
}
