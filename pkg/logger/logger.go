package logger

import (
	"context"
	"log"
	"log/slog"
	"strings"
)

// FromSlog returns a *log.Logger whose lines are emitted as slog records at level.
// It is meant for libraries that only accept printf-style loggers.
func FromSlog(l *slog.Logger, level slog.Level) *log.Logger {
	if l == nil {
		l = slog.Default()
	}
	return log.New(writer{logger: l, level: level}, "", 0)
}

type writer struct {
	logger *slog.Logger
	level  slog.Level
}

func (w writer) Write(p []byte) (int, error) {
	w.logger.Log(context.Background(), w.level, strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
