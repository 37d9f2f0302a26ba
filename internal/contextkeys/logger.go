package contextkeys

import (
	"context"

	"property-sync-service/internal/core/port"
)

type loggerKeyType struct{}

var loggerKey = loggerKeyType{}

func ContextWithLogger(ctx context.Context, logger port.LoggerPort) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// LoggerFromContext никогда не возвращает nil: без логгера в контексте
// (CLI, тесты ядра) записи просто отбрасываются
func LoggerFromContext(ctx context.Context) port.LoggerPort {
	if logger, ok := ctx.Value(loggerKey).(port.LoggerPort); ok && logger != nil {
		return logger
	}
	return discard{}
}

type discard struct{}

func (discard) Info(string, port.Fields)                 {}
func (discard) Warn(string, port.Fields)                 {}
func (discard) Error(string, error, port.Fields)         {}
func (discard) Debug(string, port.Fields)                {}
func (d discard) WithFields(port.Fields) port.LoggerPort { return d }
