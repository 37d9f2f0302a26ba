package contextkeys

import (
	"context"

	"property-sync-service/internal/core/port"
)

type traceIDKeyType struct{}

var traceIDKey = traceIDKeyType{}

func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceIDFromContext: "" если trace_id не задан
func TraceIDFromContext(ctx context.Context) string {
	traceID, _ := ctx.Value(traceIDKey).(string)
	return traceID
}

// WithTrace кладет в контекст trace_id и логгер, уже помеченный этим trace_id.
// Возвращает и логгер, чтобы вызывающий мог добавить свои поля.
func WithTrace(ctx context.Context, logger port.LoggerPort, traceID string) (context.Context, port.LoggerPort) {
	traced := logger.WithFields(port.Fields{"trace_id": traceID})
	ctx = ContextWithTraceID(ctx, traceID)
	return ContextWithLogger(ctx, traced), traced
}
