package contextkeys

import (
	"bytes"
	"context"
	"testing"

	"property-sync-service/internal/core/domain"
	"property-sync-service/internal/core/port"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	buf    *bytes.Buffer
	fields port.Fields
}

func (l recordingLogger) Info(msg string, _ port.Fields)           { l.buf.WriteString(msg) }
func (l recordingLogger) Warn(msg string, _ port.Fields)           { l.buf.WriteString(msg) }
func (l recordingLogger) Error(msg string, _ error, _ port.Fields) { l.buf.WriteString(msg) }
func (l recordingLogger) Debug(msg string, _ port.Fields)          { l.buf.WriteString(msg) }
func (l recordingLogger) WithFields(f port.Fields) port.LoggerPort {
	merged := port.Fields{}
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range f {
		merged[k] = v
	}
	return recordingLogger{buf: l.buf, fields: merged}
}

func TestLoggerFromContext_FallsBackToDiscard(t *testing.T) {
	logger := LoggerFromContext(context.Background())
	require.NotNil(t, logger)
	assert.NotPanics(t, func() {
		logger.WithFields(port.Fields{"a": 1}).Error("boom", nil, nil)
	})
}

func TestWithTrace(t *testing.T) {
	base := recordingLogger{buf: &bytes.Buffer{}}

	ctx, traced := WithTrace(context.Background(), base, "trace-1")

	assert.Equal(t, "trace-1", TraceIDFromContext(ctx))
	assert.Equal(t, "trace-1", traced.(recordingLogger).fields["trace_id"])
	assert.Equal(t, traced, LoggerFromContext(ctx))

	LoggerFromContext(ctx).Info("hello", nil)
	assert.Equal(t, "hello", base.buf.String())

	assert.Empty(t, TraceIDFromContext(context.Background()))
}

func TestActorFromContext(t *testing.T) {
	_, ok := ActorFromContext(context.Background())
	assert.False(t, ok)

	ctx := ContextWithActor(context.Background(), domain.Actor{ID: "admin-7", Name: "Ana"})
	actor, ok := ActorFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "admin-7", actor.ID)
}
