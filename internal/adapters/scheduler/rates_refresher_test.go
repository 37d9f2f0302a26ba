package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	logger_adapter "property-sync-service/internal/adapters/logger"
	"property-sync-service/internal/core/domain"
	"property-sync-service/internal/core/port"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRefresher struct {
	calls atomic.Int32
	err   error
}

func (c *countingRefresher) Refresh(ctx context.Context) (*domain.Rates, error) {
	c.calls.Add(1)
	return nil, c.err
}

func discardLogger() port.LoggerPort {
	return logger_adapter.NewSlogAdapter(logger_adapter.SlogConfig{Writer: io.Discard, Level: slog.LevelError})
}

func TestNewRatesRefresher_RejectsBadSpec(t *testing.T) {
	_, err := NewRatesRefresher("", &countingRefresher{}, discardLogger())
	assert.Error(t, err)

	_, err = NewRatesRefresher("every now and then", &countingRefresher{}, discardLogger())
	assert.Error(t, err)

	_, err = NewRatesRefresher("@every 15m", &countingRefresher{}, discardLogger())
	assert.NoError(t, err)
}

func TestRatesRefresher_RefreshesOnStartAndStops(t *testing.T) {
	uc := &countingRefresher{err: errors.New("upstream down")}
	refresher, err := NewRatesRefresher("@every 1h", uc, discardLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- refresher.Start(ctx) }()

	require.Eventually(t, func() bool { return uc.calls.Load() == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("refresher did not stop after cancellation")
	}
	assert.NoError(t, refresher.Close())
	assert.NoError(t, refresher.Close())
}
