package scheduler

import (
	"context"
	"fmt"
	"sync"

	"property-sync-service/internal/contextkeys"
	"property-sync-service/internal/core/domain"
	"property-sync-service/internal/core/port"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

type ratesRefresher interface {
	Refresh(ctx context.Context) (*domain.Rates, error)
}

// RatesRefresher по расписанию обновляет курсы валют. Реализует EventListenerPort.
type RatesRefresher struct {
	cron     *cron.Cron
	spec     string
	ratesUC  ratesRefresher
	logger   port.LoggerPort
	stopOnce sync.Once
}

func NewRatesRefresher(spec string, ratesUC ratesRefresher, logger port.LoggerPort) (*RatesRefresher, error) {
	if spec == "" {
		return nil, fmt.Errorf("scheduler: cron spec cannot be empty")
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("scheduler: invalid cron expression %q: %w", spec, err)
	}
	return &RatesRefresher{
		cron:    cron.New(),
		spec:    spec,
		ratesUC: ratesUC,
		logger:  logger.WithFields(port.Fields{"component": "RatesRefresher", "cron": spec}),
	}, nil
}

// Start сразу обновляет курсы один раз, затем работает по расписанию до отмены ctx
func (r *RatesRefresher) Start(ctx context.Context) error {
	if _, err := r.cron.AddFunc(r.spec, func() { r.runOnce(ctx) }); err != nil {
		return fmt.Errorf("scheduler: failed to schedule rates refresh: %w", err)
	}

	r.runOnce(ctx)
	r.cron.Start()
	r.logger.Info("Rates refresh scheduled", nil)

	<-ctx.Done()
	return nil
}

func (r *RatesRefresher) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	runCtx, runLogger := contextkeys.WithTrace(ctx, r.logger, uuid.New().String())

	if _, err := r.ratesUC.Refresh(runCtx); err != nil {
		// старые курсы остаются в кэше и в БД
		runLogger.Warn("Scheduled rates refresh failed", port.Fields{"error": err.Error()})
	}
}

// Close дожидается завершения текущего обновления
func (r *RatesRefresher) Close() error {
	r.stopOnce.Do(func() {
		<-r.cron.Stop().Done()
	})
	return nil
}
