package usecase

import (
	"context"
	"fmt"

	"property-sync-service/internal/contextkeys"
	"property-sync-service/internal/core/domain"
	"property-sync-service/internal/core/port"
	"property-sync-service/internal/core/syncengine"
)

// ImportRecordUseCase загружает копию записи из внешнего источника (выгрузка
// скрейпера, файл для CLI). Ручные правки, защищенные блокировками, переживают импорт.
type ImportRecordUseCase struct {
	storage port.RecordImporterPort
	rates   port.RateSourcePort
}

func NewImportRecordUseCase(storage port.RecordImporterPort, rates port.RateSourcePort) *ImportRecordUseCase {
	return &ImportRecordUseCase{storage: storage, rates: rates}
}

func (uc *ImportRecordUseCase) Import(ctx context.Context, rec domain.PropertyRecord) (*domain.PropertyRecord, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	ucLogger := logger.WithFields(port.Fields{
		"use_case":  "ImportRecord",
		"record_id": rec.ID,
	})

	if rec.ID == "" {
		return nil, fmt.Errorf("%w: record id is empty", domain.ErrInvalidRecord)
	}

	rates, err := uc.rates.CurrentRates(ctx)
	if err != nil {
		ucLogger.Error("Failed to get current rates", err, nil)
		return nil, fmt.Errorf("failed to get current rates: %w", err)
	}

	var report domain.PropagationReport
	saved, err := uc.storage.UpsertRecord(ctx, rec, func(stored *domain.PropertyRecord, incoming domain.PropertyRecord) (domain.PropertyRecord, error) {
		merged, r, err := syncengine.MergeImport(stored, incoming, rates)
		report = r
		return merged, err
	})
	if err != nil {
		ucLogger.Error("Failed to import record", err, nil)
		return nil, err
	}

	if len(report.Skipped) > 0 {
		ucLogger.Info("Locked fields kept their stored values", port.Fields{"fields": report.Skipped})
	}
	ucLogger.Info("Record imported", port.Fields{
		"canonical_price_usd": saved.CanonicalPriceUSD.String(),
		"updated_at":          saved.UpdatedAt,
	})
	return saved, nil
}
