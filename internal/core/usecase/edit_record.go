package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"property-sync-service/internal/contextkeys"
	"property-sync-service/internal/core/domain"
	"property-sync-service/internal/core/port"
	"property-sync-service/internal/core/syncengine"

	"github.com/shopspring/decimal"
)

// EditRecordUseCase обслуживает форму редактирования записи.
// Один и тот же use case работает для админки и кабинета брокера,
// различается только политика редактора.
type EditRecordUseCase struct {
	storage   port.RecordStoragePort
	rates     port.RateSourcePort
	validator *syncengine.Validator
	policy    domain.EditorPolicy
	now       func() time.Time
}

func NewEditRecordUseCase(
	storage port.RecordStoragePort,
	rates port.RateSourcePort,
	validator *syncengine.Validator,
	policy domain.EditorPolicy,
) *EditRecordUseCase {
	return &EditRecordUseCase{
		storage:   storage,
		rates:     rates,
		validator: validator,
		policy:    policy,
		now:       time.Now,
	}
}

// WithClock подменяет часы (нужно для проверки даты сдачи в тестах)
func (uc *EditRecordUseCase) WithClock(now func() time.Time) *EditRecordUseCase {
	uc.now = now
	return uc
}

func (uc *EditRecordUseCase) Policy() domain.EditorPolicy {
	return uc.policy
}

// PreviewPrice пересчитывает каноническую цену на лету, пока пользователь печатает
func (uc *EditRecordUseCase) PreviewPrice(ctx context.Context, published decimal.Decimal, regime domain.QuotingRegime) (*domain.PricePreview, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	ucLogger := logger.WithFields(port.Fields{
		"use_case": "PreviewPrice",
		"editor":   uc.policy.Editor,
		"regime":   regime,
	})

	if !regime.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownQuotingRegime, regime)
	}

	rates, err := uc.rates.CurrentRates(ctx)
	if err != nil {
		ucLogger.Error("Failed to get current rates", err, nil)
		return nil, fmt.Errorf("failed to get current rates: %w", err)
	}

	preview := &domain.PricePreview{
		CanonicalPriceUSD: syncengine.NormalizeWith(rates, published, regime),
		OfficialRate:      rates.Official,
		ParallelRate:      rates.Parallel,
		RatesAsOf:         rates.AsOf,
	}
	ucLogger.Debug("Price preview computed", port.Fields{"canonical_price_usd": preview.CanonicalPriceUSD.String()})
	return preview, nil
}

// Validate прогоняет проверки без сохранения
func (uc *EditRecordUseCase) Validate(ctx context.Context, proposed domain.PropertyRecord) (*domain.ValidationResult, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	ucLogger := logger.WithFields(port.Fields{
		"use_case":  "ValidateRecord",
		"editor":    uc.policy.Editor,
		"record_id": proposed.ID,
	})

	rates, err := uc.rates.CurrentRates(ctx)
	if err != nil {
		ucLogger.Error("Failed to get current rates", err, nil)
		return nil, fmt.Errorf("failed to get current rates: %w", err)
	}

	result := uc.validator.Validate(syncengine.Recompute(proposed, rates), uc.now())
	ucLogger.Info("Validation finished", port.Fields{
		"errors":   len(result.Errors),
		"warnings": len(result.Warnings),
	})
	return &result, nil
}

// Save: проверка -> шлюз подтверждения -> поиск изменений -> аудит и блокировки -> атомарная запись
func (uc *EditRecordUseCase) Save(ctx context.Context, cmd domain.SaveEditCommand) (*domain.SaveEditResult, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	ucLogger := logger.WithFields(port.Fields{
		"use_case":  "SaveEdit",
		"editor":    uc.policy.Editor,
		"record_id": cmd.RecordID,
		"actor_id":  cmd.Actor.ID,
	})

	ucLogger.Info("Use case started", nil)

	if !cmd.Actor.Valid() {
		return nil, domain.ErrActorRequired
	}

	previous, err := uc.storage.LoadRecord(ctx, cmd.RecordID)
	if err != nil {
		if !errors.Is(err, domain.ErrRecordNotFound) {
			ucLogger.Error("Storage returned an error", err, nil)
		}
		return nil, err
	}

	// форма открыта на старой версии: сравнение с ней дало бы ложные изменения
	if !cmd.SnapshotUpdatedAt.IsZero() && !previous.UpdatedAt.Equal(cmd.SnapshotUpdatedAt) {
		ucLogger.Warn("Snapshot is stale", port.Fields{
			"snapshot_updated_at": cmd.SnapshotUpdatedAt,
			"stored_updated_at":   previous.UpdatedAt,
		})
		return nil, domain.ErrStaleSnapshot
	}

	rates, err := uc.rates.CurrentRates(ctx)
	if err != nil {
		ucLogger.Error("Failed to get current rates", err, nil)
		return nil, fmt.Errorf("failed to get current rates: %w", err)
	}

	proposed := uc.prepareProposed(*previous, cmd.Proposed, rates)

	result := uc.validator.Validate(proposed, uc.now())
	if err := syncengine.GateError(result, cmd.Confirmed); err != nil {
		ucLogger.Info("Save stopped by validation gate", port.Fields{
			"errors":    result.Errors,
			"warnings":  result.Warnings,
			"confirmed": cmd.Confirmed,
		})
		return nil, err
	}

	meta := domain.ChangeMeta{ActorID: cmd.Actor.ID, ActorName: cmd.Actor.Name, Timestamp: uc.now().UTC()}
	changes := syncengine.Diff(*previous, proposed, meta)
	if len(changes) == 0 {
		ucLogger.Info("Nothing to save", nil)
		return nil, domain.ErrNothingToSave
	}

	for _, c := range changes {
		// производная цена меняется вслед за ценой публикации или курсом
		if c.Field == domain.FieldCanonicalPriceUSD {
			continue
		}
		if !uc.policy.CanEdit(c.Field) {
			return nil, fmt.Errorf("%w: %s", domain.ErrFieldNotEditable, c.Field)
		}
	}

	ledger := syncengine.ApplyChanges(changes,
		syncengine.ExemptFields(proposed, uc.policy),
		syncengine.WithLockExempt(syncengine.DriftingFields(proposed)),
	)
	toSave := syncengine.Commit(proposed, ledger)

	saved, err := uc.storage.SaveEdit(ctx, domain.SaveBundle{
		Record:            toSave,
		ExpectedUpdatedAt: previous.UpdatedAt,
		AuditEntries:      ledger.NewAuditEntries,
		NewLocks:          ledger.NewLocks,
	})
	if err != nil {
		if errors.Is(err, domain.ErrStaleSnapshot) {
			ucLogger.Warn("Record changed concurrently, save rejected", nil)
		} else {
			ucLogger.Error("Failed to save edit", err, nil)
		}
		return nil, err
	}

	ucLogger.Info("Use case finished successfully", port.Fields{
		"changed_fields": syncengine.ChangedFields(changes),
		"new_locks":      len(ledger.NewLocks),
	})

	return &domain.SaveEditResult{
		Record:   *saved,
		Changes:  changes,
		NewLocks: ledger.NewLocks,
		Result:   result,
	}, nil
}

// prepareProposed переносит неизменяемые части из хранимой версии и
// пересчитывает производную цену; присланное клиентом значение игнорируется.
func (uc *EditRecordUseCase) prepareProposed(previous, proposed domain.PropertyRecord, rates domain.Rates) domain.PropertyRecord {
	out := proposed.Clone()
	out.ID = previous.ID
	out.ParentID = previous.ParentID
	out.LockedFields = previous.LockedFields.Clone()
	out.AuditLog = previous.AuditLog
	out.UpdatedAt = previous.UpdatedAt
	out.Parking = out.Parking.Normalized()
	out.Storage = out.Storage.Normalized()
	return syncengine.Recompute(out, rates)
}
