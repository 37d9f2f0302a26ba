package usecase

import (
	"context"
	"errors"

	"property-sync-service/internal/contextkeys"
	"property-sync-service/internal/core/domain"
	"property-sync-service/internal/core/port"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

type GetRecordUseCase struct {
	storage port.RecordStoragePort
}

func NewGetRecordUseCase(storage port.RecordStoragePort) *GetRecordUseCase {
	return &GetRecordUseCase{storage: storage}
}

func (uc *GetRecordUseCase) GetRecord(ctx context.Context, id domain.RecordID) (*domain.PropertyRecord, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	ucLogger := logger.WithFields(port.Fields{
		"use_case":  "GetRecord",
		"record_id": id,
	})

	rec, err := uc.storage.LoadRecord(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrRecordNotFound) {
			ucLogger.Error("Storage returned an error", err, nil)
		}
		return nil, err
	}
	return rec, nil
}

// GetAuditLog - постраничный журнал правок, от старых к новым
func (uc *GetRecordUseCase) GetAuditLog(ctx context.Context, id domain.RecordID, limit, offset int) ([]domain.ChangeRecord, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	ucLogger := logger.WithFields(port.Fields{
		"use_case":  "GetAuditLog",
		"record_id": id,
	})

	if limit <= 0 {
		limit = defaultAuditLimit
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}
	if offset < 0 {
		offset = 0
	}

	entries, err := uc.storage.GetAuditLog(ctx, id, limit, offset)
	if err != nil {
		if !errors.Is(err, domain.ErrRecordNotFound) {
			ucLogger.Error("Storage returned an error", err, nil)
		}
		return nil, err
	}
	return entries, nil
}
