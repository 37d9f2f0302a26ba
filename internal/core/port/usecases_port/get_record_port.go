package usecases_port

import (
	"context"

	"property-sync-service/internal/core/domain"
)

type GetRecordPort interface {
	GetRecord(ctx context.Context, id domain.RecordID) (*domain.PropertyRecord, error)
	GetAuditLog(ctx context.Context, id domain.RecordID, limit, offset int) ([]domain.ChangeRecord, error)
}
