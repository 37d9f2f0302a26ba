package port

import (
	"context"

	"property-sync-service/internal/core/domain"
)

// PropagationApplier получает свежую версию юнита, прочитанную под блокировкой
// строки, и возвращает, что записать. nil - писать нечего.
type PropagationApplier func(child domain.PropertyRecord) (*domain.SaveBundle, error)

// RecordStoragePort - хранилище записей, журнала аудита и блокировок полей
type RecordStoragePort interface {
	LoadRecord(ctx context.Context, id domain.RecordID) (*domain.PropertyRecord, error)

	// SaveEdit атомарно пишет запись, строки аудита и блокировки.
	// Если версия в хранилище не совпадает с ExpectedUpdatedAt - domain.ErrStaleSnapshot.
	SaveEdit(ctx context.Context, bundle domain.SaveBundle) (*domain.PropertyRecord, error)

	ListChildren(ctx context.Context, parentID domain.RecordID) ([]domain.PropertyRecord, error)

	// ApplyPropagation - read-modify-write одного юнита в одной транзакции
	ApplyPropagation(ctx context.Context, childID domain.RecordID, apply PropagationApplier) error

	GetAuditLog(ctx context.Context, id domain.RecordID, limit, offset int) ([]domain.ChangeRecord, error)
}

// ImportMerger получает версию записи, прочитанную в транзакции импорта
// (nil - записи еще нет), и входящую копию; возвращает то, что будет записано.
type ImportMerger func(stored *domain.PropertyRecord, incoming domain.PropertyRecord) (domain.PropertyRecord, error)

// RecordImporterPort - загрузка записей целиком (импорт, CLI, тестовые данные).
// Аудит при импорте не пишется, таблица блокировок не меняется.
type RecordImporterPort interface {
	UpsertRecord(ctx context.Context, rec domain.PropertyRecord, merge ImportMerger) (*domain.PropertyRecord, error)
}
