package domain

import "time"

// SaveBundle - все, что хранилище должно записать атомарно за одно сохранение
type SaveBundle struct {
	Record PropertyRecord
	// ExpectedUpdatedAt - версия снимка, с которым работал редактор
	ExpectedUpdatedAt time.Time
	AuditEntries      []ChangeRecord
	NewLocks          LockMap
}
