package domain

import "time"

// LockInfo - кто и когда зафиксировал поле вручную
type LockInfo struct {
	ActorID       string    `json:"actor_id"`
	ActorName     string    `json:"actor_name"`
	Timestamp     time.Time `json:"timestamp"`
	PreviousValue any       `json:"previous_value"`
}

// LockMap - поля, которые автоматические процессы перезаписывать не должны
type LockMap map[FieldName]LockInfo

func (m LockMap) IsLocked(f FieldName) bool {
	_, ok := m[f]
	return ok
}

func (m LockMap) Clone() LockMap {
	if m == nil {
		return nil
	}
	out := make(LockMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Merge возвращает новую карту; при совпадении побеждает более новая блокировка
func (m LockMap) Merge(newLocks LockMap) LockMap {
	out := make(LockMap, len(m)+len(newLocks))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range newLocks {
		out[k] = v
	}
	return out
}

// Fields возвращает заблокированные поля в порядке приоритета
func (m LockMap) Fields() []FieldName {
	out := make([]FieldName, 0, len(m))
	for f := range m {
		out = append(out, f)
	}
	SortFields(out)
	return out
}

// ChangeRecord - неизменяемая запись аудита об одном изменившемся поле
type ChangeRecord struct {
	Field         FieldName `json:"field"`
	PreviousValue any       `json:"previous_value"`
	NewValue      any       `json:"new_value"`
	ActorID       string    `json:"actor_id"`
	ActorName     string    `json:"actor_name"`
	Timestamp     time.Time `json:"timestamp"`
}

// ChangeMeta - атрибуция одной операции сохранения
type ChangeMeta struct {
	ActorID   string
	ActorName string
	Timestamp time.Time
}

// AppendAudit возвращает новый срез, исходный журнал не меняется
func AppendAudit(log []ChangeRecord, entries ...ChangeRecord) []ChangeRecord {
	out := make([]ChangeRecord, 0, len(log)+len(entries))
	out = append(out, log...)
	return append(out, entries...)
}
