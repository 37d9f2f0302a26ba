package syncengine

import (
	"property-sync-service/internal/core/domain"
)

// Diff находит поля, которые человек действительно изменил относительно снимка.
// Одна запись на изменившееся поле, в порядке domain.FieldOrder.
// Каноническая цена сравнивается как производное значение: вызывающий код
// заранее пересчитывает ее в proposed (см. Recompute).
func Diff(previous, proposed domain.PropertyRecord, meta domain.ChangeMeta) []domain.ChangeRecord {
	return DiffFieldValues(FieldValues(previous), FieldValues(proposed), meta)
}

// DiffFieldValues - то же для произвольных карт значений (например, сырого JSON).
// Поля, отсутствующие в next, изменениями не считаются.
func DiffFieldValues(prev, next map[domain.FieldName]any, meta domain.ChangeMeta) []domain.ChangeRecord {
	var changes []domain.ChangeRecord

	for _, field := range orderedKeys(next) {
		newValue := next[field]
		oldValue := prev[field]
		if ValuesEqual(oldValue, newValue) {
			continue
		}
		changes = append(changes, domain.ChangeRecord{
			Field:         field,
			PreviousValue: oldValue,
			NewValue:      newValue,
			ActorID:       meta.ActorID,
			ActorName:     meta.ActorName,
			Timestamp:     meta.Timestamp,
		})
	}
	return changes
}

func orderedKeys(m map[domain.FieldName]any) []domain.FieldName {
	keys := make([]domain.FieldName, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	domain.SortFields(keys)
	return keys
}

// ChangedFields - только имена полей, для логов и ответов API
func ChangedFields(changes []domain.ChangeRecord) []domain.FieldName {
	out := make([]domain.FieldName, 0, len(changes))
	for _, c := range changes {
		out = append(out, c.Field)
	}
	return out
}
