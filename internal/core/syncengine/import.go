package syncengine

import (
	"property-sync-service/internal/core/domain"
)

// MergeImport готовит входящую копию записи (импорт, выгрузка скрейпера) к записи
// поверх сохраненной версии. Поля, заблокированные людьми, сохраняют сохраненные
// значения, блокировки переносятся без изменений. Каноническая цена всегда
// пересчитывается по курсам, присланное значение игнорируется.
// stored == nil - записи еще нет, блокировать нечего.
func MergeImport(stored *domain.PropertyRecord, incoming domain.PropertyRecord, rates domain.Rates) (domain.PropertyRecord, domain.PropagationReport, error) {
	out := incoming.Clone()
	out.LockedFields = nil
	out.AuditLog = nil

	report := domain.PropagationReport{ChildID: incoming.ID}
	if stored != nil && len(stored.LockedFields) > 0 {
		incomingValues := FieldValues(incoming)
		candidates := make([]domain.FieldValue, 0, len(domain.FieldOrder))
		for _, f := range domain.FieldOrder {
			if f == domain.FieldCanonicalPriceUSD {
				continue
			}
			candidates = append(candidates, domain.FieldValue{Field: f, Value: incomingValues[f]})
		}
		report = FilterPropagatable(candidates, stored.LockedFields)
		report.ChildID = incoming.ID

		storedValues := FieldValues(*stored)
		keep := make([]domain.FieldValue, 0, len(report.Skipped))
		for _, f := range report.Skipped {
			keep = append(keep, domain.FieldValue{Field: f, Value: storedValues[f]})
		}
		merged, err := ApplyFieldValues(out, keep)
		if err != nil {
			return incoming, report, err
		}
		out = merged
		out.LockedFields = stored.LockedFields.Clone()
	}

	out = Recompute(out, rates)
	if stored != nil && stored.LockedFields.IsLocked(domain.FieldCanonicalPriceUSD) {
		out.CanonicalPriceUSD = stored.CanonicalPriceUSD
		report.Skipped = append(report.Skipped, domain.FieldCanonicalPriceUSD)
		domain.SortFields(report.Skipped)
	}
	return out, report, nil
}
