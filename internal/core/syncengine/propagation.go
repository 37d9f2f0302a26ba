package syncengine

import (
	"fmt"

	"property-sync-service/internal/core/domain"
)

// PropagatableFields - общие атрибуты проекта, которые можно раздавать юнитам
var PropagatableFields = domain.NewFieldSet(
	domain.FieldProjectName,
	domain.FieldFloor,
	domain.FieldParking,
	domain.FieldStorage,
	domain.FieldConstructionState,
	domain.FieldEstimatedDeliveryMonth,
	domain.FieldAmenities,
	domain.FieldEquipment,
)

// CheckPropagatable отклоняет набор, если в нем есть поле не из PropagatableFields
func CheckPropagatable(candidates []domain.FieldValue) error {
	for _, c := range candidates {
		if !c.Field.Valid() {
			return fmt.Errorf("%w: %q", domain.ErrUnknownField, c.Field)
		}
		if !PropagatableFields.Has(c.Field) {
			return fmt.Errorf("%w: %s", domain.ErrFieldNotPropagatable, c.Field)
		}
	}
	return nil
}

// FilterPropagatable оставляет только значения для незаблокированных полей юнита.
// Заблокированные поля попадают в Skipped и никогда не перезаписываются.
func FilterPropagatable(candidates []domain.FieldValue, childLocks domain.LockMap) domain.PropagationReport {
	var report domain.PropagationReport
	for _, c := range candidates {
		if childLocks.IsLocked(c.Field) {
			report.Skipped = append(report.Skipped, c.Field)
			continue
		}
		report.Written = append(report.Written, c.Field)
		report.Values = append(report.Values, c)
	}
	return report
}

// PlanPropagation считает сводку N из M без записи, по картам блокировок юнитов
func PlanPropagation(candidates []domain.FieldValue, children []domain.ChildLocks) domain.PropagationSummary {
	var summary domain.PropagationSummary
	for _, child := range children {
		report := FilterPropagatable(candidates, child.Locks)
		report.ChildID = child.ChildID
		summary.Add(report)
	}
	return summary
}
