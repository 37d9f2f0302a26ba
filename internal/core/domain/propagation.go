package domain

import "fmt"

// FieldValue - значение поля, которое проект каскадно раздает своим юнитам
type FieldValue struct {
	Field FieldName `json:"field"`
	Value any       `json:"value"`
}

// ChildLocks - блокировки одного дочернего юнита
type ChildLocks struct {
	ChildID RecordID
	Locks   LockMap
}

// PropagationReport - итог по одному юниту
type PropagationReport struct {
	ChildID RecordID     `json:"child_id"`
	Written []FieldName  `json:"written"`
	Skipped []FieldName  `json:"skipped"`
	Values  []FieldValue `json:"-"`
	Error   string       `json:"error,omitempty"`
}

func (r PropagationReport) WrittenCount() int { return len(r.Written) }
func (r PropagationReport) SkippedCount() int { return len(r.Skipped) }

// PropagationSummary - сводка "обновлено N из M юнитов; K пропущено из-за ручных правок"
type PropagationSummary struct {
	JobID    string              `json:"job_id,omitempty"`
	ParentID RecordID            `json:"parent_id,omitempty"`
	Eligible int                 `json:"eligible"`
	Updated  int                 `json:"updated"`
	Skipped  int                 `json:"skipped"`
	Failed   int                 `json:"failed"`
	Children []PropagationReport `json:"children"`
}

// Add учитывает отчет по юниту в сводке
func (s *PropagationSummary) Add(r PropagationReport) {
	s.Eligible++
	s.Children = append(s.Children, r)
	if r.Error != "" {
		s.Failed++
		return
	}
	if len(r.Written) > 0 {
		s.Updated++
	}
	if len(r.Skipped) > 0 {
		s.Skipped++
	}
}

func (s PropagationSummary) Message() string {
	return fmt.Sprintf("Propagado a %d de %d unidades elegibles; %d omitidas por ediciones manuales",
		s.Updated, s.Eligible, s.Skipped)
}

// FieldValuesFromMap превращает {"field": value} из запроса или команды
// в список в порядке приоритета полей
func FieldValuesFromMap(in map[string]any) ([]FieldValue, error) {
	names := make([]FieldName, 0, len(in))
	for key := range in {
		name, err := ParseFieldName(key)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	SortFields(names)

	out := make([]FieldValue, 0, len(names))
	for _, name := range names {
		out = append(out, FieldValue{Field: name, Value: in[string(name)]})
	}
	return out, nil
}
