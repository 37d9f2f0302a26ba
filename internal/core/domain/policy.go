package domain

// Editor - какой редактор выполняет сохранение
type Editor string

const (
	EditorAdmin  Editor = "admin"
	EditorBroker Editor = "broker"
)

func (e Editor) Valid() bool {
	return e == EditorAdmin || e == EditorBroker
}

// EditorPolicy отличает админку от кабинета брокера.
// EditableFields == nil означает, что редактировать можно все поля.
type EditorPolicy struct {
	Editor              Editor
	ExemptParallelPrice bool
	EditableFields      FieldSet
}

func (p EditorPolicy) CanEdit(f FieldName) bool {
	if p.EditableFields == nil {
		return true
	}
	return p.EditableFields.Has(f)
}
