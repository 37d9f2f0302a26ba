package domain

// ValidationResult - результат проверки правдоподобия. Не сохраняется.
type ValidationResult struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Blocked - есть жесткие ошибки, сохранение невозможно
func (r ValidationResult) Blocked() bool {
	return len(r.Errors) > 0
}

// NeedsConfirmation - ошибок нет, но есть предупреждения
func (r ValidationResult) NeedsConfirmation() bool {
	return len(r.Errors) == 0 && len(r.Warnings) > 0
}

func (r ValidationResult) Clean() bool {
	return len(r.Errors) == 0 && len(r.Warnings) == 0
}
