package port

// Fields - структурированные поля записи лога
type Fields map[string]interface{}

// LoggerPort - логгер ядра и адаптеров. Реализации: slog (stdout), fluent-bit и их композиция.
type LoggerPort interface {
	Info(msg string, fields Fields)
	Warn(msg string, fields Fields)

	// Error: err может быть nil
	Error(msg string, err error, fields Fields)

	Debug(msg string, fields Fields)

	// WithFields возвращает дочерний логгер, исходный не меняется
	WithFields(fields Fields) LoggerPort
}
