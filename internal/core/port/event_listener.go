package port

import "context"

// EventListenerPort - фоновый компонент приложения: consumer команд каскада
// или расписание обновления курсов.
type EventListenerPort interface {
	// Start блокируется до отмены ctx или фатальной ошибки
	Start(ctx context.Context) error

	// Close вызывается после Start и ждет завершения начатой работы
	Close() error
}
