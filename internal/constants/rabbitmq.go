package constants

// Обменники
const (
	EditorExchange     = "editor_exchange"
	EditorExchangeType = "direct"
)

// Очереди
const (
	QueuePropagationCommands = "project_propagation_queue"
)

// Ключи маршрутизации
const (
	RoutingKeyPropagationCommands = "project.propagation.command"
	RoutingKeyPropagationResults  = "propagation_results"
)

// Контур повторов команд распространения
const (
	PropagationRetryExchange = "project_propagation_retry_exchange"
	PropagationRetryQueue    = "project_propagation_retry_queue"
	PropagationRetryTTLms    = 15000
	PropagationMaxRetries    = 3
	FinalDLXExchange         = "project_propagation_final_dlx"
	FinalDLQ                 = "project_propagation_final_dlq"
	FinalDLQRoutingKey       = "propagation.dlq.key"
	PropagationConsumerTag   = "property-sync-propagation"
	PropagationPrefetchCount = 4
)

// Типы событий и версии контрактов
const (
	EventPropagateProjectCommand = "PropagateProjectCommand"
	EventPropagationCompleted    = "PropagationCompletedEvent"
	EventVersionV1               = "1.0.0"
)
