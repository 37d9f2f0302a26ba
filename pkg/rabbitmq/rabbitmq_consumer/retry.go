package rabbitmq_consumer

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

// failureAction - что сделать с сообщением, обработчик которого вернул ошибку
type failureAction int

const (
	actionDrop  failureAction = iota // nack без requeue, повторов нет
	actionRetry                      // nack без requeue -> retry exchange
	actionPark                       // в финальную DLQ, затем ack
)

func (a failureAction) String() string {
	switch a {
	case actionRetry:
		return "retry"
	case actionPark:
		return "park"
	}
	return "drop"
}

func decideOnFailure(cfg ConsumerConfig, deaths int64) failureAction {
	if !cfg.EnableRetryMechanism {
		return actionDrop
	}
	if deaths < int64(cfg.MaxRetries) {
		return actionRetry
	}
	return actionPark
}

// deathCount - сколько раз сообщение умирало именно в очереди queueName (заголовок x-death)
func deathCount(headers amqp.Table, queueName string) int64 {
	deaths, ok := headers["x-death"].([]interface{})
	if !ok {
		return 0
	}
	for _, death := range deaths {
		tbl, ok := death.(amqp.Table)
		if !ok {
			continue
		}
		if queue, _ := tbl["queue"].(string); queue != queueName {
			continue
		}
		switch n := tbl["count"].(type) {
		case int64:
			return n
		case int32:
			return int64(n)
		case int:
			return int64(n)
		}
	}
	return 0
}
