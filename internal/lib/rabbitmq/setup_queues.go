package rabbitmq

// Ключи маршрутизации событий входа.
const (
	RoutingKeyLoginSuccess = "login.success"
	RoutingKeyLoginFailure = "login.failure"
)

// QueueConfig описывает очередь и её привязку к exchange.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetAuditQueues возвращает очереди аудита входов.
func GetAuditQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "auth.login.audit", RoutingKey: "login.*"},
		{QueueName: "auth.login.failures", RoutingKey: RoutingKeyLoginFailure},
	}
}
