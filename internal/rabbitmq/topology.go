package rabbitmq

import "github.com/magabrotheeeer/storefront-bot/internal/config"

// EventsRoutingKey ключ маршрутизации входящих событий в обменнике.
const EventsRoutingKey = "events"

// QueueConfig очередь и ключ, которым она привязана к обменнику.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// Queues возвращает очереди магазина: входящие события и исходящие уведомления.
func Queues(cfg config.RabbitMQ) []QueueConfig {
	return []QueueConfig{
		{QueueName: cfg.EventsQueue, RoutingKey: EventsRoutingKey},
		{QueueName: cfg.OutboundQueue, RoutingKey: cfg.OutboundRoutingKey},
	}
}
