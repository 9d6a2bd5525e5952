// Package notifier доставляет уведомления ядра: в RabbitMQ, если брокер настроен,
// иначе только в лог.
package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/magabrotheeeer/storefront-bot/internal/lib/sl"
	"github.com/magabrotheeeer/storefront-bot/internal/metrics"
	"github.com/magabrotheeeer/storefront-bot/internal/models"
	"github.com/magabrotheeeer/storefront-bot/internal/rabbitmq"
)

// AMQP публикует уведомления в обменник. Публикации сериализуются:
// amqp.Channel нельзя использовать из нескольких горутин одновременно.
type AMQP struct {
	mu         sync.Mutex
	ch         rabbitmq.Publisher
	exchange   string
	routingKey string
}

// NewAMQP создаёт публикатор.
func NewAMQP(ch rabbitmq.Publisher, exchange, routingKey string) *AMQP {
	return &AMQP{ch: ch, exchange: exchange, routingKey: routingKey}
}

// Notify публикует уведомление как JSON.
func (a *AMQP) Notify(ctx context.Context, n models.Notification) error {
	const op = "notifier.AMQP.Notify"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := rabbitmq.PublishMessage(a.ch, a.exchange, a.routingKey, n.ID, n); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Log пишет уведомления в лог. Используется, когда брокер не настроен.
type Log struct {
	log *slog.Logger
}

// NewLog создаёт Log.
func NewLog(log *slog.Logger) *Log {
	return &Log{log: log}
}

// Notify логирует уведомление и всегда успешен.
func (l *Log) Notify(_ context.Context, n models.Notification) error {
	attrs := []any{
		slog.String("id", n.ID),
		slog.String("kind", string(n.Kind)),
		slog.Int64("recipient_id", n.RecipientID),
	}
	if n.Action != nil {
		attrs = append(attrs, slog.String("action", n.Action.Kind+":"+n.Action.Ref))
	}
	if n.Text != "" {
		attrs = append(attrs, slog.String("text", n.Text))
	}
	for k, v := range n.Fields {
		attrs = append(attrs, slog.String(k, v))
	}
	l.log.Info("notification", attrs...)
	return nil
}

// Sender интерфейс, которому соответствуют AMQP и Log.
type Sender interface {
	Notify(ctx context.Context, n models.Notification) error
}

// Instrumented считает отправленные и неудачные уведомления.
type Instrumented struct {
	next    Sender
	metrics *metrics.Metrics
	log     *slog.Logger
}

// WithMetrics оборачивает next счётчиком notifications_total.
func WithMetrics(next Sender, m *metrics.Metrics, log *slog.Logger) *Instrumented {
	return &Instrumented{next: next, metrics: m, log: log}
}

// Notify вызывает next и обновляет счётчик.
func (i *Instrumented) Notify(ctx context.Context, n models.Notification) error {
	if err := i.next.Notify(ctx, n); err != nil {
		i.metrics.NotificationsTotal.WithLabelValues(string(n.Kind), "failed").Inc()
		i.log.Debug("notification failed", slog.String("kind", string(n.Kind)), sl.Err(err))
		return err
	}
	i.metrics.NotificationsTotal.WithLabelValues(string(n.Kind), "sent").Inc()
	return nil
}
