package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/storefront-bot/internal/lib/sl"
)

// ErrPermanent помечает ошибку обработчика, после которой сообщение
// не возвращается в очередь (например, битый JSON).
var ErrPermanent = errors.New("permanent failure")

// ConsumerMessage запускает потребителя очереди queueName. Одновременно обрабатывается
// не больше workers сообщений. При успехе ack, при ошибке nack с возвратом в очередь,
// при ErrPermanent nack без возврата.
func ConsumerMessage(ctx context.Context, ch *amqp.Channel, queueName string, workers int, log *slog.Logger, handler func(context.Context, []byte) error) error {
	const op = "rabbitmq.ConsumerMessage"
	delivery, err := ch.Consume(
		queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if workers < 1 {
		workers = 1
	}

	sem := make(chan struct{}, workers)
	go func() {
		for {
			select {
			case d, ok := <-delivery:
				if !ok {
					return
				}
				sem <- struct{}{}
				go func(d amqp.Delivery) {
					defer func() { <-sem }()
					handle(ctx, d.Body, d.MessageId, d, log, handler)
				}(d)
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// Acknowledger: часть amqp.Delivery для подтверждения сообщения.
type Acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func handle(ctx context.Context, body []byte, messageID string, ack Acknowledger, log *slog.Logger, handler func(context.Context, []byte) error) {
	if err := handler(ctx, body); err != nil {
		requeue := !errors.Is(err, ErrPermanent)
		log.Error("failed to handle message",
			slog.String("message_id", messageID),
			slog.Bool("requeue", requeue),
			sl.Err(err))
		if nackErr := ack.Nack(false, requeue); nackErr != nil {
			log.Error("failed to nack message", sl.Err(nackErr))
		}
		return
	}
	if ackErr := ack.Ack(false); ackErr != nil {
		log.Error("failed to ack message", sl.Err(ackErr))
	}
}
