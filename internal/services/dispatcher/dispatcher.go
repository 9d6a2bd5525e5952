// Package dispatcher принимает входящие события из любого транспорта, проверяет их,
// ограничивает частоту по пользователю и передаёт в ядро строго по одному на пользователя.
package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/storefront-bot/internal/errs"
	"github.com/magabrotheeeer/storefront-bot/internal/lib/keylock"
	"github.com/magabrotheeeer/storefront-bot/internal/lib/sl"
	"github.com/magabrotheeeer/storefront-bot/internal/metrics"
	"github.com/magabrotheeeer/storefront-bot/internal/models"
	"github.com/magabrotheeeer/storefront-bot/internal/rabbitmq"
	"github.com/magabrotheeeer/storefront-bot/internal/services/storefront"
)

const (
	limiterIdleTTL   = 10 * time.Minute
	limiterPruneSize = 10000
)

// Engine обрабатывает одно событие.
type Engine interface {
	Handle(ctx context.Context, ev models.Event) (storefront.Reply, error)
}

// Notifier отправляет ответы, пришедшие через брокер.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

type limiter struct {
	*rate.Limiter
	lastSeen time.Time
}

// Dispatcher последовательно обрабатывает события одного пользователя
// и параллельно события разных пользователей.
type Dispatcher struct {
	engine   Engine
	notifier Notifier
	validate *validator.Validate
	locks    *keylock.Locker
	metrics  *metrics.Metrics
	log      *slog.Logger

	mu       sync.Mutex
	limiters map[int64]*limiter
	limit    rate.Limit
	burst    int
	now      func() time.Time
}

// New создаёт Dispatcher. eventsPerSecond <= 0 отключает ограничение частоты.
func New(engine Engine, notifier Notifier, validate *validator.Validate, m *metrics.Metrics, eventsPerSecond float64, burst int, log *slog.Logger) *Dispatcher {
	limit := rate.Limit(eventsPerSecond)
	if eventsPerSecond <= 0 {
		limit = rate.Inf
	}
	return &Dispatcher{
		engine:   engine,
		notifier: notifier,
		validate: validate,
		locks:    keylock.New(),
		metrics:  m,
		log:      log,
		limiters: make(map[int64]*limiter),
		limit:    limit,
		burst:    burst,
		now:      time.Now,
	}
}

func (d *Dispatcher) allow(userID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if len(d.limiters) > limiterPruneSize {
		for id, l := range d.limiters {
			if now.Sub(l.lastSeen) > limiterIdleTTL {
				delete(d.limiters, id)
			}
		}
	}
	l, ok := d.limiters[userID]
	if !ok {
		l = &limiter{Limiter: rate.NewLimiter(d.limit, d.burst)}
		d.limiters[userID] = l
	}
	l.lastSeen = now
	return l.AllowN(now, 1)
}

// Dispatch проверяет событие и передаёт его ядру.
func (d *Dispatcher) Dispatch(ctx context.Context, ev models.Event) (storefront.Reply, error) {
	const op = "services.dispatcher.Dispatch"

	if err := d.validate.Struct(ev); err != nil {
		d.metrics.EventsTotal.WithLabelValues(string(ev.Type), "invalid").Inc()
		return storefront.Reply{}, fmt.Errorf("%s: %w: %w", op, errs.ErrValidation, err)
	}
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	log := d.log.With(slog.String("event_id", ev.ID), slog.String("type", string(ev.Type)), sl.UserID(ev.UserID))

	if !d.allow(ev.UserID) {
		d.metrics.RateLimited.Inc()
		d.metrics.EventsTotal.WithLabelValues(string(ev.Type), "rate_limited").Inc()
		log.Warn("event rate limited")
		return storefront.Reply{}, fmt.Errorf("%s: %w", op, errs.ErrRateLimited)
	}

	unlock := d.locks.Lock(strconv.FormatInt(ev.UserID, 10))
	defer unlock()

	start := time.Now()
	reply, err := d.engine.Handle(ctx, ev)
	d.metrics.EventDuration.WithLabelValues(string(ev.Type)).Observe(time.Since(start).Seconds())
	if err != nil {
		d.metrics.EventsTotal.WithLabelValues(string(ev.Type), "error").Inc()
		log.Error("failed to handle event", sl.Err(err))
		return storefront.Reply{}, fmt.Errorf("%s: %w", op, err)
	}

	d.metrics.EventsTotal.WithLabelValues(string(ev.Type), string(reply.Kind)).Inc()
	log.Debug("event handled", slog.String("reply", string(reply.Kind)))
	return reply, nil
}

// HandleMessage обрабатывает событие из очереди и отправляет ответ через Notifier.
// Битые и отклонённые события помечаются rabbitmq.ErrPermanent и не возвращаются в очередь.
func (d *Dispatcher) HandleMessage(ctx context.Context, body []byte) error {
	const op = "services.dispatcher.HandleMessage"

	var ev models.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("%s: %w: %w", op, rabbitmq.ErrPermanent, err)
	}

	reply, err := d.Dispatch(ctx, ev)
	if errors.Is(err, errs.ErrRateLimited) {
		d.sendReply(ctx, ev, storefront.Reply{Kind: storefront.ReplyRateLimited})
		return fmt.Errorf("%s: %w: %w", op, rabbitmq.ErrPermanent, err)
	}
	if err != nil {
		if errors.Is(err, errs.ErrValidation) {
			return fmt.Errorf("%s: %w: %w", op, rabbitmq.ErrPermanent, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	d.sendReply(ctx, ev, reply)
	return nil
}

// sendReply публикует ответ инициатору события. Ошибки только логируются.
func (d *Dispatcher) sendReply(ctx context.Context, ev models.Event, reply storefront.Reply) {
	payload, err := json.Marshal(reply)
	if err != nil {
		d.log.Error("failed to encode reply", slog.String("event_id", ev.ID), sl.Err(err))
		return
	}
	n := models.Notification{
		ID:          uuid.New().String(),
		Kind:        models.NotifyReply,
		RecipientID: ev.User().ChatID,
		Action:      reply.Action,
		Fields: map[string]string{
			"event_id":   ev.ID,
			"reply_kind": string(reply.Kind),
		},
		Payload: payload,
	}
	if err := d.notifier.Notify(ctx, n); err != nil {
		d.log.Error("failed to send reply", slog.String("event_id", ev.ID), sl.Err(err))
	}
}
