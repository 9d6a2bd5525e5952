package storefront

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/magabrotheeeer/storefront-bot/internal/errs"
	"github.com/magabrotheeeer/storefront-bot/internal/lib/sl"
	"github.com/magabrotheeeer/storefront-bot/internal/models"
	"github.com/magabrotheeeer/storefront-bot/internal/storage"
)

func parseUserRef(ref string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(ref), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user reference %q: %w", ref, errs.ErrValidation)
	}
	return id, nil
}

func (e *Engine) confirmPayment(ctx context.Context, principalID int64, orderID string) (Reply, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Reply{Kind: ReplyInvalidRef}, nil
	}
	o, err := e.orders.ConfirmOrder(ctx, principalID, orderID)
	if err != nil {
		return rejection(err)
	}

	// Заказ уже удалён из реестра, дальнейшие сбои только логируются.
	kind := models.LogPaidOrder
	if o.Elite {
		kind = models.LogElitePass
	}
	confirmedAt := e.now()
	entry, err := e.activity.Append(ctx, models.LogEntry{
		Kind:        kind,
		UserID:      o.UserID,
		Handle:      o.Handle,
		GameID:      o.GameID,
		Detail:      fmt.Sprintf("%s (%s) pedido %s", o.TierLabel, o.PriceLabel, o.ID),
		CreatedAt:   confirmedAt,
		Status:      models.LogDelivered,
		ConfirmedAt: &confirmedAt,
	})
	if err != nil {
		e.log.Error("failed to log confirmed order", slog.String("order_id", o.ID), sl.Err(err))
	}

	e.notify(ctx, models.Notification{
		Kind:        models.NotifyPaymentConfirmed,
		RecipientID: o.UserID,
		Fields: map[string]string{
			"order_id": o.ID,
			"plan":     o.TierLabel,
			"game_id":  o.GameID,
			"date":     e.formatTime(confirmedAt),
		},
	})

	reply := Reply{Kind: ReplyPaymentConfirmed, Order: o}
	if err == nil {
		reply.Entry = &entry
	}
	return reply, nil
}

func (e *Engine) confirmDelivery(ctx context.Context, principalID int64, ref string) (Reply, error) {
	target, err := parseUserRef(ref)
	if err != nil {
		return rejection(err)
	}
	entry, err := e.orders.ConfirmDelivery(ctx, principalID, target)
	if err != nil {
		return rejection(err)
	}

	confirmedAt := e.now()
	if entry.ConfirmedAt != nil {
		confirmedAt = *entry.ConfirmedAt
	}
	e.notify(ctx, models.Notification{
		Kind:        models.NotifyDeliveryConfirmed,
		RecipientID: target,
		Fields: map[string]string{
			"game_id": entry.GameID,
			"date":    e.formatTime(confirmedAt),
		},
	})
	return Reply{Kind: ReplyDeliveryConfirmed, Entry: entry}, nil
}

func (e *Engine) addPrincipal(ctx context.Context, requester int64, ref string) (Reply, error) {
	target, err := parseUserRef(ref)
	if err != nil {
		return rejection(err)
	}
	if err := e.principals.Add(ctx, requester, target); err != nil {
		return rejection(err)
	}
	list, err := e.principals.List(ctx)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Kind: ReplyPrincipalAdded, Principals: list}, nil
}

func (e *Engine) removePrincipal(ctx context.Context, requester int64, ref string) (Reply, error) {
	target, err := parseUserRef(ref)
	if err != nil {
		return rejection(err)
	}
	if err := e.principals.Remove(ctx, requester, target); err != nil {
		return rejection(err)
	}
	list, err := e.principals.List(ctx)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Kind: ReplyPrincipalRemoved, Principals: list}, nil
}

func (e *Engine) stats(ctx context.Context, requester int64) (Reply, error) {
	if !e.principals.Check(ctx, requester) {
		return Reply{Kind: ReplyAccessDenied}, nil
	}
	s, err := e.Stats(ctx)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Kind: ReplyStats, Stats: s}, nil
}

// Stats собирает сводку по всем коллекциям. Используется командой stats и HTTP-статусом.
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	const op = "services.storefront.Stats"

	users, err := e.store.Scan(ctx, storage.CollectionUsers)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	redemptions, err := e.redemptions.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	total, err := e.activity.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	delivered, err := e.activity.CountByStatus(ctx, models.LogDelivered)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	pending, err := e.activity.CountByStatus(ctx, models.LogPending)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	orders, err := e.orders.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	principals, err := e.principals.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Stats{
		Users:               len(users),
		Redemptions:         redemptions,
		ActivityTotal:       total,
		ActivityDelivered:   delivered,
		ActivityPending:     pending,
		PendingOrders:       len(orders),
		Principals:          len(principals),
		ActiveConversations: e.conversations.Len(),
		Backend:             e.store.Backend(),
		Durable:             e.store.Durable(),
		Uptime:              e.now().Sub(e.startedAt).Truncate(time.Second).String(),
	}, nil
}

func (e *Engine) logs(ctx context.Context, requester int64) (Reply, error) {
	if !e.principals.Check(ctx, requester) {
		return Reply{Kind: ReplyAccessDenied}, nil
	}
	entries, err := e.activity.Recent(ctx, RecentLogsLimit)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Kind: ReplyLogs, Logs: entries}, nil
}

// broadcast рассылает текст всем известным пользователям. Ошибки отдельных
// получателей считаются в Failed и не прерывают рассылку.
func (e *Engine) broadcast(ctx context.Context, requester int64, text string) (Reply, error) {
	if !e.principals.Check(ctx, requester) {
		return Reply{Kind: ReplyAccessDenied}, nil
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Reply{Kind: ReplyInvalidRef}, nil
	}

	users, err := storage.ScanAs[models.User](ctx, e.store, storage.CollectionUsers)
	if err != nil {
		return Reply{}, err
	}

	res := &BroadcastResult{}
	for _, u := range users {
		recipient := u.ChatID
		if recipient == 0 {
			recipient = u.ID
		}
		n := models.Notification{
			Kind:        models.NotifyBroadcast,
			RecipientID: recipient,
			Text:        text,
		}
		n.ID = newID()
		if err := e.notifier.Notify(ctx, n); err != nil {
			res.Failed++
			e.log.Warn("broadcast delivery failed", slog.Int64("recipient_id", recipient), sl.Err(err))
			continue
		}
		res.Sent++
	}

	e.log.Info("broadcast finished", slog.Int("sent", res.Sent), slog.Int("failed", res.Failed))
	return Reply{Kind: ReplyBroadcast, Broadcast: res}, nil
}
