// Package order: реестр заказов, ожидающих ручного подтверждения оплаты.
package order

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/magabrotheeeer/storefront-bot/internal/errs"
	"github.com/magabrotheeeer/storefront-bot/internal/lib/sl"
	"github.com/magabrotheeeer/storefront-bot/internal/models"
	"github.com/magabrotheeeer/storefront-bot/internal/storage"
)

const maxIDAttempts = 16

// PrincipalChecker проверяет права администратора.
type PrincipalChecker interface {
	IsPrincipal(ctx context.Context, id int64) (bool, error)
}

// DeliveryMarker отмечает доставку в журнале активности.
type DeliveryMarker interface {
	MarkDelivered(ctx context.Context, userID int64) (*models.LogEntry, error)
}

// Ledger реестр заказов поверх коллекции pending_orders.
type Ledger struct {
	store      storage.Store
	principals PrincipalChecker
	deliveries DeliveryMarker
	log        *slog.Logger
	now        func() time.Time
}

// New создаёт Ledger.
func New(store storage.Store, principals PrincipalChecker, deliveries DeliveryMarker, log *slog.Logger) *Ledger {
	return &Ledger{
		store:      store,
		principals: principals,
		deliveries: deliveries,
		log:        log,
		now:        time.Now,
	}
}

// OrderID возвращает "<userID>_<unixnano>" или "passe_<userID>_<unixnano>" для Passe de Elite.
func OrderID(userID int64, at time.Time, elite bool) string {
	id := strconv.FormatInt(userID, 10) + "_" + strconv.FormatInt(at.UnixNano(), 10)
	if elite {
		return models.ElitePrefix + "_" + id
	}
	return id
}

// Create создаёт заказ на платный тариф.
func (l *Ledger) Create(ctx context.Context, user models.User, gameID string, tier models.Tier) (*models.Order, error) {
	return l.create(ctx, user, gameID, tier, false)
}

// CreateElite создаёт заказ на Passe de Elite.
func (l *Ledger) CreateElite(ctx context.Context, user models.User, gameID string, tier models.Tier) (*models.Order, error) {
	return l.create(ctx, user, gameID, tier, true)
}

func (l *Ledger) create(ctx context.Context, user models.User, gameID string, tier models.Tier, elite bool) (*models.Order, error) {
	const op = "services.order.Create"

	at := l.now()
	o := models.Order{
		UserID:     user.ID,
		Handle:     user.DisplayHandle(),
		GameID:     gameID,
		TierKey:    tier.Key,
		TierLabel:  tier.Label,
		PriceLabel: tier.Price,
		PaymentURL: tier.PaymentURL,
		Elite:      elite,
		CreatedAt:  at,
		Status:     models.OrderPendingPayment,
	}

	for i := 0; i < maxIDAttempts; i++ {
		o.ID = OrderID(user.ID, at.Add(time.Duration(i)), elite)
		created, err := l.store.SetIfAbsent(ctx, storage.CollectionPendingOrders, o.ID, o)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if created {
			l.log.Info("order created",
				slog.String("order_id", o.ID),
				slog.String("tier", o.TierKey),
				sl.UserID(user.ID))
			return &o, nil
		}
	}
	return nil, fmt.Errorf("%s: no free order id for user %d: %w", op, user.ID, errs.ErrInvariantViolation)
}

// FindPending возвращает заказ, ожидающий оплаты, или ErrNotFound.
func (l *Ledger) FindPending(ctx context.Context, id string) (*models.Order, error) {
	const op = "services.order.FindPending"
	var o models.Order
	found, err := l.store.Get(ctx, storage.CollectionPendingOrders, id, &o)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !found {
		return nil, fmt.Errorf("%s: order %s: %w", op, id, errs.ErrNotFound)
	}
	return &o, nil
}

func (l *Ledger) authorize(ctx context.Context, principalID int64) error {
	ok, err := l.principals.IsPrincipal(ctx, principalID)
	if err != nil {
		return err
	}
	if !ok {
		return errs.ErrUnauthorized
	}
	return nil
}

// ConfirmOrder подтверждает оплату: заказ читается и удаляется одной операцией Take,
// поэтому из двух одновременных подтверждений успешным будет только одно.
// Журнал не пишет: это делает вызывающая сторона по возвращённому заказу.
func (l *Ledger) ConfirmOrder(ctx context.Context, principalID int64, id string) (*models.Order, error) {
	const op = "services.order.ConfirmOrder"
	if err := l.authorize(ctx, principalID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var o models.Order
	found, err := l.store.Take(ctx, storage.CollectionPendingOrders, id, &o)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !found {
		return nil, fmt.Errorf("%s: order %s: %w", op, id, errs.ErrNotFound)
	}
	o.Status = models.OrderConfirmed

	l.log.Info("payment confirmed",
		slog.String("order_id", id),
		slog.Int64("principal_id", principalID),
		sl.UserID(o.UserID))
	return &o, nil
}

// ConfirmDelivery отмечает доставленной самую свежую pending-запись журнала пользователя.
func (l *Ledger) ConfirmDelivery(ctx context.Context, principalID, targetUserID int64) (*models.LogEntry, error) {
	const op = "services.order.ConfirmDelivery"
	if err := l.authorize(ctx, principalID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	entry, err := l.deliveries.MarkDelivered(ctx, targetUserID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return entry, nil
}

// ListPending возвращает все неподтверждённые заказы, старые первыми.
func (l *Ledger) ListPending(ctx context.Context) ([]models.Order, error) {
	const op = "services.order.ListPending"
	all, err := storage.ScanAs[models.Order](ctx, l.store, storage.CollectionPendingOrders)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	out := make([]models.Order, 0, len(all))
	for _, o := range all {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
