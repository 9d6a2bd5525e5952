// Package storefront: ядро магазина: принимает разобранные транспортом события,
// ведёт диалог с пользователем и связывает пробный период, заказы и журнал.
package storefront

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/storefront-bot/internal/errs"
	"github.com/magabrotheeeer/storefront-bot/internal/lib/sl"
	"github.com/magabrotheeeer/storefront-bot/internal/models"
	"github.com/magabrotheeeer/storefront-bot/internal/services/redemption"
	"github.com/magabrotheeeer/storefront-bot/internal/storage"
)

// RecentLogsLimit сколько записей журнала показывает команда logs.
const RecentLogsLimit = 10

// Principals реестр администраторов.
type Principals interface {
	IsPrincipal(ctx context.Context, id int64) (bool, error)
	Check(ctx context.Context, id int64) bool
	RootID() int64
	Add(ctx context.Context, requester, target int64) error
	Remove(ctx context.Context, requester, target int64) error
	List(ctx context.Context) ([]models.Principal, error)
}

// Conversations состояние диалогов.
type Conversations interface {
	Begin(userID int64, state models.ConversationState)
	Get(userID int64) models.ConversationState
	Consume(userID int64, expected models.Awaiting) bool
	Cancel(userID int64)
	Len() int
}

// Redeemer выдача пробного периода.
type Redeemer interface {
	HasRedeemed(ctx context.Context, userID int64) (bool, error)
	Redeem(ctx context.Context, user models.User, gameID string) (redemption.Result, error)
	Count(ctx context.Context) (int, error)
}

// Orders реестр заказов.
type Orders interface {
	Create(ctx context.Context, user models.User, gameID string, tier models.Tier) (*models.Order, error)
	CreateElite(ctx context.Context, user models.User, gameID string, tier models.Tier) (*models.Order, error)
	ConfirmOrder(ctx context.Context, principalID int64, id string) (*models.Order, error)
	ConfirmDelivery(ctx context.Context, principalID, targetUserID int64) (*models.LogEntry, error)
	ListPending(ctx context.Context) ([]models.Order, error)
}

// Activity журнал активности.
type Activity interface {
	Append(ctx context.Context, entry models.LogEntry) (models.LogEntry, error)
	Recent(ctx context.Context, n int) ([]models.LogEntry, error)
	CountByStatus(ctx context.Context, status models.LogStatus) (int, error)
	Count(ctx context.Context) (int, error)
}

// Notifier отправляет уведомления. Ошибки доставки ядро только логирует.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

// Catalog каталог тарифов.
type Catalog interface {
	Tier(key string) (models.Tier, bool)
	EliteTier() models.Tier
	AllTiers() []models.Tier
}

// Deps зависимости Engine.
type Deps struct {
	Store         storage.Store
	Principals    Principals
	Conversations Conversations
	Redemptions   Redeemer
	Orders        Orders
	Activity      Activity
	Notifier      Notifier
	Catalog       Catalog
	Support       string
	Log           *slog.Logger
}

// Engine обрабатывает события магазина.
type Engine struct {
	store         storage.Store
	principals    Principals
	conversations Conversations
	redemptions   Redeemer
	orders        Orders
	activity      Activity
	notifier      Notifier
	catalog       Catalog
	support       string
	log           *slog.Logger
	now           func() time.Time
	startedAt     time.Time
}

// New создаёт Engine.
func New(d Deps) *Engine {
	return &Engine{
		store:         d.Store,
		principals:    d.Principals,
		conversations: d.Conversations,
		redemptions:   d.Redemptions,
		orders:        d.Orders,
		activity:      d.Activity,
		notifier:      d.Notifier,
		catalog:       d.Catalog,
		support:       d.Support,
		log:           d.Log,
		now:           time.Now,
		startedAt:     time.Now(),
	}
}

// Handle обрабатывает одно событие. Ожидаемые исходы (неверный ID, пробный период
// уже использован, нет прав, заказ не найден) возвращаются как Reply.
// Ошибка возвращается только при недоступности хранилища или нарушении инварианта
// хранилища; повтор остаётся на вызывающей стороне.
func (e *Engine) Handle(ctx context.Context, ev models.Event) (Reply, error) {
	const op = "services.storefront.Handle"

	user := ev.User()
	e.touchUser(ctx, user)

	var (
		reply Reply
		err   error
	)
	switch ev.Type {
	case models.EventStart:
		reply = e.start(ctx, user)
	case models.EventFreeTrial:
		reply, err = e.freeTrial(ctx, user)
	case models.EventSelectTier:
		reply = e.selectTier(user, ev.Tier)
	case models.EventElite:
		reply = e.elite(user)
	case models.EventText:
		reply, err = e.text(ctx, user, ev.Text)
	case models.EventCancel:
		e.conversations.Cancel(user.ID)
		reply = Reply{Kind: ReplyCancelled}
	case models.EventConfirmPayment:
		reply, err = e.confirmPayment(ctx, user.ID, ev.Ref)
	case models.EventConfirmDelivery:
		reply, err = e.confirmDelivery(ctx, user.ID, ev.Ref)
	case models.EventAddPrincipal:
		reply, err = e.addPrincipal(ctx, user.ID, ev.Ref)
	case models.EventRemovePrincipal:
		reply, err = e.removePrincipal(ctx, user.ID, ev.Ref)
	case models.EventStats:
		reply, err = e.stats(ctx, user.ID)
	case models.EventLogs:
		reply, err = e.logs(ctx, user.ID)
	case models.EventBroadcast:
		reply, err = e.broadcast(ctx, user.ID, ev.Text)
	default:
		return Reply{}, fmt.Errorf("%s: unknown event type %q: %w", op, ev.Type, errs.ErrValidation)
	}
	if err != nil {
		return Reply{}, fmt.Errorf("%s: %w", op, err)
	}
	if reply.Support == "" {
		reply.Support = e.support
	}
	return reply, nil
}

// touchUser создаёт или обновляет запись пользователя. Сбой не прерывает обработку события.
func (e *Engine) touchUser(ctx context.Context, user models.User) {
	user.Handle = user.DisplayHandle()
	user.LastSeen = e.now()
	if err := e.store.Set(ctx, storage.CollectionUsers, strconv.FormatInt(user.ID, 10), user); err != nil {
		e.log.Warn("failed to save user", sl.UserID(user.ID), sl.Err(err))
	}
}

// rejection превращает ожидаемые ошибки сервисов в ответ. Остальные ошибки возвращает как есть.
func rejection(err error) (Reply, error) {
	switch {
	case errors.Is(err, errs.ErrUnauthorized):
		return Reply{Kind: ReplyAccessDenied}, nil
	case errors.Is(err, errs.ErrNotFound):
		return Reply{Kind: ReplyNotFound}, nil
	case errors.Is(err, errs.ErrInvariantViolation):
		return Reply{Kind: ReplyRejected}, nil
	case errors.Is(err, errs.ErrValidation):
		return Reply{Kind: ReplyInvalidRef}, nil
	default:
		return Reply{}, err
	}
}

func newID() string {
	return uuid.New().String()
}

func (e *Engine) notify(ctx context.Context, n models.Notification) {
	n.ID = newID()
	if err := e.notifier.Notify(ctx, n); err != nil {
		e.log.Error("failed to send notification",
			slog.String("kind", string(n.Kind)),
			slog.Int64("recipient_id", n.RecipientID),
			sl.Err(err))
	}
}

func (e *Engine) formatTime(t time.Time) string {
	return t.Format("02/01/2006 15:04:05")
}
