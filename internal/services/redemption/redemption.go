// Package redemption выдаёт бесплатный пробный период: не более одного раза
// на обычного пользователя и без ограничений для администраторов.
package redemption

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/magabrotheeeer/storefront-bot/internal/lib/keylock"
	"github.com/magabrotheeeer/storefront-bot/internal/lib/sl"
	"github.com/magabrotheeeer/storefront-bot/internal/models"
	"github.com/magabrotheeeer/storefront-bot/internal/storage"
)

// Outcome результат попытки активации. AlreadyRedeemed является ожидаемым исходом, а не ошибка.
type Outcome int

const (
	// OutcomeRedeemed: пробный период выдан.
	OutcomeRedeemed Outcome = iota
	// OutcomeAlreadyRedeemed: пользователь уже использовал пробный период, записи не менялись.
	OutcomeAlreadyRedeemed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRedeemed:
		return "redeemed"
	case OutcomeAlreadyRedeemed:
		return "already_redeemed"
	default:
		return "unknown"
	}
}

// UnlimitedDetail пометка записи журнала для активации администратором.
const UnlimitedDetail = "Admin usou plano grátis ilimitado"

// FreeTrialDetail пометка записи журнала для обычной активации.
const FreeTrialDetail = "Plano grátis (1 hora)"

// PrincipalChecker проверяет права администратора.
type PrincipalChecker interface {
	IsPrincipal(ctx context.Context, id int64) (bool, error)
}

// ActivityAppender добавляет записи в журнал активности.
type ActivityAppender interface {
	Append(ctx context.Context, entry models.LogEntry) (models.LogEntry, error)
}

// Guard проверяет и фиксирует активацию пробного периода.
type Guard struct {
	store      storage.Store
	principals PrincipalChecker
	activity   ActivityAppender
	locks      *keylock.Locker
	log        *slog.Logger
	now        func() time.Time
}

// New создаёт Guard.
func New(store storage.Store, principals PrincipalChecker, activity ActivityAppender, log *slog.Logger) *Guard {
	return &Guard{
		store:      store,
		principals: principals,
		activity:   activity,
		locks:      keylock.New(),
		log:        log,
		now:        time.Now,
	}
}

// Result итог Redeem: исход и, при успехе, запись журнала.
type Result struct {
	Outcome    Outcome
	Privileged bool
	Entry      models.LogEntry
}

// HasRedeemed сообщает, использовал ли обычный пользователь пробный период.
// Для администраторов всегда false.
func (g *Guard) HasRedeemed(ctx context.Context, userID int64) (bool, error) {
	const op = "services.redemption.HasRedeemed"
	privileged, err := g.principals.IsPrincipal(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if privileged {
		return false, nil
	}
	found, err := g.store.Get(ctx, storage.CollectionRedemptions, strconv.FormatInt(userID, 10), nil)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return found, nil
}

// Redeem активирует пробный период для user с игровым ID gameID.
//
// Попытки одного пользователя выполняются последовательно под блокировкой по его ID,
// а сама запись создаётся через SetIfAbsent. Поэтому даже при одновременных запросах
// (и при нескольких процессах на общем хранилище) успешной будет не более одной активации.
func (g *Guard) Redeem(ctx context.Context, user models.User, gameID string) (Result, error) {
	const op = "services.redemption.Redeem"

	privileged, err := g.principals.IsPrincipal(ctx, user.ID)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}
	if privileged {
		entry, err := g.activity.Append(ctx, models.LogEntry{
			Kind:   models.LogFreeTrial,
			UserID: user.ID,
			Handle: user.DisplayHandle(),
			GameID: gameID,
			Detail: UnlimitedDetail,
		})
		if err != nil {
			return Result{}, fmt.Errorf("%s: %w", op, err)
		}
		g.log.Info("unlimited free trial used by principal", sl.UserID(user.ID))
		return Result{Outcome: OutcomeRedeemed, Privileged: true, Entry: entry}, nil
	}

	key := strconv.FormatInt(user.ID, 10)
	unlock := g.locks.Lock(key)
	defer unlock()

	found, err := g.store.Get(ctx, storage.CollectionRedemptions, key, nil)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}
	if found {
		return Result{Outcome: OutcomeAlreadyRedeemed}, nil
	}

	record := models.RedemptionRecord{
		UserID:     user.ID,
		Handle:     user.DisplayHandle(),
		GameID:     gameID,
		RedeemedAt: g.now(),
	}
	created, err := g.store.SetIfAbsent(ctx, storage.CollectionRedemptions, key, record)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}
	if !created {
		g.log.Warn("free trial redemption lost the race", sl.UserID(user.ID))
		return Result{Outcome: OutcomeAlreadyRedeemed}, nil
	}

	entry, err := g.activity.Append(ctx, models.LogEntry{
		Kind:      models.LogFreeTrial,
		UserID:    user.ID,
		Handle:    user.DisplayHandle(),
		GameID:    gameID,
		Detail:    FreeTrialDetail,
		CreatedAt: record.RedeemedAt,
	})
	if err != nil {
		// без записи в журнале пробный период не будет доставлен, повтор должен пройти заново
		if delErr := g.store.Delete(context.WithoutCancel(ctx), storage.CollectionRedemptions, key); delErr != nil {
			g.log.Error("failed to roll back redemption record", sl.UserID(user.ID), sl.Err(delErr))
		}
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	g.log.Info("free trial redeemed", sl.UserID(user.ID))
	return Result{Outcome: OutcomeRedeemed, Entry: entry}, nil
}

// Count возвращает число выданных пробных периодов.
func (g *Guard) Count(ctx context.Context) (int, error) {
	const op = "services.redemption.Count"
	raw, err := g.store.Scan(ctx, storage.CollectionRedemptions)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return len(raw), nil
}
