package storefront

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/magabrotheeeer/storefront-bot/internal/lib/gameid"
	"github.com/magabrotheeeer/storefront-bot/internal/lib/sl"
	"github.com/magabrotheeeer/storefront-bot/internal/models"
	"github.com/magabrotheeeer/storefront-bot/internal/services/redemption"
)

func (e *Engine) start(ctx context.Context, user models.User) Reply {
	return Reply{
		Kind:       ReplyWelcome,
		Privileged: e.principals.Check(ctx, user.ID),
		Tiers:      e.catalog.AllTiers(),
	}
}

func (e *Engine) freeTrial(ctx context.Context, user models.User) (Reply, error) {
	used, err := e.redemptions.HasRedeemed(ctx, user.ID)
	if err != nil {
		return Reply{}, err
	}
	if used {
		return Reply{
			Kind:   ReplyAlreadyRedeemed,
			Tiers:  e.catalog.AllTiers(),
			Action: &models.Action{Kind: ActionViewPaidPlans},
		}, nil
	}
	state := models.AwaitFreeTrial()
	e.conversations.Begin(user.ID, state)
	return Reply{Kind: ReplyAwaitingID, Awaiting: state.Awaiting.String()}, nil
}

func (e *Engine) selectTier(user models.User, key string) Reply {
	tier, ok := e.catalog.Tier(key)
	if !ok {
		return Reply{Kind: ReplyUnknownTier, Tiers: e.catalog.AllTiers()}
	}
	state := models.AwaitPaidPlan(tier)
	e.conversations.Begin(user.ID, state)
	return Reply{Kind: ReplyAwaitingID, Awaiting: state.Awaiting.String(), Tier: &tier}
}

func (e *Engine) elite(user models.User) Reply {
	tier := e.catalog.EliteTier()
	state := models.AwaitElite()
	e.conversations.Begin(user.ID, state)
	return Reply{Kind: ReplyAwaitingID, Awaiting: state.Awaiting.String(), Tier: &tier}
}

// text обрабатывает ввод пользователя. Если бот ничего не ждёт, текст возвращается эхом.
// При неверном ID состояние не меняется; сбрасывается оно только после успешной обработки.
func (e *Engine) text(ctx context.Context, user models.User, text string) (Reply, error) {
	state := e.conversations.Get(user.ID)
	if state.Awaiting == models.AwaitNone {
		return Reply{Kind: ReplyEcho, Text: text}, nil
	}
	if !gameid.IsValid(text) {
		return Reply{Kind: ReplyInvalidID, Awaiting: state.Awaiting.String()}, nil
	}
	id := gameid.Normalize(text)

	var (
		reply Reply
		err   error
	)
	switch state.Awaiting {
	case models.AwaitFreeTrialID:
		reply, err = e.redeem(ctx, user, id)
	case models.AwaitEliteID:
		reply, err = e.placeOrder(ctx, user, id, e.catalog.EliteTier(), true)
	case models.AwaitPaidPlanID:
		if state.Tier == nil {
			e.conversations.Cancel(user.ID)
			return Reply{Kind: ReplyUnknownTier, Tiers: e.catalog.AllTiers()}, nil
		}
		reply, err = e.placeOrder(ctx, user, id, *state.Tier, false)
	}
	if err != nil {
		return Reply{}, err
	}
	e.conversations.Consume(user.ID, state.Awaiting)
	return reply, nil
}

func (e *Engine) redeem(ctx context.Context, user models.User, id string) (Reply, error) {
	res, err := e.redemptions.Redeem(ctx, user, id)
	if err != nil {
		return Reply{}, err
	}
	if res.Outcome == redemption.OutcomeAlreadyRedeemed {
		return Reply{
			Kind:   ReplyAlreadyRedeemed,
			Tiers:  e.catalog.AllTiers(),
			Action: &models.Action{Kind: ActionViewPaidPlans},
		}, nil
	}

	n := models.Notification{
		Kind:        models.NotifyFreeTrialActivity,
		RecipientID: e.principals.RootID(),
		Fields: map[string]string{
			"user_id":  strconv.FormatInt(user.ID, 10),
			"username": user.DisplayHandle(),
			"game_id":  id,
			"plan":     res.Entry.Detail,
			"date":     e.formatTime(res.Entry.CreatedAt),
		},
	}
	if !res.Privileged {
		n.Action = &models.Action{Kind: ActionConfirmDelivery, Ref: strconv.FormatInt(user.ID, 10)}
	}
	e.notify(ctx, n)

	entry := res.Entry
	return Reply{
		Kind:       ReplyTrialActivated,
		Privileged: res.Privileged,
		GameID:     id,
		Entry:      &entry,
	}, nil
}

func (e *Engine) placeOrder(ctx context.Context, user models.User, id string, tier models.Tier, elite bool) (Reply, error) {
	create := e.orders.Create
	if elite {
		create = e.orders.CreateElite
	}
	o, err := create(ctx, user, id, tier)
	if err != nil {
		return Reply{}, err
	}

	e.notify(ctx, models.Notification{
		Kind:        models.NotifyNewOrder,
		RecipientID: e.principals.RootID(),
		Action:      &models.Action{Kind: ActionConfirmPayment, Ref: o.ID},
		Fields: map[string]string{
			"order_id": o.ID,
			"user_id":  strconv.FormatInt(user.ID, 10),
			"username": o.Handle,
			"game_id":  o.GameID,
			"plan":     o.TierLabel,
			"price":    o.PriceLabel,
			"date":     e.formatTime(o.CreatedAt),
		},
	})
	e.log.Debug("order placed", slog.String("order_id", o.ID), sl.UserID(user.ID))

	return Reply{
		Kind:   ReplyOrderCreated,
		GameID: id,
		Tier:   &tier,
		Order:  o,
		Action: &models.Action{Kind: ActionPayURL, Ref: o.PaymentURL},
	}, nil
}
