package storefront

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/storefront-bot/internal/config"
	"github.com/magabrotheeeer/storefront-bot/internal/errs"
	"github.com/magabrotheeeer/storefront-bot/internal/models"
	"github.com/magabrotheeeer/storefront-bot/internal/services/activity"
	"github.com/magabrotheeeer/storefront-bot/internal/services/conversation"
	"github.com/magabrotheeeer/storefront-bot/internal/services/order"
	"github.com/magabrotheeeer/storefront-bot/internal/services/principal"
	"github.com/magabrotheeeer/storefront-bot/internal/services/redemption"
	"github.com/magabrotheeeer/storefront-bot/internal/storage"
	"github.com/magabrotheeeer/storefront-bot/internal/storage/memory"
	"github.com/magabrotheeeer/storefront-bot/internal/storage/storagetest"
)

const (
	rootID int64 = 1
	u1     int64 = 101
	u2     int64 = 202
)

type NotifierMock struct{ mock.Mock }

func (m *NotifierMock) Notify(ctx context.Context, n models.Notification) error {
	return m.Called(ctx, n).Error(0)
}

func (m *NotifierMock) sent(kind models.NotificationKind) []models.Notification {
	var out []models.Notification
	for _, c := range m.Calls {
		n := c.Arguments.Get(1).(models.Notification)
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	engine   *Engine
	store    storage.Store
	tracker  *conversation.Tracker
	notifier *NotifierMock
}

func newFixture(t *testing.T, store storage.Store) *fixture {
	t.Helper()
	log := newNoopLogger()
	ctx := context.Background()

	principals := principal.New(store, rootID, log)
	require.NoError(t, principals.Seed(ctx))
	activityLog := activity.New(store, log)
	tracker := conversation.New()
	notifier := new(NotifierMock)
	notifier.On("Notify", mock.Anything, mock.Anything).Return(nil)

	catalog := config.Catalog{Tiers: config.DefaultTiers(), Elite: config.DefaultElite(), SupportContact: "@Luxzin7"}
	e := New(Deps{
		Store:         store,
		Principals:    principals,
		Conversations: tracker,
		Redemptions:   redemption.New(store, principals, activityLog, log),
		Orders:        order.New(store, principals, activityLog, log),
		Activity:      activityLog,
		Notifier:      notifier,
		Catalog:       catalog,
		Support:       catalog.SupportContact,
		Log:           log,
	})
	return &fixture{engine: e, store: store, tracker: tracker, notifier: notifier}
}

func (f *fixture) handle(t *testing.T, ev models.Event) Reply {
	t.Helper()
	reply, err := f.engine.Handle(context.Background(), ev)
	require.NoError(t, err)
	return reply
}

func TestEngine_FreeTrialScenario(t *testing.T) {
	f := newFixture(t, memory.New())

	reply := f.handle(t, models.Event{Type: models.EventFreeTrial, UserID: u1, Handle: "u1"})
	assert.Equal(t, ReplyAwaitingID, reply.Kind)
	assert.Equal(t, "free_trial_id", reply.Awaiting)
	assert.Equal(t, "@Luxzin7", reply.Support)

	reply = f.handle(t, models.Event{Type: models.EventText, UserID: u1, Text: "1234567"})
	assert.Equal(t, ReplyInvalidID, reply.Kind)
	assert.Equal(t, models.AwaitFreeTrialID, f.tracker.Get(u1).Awaiting)

	reply = f.handle(t, models.Event{Type: models.EventText, UserID: u1, Handle: "u1", Text: " 87654321 "})
	assert.Equal(t, ReplyTrialActivated, reply.Kind)
	assert.Equal(t, "87654321", reply.GameID)
	require.NotNil(t, reply.Entry)
	assert.Equal(t, models.LogPending, reply.Entry.Status)
	assert.Equal(t, models.AwaitNone, f.tracker.Get(u1).Awaiting)

	var record models.RedemptionRecord
	found, err := f.store.Get(context.Background(), storage.CollectionRedemptions, strconv.FormatInt(u1, 10), &record)
	require.NoError(t, err)
	assert.True(t, found)

	notes := f.notifier.sent(models.NotifyFreeTrialActivity)
	require.Len(t, notes, 1)
	assert.Equal(t, rootID, notes[0].RecipientID)
	require.NotNil(t, notes[0].Action)
	assert.Equal(t, ActionConfirmDelivery, notes[0].Action.Kind)
	assert.Equal(t, "101", notes[0].Action.Ref)
	assert.NotEmpty(t, notes[0].ID)

	reply = f.handle(t, models.Event{Type: models.EventFreeTrial, UserID: u1})
	assert.Equal(t, ReplyAlreadyRedeemed, reply.Kind)
	require.NotNil(t, reply.Action)
	assert.Equal(t, ActionViewPaidPlans, reply.Action.Kind)
	assert.Equal(t, models.AwaitNone, f.tracker.Get(u1).Awaiting)

	reply = f.handle(t, models.Event{Type: models.EventConfirmDelivery, UserID: rootID, Ref: "101"})
	assert.Equal(t, ReplyDeliveryConfirmed, reply.Kind)
	require.NotNil(t, reply.Entry)
	assert.Equal(t, models.LogDelivered, reply.Entry.Status)
	delivered := f.notifier.sent(models.NotifyDeliveryConfirmed)
	require.Len(t, delivered, 1)
	assert.Equal(t, u1, delivered[0].RecipientID)

	reply = f.handle(t, models.Event{Type: models.EventConfirmDelivery, UserID: rootID, Ref: "101"})
	assert.Equal(t, ReplyNotFound, reply.Kind)
}

func TestEngine_PrincipalFreeTrialIsUnlimited(t *testing.T) {
	f := newFixture(t, memory.New())

	for i := 0; i < 3; i++ {
		reply := f.handle(t, models.Event{Type: models.EventFreeTrial, UserID: rootID})
		require.Equal(t, ReplyAwaitingID, reply.Kind)
		reply = f.handle(t, models.Event{Type: models.EventText, UserID: rootID, Text: "12345678"})
		assert.Equal(t, ReplyTrialActivated, reply.Kind)
		assert.True(t, reply.Privileged)
	}

	for _, n := range f.notifier.sent(models.NotifyFreeTrialActivity) {
		assert.Nil(t, n.Action)
	}
}

func TestEngine_PaidPlanScenario(t *testing.T) {
	f := newFixture(t, memory.New())

	reply := f.handle(t, models.Event{Type: models.EventSelectTier, UserID: u2, Tier: "7dias"})
	assert.Equal(t, ReplyAwaitingID, reply.Kind)
	require.NotNil(t, reply.Tier)
	assert.Equal(t, "7 dias", reply.Tier.Label)

	reply = f.handle(t, models.Event{Type: models.EventText, UserID: u2, Handle: "u2", Text: "11112222"})
	assert.Equal(t, ReplyOrderCreated, reply.Kind)
	require.NotNil(t, reply.Order)
	assert.Equal(t, models.OrderPendingPayment, reply.Order.Status)
	assert.Equal(t, "7 dias", reply.Order.TierLabel)
	require.NotNil(t, reply.Action)
	assert.Equal(t, ActionPayURL, reply.Action.Kind)
	assert.Equal(t, "https://mpago.la/1Wo2Yof", reply.Action.Ref)
	orderID := reply.Order.ID

	newOrders := f.notifier.sent(models.NotifyNewOrder)
	require.Len(t, newOrders, 1)
	assert.Equal(t, ActionConfirmPayment, newOrders[0].Action.Kind)
	assert.Equal(t, orderID, newOrders[0].Action.Ref)

	reply = f.handle(t, models.Event{Type: models.EventConfirmPayment, UserID: u2, Ref: orderID})
	assert.Equal(t, ReplyAccessDenied, reply.Kind)

	reply = f.handle(t, models.Event{Type: models.EventConfirmPayment, UserID: rootID, Ref: orderID})
	assert.Equal(t, ReplyPaymentConfirmed, reply.Kind)
	require.NotNil(t, reply.Order)
	assert.Equal(t, models.OrderConfirmed, reply.Order.Status)
	require.NotNil(t, reply.Entry)
	assert.Equal(t, models.LogPaidOrder, reply.Entry.Kind)
	assert.Equal(t, models.LogDelivered, reply.Entry.Status)

	paid := f.notifier.sent(models.NotifyPaymentConfirmed)
	require.Len(t, paid, 1)
	assert.Equal(t, u2, paid[0].RecipientID)
	assert.Equal(t, "7 dias", paid[0].Fields["plan"])

	reply = f.handle(t, models.Event{Type: models.EventConfirmPayment, UserID: rootID, Ref: orderID})
	assert.Equal(t, ReplyNotFound, reply.Kind)
}

func TestEngine_EliteOrder(t *testing.T) {
	f := newFixture(t, memory.New())

	reply := f.handle(t, models.Event{Type: models.EventElite, UserID: u2})
	assert.Equal(t, "elite_id", reply.Awaiting)

	reply = f.handle(t, models.Event{Type: models.EventText, UserID: u2, Text: "1111-2222"})
	require.Equal(t, ReplyOrderCreated, reply.Kind)
	assert.True(t, strings.HasPrefix(reply.Order.ID, "passe_202_"))
	assert.Equal(t, "Passe de Elite", reply.Order.TierLabel)
	assert.Equal(t, "1111-2222", reply.Order.GameID)

	reply = f.handle(t, models.Event{Type: models.EventConfirmPayment, UserID: rootID, Ref: reply.Order.ID})
	require.Equal(t, ReplyPaymentConfirmed, reply.Kind)
	assert.Equal(t, models.LogElitePass, reply.Entry.Kind)
}

func TestEngine_ConversationEdges(t *testing.T) {
	f := newFixture(t, memory.New())

	t.Run("echo without awaited input", func(t *testing.T) {
		reply := f.handle(t, models.Event{Type: models.EventText, UserID: u1, Text: "oi"})
		assert.Equal(t, ReplyEcho, reply.Kind)
		assert.Equal(t, "oi", reply.Text)
	})

	t.Run("unknown tier", func(t *testing.T) {
		reply := f.handle(t, models.Event{Type: models.EventSelectTier, UserID: u1, Tier: "2anos"})
		assert.Equal(t, ReplyUnknownTier, reply.Kind)
		assert.Len(t, reply.Tiers, 4)
		assert.Equal(t, models.AwaitNone, f.tracker.Get(u1).Awaiting)
	})

	t.Run("new selection overrides previous", func(t *testing.T) {
		f.handle(t, models.Event{Type: models.EventFreeTrial, UserID: u1})
		f.handle(t, models.Event{Type: models.EventSelectTier, UserID: u1, Tier: "1mes"})
		state := f.tracker.Get(u1)
		assert.Equal(t, models.AwaitPaidPlanID, state.Awaiting)
		assert.Equal(t, "1 mês", state.Tier.Label)
	})

	t.Run("cancel", func(t *testing.T) {
		reply := f.handle(t, models.Event{Type: models.EventCancel, UserID: u1})
		assert.Equal(t, ReplyCancelled, reply.Kind)
		assert.Equal(t, models.AwaitNone, f.tracker.Get(u1).Awaiting)
	})

	t.Run("welcome", func(t *testing.T) {
		reply := f.handle(t, models.Event{Type: models.EventStart, UserID: rootID})
		assert.Equal(t, ReplyWelcome, reply.Kind)
		assert.True(t, reply.Privileged)

		reply = f.handle(t, models.Event{Type: models.EventStart, UserID: u1})
		assert.False(t, reply.Privileged)
	})
}

func TestEngine_Principals(t *testing.T) {
	f := newFixture(t, memory.New())

	reply := f.handle(t, models.Event{Type: models.EventAddPrincipal, UserID: u1, Ref: "303"})
	assert.Equal(t, ReplyAccessDenied, reply.Kind)

	reply = f.handle(t, models.Event{Type: models.EventAddPrincipal, UserID: rootID, Ref: "303"})
	assert.Equal(t, ReplyPrincipalAdded, reply.Kind)
	assert.Len(t, reply.Principals, 2)

	reply = f.handle(t, models.Event{Type: models.EventRemovePrincipal, UserID: 303, Ref: "1"})
	assert.Equal(t, ReplyRejected, reply.Kind)

	reply = f.handle(t, models.Event{Type: models.EventAddPrincipal, UserID: rootID, Ref: "abc"})
	assert.Equal(t, ReplyInvalidRef, reply.Kind)

	reply = f.handle(t, models.Event{Type: models.EventStats, UserID: 303})
	assert.Equal(t, ReplyStats, reply.Kind)

	reply = f.handle(t, models.Event{Type: models.EventRemovePrincipal, UserID: rootID, Ref: "303"})
	assert.Equal(t, ReplyPrincipalRemoved, reply.Kind)

	reply = f.handle(t, models.Event{Type: models.EventStats, UserID: 303})
	assert.Equal(t, ReplyAccessDenied, reply.Kind)
}

func TestEngine_StatsAndLogs(t *testing.T) {
	f := newFixture(t, memory.New())

	for i := int64(0); i < 12; i++ {
		uid := 500 + i
		f.handle(t, models.Event{Type: models.EventFreeTrial, UserID: uid})
		f.handle(t, models.Event{Type: models.EventText, UserID: uid, Text: "12345678"})
	}
	f.handle(t, models.Event{Type: models.EventSelectTier, UserID: u2, Tier: "1dia"})
	f.handle(t, models.Event{Type: models.EventText, UserID: u2, Text: "11112222"})
	f.handle(t, models.Event{Type: models.EventConfirmDelivery, UserID: rootID, Ref: "500"})

	reply := f.handle(t, models.Event{Type: models.EventStats, UserID: rootID})
	require.Equal(t, ReplyStats, reply.Kind)
	s := reply.Stats
	assert.Equal(t, 14, s.Users)
	assert.Equal(t, 12, s.Redemptions)
	assert.Equal(t, 12, s.ActivityTotal)
	assert.Equal(t, 1, s.ActivityDelivered)
	assert.Equal(t, 11, s.ActivityPending)
	assert.Equal(t, 1, s.PendingOrders)
	assert.Equal(t, 1, s.Principals)
	assert.Equal(t, "memory", s.Backend)
	assert.False(t, s.Durable)

	reply = f.handle(t, models.Event{Type: models.EventLogs, UserID: rootID})
	require.Equal(t, ReplyLogs, reply.Kind)
	assert.Len(t, reply.Logs, RecentLogsLimit)

	reply = f.handle(t, models.Event{Type: models.EventLogs, UserID: u1})
	assert.Equal(t, ReplyAccessDenied, reply.Kind)
}

func TestEngine_Broadcast(t *testing.T) {
	f := newFixture(t, memory.New())
	f.notifier.ExpectedCalls = nil
	f.notifier.On("Notify", mock.Anything, mock.MatchedBy(func(n models.Notification) bool {
		return n.RecipientID == u2
	})).Return(errors.New("chat not found"))
	f.notifier.On("Notify", mock.Anything, mock.Anything).Return(nil)

	f.handle(t, models.Event{Type: models.EventStart, UserID: u1})
	f.handle(t, models.Event{Type: models.EventStart, UserID: u2})

	reply := f.handle(t, models.Event{Type: models.EventBroadcast, UserID: u1, Text: "oi"})
	assert.Equal(t, ReplyAccessDenied, reply.Kind)

	reply = f.handle(t, models.Event{Type: models.EventBroadcast, UserID: rootID, Text: "  "})
	assert.Equal(t, ReplyInvalidRef, reply.Kind)

	reply = f.handle(t, models.Event{Type: models.EventBroadcast, UserID: rootID, Text: "Promoção!"})
	require.Equal(t, ReplyBroadcast, reply.Kind)
	assert.Equal(t, 2, reply.Broadcast.Sent)
	assert.Equal(t, 1, reply.Broadcast.Failed)
}

func TestEngine_StorageFailureKeepsState(t *testing.T) {
	store := new(storagetest.StoreMock)
	store.On("SetIfAbsent", mock.Anything, storage.CollectionPrincipals, mock.Anything, mock.Anything).Return(true, nil)
	store.On("Set", mock.Anything, storage.CollectionUsers, mock.Anything, mock.Anything).Return(nil)
	store.On("Get", mock.Anything, storage.CollectionPrincipals, mock.Anything, mock.Anything).Return(false, nil)
	store.On("Get", mock.Anything, storage.CollectionRedemptions, mock.Anything, mock.Anything).
		Return(false, errs.ErrStorageUnavailable)

	f := newFixture(t, store)
	f.tracker.Begin(u1, models.AwaitFreeTrial())

	_, err := f.engine.Handle(context.Background(), models.Event{Type: models.EventText, UserID: u1, Text: "87654321"})
	assert.ErrorIs(t, err, errs.ErrStorageUnavailable)
	assert.Equal(t, models.AwaitFreeTrialID, f.tracker.Get(u1).Awaiting)
	assert.Empty(t, f.notifier.Calls)
}

func TestEngine_UnknownEventType(t *testing.T) {
	f := newFixture(t, memory.New())
	_, err := f.engine.Handle(context.Background(), models.Event{Type: "dance", UserID: u1})
	assert.ErrorIs(t, err, errs.ErrValidation)
}
