package redemption

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/storefront-bot/internal/errs"
	"github.com/magabrotheeeer/storefront-bot/internal/models"
	"github.com/magabrotheeeer/storefront-bot/internal/services/activity"
	"github.com/magabrotheeeer/storefront-bot/internal/storage"
	"github.com/magabrotheeeer/storefront-bot/internal/storage/memory"
	"github.com/magabrotheeeer/storefront-bot/internal/storage/storagetest"
)

type PrincipalMock struct{ mock.Mock }

func (m *PrincipalMock) IsPrincipal(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

type ActivityMock struct{ mock.Mock }

func (m *ActivityMock) Append(ctx context.Context, entry models.LogEntry) (models.LogEntry, error) {
	args := m.Called(ctx, entry)
	return args.Get(0).(models.LogEntry), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const adminID int64 = 1

func principals() *PrincipalMock {
	p := new(PrincipalMock)
	p.On("IsPrincipal", mock.Anything, adminID).Return(true, nil)
	p.On("IsPrincipal", mock.Anything, mock.Anything).Return(false, nil)
	return p
}

func newGuard(store storage.Store) (*Guard, *activity.Log) {
	log := activity.New(store, newNoopLogger())
	return New(store, principals(), log, newNoopLogger()), log
}

func TestGuard_RedeemOnce(t *testing.T) {
	store := memory.New()
	g, log := newGuard(store)
	ctx := context.Background()
	u1 := models.User{ID: 101, Handle: "u1"}

	has, err := g.HasRedeemed(ctx, u1.ID)
	require.NoError(t, err)
	assert.False(t, has)

	res, err := g.Redeem(ctx, u1, "87654321")
	require.NoError(t, err)
	assert.Equal(t, OutcomeRedeemed, res.Outcome)
	assert.False(t, res.Privileged)
	assert.Equal(t, models.LogPending, res.Entry.Status)

	var record models.RedemptionRecord
	found, err := store.Get(ctx, storage.CollectionRedemptions, "101", &record)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "87654321", record.GameID)
	assert.False(t, record.Privileged)

	pending, err := log.CountByStatus(ctx, models.LogPending)
	require.NoError(t, err)
	assert.Equal(t, 1, pending)

	res, err = g.Redeem(ctx, u1, "87654321")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyRedeemed, res.Outcome)

	has, err = g.HasRedeemed(ctx, u1.ID)
	require.NoError(t, err)
	assert.True(t, has)

	total, err := log.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestGuard_PrivilegedUnlimited(t *testing.T) {
	store := memory.New()
	g, log := newGuard(store)
	ctx := context.Background()
	admin := models.User{ID: adminID}

	for i := 0; i < 5; i++ {
		res, err := g.Redeem(ctx, admin, "12345678")
		require.NoError(t, err)
		assert.Equal(t, OutcomeRedeemed, res.Outcome)
		assert.True(t, res.Privileged)
		assert.Equal(t, UnlimitedDetail, res.Entry.Detail)
		assert.Equal(t, models.DefaultHandle, res.Entry.Handle)

		has, err := g.HasRedeemed(ctx, adminID)
		require.NoError(t, err)
		assert.False(t, has)
	}

	n, err := g.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	total, err := log.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
}

func TestGuard_ConcurrentRedeemAtMostOnce(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	user := models.User{ID: 202, Handle: "racer"}

	// два экземпляра над одним хранилищем, как два процесса
	g1, _ := newGuard(store)
	g2, _ := newGuard(store)

	var (
		wg       sync.WaitGroup
		redeemed atomic.Int32
		already  atomic.Int32
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		g := g1
		if i%2 == 1 {
			g = g2
		}
		go func(g *Guard) {
			defer wg.Done()
			res, err := g.Redeem(ctx, user, "11112222")
			if !assert.NoError(t, err) {
				return
			}
			switch res.Outcome {
			case OutcomeRedeemed:
				redeemed.Add(1)
			case OutcomeAlreadyRedeemed:
				already.Add(1)
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, int32(1), redeemed.Load())
	assert.Equal(t, int32(49), already.Load())

	entries, err := store.Scan(ctx, storage.CollectionActivityLog)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestGuard_StorageUnavailable(t *testing.T) {
	store := new(storagetest.StoreMock)
	store.On("Get", mock.Anything, storage.CollectionRedemptions, "5", mock.Anything).
		Return(false, errs.ErrStorageUnavailable)

	g := New(store, principals(), activity.New(store, newNoopLogger()), newNoopLogger())
	_, err := g.Redeem(context.Background(), models.User{ID: 5}, "12345678")
	assert.ErrorIs(t, err, errs.ErrStorageUnavailable)
	store.AssertNotCalled(t, "SetIfAbsent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGuard_FailedAppendKeepsTrialAvailable(t *testing.T) {
	store := memory.New()
	act := new(ActivityMock)
	act.On("Append", mock.Anything, mock.Anything).Return(models.LogEntry{}, errs.ErrStorageUnavailable).Once()
	act.On("Append", mock.Anything, mock.Anything).Return(models.LogEntry{ID: "101_1", Status: models.LogPending}, nil).Once()

	g := New(store, principals(), act, newNoopLogger())
	ctx := context.Background()
	u := models.User{ID: 101, Handle: "u1"}

	_, err := g.Redeem(ctx, u, "87654321")
	require.ErrorIs(t, err, errs.ErrStorageUnavailable)

	has, err := g.HasRedeemed(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, has, "failed redemption must not consume the trial")

	res, err := g.Redeem(ctx, u, "87654321")
	require.NoError(t, err)
	assert.Equal(t, OutcomeRedeemed, res.Outcome)
	assert.Equal(t, "101_1", res.Entry.ID)

	has, err = g.HasRedeemed(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, has)
	act.AssertExpectations(t)
}

func TestGuard_PrincipalLookupError(t *testing.T) {
	p := new(PrincipalMock)
	p.On("IsPrincipal", mock.Anything, int64(5)).Return(false, errs.ErrStorageUnavailable)

	store := memory.New()
	g := New(store, p, activity.New(store, newNoopLogger()), newNoopLogger())

	_, err := g.Redeem(context.Background(), models.User{ID: 5}, "12345678")
	assert.ErrorIs(t, err, errs.ErrStorageUnavailable)
	_, err = g.HasRedeemed(context.Background(), 5)
	assert.ErrorIs(t, err, errs.ErrStorageUnavailable)
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "redeemed", OutcomeRedeemed.String())
	assert.Equal(t, "already_redeemed", OutcomeAlreadyRedeemed.String())
}
