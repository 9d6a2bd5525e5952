// Package activity: журнал активности магазина. Записи только добавляются;
// единственное изменение: однократный переход pending -> delivered.
package activity

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/magabrotheeeer/storefront-bot/internal/errs"
	"github.com/magabrotheeeer/storefront-bot/internal/lib/keylock"
	"github.com/magabrotheeeer/storefront-bot/internal/lib/sl"
	"github.com/magabrotheeeer/storefront-bot/internal/models"
	"github.com/magabrotheeeer/storefront-bot/internal/storage"
)

// maxKeyAttempts ограничивает поиск свободного ключа при совпадении времени создания.
const maxKeyAttempts = 16

// Log журнал поверх коллекции activity_log.
type Log struct {
	store storage.Store
	locks *keylock.Locker
	log   *slog.Logger
	now   func() time.Time
}

// New создаёт журнал.
func New(store storage.Store, log *slog.Logger) *Log {
	return &Log{
		store: store,
		locks: keylock.New(),
		log:   log,
		now:   time.Now,
	}
}

// EntryKey возвращает ключ записи "<userID>_<unixnano>".
func EntryKey(userID int64, at time.Time) string {
	return strconv.FormatInt(userID, 10) + "_" + strconv.FormatInt(at.UnixNano(), 10)
}

// Append добавляет запись. Пустые ID, CreatedAt и Status заполняются автоматически.
// Ключи не перезаписываются: при совпадении времени берётся следующая наносекунда.
func (l *Log) Append(ctx context.Context, entry models.LogEntry) (models.LogEntry, error) {
	const op = "services.activity.Append"
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = l.now()
	}
	if entry.Status == "" {
		entry.Status = models.LogPending
	}

	at := entry.CreatedAt
	for i := 0; i < maxKeyAttempts; i++ {
		if entry.ID == "" || i > 0 {
			entry.ID = EntryKey(entry.UserID, at)
		}
		created, err := l.store.SetIfAbsent(ctx, storage.CollectionActivityLog, entry.ID, entry)
		if err != nil {
			return models.LogEntry{}, fmt.Errorf("%s: %w", op, err)
		}
		if created {
			l.log.Debug("activity appended",
				slog.String("id", entry.ID),
				slog.String("kind", string(entry.Kind)),
				sl.UserID(entry.UserID))
			return entry, nil
		}
		at = at.Add(time.Nanosecond)
	}
	return models.LogEntry{}, fmt.Errorf("%s: no free key for user %d: %w", op, entry.UserID, errs.ErrInvariantViolation)
}

func (l *Log) all(ctx context.Context) ([]models.LogEntry, error) {
	entries, err := storage.ScanAs[models.LogEntry](ctx, l.store, storage.CollectionActivityLog)
	if err != nil {
		return nil, err
	}
	out := make([]models.LogEntry, 0, len(entries))
	for key, e := range entries {
		e.ID = key
		out = append(out, e)
	}
	sortNewestFirst(out)
	return out, nil
}

// sortNewestFirst упорядочивает по CreatedAt по убыванию, при равенстве по ключу по убыванию.
func sortNewestFirst(entries []models.LogEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.After(entries[j].CreatedAt)
		}
		return entries[i].ID > entries[j].ID
	})
}

// Recent возвращает не более n последних записей, самые новые первыми.
func (l *Log) Recent(ctx context.Context, n int) ([]models.LogEntry, error) {
	const op = "services.activity.Recent"
	if n <= 0 {
		return []models.LogEntry{}, nil
	}
	entries, err := l.all(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries, nil
}

// CountByStatus считает записи с заданным статусом.
func (l *Log) CountByStatus(ctx context.Context, status models.LogStatus) (int, error) {
	const op = "services.activity.CountByStatus"
	entries, err := storage.ScanAs[models.LogEntry](ctx, l.store, storage.CollectionActivityLog)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n := 0
	for _, e := range entries {
		if e.Status == status {
			n++
		}
	}
	return n, nil
}

// Count возвращает общее число записей.
func (l *Log) Count(ctx context.Context) (int, error) {
	const op = "services.activity.Count"
	raw, err := l.store.Scan(ctx, storage.CollectionActivityLog)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return len(raw), nil
}

// Pending возвращает все записи, ждущие доставки, самые новые первыми.
func (l *Log) Pending(ctx context.Context) ([]models.LogEntry, error) {
	const op = "services.activity.Pending"
	entries, err := l.all(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	out := entries[:0]
	for _, e := range entries {
		if e.Status == models.LogPending {
			out = append(out, e)
		}
	}
	return out, nil
}

// MarkDelivered переводит самую свежую pending-запись пользователя в delivered.
// Вызовы для одного пользователя выполняются последовательно.
// Используется только реестром заказов после проверки прав.
func (l *Log) MarkDelivered(ctx context.Context, userID int64) (*models.LogEntry, error) {
	const op = "services.activity.MarkDelivered"

	unlock := l.locks.Lock(strconv.FormatInt(userID, 10))
	defer unlock()

	entries, err := l.all(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var target *models.LogEntry
	for i := range entries {
		if entries[i].UserID == userID && entries[i].Status == models.LogPending {
			target = &entries[i]
			break
		}
	}
	if target == nil {
		return nil, fmt.Errorf("%s: no pending entry for user %d: %w", op, userID, errs.ErrNotFound)
	}

	confirmedAt := l.now()
	target.Status = models.LogDelivered
	target.ConfirmedAt = &confirmedAt
	if err := l.store.Set(ctx, storage.CollectionActivityLog, target.ID, *target); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	l.log.Info("delivery confirmed", slog.String("id", target.ID), sl.UserID(userID))
	return target, nil
}
