// Package principal хранит множество администраторов магазина.
// Главный администратор (root) задаётся конфигом, всегда считается администратором
// и не может быть удалён. Остальных добавляет и удаляет только root.
package principal

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

// Registry реестр администраторов поверх коллекции principals.
type Registry struct {
	store  storage.Store
	rootID int64
	log    *slog.Logger
	now    func() time.Time
}

// New создаёт реестр с главным администратором rootID.
func New(store storage.Store, rootID int64, log *slog.Logger) *Registry {
	return &Registry{
		store:  store,
		rootID: rootID,
		log:    log,
		now:    time.Now,
	}
}

func key(id int64) string {
	return strconv.FormatInt(id, 10)
}

// RootID возвращает идентификатор главного администратора.
func (r *Registry) RootID() int64 {
	return r.rootID
}

// IsRoot проверяет, является ли id главным администратором. Хранилище не трогает.
func (r *Registry) IsRoot(id int64) bool {
	return id == r.rootID
}

// Seed записывает главного администратора в хранилище. Вызывается при старте.
func (r *Registry) Seed(ctx context.Context) error {
	const op = "services.principal.Seed"
	p := models.Principal{
		UserID:    r.rootID,
		GrantedBy: r.rootID,
		GrantedAt: r.now(),
		Root:      true,
	}
	if _, err := r.store.SetIfAbsent(ctx, storage.CollectionPrincipals, key(r.rootID), p); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// IsPrincipal возвращает true для root и для всех, кто есть в коллекции principals.
func (r *Registry) IsPrincipal(ctx context.Context, id int64) (bool, error) {
	const op = "services.principal.IsPrincipal"
	if r.IsRoot(id) {
		return true, nil
	}
	found, err := r.store.Get(ctx, storage.CollectionPrincipals, key(id), nil)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return found, nil
}

// Check как IsPrincipal, но при ошибке хранилища пишет её в лог
// и считает администратором только root.
func (r *Registry) Check(ctx context.Context, id int64) bool {
	ok, err := r.IsPrincipal(ctx, id)
	if err != nil {
		r.log.Error("principal lookup failed, falling back to root only", sl.UserID(id), sl.Err(err))
		return r.IsRoot(id)
	}
	return ok
}

// Add выдаёт права администратора. Повторный вызов перезаписывает запись.
func (r *Registry) Add(ctx context.Context, requester, target int64) error {
	const op = "services.principal.Add"
	if !r.IsRoot(requester) {
		return fmt.Errorf("%s: %w", op, errs.ErrUnauthorized)
	}
	if target <= 0 {
		return fmt.Errorf("%s: invalid user id %d: %w", op, target, errs.ErrValidation)
	}
	if r.IsRoot(target) {
		return nil
	}
	p := models.Principal{
		UserID:    target,
		GrantedBy: requester,
		GrantedAt: r.now(),
	}
	if err := r.store.Set(ctx, storage.CollectionPrincipals, key(target), p); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	r.log.Info("principal added", sl.UserID(target), slog.Int64("granted_by", requester))
	return nil
}

// Remove отзывает права. Root удалить нельзя никому, включая самого root.
func (r *Registry) Remove(ctx context.Context, requester, target int64) error {
	const op = "services.principal.Remove"
	if r.IsRoot(target) {
		return fmt.Errorf("%s: root principal cannot be removed: %w", op, errs.ErrInvariantViolation)
	}
	if !r.IsRoot(requester) {
		return fmt.Errorf("%s: %w", op, errs.ErrUnauthorized)
	}
	if err := r.store.Delete(ctx, storage.CollectionPrincipals, key(target)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	r.log.Info("principal removed", sl.UserID(target), slog.Int64("removed_by", requester))
	return nil
}

// List возвращает всех администраторов, root первым.
func (r *Registry) List(ctx context.Context) ([]models.Principal, error) {
	const op = "services.principal.List"
	all, err := storage.ScanAs[models.Principal](ctx, r.store, storage.CollectionPrincipals)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	out := make([]models.Principal, 0, len(all)+1)
	if _, ok := all[key(r.rootID)]; !ok {
		out = append(out, models.Principal{UserID: r.rootID, GrantedBy: r.rootID, Root: true})
	}
	for _, p := range all {
		p.Root = r.IsRoot(p.UserID)
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Root != out[j].Root {
			return out[i].Root
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}
