// Package storage описывает единый контракт хранилища магазина поверх именованных коллекций.
// Реализации: redisstore и postgresql (долговременные) и memory (в памяти процесса).
// Бизнес-логика пишется только против интерфейса Store и никогда не проверяет,
// какая реализация выбрана.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
)

// Логические коллекции магазина.
const (
	CollectionUsers         = "users"
	CollectionRedemptions   = "redemptions"
	CollectionPendingOrders = "pending_orders"
	CollectionActivityLog   = "activity_log"
	CollectionPrincipals    = "principals"
)

// Store: хранилище записей вида ключ -> плоская JSON-запись в именованной коллекции.
// Ошибки обращения к бэкенду оборачивают errs.ErrStorageUnavailable.
type Store interface {
	// Get читает запись в out. Возвращает false, если записи нет.
	Get(ctx context.Context, collection, key string, out any) (bool, error)
	// Set полностью перезаписывает запись.
	Set(ctx context.Context, collection, key string, value any) error
	// Merge записывает несколько ключей коллекции за один вызов, остальные ключи не трогает.
	Merge(ctx context.Context, collection string, values map[string]any) error
	// Delete удаляет запись. Удаление отсутствующей записи не ошибка.
	Delete(ctx context.Context, collection, key string) error
	// Scan возвращает все записи коллекции.
	Scan(ctx context.Context, collection string) (map[string]json.RawMessage, error)
	// SetIfAbsent создаёт запись, только если её ещё нет. Возвращает true, если запись создана.
	SetIfAbsent(ctx context.Context, collection, key string, value any) (bool, error)
	// Take атомарно читает и удаляет запись. Из нескольких одновременных вызовов
	// для одного ключа запись получает ровно один.
	Take(ctx context.Context, collection, key string, out any) (bool, error)
	// Backend возвращает имя реализации для отчётов администратору.
	Backend() string
	// Durable сообщает, переживут ли данные перезапуск процесса.
	Durable() bool
	// Close освобождает соединения.
	Close() error
}

// Encode сериализует запись.
func Encode(value any) ([]byte, error) {
	const op = "storage.Encode"
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return data, nil
}

// Decode десериализует запись в out.
func Decode(data []byte, out any) error {
	const op = "storage.Decode"
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ScanAs читает всю коллекцию и декодирует записи в T.
func ScanAs[T any](ctx context.Context, s Store, collection string) (map[string]T, error) {
	const op = "storage.ScanAs"
	raw, err := s.Scan(ctx, collection)
	if err != nil {
		return nil, err
	}
	out := make(map[string]T, len(raw))
	for key, data := range raw {
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("%s: %s/%s: %w", op, collection, key, err)
		}
		out[key] = v
	}
	return out, nil
}
