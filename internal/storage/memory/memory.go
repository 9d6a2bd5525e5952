// Package memory реализует storage.Store в памяти процесса.
// Используется, когда долговременное хранилище недоступно: данные не переживают перезапуск.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/magabrotheeeer/storefront-bot/internal/errs"
	"github.com/magabrotheeeer/storefront-bot/internal/storage"
)

// Store хранит сериализованные записи, поэтому вызывающая сторона никогда не делит
// память с хранилищем, как и в случае сетевых реализаций.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string][]byte
}

// New создаёт пустое хранилище.
func New() *Store {
	return &Store{collections: make(map[string]map[string][]byte)}
}

// unavailable оборачивает отмену контекста так же, как сетевые реализации оборачивают сбои.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, errs.ErrStorageUnavailable, err)
}

// Get читает запись.
func (s *Store) Get(ctx context.Context, collection, key string, out any) (bool, error) {
	const op = "storage.memory.Get"
	if err := ctx.Err(); err != nil {
		return false, unavailable(op, err)
	}
	s.mu.RLock()
	data, ok := s.collections[collection][key]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := storage.Decode(data, out); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// Set перезаписывает запись.
func (s *Store) Set(ctx context.Context, collection, key string, value any) error {
	const op = "storage.memory.Set"
	if err := ctx.Err(); err != nil {
		return unavailable(op, err)
	}
	data, err := storage.Encode(value)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.mu.Lock()
	s.bucket(collection)[key] = data
	s.mu.Unlock()
	return nil
}

// Merge записывает несколько ключей под одной блокировкой.
func (s *Store) Merge(ctx context.Context, collection string, values map[string]any) error {
	const op = "storage.memory.Merge"
	if err := ctx.Err(); err != nil {
		return unavailable(op, err)
	}
	encoded := make(map[string][]byte, len(values))
	for key, value := range values {
		data, err := storage.Encode(value)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		encoded[key] = data
	}
	s.mu.Lock()
	b := s.bucket(collection)
	for key, data := range encoded {
		b[key] = data
	}
	s.mu.Unlock()
	return nil
}

// Delete удаляет запись.
func (s *Store) Delete(ctx context.Context, collection, key string) error {
	const op = "storage.memory.Delete"
	if err := ctx.Err(); err != nil {
		return unavailable(op, err)
	}
	s.mu.Lock()
	delete(s.collections[collection], key)
	s.mu.Unlock()
	return nil
}

// Scan возвращает копию коллекции.
func (s *Store) Scan(ctx context.Context, collection string) (map[string]json.RawMessage, error) {
	const op = "storage.memory.Scan"
	if err := ctx.Err(); err != nil {
		return nil, unavailable(op, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	b := s.collections[collection]
	out := make(map[string]json.RawMessage, len(b))
	for key, data := range b {
		cp := make([]byte, len(data))
		copy(cp, data)
		out[key] = cp
	}
	return out, nil
}

// SetIfAbsent создаёт запись, если ключ свободен.
func (s *Store) SetIfAbsent(ctx context.Context, collection, key string, value any) (bool, error) {
	const op = "storage.memory.SetIfAbsent"
	if err := ctx.Err(); err != nil {
		return false, unavailable(op, err)
	}
	data, err := storage.Encode(value)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.bucket(collection)
	if _, exists := b[key]; exists {
		return false, nil
	}
	b[key] = data
	return true, nil
}

// Take читает и удаляет запись под одной блокировкой.
func (s *Store) Take(ctx context.Context, collection, key string, out any) (bool, error) {
	const op = "storage.memory.Take"
	if err := ctx.Err(); err != nil {
		return false, unavailable(op, err)
	}
	s.mu.Lock()
	data, ok := s.collections[collection][key]
	if ok {
		delete(s.collections[collection], key)
	}
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := storage.Decode(data, out); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// Backend возвращает "memory".
func (s *Store) Backend() string { return "memory" }

// Durable всегда false.
func (s *Store) Durable() bool { return false }

// Close ничего не делает.
func (s *Store) Close() error { return nil }

// bucket вызывается под s.mu.
func (s *Store) bucket(collection string) map[string][]byte {
	b, ok := s.collections[collection]
	if !ok {
		b = make(map[string][]byte)
		s.collections[collection] = b
	}
	return b
}
