// Package redisstore реализует storage.Store поверх Redis: каждая коллекция хранится в отдельном хэше.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/magabrotheeeer/storefront-bot/internal/config"
	"github.com/magabrotheeeer/storefront-bot/internal/errs"
	"github.com/magabrotheeeer/storefront-bot/internal/storage"
)

// takeScript читает и удаляет поле хэша за одну операцию на сервере.
var takeScript = redis.NewScript(`
local v = redis.call('HGET', KEYS[1], ARGV[1])
if v then
	redis.call('HDEL', KEYS[1], ARGV[1])
end
return v
`)

// Store хранилище на Redis.
type Store struct {
	Db     *redis.Client
	prefix string
}

// InitServer подключается к Redis и проверяет соединение.
func InitServer(ctx context.Context, cfg config.RedisConnection) (*Store, error) {
	const op = "storage.redisstore.InitServer"
	db := redis.NewClient(&redis.Options{
		Addr:         cfg.AddressRedis,
		Password:     cfg.Password,
		DB:           cfg.DB,
		Username:     cfg.User,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.TimeoutRedis,
		WriteTimeout: cfg.TimeoutRedis,
	})

	if err := db.Ping(ctx).Err(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w: %w", op, errs.ErrStorageUnavailable, err)
	}
	return New(db, cfg.KeyPrefix), nil
}

// New оборачивает готовый клиент.
func New(db *redis.Client, prefix string) *Store {
	return &Store{Db: db, prefix: prefix}
}

func (s *Store) key(collection string) string {
	if s.prefix == "" {
		return collection
	}
	return s.prefix + ":" + collection
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, errs.ErrStorageUnavailable, err)
}

// Get читает поле хэша коллекции.
func (s *Store) Get(ctx context.Context, collection, key string, out any) (bool, error) {
	const op = "storage.redisstore.Get"
	val, err := s.Db.HGet(ctx, s.key(collection), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, unavailable(op, err)
	}
	if err := storage.Decode(val, out); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// Set перезаписывает поле хэша.
func (s *Store) Set(ctx context.Context, collection, key string, value any) error {
	const op = "storage.redisstore.Set"
	data, err := storage.Encode(value)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.Db.HSet(ctx, s.key(collection), key, data).Err(); err != nil {
		return unavailable(op, err)
	}
	return nil
}

// Merge записывает несколько полей одной командой HSET.
func (s *Store) Merge(ctx context.Context, collection string, values map[string]any) error {
	const op = "storage.redisstore.Merge"
	if len(values) == 0 {
		return nil
	}
	fields := make(map[string]any, len(values))
	for key, value := range values {
		data, err := storage.Encode(value)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		fields[key] = data
	}
	if err := s.Db.HSet(ctx, s.key(collection), fields).Err(); err != nil {
		return unavailable(op, err)
	}
	return nil
}

// Delete удаляет поле хэша.
func (s *Store) Delete(ctx context.Context, collection, key string) error {
	const op = "storage.redisstore.Delete"
	if err := s.Db.HDel(ctx, s.key(collection), key).Err(); err != nil {
		return unavailable(op, err)
	}
	return nil
}

// Scan читает весь хэш коллекции.
func (s *Store) Scan(ctx context.Context, collection string) (map[string]json.RawMessage, error) {
	const op = "storage.redisstore.Scan"
	all, err := s.Db.HGetAll(ctx, s.key(collection)).Result()
	if err != nil {
		return nil, unavailable(op, err)
	}
	out := make(map[string]json.RawMessage, len(all))
	for key, val := range all {
		out[key] = json.RawMessage(val)
	}
	return out, nil
}

// SetIfAbsent использует HSETNX.
func (s *Store) SetIfAbsent(ctx context.Context, collection, key string, value any) (bool, error) {
	const op = "storage.redisstore.SetIfAbsent"
	data, err := storage.Encode(value)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	created, err := s.Db.HSetNX(ctx, s.key(collection), key, data).Result()
	if err != nil {
		return false, unavailable(op, err)
	}
	return created, nil
}

// Take выполняет takeScript.
func (s *Store) Take(ctx context.Context, collection, key string, out any) (bool, error) {
	const op = "storage.redisstore.Take"
	val, err := takeScript.Run(ctx, s.Db, []string{s.key(collection)}, key).Text()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, unavailable(op, err)
	}
	if err := storage.Decode([]byte(val), out); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// Backend возвращает "redis".
func (s *Store) Backend() string { return config.BackendRedis }

// Durable true: данные живут в Redis.
func (s *Store) Durable() bool { return true }

// Close закрывает клиент.
func (s *Store) Close() error {
	return s.Db.Close()
}
