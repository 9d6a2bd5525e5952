// Package postgresql реализует storage.Store поверх PostgreSQL.
// Все коллекции лежат в одной таблице kv_records с первичным ключом (collection, key).
package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/magabrotheeeer/storefront-bot/internal/config"
	"github.com/magabrotheeeer/storefront-bot/internal/errs"
	"github.com/magabrotheeeer/storefront-bot/internal/migrations"
	"github.com/magabrotheeeer/storefront-bot/internal/storage"
)

// Storage инкапсулирует соединение с PostgreSQL.
type Storage struct {
	DB      *sql.DB
	timeout time.Duration
}

// New открывает соединение, проверяет его и применяет миграции.
func New(ctx context.Context, dsn string, timeout time.Duration) (*Storage, error) {
	const op = "storage.postgresql.New"

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, errs.ErrStorageUnavailable, err)
	}
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w: %w", op, errs.ErrStorageUnavailable, err)
	}
	if err = migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w: %w", op, errs.ErrStorageUnavailable, err)
	}

	return NewWithDB(db, timeout), nil
}

// NewWithDB оборачивает уже открытое соединение со схемой.
func NewWithDB(db *sql.DB, timeout time.Duration) *Storage {
	return &Storage{DB: db, timeout: timeout}
}

func (s *Storage) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, errs.ErrStorageUnavailable, err)
}

// Get читает запись.
func (s *Storage) Get(ctx context.Context, collection, key string, out any) (bool, error) {
	const op = "storage.postgresql.Get"
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var data []byte
	err := s.DB.QueryRowContext(ctx,
		`SELECT value FROM kv_records WHERE collection = $1 AND key = $2`,
		collection, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, unavailable(op, err)
	}
	if err := storage.Decode(data, out); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

const upsertQuery = `
	INSERT INTO kv_records (collection, key, value)
	VALUES ($1, $2, $3)
	ON CONFLICT (collection, key)
	DO UPDATE SET value = EXCLUDED.value, updated_at = now()`

// Set перезаписывает запись через upsert.
func (s *Storage) Set(ctx context.Context, collection, key string, value any) error {
	const op = "storage.postgresql.Set"
	data, err := storage.Encode(value)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.DB.ExecContext(ctx, upsertQuery, collection, key, data); err != nil {
		return unavailable(op, err)
	}
	return nil
}

// Merge записывает несколько ключей в одной транзакции.
func (s *Storage) Merge(ctx context.Context, collection string, values map[string]any) error {
	const op = "storage.postgresql.Merge"
	if len(values) == 0 {
		return nil
	}
	encoded := make(map[string][]byte, len(values))
	for key, value := range values {
		data, err := storage.Encode(value)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		encoded[key] = data
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return unavailable(op, err)
	}
	defer func() { _ = tx.Rollback() }()

	for key, data := range encoded {
		if _, err := tx.ExecContext(ctx, upsertQuery, collection, key, data); err != nil {
			return unavailable(op, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return unavailable(op, err)
	}
	return nil
}

// Delete удаляет запись.
func (s *Storage) Delete(ctx context.Context, collection, key string) error {
	const op = "storage.postgresql.Delete"
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.DB.ExecContext(ctx,
		`DELETE FROM kv_records WHERE collection = $1 AND key = $2`,
		collection, key); err != nil {
		return unavailable(op, err)
	}
	return nil
}

// Scan возвращает все записи коллекции.
func (s *Storage) Scan(ctx context.Context, collection string) (map[string]json.RawMessage, error) {
	const op = "storage.postgresql.Scan"
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.DB.QueryContext(ctx,
		`SELECT key, value FROM kv_records WHERE collection = $1`, collection)
	if err != nil {
		return nil, unavailable(op, err)
	}
	defer rows.Close()

	out := make(map[string]json.RawMessage)
	for rows.Next() {
		var (
			key  string
			data []byte
		)
		if err := rows.Scan(&key, &data); err != nil {
			return nil, unavailable(op, err)
		}
		out[key] = json.RawMessage(data)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(op, err)
	}
	return out, nil
}

// SetIfAbsent вставляет запись с ON CONFLICT DO NOTHING.
func (s *Storage) SetIfAbsent(ctx context.Context, collection, key string, value any) (bool, error) {
	const op = "storage.postgresql.SetIfAbsent"
	data, err := storage.Encode(value)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.DB.ExecContext(ctx, `
		INSERT INTO kv_records (collection, key, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (collection, key) DO NOTHING`,
		collection, key, data)
	if err != nil {
		return false, unavailable(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, unavailable(op, err)
	}
	return n == 1, nil
}

// Take удаляет запись и возвращает её значение через RETURNING.
func (s *Storage) Take(ctx context.Context, collection, key string, out any) (bool, error) {
	const op = "storage.postgresql.Take"
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var data []byte
	err := s.DB.QueryRowContext(ctx,
		`DELETE FROM kv_records WHERE collection = $1 AND key = $2 RETURNING value`,
		collection, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, unavailable(op, err)
	}
	if err := storage.Decode(data, out); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// Backend возвращает "postgres".
func (s *Storage) Backend() string { return config.BackendPostgres }

// Durable true.
func (s *Storage) Durable() bool { return true }

// Close закрывает пул соединений.
func (s *Storage) Close() error {
	return s.DB.Close()
}
