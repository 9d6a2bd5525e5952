package storagetest

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"
)

// StoreMock: storage.Store на testify/mock для проверки обработки ошибок хранилища.
type StoreMock struct{ mock.Mock }

func (m *StoreMock) Get(ctx context.Context, collection, key string, out any) (bool, error) {
	args := m.Called(ctx, collection, key, out)
	return args.Bool(0), args.Error(1)
}

func (m *StoreMock) Set(ctx context.Context, collection, key string, value any) error {
	return m.Called(ctx, collection, key, value).Error(0)
}

func (m *StoreMock) Merge(ctx context.Context, collection string, values map[string]any) error {
	return m.Called(ctx, collection, values).Error(0)
}

func (m *StoreMock) Delete(ctx context.Context, collection, key string) error {
	return m.Called(ctx, collection, key).Error(0)
}

func (m *StoreMock) Scan(ctx context.Context, collection string) (map[string]json.RawMessage, error) {
	args := m.Called(ctx, collection)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]json.RawMessage), args.Error(1)
}

func (m *StoreMock) SetIfAbsent(ctx context.Context, collection, key string, value any) (bool, error) {
	args := m.Called(ctx, collection, key, value)
	return args.Bool(0), args.Error(1)
}

func (m *StoreMock) Take(ctx context.Context, collection, key string, out any) (bool, error) {
	args := m.Called(ctx, collection, key, out)
	return args.Bool(0), args.Error(1)
}

func (m *StoreMock) Backend() string { return "mock" }

func (m *StoreMock) Durable() bool { return false }

func (m *StoreMock) Close() error { return nil }
