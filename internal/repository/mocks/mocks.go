package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// KeyValueStore is a mock for repository.KeyValueStore.
type KeyValueStore struct {
	mock.Mock
}

func (m *KeyValueStore) Get(ctx context.Context, profileID, key string) ([]byte, error) {
	args := m.Called(ctx, profileID, key)
	if data, ok := args.Get(0).([]byte); ok {
		return data, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *KeyValueStore) Put(ctx context.Context, profileID, key string, value []byte) error {
	args := m.Called(ctx, profileID, key, value)
	return args.Error(0)
}

func (m *KeyValueStore) Delete(ctx context.Context, profileID, key string) error {
	args := m.Called(ctx, profileID, key)
	return args.Error(0)
}

// APIKeyRepository is a mock for repository.APIKeyRepository.
type APIKeyRepository struct {
	mock.Mock
}

func (m *APIKeyRepository) Add(ctx context.Context, token, profileID, description string) error {
	args := m.Called(ctx, token, profileID, description)
	return args.Error(0)
}

func (m *APIKeyRepository) ResolveProfile(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}
