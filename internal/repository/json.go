package repository

import (
	"context"
	"encoding/json"
	"fmt"
)

// Getter is the read half of KeyValueStore.
type Getter interface {
	Get(ctx context.Context, profileID, key string) ([]byte, error)
}

// Putter is the write half of KeyValueStore.
type Putter interface {
	Put(ctx context.Context, profileID, key string, value []byte) error
}

// LoadJSON decodes the value stored under key.
// It returns ErrNotFound for a missing key and wraps ErrCorrupt when the
// stored bytes are not valid JSON for T.
func LoadJSON[T any](ctx context.Context, store Getter, profileID, key string) (T, error) {
	var out T
	data, err := store.Get(ctx, profileID, key)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	return out, nil
}

// SaveJSON encodes value and stores it under key.
func SaveJSON(ctx context.Context, store Putter, profileID, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return store.Put(ctx, profileID, key, data)
}
