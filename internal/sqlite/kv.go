package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rpggio/reverie/internal/repository"
)

// KVStore implements repository.KeyValueStore for SQLite
type KVStore struct {
	db *DB
}

// NewKVStore creates a new KVStore
func NewKVStore(db *DB) *KVStore {
	return &KVStore{db: db}
}

// Get returns the raw value stored under key for a profile
func (s *KVStore) Get(ctx context.Context, profileID, key string) ([]byte, error) {
	query := `
		SELECT value
		FROM kv_store
		WHERE profile_id = ? AND key = ?
	`

	var value string
	err := s.db.QueryRowContext(ctx, query, profileID, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}

	return []byte(value), nil
}

// Put stores value under key, replacing any previous value
func (s *KVStore) Put(ctx context.Context, profileID, key string, value []byte) error {
	query := `
		INSERT INTO kv_store (profile_id, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (profile_id, key) DO UPDATE
		SET value = excluded.value, updated_at = excluded.updated_at
	`

	if _, err := s.db.ExecContext(ctx, query, profileID, key, string(value), time.Now()); err != nil {
		return fmt.Errorf("failed to put %s: %w", key, err)
	}

	return nil
}

// Delete removes key for a profile. Deleting a missing key is not an error.
func (s *KVStore) Delete(ctx context.Context, profileID, key string) error {
	query := `DELETE FROM kv_store WHERE profile_id = ? AND key = ?`

	if _, err := s.db.ExecContext(ctx, query, profileID, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}

	return nil
}

// Profiles returns every profile that has at least one stored value
func (s *KVStore) Profiles(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT profile_id
		FROM kv_store
		ORDER BY profile_id ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []string
	for rows.Next() {
		var profileID string
		if err := rows.Scan(&profileID); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, profileID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating profiles: %w", err)
	}

	return profiles, nil
}
