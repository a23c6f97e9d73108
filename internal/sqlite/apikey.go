package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/rpggio/reverie/internal/repository"
)

// APIKeyRepository implements repository.APIKeyRepository for SQLite
type APIKeyRepository struct {
	db *DB
}

// NewAPIKeyRepository creates a new APIKeyRepository
func NewAPIKeyRepository(db *DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// Add stores the hash of token for a profile
func (r *APIKeyRepository) Add(ctx context.Context, token, profileID, description string) error {
	query := `
		INSERT INTO api_keys (key_hash, profile_id, created_at, description)
		VALUES (?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query, hashToken(token), profileID, time.Now(), description)
	if err != nil {
		if isConstraintViolation(err) {
			return repository.ErrInvalidInput
		}
		return fmt.Errorf("failed to add api key: %w", err)
	}

	return nil
}

// ResolveProfile returns the profile owning token and stamps its last use
func (r *APIKeyRepository) ResolveProfile(ctx context.Context, token string) (string, error) {
	hash := hashToken(token)

	var profileID string
	err := r.db.QueryRowContext(ctx, `SELECT profile_id FROM api_keys WHERE key_hash = ?`, hash).Scan(&profileID)
	if err == sql.ErrNoRows || (err == nil && profileID == "") {
		return "", repository.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve api key: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, `UPDATE api_keys SET last_used = ? WHERE key_hash = ?`, time.Now(), hash); err != nil {
		return "", fmt.Errorf("failed to touch api key: %w", err)
	}

	return profileID, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
