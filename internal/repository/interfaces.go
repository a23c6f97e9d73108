package repository

import "context"

// Keys owned by the profile store.
const (
	KeyDreams  = "dreams"
	KeyPlan    = "plan"
	KeyUsage   = "usage"
	KeyProfile = "profile"
	KeyPrefs   = "prefs"
)

// KeyValueStore manages profile-scoped durable values
type KeyValueStore interface {
	Get(ctx context.Context, profileID, key string) ([]byte, error)
	Put(ctx context.Context, profileID, key string, value []byte) error
	Delete(ctx context.Context, profileID, key string) error
}

// ProfileLister enumerates profiles that have stored data
type ProfileLister interface {
	Profiles(ctx context.Context) ([]string, error)
}

// APIKeyRepository maps bearer tokens to profiles
type APIKeyRepository interface {
	Add(ctx context.Context, token, profileID, description string) error
	ResolveProfile(ctx context.Context, token string) (string, error)
}
