package repository

import "context"

// SessionTokenStore is the port for secure persistence of session tokens.
// Every method may fail with a storage error; callers treat those as non-fatal.
type SessionTokenStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
