package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates the key has no persisted value.
	ErrNotFound = errors.New("storage: not found")
)

// KV is the client-side persisted key-value store. Each entry is an
// independently serialized record; writes are synchronous, so a read issued
// immediately after a write observes the new value.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
