package dao

import (
	"context"
)

// Service is the persistence contract shared by session snapshot stores.
// Implementations must be safe for concurrent use; Load/List return copies so
// callers can mutate results freely.
type Service[K comparable, T any] interface {
	Save(ctx context.Context, t *T) error

	Load(ctx context.Context, key K) (*T, error)

	Delete(ctx context.Context, key K) error

	List(ctx context.Context, parameters ...*Parameter) ([]*T, error)
}
