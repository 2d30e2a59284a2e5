// Package store provides the per-user keyed storage behind the dialogue
// engine: dialogue state, offered slots, pending registrations, retrieval
// history and customer bindings.
package store

import "context"

// KeyedStore holds at most one value per user key. A missing key is not an
// error: Get reports it through the boolean.
type KeyedStore[T any] interface {
	Get(ctx context.Context, key string) (T, bool, error)
	Set(ctx context.Context, key string, value T) error
	Delete(ctx context.Context, key string) error
}
