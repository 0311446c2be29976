// Package store is the transport to the external key-value backend that
// holds sessions and their histories.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a key does not exist or has expired.
	ErrNotFound = errors.New("key not found")

	// ErrStorageUnavailable is matched by every failure caused by the backend
	// being unreachable after the retry budget is spent.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// UnavailableError reports a transport failure that outlived retries.
type UnavailableError struct {
	Op       string
	Key      string
	Attempts int
	Err      error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("storage unavailable: %s %s failed after %d attempt(s): %v", e.Op, e.Key, e.Attempts, e.Err)
}

func (e *UnavailableError) Unwrap() []error {
	return []error{ErrStorageUnavailable, e.Err}
}

// Store is the single-key contract the registry and history log are written
// against. Implementations must be safe for concurrent use; no operation
// spans more than one key.
type Store interface {
	// Get returns ErrNotFound when key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set writes value with the given ttl. A zero ttl means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Update atomically replaces the value of an existing key with fn(current),
	// retrying fn if the key changes concurrently. Returns ErrNotFound when
	// the key is absent.
	Update(ctx context.Context, key string, ttl time.Duration, fn func(current []byte) ([]byte, error)) error
	// Append pushes value onto the tail of a list and returns the new length.
	Append(ctx context.Context, listKey string, value []byte) (int64, error)
	// Range returns list elements between start and stop inclusive. Negative
	// indexes count from the tail.
	Range(ctx context.Context, listKey string, start, stop int64) ([][]byte, error)
	// TrimList keeps the newest maxLen elements. maxLen <= 0 keeps everything.
	TrimList(ctx context.Context, listKey string, maxLen int64) error
	// Expire resets the ttl of key and reports whether the key exists.
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// TTL returns the remaining lifetime, 0 for keys without expiry, and
	// ErrNotFound for absent keys.
	TTL(ctx context.Context, key string) (time.Duration, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error

	SetAdd(ctx context.Context, key, member string) error
	SetRemove(ctx context.Context, key, member string) error
	SetMembers(ctx context.Context, key string) ([]string, error)

	Ping(ctx context.Context) error
	Close() error
}
