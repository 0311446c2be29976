package store

import (
	"context"
	"errors"
	"time"

	"github.com/SaiNageswarS/go-api-boot/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrConflict is returned by Update when the key kept changing underneath
// every attempt.
var ErrConflict = errors.New("too many concurrent updates")

// RetryPolicy bounds how long a transport failure is retried before it is
// reported as ErrStorageUnavailable.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseBackoff: 100 * time.Millisecond,
		MaxBackoff:  2 * time.Second,
	}
}

// backoff returns the wait before the retry that follows the given number of
// failed attempts: base, 2*base, 4*base... capped at MaxBackoff.
func (p RetryPolicy) backoff(failures int) time.Duration {
	if failures < 1 {
		return 0
	}
	d := p.BaseBackoff << (failures - 1)
	if p.MaxBackoff > 0 && (d > p.MaxBackoff || d <= 0) {
		d = p.MaxBackoff
	}
	return d
}

// callbackError carries an error produced by caller code inside Update so it
// is never mistaken for a transport failure.
type callbackError struct {
	err error
}

func (e *callbackError) Error() string { return e.err.Error() }
func (e *callbackError) Unwrap() error { return e.err }

// do runs fn, retrying transient transport failures with exponential backoff.
func (s *RedisStore) do(ctx context.Context, op, key string, fn func(ctx context.Context) error) error {
	attempts := max(s.retry.MaxAttempts, 1)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			timer := time.NewTimer(s.retry.backoff(attempt - 1))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}

		if errors.Is(err, redis.ErrClosed) {
			return &UnavailableError{Op: op, Key: key, Attempts: attempt, Err: err}
		}
		if !isTransient(ctx, err) {
			return err
		}

		lastErr = err
		if attempt < attempts {
			logger.Info("Transient store failure, retrying",
				zap.String("op", op), zap.String("key", key), zap.Int("attempt", attempt), zap.Error(err))
		}
	}

	logger.Error("Store retries exhausted",
		zap.String("op", op), zap.String("key", key), zap.Int("attempts", attempts), zap.Error(lastErr))
	return &UnavailableError{Op: op, Key: key, Attempts: attempts, Err: lastErr}
}

// isTransient reports whether err came from the transport (dial, read, write,
// pool wait) rather than from the server or from caller code. Server replies
// such as WRONGTYPE are final; so is a caller that has given up.
func isTransient(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}

	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrConflict),
		errors.Is(err, redis.Nil),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}

	var cbErr *callbackError
	if errors.As(err, &cbErr) {
		return false
	}

	var redisErr redis.Error
	return !errors.As(err, &redisErr)
}
