package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// maxUpdateConflicts is how many times Update re-runs its callback when the
// watched key is modified between read and write.
const maxUpdateConflicts = 16

// Options configures the Redis connection pool.
type Options struct {
	Addr     string
	Password string
	DB       int

	// PoolSize is the maximum number of open connections. Zero uses the
	// go-redis default of 10 per GOMAXPROCS.
	PoolSize     int
	MinIdleConns int
	// PoolTimeout bounds how long a caller waits for a free connection
	// before the operation fails.
	PoolTimeout time.Duration

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	Retry RetryPolicy
}

func (o Options) withDefaults() Options {
	if o.Addr == "" {
		o.Addr = "localhost:6379"
	}
	if o.DialTimeout == 0 {
		o.DialTimeout = 5 * time.Second
	}
	if o.ReadTimeout == 0 {
		o.ReadTimeout = 5 * time.Second
	}
	if o.WriteTimeout == 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.PoolTimeout == 0 {
		o.PoolTimeout = o.ReadTimeout + time.Second
	}
	if o.Retry.MaxAttempts == 0 {
		o.Retry = DefaultRetryPolicy()
	}
	return o
}

// RedisStore implements Store on a pooled go-redis client.
type RedisStore struct {
	client *redis.Client
	retry  RetryPolicy
}

func NewRedisStore(opts Options) *RedisStore {
	opts = opts.withDefaults()

	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		MinIdleConns: opts.MinIdleConns,
		PoolTimeout:  opts.PoolTimeout,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		// retries are owned by RedisStore.do
		MaxRetries: -1,
	})

	return &RedisStore{client: client, retry: opts.Retry}
}

// NewRedisStoreFromClient wraps an already configured client.
func NewRedisStoreFromClient(client *redis.Client, retry RetryPolicy) *RedisStore {
	if retry.MaxAttempts == 0 {
		retry = DefaultRetryPolicy()
	}
	return &RedisStore{client: client, retry: retry}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.do(ctx, "get", key, func(ctx context.Context) error {
		v, err := s.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		value = v
		return err
	})
	return value, err
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.do(ctx, "set", key, func(ctx context.Context) error {
		return s.client.Set(ctx, key, value, max(ttl, 0)).Err()
	})
}

func (s *RedisStore) Update(ctx context.Context, key string, ttl time.Duration, fn func(current []byte) ([]byte, error)) error {
	err := s.do(ctx, "update", key, func(ctx context.Context) error {
		for range maxUpdateConflicts {
			err := s.client.Watch(ctx, func(tx *redis.Tx) error {
				current, err := tx.Get(ctx, key).Bytes()
				if errors.Is(err, redis.Nil) {
					return ErrNotFound
				}
				if err != nil {
					return err
				}

				next, err := fn(current)
				if err != nil {
					return &callbackError{err: err}
				}

				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Set(ctx, key, next, max(ttl, 0))
					return nil
				})
				return err
			}, key)

			if !errors.Is(err, redis.TxFailedErr) {
				return err
			}
		}
		return fmt.Errorf("update %s: %w", key, ErrConflict)
	})

	var cbErr *callbackError
	if errors.As(err, &cbErr) {
		return cbErr.err
	}
	return err
}

func (s *RedisStore) Append(ctx context.Context, listKey string, value []byte) (int64, error) {
	var length int64
	err := s.do(ctx, "append", listKey, func(ctx context.Context) error {
		n, err := s.client.RPush(ctx, listKey, value).Result()
		length = n
		return err
	})
	return length, err
}

func (s *RedisStore) Range(ctx context.Context, listKey string, start, stop int64) ([][]byte, error) {
	var values [][]byte
	err := s.do(ctx, "range", listKey, func(ctx context.Context) error {
		raw, err := s.client.LRange(ctx, listKey, start, stop).Result()
		if err != nil {
			return err
		}
		values = make([][]byte, len(raw))
		for i, v := range raw {
			values[i] = []byte(v)
		}
		return nil
	})
	return values, err
}

func (s *RedisStore) TrimList(ctx context.Context, listKey string, maxLen int64) error {
	if maxLen <= 0 {
		return nil
	}
	return s.do(ctx, "trim", listKey, func(ctx context.Context) error {
		return s.client.LTrim(ctx, listKey, -maxLen, -1).Err()
	})
}

func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	// EXPIRE with a non-positive ttl deletes the key; without a ttl there is
	// nothing to refresh.
	if ttl <= 0 {
		return s.Exists(ctx, key)
	}

	var ok bool
	err := s.do(ctx, "expire", key, func(ctx context.Context) error {
		v, err := s.client.Expire(ctx, key, ttl).Result()
		ok = v
		return err
	})
	return ok, err
}

func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	var ttl time.Duration
	err := s.do(ctx, "ttl", key, func(ctx context.Context) error {
		d, err := s.client.TTL(ctx, key).Result()
		if err != nil {
			return err
		}
		switch d {
		case -2:
			return ErrNotFound
		case -1:
			ttl = 0
		default:
			ttl = d
		}
		return nil
	})
	return ttl, err
}

func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := s.do(ctx, "exists", key, func(ctx context.Context) error {
		n, err := s.client.Exists(ctx, key).Result()
		exists = n > 0
		return err
	})
	return exists, err
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.do(ctx, "delete", key, func(ctx context.Context) error {
		return s.client.Del(ctx, key).Err()
	})
}

func (s *RedisStore) SetAdd(ctx context.Context, key, member string) error {
	return s.do(ctx, "sadd", key, func(ctx context.Context) error {
		return s.client.SAdd(ctx, key, member).Err()
	})
}

func (s *RedisStore) SetRemove(ctx context.Context, key, member string) error {
	return s.do(ctx, "srem", key, func(ctx context.Context) error {
		return s.client.SRem(ctx, key, member).Err()
	})
}

func (s *RedisStore) SetMembers(ctx context.Context, key string) ([]string, error) {
	var members []string
	err := s.do(ctx, "smembers", key, func(ctx context.Context) error {
		m, err := s.client.SMembers(ctx, key).Result()
		members = m
		return err
	})
	return members, err
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.do(ctx, "ping", "", func(ctx context.Context) error {
		return s.client.Ping(ctx).Err()
	})
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ Store = (*RedisStore)(nil)
