// Package session keeps the persisted record of every conversation thread:
// who owns it, when it was last used, and how many messages it has seen.
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/SaiNageswarS/agent-memory/schema"
	"github.com/SaiNageswarS/agent-memory/store"
	"github.com/SaiNageswarS/go-api-boot/logger"
	"github.com/SaiNageswarS/go-collection-boot/async"
	"github.com/SaiNageswarS/go-collection-boot/linq"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrSessionNotFound is returned for ids that never existed, were deleted,
// or expired. The three cases are indistinguishable.
var ErrSessionNotFound = errors.New("session not found")

// Registry manages session records on top of a Store.
type Registry struct {
	store store.Store
	ttl   time.Duration
	now   func() time.Time
}

// NewRegistry creates a registry whose sessions expire after ttl of
// inactivity.
func NewRegistry(st store.Store, ttl time.Duration) *Registry {
	return &Registry{
		store: st,
		ttl:   ttl,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source; used by tests.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

func (r *Registry) TTL() time.Duration {
	return r.ttl
}

// Create mints a new session and, when userID is set, indexes it under the
// user.
func (r *Registry) Create(ctx context.Context, userID string, metadata schema.Metadata) (string, error) {
	now := r.now()
	s := &schema.Session{
		ID:           uuid.New().String(),
		UserID:       userID,
		CreatedAt:    now,
		LastActiveAt: now,
		Metadata:     metadata.Clone(),
	}

	data, err := schema.MarshalSession(s)
	if err != nil {
		return "", err
	}

	if err := r.store.Set(ctx, schema.SessionKey(s.ID), data, r.ttl); err != nil {
		logger.Error("Failed to create session", zap.String("sessionId", s.ID), zap.Error(err))
		return "", err
	}

	if userID != "" {
		userKey := schema.UserSessionsKey(userID)
		if err := r.store.SetAdd(ctx, userKey, s.ID); err != nil {
			logger.Error("Failed to index session for user", zap.String("sessionId", s.ID), zap.String("userId", userID), zap.Error(err))
			return "", err
		}
		if _, err := r.store.Expire(ctx, userKey, r.ttl); err != nil {
			return "", err
		}
	}

	logger.Info("Created session", zap.String("sessionId", s.ID), zap.String("userId", userID))
	return s.ID, nil
}

func (r *Registry) Get(ctx context.Context, sessionID string) (*schema.Session, error) {
	data, err := r.store.Get(ctx, schema.SessionKey(sessionID))
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return nil, err
	}
	return schema.UnmarshalSession(data)
}

// Touch marks the session active now and restarts its full TTL.
func (r *Registry) Touch(ctx context.Context, sessionID string) (*schema.Session, error) {
	return r.mutate(ctx, sessionID, func(s *schema.Session) {
		s.LastActiveAt = r.now()
	})
}

// Update merges patch into the session metadata. Keys absent from patch are
// left as they are.
func (r *Registry) Update(ctx context.Context, sessionID string, patch schema.Metadata) (*schema.Session, error) {
	return r.mutate(ctx, sessionID, func(s *schema.Session) {
		s.Metadata = s.Metadata.Merge(patch)
	})
}

// RecordAppend counts one appended message and touches the session. The
// increment is atomic with respect to concurrent appends on the same session.
func (r *Registry) RecordAppend(ctx context.Context, sessionID string) (*schema.Session, error) {
	return r.mutate(ctx, sessionID, func(s *schema.Session) {
		s.MessageCount++
		s.LastActiveAt = r.now()
	})
}

// mutate applies fn to the stored record with compare-and-set and then
// slides the TTL of the keys that live alongside it.
func (r *Registry) mutate(ctx context.Context, sessionID string, fn func(*schema.Session)) (*schema.Session, error) {
	var updated *schema.Session
	err := r.store.Update(ctx, schema.SessionKey(sessionID), r.ttl, func(current []byte) ([]byte, error) {
		s, err := schema.UnmarshalSession(current)
		if err != nil {
			return nil, err
		}
		fn(s)
		updated = s
		return schema.MarshalSession(s)
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return nil, err
	}

	if _, err := r.store.Expire(ctx, schema.HistoryKey(sessionID), r.ttl); err != nil {
		return nil, err
	}
	if updated.UserID != "" {
		if _, err := r.store.Expire(ctx, schema.UserSessionsKey(updated.UserID), r.ttl); err != nil {
			return nil, err
		}
	}
	return updated, nil
}

// Delete removes the session record, its history and its user-index entry.
// Leftover history of an already missing session is still removed.
func (r *Registry) Delete(ctx context.Context, sessionID string) error {
	s, err := r.Get(ctx, sessionID)
	if err != nil && !errors.Is(err, ErrSessionNotFound) {
		return err
	}

	if err := r.store.Delete(ctx, schema.HistoryKey(sessionID)); err != nil {
		return err
	}
	if s == nil {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	if err := r.store.Delete(ctx, schema.SessionKey(sessionID)); err != nil {
		return err
	}
	if s.UserID != "" {
		if err := r.store.SetRemove(ctx, schema.UserSessionsKey(s.UserID), sessionID); err != nil {
			return err
		}
	}

	logger.Info("Deleted session", zap.String("sessionId", sessionID))
	return nil
}

// ListForUser returns the ids of the user's live sessions in sorted order.
// Index entries whose session has expired are pruned on the way.
func (r *Registry) ListForUser(ctx context.Context, userID string) ([]string, error) {
	userKey := schema.UserSessionsKey(userID)
	ids, err := r.store.SetMembers(ctx, userKey)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []string{}, nil
	}

	existsTasks, err := linq.Pipe2(
		linq.FromSlice(ctx, ids),
		linq.Select(func(id string) <-chan async.Result[bool] {
			return async.Go(func() (bool, error) {
				return r.store.Exists(ctx, schema.SessionKey(id))
			})
		}),
		linq.ToSlice[<-chan async.Result[bool]](),
	)
	if err != nil {
		return nil, err
	}

	exists, err := async.AwaitAll(existsTasks...)
	if err != nil {
		return nil, err
	}

	live := make([]string, 0, len(ids))
	for i, id := range ids {
		if exists[i] {
			live = append(live, id)
			continue
		}
		if err := r.store.SetRemove(ctx, userKey, id); err != nil {
			logger.Error("Failed to prune expired session from user index", zap.String("userId", userID), zap.String("sessionId", id), zap.Error(err))
			return nil, err
		}
	}

	slices.Sort(live)
	return live, nil
}

// ExpiresIn returns the remaining lifetime of the session.
func (r *Registry) ExpiresIn(ctx context.Context, sessionID string) (time.Duration, error) {
	ttl, err := r.store.TTL(ctx, schema.SessionKey(sessionID))
	if errors.Is(err, store.ErrNotFound) {
		return 0, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return ttl, err
}
