// Package memory holds the ordered message log of each session.
package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/SaiNageswarS/agent-memory/schema"
	"github.com/SaiNageswarS/agent-memory/session"
	"github.com/SaiNageswarS/agent-memory/store"
	"github.com/SaiNageswarS/go-api-boot/logger"
	"go.uber.org/zap"
)

// HistoryLog appends to and reads from the per-session message list.
type HistoryLog struct {
	store    store.Store
	registry *session.Registry
	maxLen   int
	ttl      time.Duration
	now      func() time.Time
}

// NewHistoryLog creates a log that keeps at most maxLen messages per session.
// maxLen <= 0 disables the count cap.
func NewHistoryLog(st store.Store, registry *session.Registry, maxLen int, ttl time.Duration) *HistoryLog {
	return &HistoryLog{
		store:    st,
		registry: registry,
		maxLen:   maxLen,
		ttl:      ttl,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the clock used to stamp messages.
func (h *HistoryLog) WithClock(now func() time.Time) *HistoryLog {
	h.now = now
	return h
}

func (h *HistoryLog) MaxLength() int {
	return h.maxLen
}

// Append stores a message at the tail of the session's history, trims the
// oldest messages beyond the cap and counts the message on the session.
func (h *HistoryLog) Append(ctx context.Context, sessionID string, role schema.Role, content string, metadata schema.Metadata) (schema.Message, error) {
	if !role.Valid() {
		return schema.Message{}, fmt.Errorf("%w: %q", schema.ErrInvalidRole, role)
	}

	if _, err := h.registry.Get(ctx, sessionID); err != nil {
		return schema.Message{}, err
	}

	msg := schema.Message{
		Role:      role,
		Content:   content,
		Timestamp: h.now(),
		Metadata:  metadata.Clone(),
	}
	data, err := schema.MarshalMessage(&msg)
	if err != nil {
		return schema.Message{}, err
	}

	key := schema.HistoryKey(sessionID)
	if _, err := h.store.Append(ctx, key, data); err != nil {
		logger.Error("Failed to append message", zap.String("sessionId", sessionID), zap.Error(err))
		return schema.Message{}, err
	}
	if err := h.store.TrimList(ctx, key, int64(h.maxLen)); err != nil {
		return schema.Message{}, err
	}
	if _, err := h.store.Expire(ctx, key, h.ttl); err != nil {
		return schema.Message{}, err
	}

	if _, err := h.registry.RecordAppend(ctx, sessionID); err != nil {
		return schema.Message{}, err
	}
	return msg, nil
}

// Read returns the session's messages oldest first. limit > 0 returns only
// the newest limit messages. A missing log reads as empty.
func (h *HistoryLog) Read(ctx context.Context, sessionID string, limit int) ([]schema.Message, error) {
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}

	raw, err := h.store.Range(ctx, schema.HistoryKey(sessionID), start, -1)
	if err != nil {
		return nil, err
	}

	msgs := make([]schema.Message, 0, len(raw))
	for i, data := range raw {
		m, err := schema.UnmarshalMessage(data)
		if err != nil {
			return nil, fmt.Errorf("decode message %d of session %s: %w", i, sessionID, err)
		}
		msgs = append(msgs, *m)
	}
	return msgs, nil
}

// LoadConversation reads the full history into a Conversation.
func (h *HistoryLog) LoadConversation(ctx context.Context, sessionID string) (*Conversation, error) {
	msgs, err := h.Read(ctx, sessionID, 0)
	if err != nil {
		return nil, err
	}
	return &Conversation{ID: sessionID, Messages: msgs}, nil
}

// Clear drops every message of the session. The session record and its
// message count are left alone.
func (h *HistoryLog) Clear(ctx context.Context, sessionID string) error {
	if err := h.store.Delete(ctx, schema.HistoryKey(sessionID)); err != nil {
		logger.Error("Failed to clear history", zap.String("sessionId", sessionID), zap.Error(err))
		return err
	}
	return nil
}
