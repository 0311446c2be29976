// Package agentboot is the entry point an agent runtime uses to give its
// model durable, per-session memory.
package agentboot

import (
	"context"
	"time"

	"github.com/SaiNageswarS/agent-memory/compress"
	"github.com/SaiNageswarS/agent-memory/memory"
	"github.com/SaiNageswarS/agent-memory/schema"
	"github.com/SaiNageswarS/agent-memory/session"
	"github.com/SaiNageswarS/agent-memory/store"
	"github.com/SaiNageswarS/agent-memory/tokens"
)

// MemoryConfig holds configuration for the memory facade
type MemoryConfig struct {
	Store store.Store

	SessionTTL       time.Duration
	MaxHistoryLength int

	// Context budget
	MaxContextTokens        int
	CompressionReserveRatio float64
	HardFloor               int
	Estimator               *tokens.Estimator

	Reporter TurnReporter
}

// Memory ties the session registry, history log and compressor together.
// It never calls a model and never retries; errors from the components are
// returned unchanged.
type Memory struct {
	config     MemoryConfig
	registry   *session.Registry
	history    *memory.HistoryLog
	compressor *compress.Compressor
}

type SessionInfo struct {
	*schema.Session
	ExpiresIn time.Duration
}

func (m *Memory) Config() MemoryConfig {
	return m.config
}

func (m *Memory) CreateSession(ctx context.Context, userID string, metadata schema.Metadata) (string, error) {
	return m.registry.Create(ctx, userID, metadata)
}

// GetSessionInfo returns the session record and how long it has left to live.
func (m *Memory) GetSessionInfo(ctx context.Context, sessionID string) (*SessionInfo, error) {
	s, err := m.registry.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	ttl, err := m.registry.ExpiresIn(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &SessionInfo{Session: s, ExpiresIn: ttl}, nil
}

func (m *Memory) UpdateSession(ctx context.Context, sessionID string, patch schema.Metadata) (*schema.Session, error) {
	return m.registry.Update(ctx, sessionID, patch)
}

// GetHistory returns the stored messages oldest first; limit > 0 keeps only
// the newest limit.
func (m *Memory) GetHistory(ctx context.Context, sessionID string, limit int) ([]schema.Message, error) {
	if _, err := m.registry.Get(ctx, sessionID); err != nil {
		return nil, err
	}
	return m.history.Read(ctx, sessionID, limit)
}

// ClearSession forgets the messages but keeps the session.
func (m *Memory) ClearSession(ctx context.Context, sessionID string) error {
	if _, err := m.registry.Get(ctx, sessionID); err != nil {
		return err
	}
	return m.history.Clear(ctx, sessionID)
}

func (m *Memory) DeleteSession(ctx context.Context, sessionID string) error {
	return m.registry.Delete(ctx, sessionID)
}

func (m *Memory) ListSessionsForUser(ctx context.Context, userID string) ([]string, error) {
	return m.registry.ListForUser(ctx, userID)
}

func (m *Memory) Append(ctx context.Context, sessionID string, role schema.Role, content string, metadata schema.Metadata) (schema.Message, error) {
	return m.history.Append(ctx, sessionID, role, content, metadata)
}

// ContextStats reports how the stored history compares to the context budget.
func (m *Memory) ContextStats(ctx context.Context, sessionID string) (compress.Stats, error) {
	msgs, err := m.GetHistory(ctx, sessionID, 0)
	if err != nil {
		return compress.Stats{}, err
	}
	return m.compressor.Stats(msgs, m.config.MaxContextTokens), nil
}

func (m *Memory) Close() error {
	return m.config.Store.Close()
}
