package agentboot

import (
	"context"
	"fmt"

	"github.com/SaiNageswarS/agent-memory/compress"
	"github.com/SaiNageswarS/agent-memory/llm"
	"github.com/SaiNageswarS/agent-memory/schema"
	"github.com/SaiNageswarS/go-api-boot/logger"
	"go.uber.org/zap"
)

type TurnRequest struct {
	// SessionID is empty on the first turn of a new conversation.
	SessionID string
	UserID    string
	// Role defaults to user.
	Role     schema.Role
	Content  string
	Metadata schema.Metadata
}

type TurnResult struct {
	SessionID string
	Created   bool
	// Messages is the compressed history, ready for the model.
	Messages         []schema.Message
	Compression      *compress.Result
	ProcessingTimeMs int64
}

// ProcessTurn records the inbound message and returns the session's history
// reduced to the context budget. The caller invokes the model and records
// its reply with AppendReply.
//
// An unknown SessionID fails with session.ErrSessionNotFound; the caller
// decides whether to start over with an empty one.
func (m *Memory) ProcessTurn(ctx context.Context, req *TurnRequest) (*TurnResult, error) {
	startTime := getCurrentTimeMs()
	reporter := m.config.Reporter

	role := roleOrDefault(req.Role)
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", schema.ErrInvalidRole, role)
	}

	result := &TurnResult{SessionID: req.SessionID}
	if result.SessionID == "" {
		id, err := m.registry.Create(ctx, req.UserID, schema.Metadata{})
		if err != nil {
			logger.Error("Failed to create session", zap.String("userId", req.UserID), zap.Error(err))
			return nil, err
		}
		result.SessionID = id
		result.Created = true
		reporter.Send(NewTurnEvent(StageSessionCreated, id, "created session"))
	} else {
		reporter.Send(NewTurnEvent(StageSessionResolved, result.SessionID, "resolved session"))
	}

	if _, err := m.history.Append(ctx, result.SessionID, role, req.Content, req.Metadata); err != nil {
		logger.Error("Failed to append message", zap.String("sessionId", result.SessionID), zap.Error(err))
		return nil, err
	}
	reporter.Send(NewTurnEvent(StageMessageAppended, result.SessionID, "appended "+role.String()+" message"))

	msgs, err := m.history.Read(ctx, result.SessionID, 0)
	if err != nil {
		logger.Error("Failed to read history", zap.String("sessionId", result.SessionID), zap.Error(err))
		return nil, err
	}

	compressed, err := m.compressor.CompressWithReserve(msgs, m.config.MaxContextTokens, m.config.CompressionReserveRatio)
	if err != nil {
		logger.Error("Failed to compress context", zap.String("sessionId", result.SessionID), zap.Error(err))
		return nil, err
	}
	if compressed.Tier != compress.TierNone {
		event := NewTurnEvent(StageContextCompressed, result.SessionID, "compressed context: "+compressed.Tier.String())
		event.Compression = compressed
		reporter.Send(event)
	}

	result.Messages = compressed.Messages
	result.Compression = compressed
	result.ProcessingTimeMs = getCurrentTimeMs() - startTime
	return result, nil
}

// AppendReply records a model reply as an assistant message, with its usage
// attached as metadata attributes.
func (m *Memory) AppendReply(ctx context.Context, sessionID string, reply *llm.Reply) (schema.Message, error) {
	metadata, err := schema.NewMetadata(nil, reply.Usage.Attributes())
	if err != nil {
		return schema.Message{}, err
	}
	return m.history.Append(ctx, sessionID, schema.RoleAssistant, reply.Content, metadata)
}
