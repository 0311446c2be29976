package agentboot

import (
	"time"

	"github.com/SaiNageswarS/agent-memory/compress"
	"github.com/SaiNageswarS/go-api-boot/logger"
	"go.uber.org/zap"
)

type TurnStage int

const (
	StageSessionCreated TurnStage = iota
	StageSessionResolved
	StageMessageAppended
	StageContextCompressed
)

func (s TurnStage) String() string {
	switch s {
	case StageSessionCreated:
		return "session_created"
	case StageSessionResolved:
		return "session_resolved"
	case StageMessageAppended:
		return "message_appended"
	case StageContextCompressed:
		return "context_compressed"
	default:
		return "unknown"
	}
}

type TurnEvent struct {
	Stage     TurnStage
	SessionID string
	Timestamp int64
	Message   string
	// Compression is set for StageContextCompressed.
	Compression *compress.Result
}

// TurnReporter is an interface for observing the steps of ProcessTurn
type TurnReporter interface {
	Send(event *TurnEvent) error
}

// NoOpTurnReporter implements TurnReporter with no-op operations
type NoOpTurnReporter struct{}

func (r *NoOpTurnReporter) Send(event *TurnEvent) error {
	return nil
}

// LogTurnReporter writes every event to the application log.
type LogTurnReporter struct{}

func (r *LogTurnReporter) Send(event *TurnEvent) error {
	fields := []zap.Field{
		zap.String("stage", event.Stage.String()),
		zap.String("sessionId", event.SessionID),
	}
	if c := event.Compression; c != nil {
		fields = append(fields,
			zap.String("tier", c.Tier.String()),
			zap.Int("tokens", c.Tokens.Tokens),
			zap.Int("originalTokens", c.OriginalTokens.Tokens),
			zap.Int("dropped", c.Dropped),
			zap.Bool("truncated", c.Truncated))
	}
	logger.Info(event.Message, fields...)
	return nil
}

func NewTurnEvent(stage TurnStage, sessionID, message string) *TurnEvent {
	return &TurnEvent{
		Stage:     stage,
		SessionID: sessionID,
		Timestamp: time.Now().UnixMilli(),
		Message:   message,
	}
}
