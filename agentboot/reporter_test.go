package agentboot

import (
	"testing"
	"time"

	"github.com/SaiNageswarS/agent-memory/compress"
	"github.com/stretchr/testify/assert"
)

func TestNoOpTurnReporter(t *testing.T) {
	reporter := &NoOpTurnReporter{}

	for range 10 {
		assert.NoError(t, reporter.Send(&TurnEvent{}))
	}
}

func TestLogTurnReporter(t *testing.T) {
	reporter := &LogTurnReporter{}

	assert.NoError(t, reporter.Send(NewTurnEvent(StageSessionCreated, "s1", "created session")))

	event := NewTurnEvent(StageContextCompressed, "s1", "compressed context")
	event.Compression = &compress.Result{Tier: compress.TierHardFloor, Dropped: 4, Truncated: true}
	assert.NoError(t, reporter.Send(event))
}

func TestNewTurnEvent(t *testing.T) {
	event := NewTurnEvent(StageMessageAppended, "s1", "appended user message")

	assert.Equal(t, StageMessageAppended, event.Stage)
	assert.Equal(t, "s1", event.SessionID)
	assert.Equal(t, "appended user message", event.Message)
	assert.Nil(t, event.Compression)

	// Verify timestamp is recent (within last minute)
	now := time.Now().UnixMilli()
	assert.LessOrEqual(t, event.Timestamp, now)
	assert.Greater(t, event.Timestamp, now-60000)
}

func TestTurnStageString(t *testing.T) {
	assert.Equal(t, "session_created", StageSessionCreated.String())
	assert.Equal(t, "session_resolved", StageSessionResolved.String())
	assert.Equal(t, "message_appended", StageMessageAppended.String())
	assert.Equal(t, "context_compressed", StageContextCompressed.String())
	assert.Equal(t, "unknown", TurnStage(99).String())
}
