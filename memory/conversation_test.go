package memory

import (
	"testing"
	"time"

	"github.com/SaiNageswarS/agent-memory/schema"
	"github.com/stretchr/testify/assert"
)

func TestConversation_AddMessages(t *testing.T) {
	t.Run("AddSystemMessage", func(t *testing.T) {
		conversation := &Conversation{}
		conversation.AddSystemMessage("Be brief.")

		assert.Equal(t, 1, conversation.Len())
		assert.Equal(t, schema.RoleSystem, conversation.Messages[0].Role)
		assert.Equal(t, "Be brief.", conversation.Messages[0].Content)
	})

	t.Run("AddUserMessage", func(t *testing.T) {
		conversation := &Conversation{}
		conversation.AddUserMessage("Hello")

		assert.Equal(t, 1, conversation.Len())
		assert.Equal(t, schema.RoleUser, conversation.Messages[0].Role)
		assert.Equal(t, "Hello", conversation.Messages[0].Content)
	})

	t.Run("AddAssistantMessage", func(t *testing.T) {
		conversation := &Conversation{}
		conversation.AddAssistantMessage("Hi there!")

		assert.Equal(t, 1, conversation.Len())
		assert.Equal(t, schema.RoleAssistant, conversation.Messages[0].Role)
		assert.Equal(t, "Hi there!", conversation.Messages[0].Content)
	})
}

func TestConversation_ForModel(t *testing.T) {
	md := schema.Metadata{}.WithLabel("tool", "search")
	conversation := &Conversation{
		ID: "s1",
		Messages: []schema.Message{
			{Role: schema.RoleUser, Content: "Hello", Timestamp: time.Now(), Metadata: md},
			{Role: schema.RoleAssistant, Content: "Hi!", Timestamp: time.Now()},
		},
	}

	assert.Equal(t, []schema.Message{
		schema.NewMessage(schema.RoleUser, "Hello"),
		schema.NewMessage(schema.RoleAssistant, "Hi!"),
	}, conversation.ForModel())

	// the view is a copy
	assert.Equal(t, "search", conversation.Messages[0].Metadata.Labels["tool"])
}
