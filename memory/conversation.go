package memory

import (
	"github.com/SaiNageswarS/agent-memory/schema"
)

// Conversation is an in-memory, ordered view of a session's history.
type Conversation struct {
	ID       string
	Messages []schema.Message
}

func (c *Conversation) AddSystemMessage(content string) {
	c.Messages = append(c.Messages, schema.NewMessage(schema.RoleSystem, content))
}

func (c *Conversation) AddUserMessage(content string) {
	c.Messages = append(c.Messages, schema.NewMessage(schema.RoleUser, content))
}

func (c *Conversation) AddAssistantMessage(content string) {
	c.Messages = append(c.Messages, schema.NewMessage(schema.RoleAssistant, content))
}

func (c *Conversation) Len() int {
	return len(c.Messages)
}

// ForModel returns the role and content of every message, without
// timestamps or metadata, ready to be sent to a model.
func (c *Conversation) ForModel() []schema.Message {
	out := make([]schema.Message, len(c.Messages))
	for i, m := range c.Messages {
		out[i] = schema.NewMessage(m.Role, m.Content)
	}
	return out
}
