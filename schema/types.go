package schema

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidRole = errors.New("invalid message role")

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// ParseRole converts a caller-supplied role name into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
	return r, nil
}

// Message is one element of a session's history. Messages are never
// mutated once appended.
type Message struct {
	Role      Role
	Content   string
	Timestamp time.Time
	Metadata  Metadata

	unknown []byte
}

func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content}
}

func (m Message) IsSystem() bool {
	return m.Role == RoleSystem
}

// Session is the persisted record of one conversation thread.
type Session struct {
	ID           string
	UserID       string
	CreatedAt    time.Time
	LastActiveAt time.Time
	MessageCount int64
	Metadata     Metadata

	unknown []byte
}
