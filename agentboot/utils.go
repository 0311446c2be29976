package agentboot

import (
	"time"

	"github.com/SaiNageswarS/agent-memory/schema"
)

func getCurrentTimeMs() int64 {
	return time.Now().UnixMilli()
}

func roleOrDefault(role schema.Role) schema.Role {
	if role == "" {
		return schema.RoleUser
	}
	return role
}
