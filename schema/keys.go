package schema

// Store key layout. Every key that holds per-session data embeds the
// session id, which is what keeps sessions isolated from each other.
const (
	sessionKeyPrefix      = "session:"
	historyKeyPrefix      = "history:"
	userSessionsKeyPrefix = "user_sessions:"
)

func SessionKey(sessionID string) string {
	return sessionKeyPrefix + sessionID
}

func HistoryKey(sessionID string) string {
	return historyKeyPrefix + sessionID
}

func UserSessionsKey(userID string) string {
	return userSessionsKeyPrefix + userID
}
