package memory

import "fmt"

// Cache key layout for the per-user hot cache.
func contextKey(userID string) string       { return fmt.Sprintf("user_context:%s", userID) }
func knowledgeKey(userID string) string     { return fmt.Sprintf("user_knowledge:%s", userID) }
func nicknameKey(userID string) string      { return fmt.Sprintf("user_nickname:%s", userID) }
func recentUpdatesKey(userID string) string { return fmt.Sprintf("user_recent_memory_update:%s", userID) }
func usedIDsKey(userID string) string       { return fmt.Sprintf("user_used_uuid:%s", userID) }

const recentUpdatesLimit = 10

// Kind names the cache keys PrefillWorkingSet is allowed to (re)build.
type Kind string

const (
	KindContext       Kind = "context"
	KindKnowledge     Kind = "knowledge"
	KindNickname      Kind = "nickname"
	KindRecentUpdates Kind = "recent-updates"
)
