package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	ChatListKeyPrefix = "chats:user:%s"
	OnlineSetKey      = "ws:online_users"
)

// ChatListTTL bounds staleness of the chat-list read path. The cache is never
// authoritative: unseen counts are recomputed fresh on every read.
const ChatListTTL = 45 * time.Second

func ChatListKey(userID string) string {
	return fmt.Sprintf(ChatListKeyPrefix, userID)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

// InvalidateChatLists drops the cached chat list of every given user.
func InvalidateChatLists(ctx context.Context, userIDs ...string) {
	for _, id := range userIDs {
		Invalidate(ctx, ChatListKey(id))
	}
}
