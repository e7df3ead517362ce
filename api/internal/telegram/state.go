package telegram

import (
	"strconv"
	"sync"
	"time"
)

const (
	debounce  = 1200 * time.Millisecond
	maxPixels = 18_000_000
	// Telegram caps a message at 4096
	messageLimit = 4000
	historyShown = 6
)

type photoBatch struct {
	ChatID       int64
	Key          string // "grp:<mediaGroupID>" | "chat:<chatID>"
	MediaGroupID string

	mu      sync.Mutex
	images  [][]byte
	caption string
	timer   *time.Timer
}

// conversationKey maps a chat onto its conversation id.
func conversationKey(chatID int64) string {
	return "tg:" + strconv.FormatInt(chatID, 10)
}

func batchKey(chatID int64, mediaGroupID string) string {
	if mediaGroupID != "" {
		return "grp:" + mediaGroupID
	}
	return "chat:" + strconv.FormatInt(chatID, 10)
}
