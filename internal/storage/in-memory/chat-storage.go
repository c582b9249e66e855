package in_memory

import (
	"context"
	"sync"

	"github.com/iamvkosarev/telegpt/internal/model"
	chat_json "github.com/iamvkosarev/telegpt/internal/storage/chat-json"
)

// ChatStorage holds the encoded collection like a browser's local storage would.
type ChatStorage struct {
	mu  sync.RWMutex
	raw []byte
}

func NewChatStorage() *ChatStorage {
	return &ChatStorage{}
}

// NewChatStorageWithRaw starts from an already encoded value, possibly a broken one.
func NewChatStorageWithRaw(raw []byte) *ChatStorage {
	return &ChatStorage{
		raw: raw,
	}
}

func (c *ChatStorage) LoadChats(_ context.Context) ([]model.Chat, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.raw == nil {
		return nil, model.ErrChatsNotFound
	}
	return chat_json.Unmarshal(c.raw)
}

func (c *ChatStorage) SaveChats(_ context.Context, chats []model.Chat) error {
	raw, err := chat_json.Marshal(chats)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.raw = raw
	c.mu.Unlock()
	return nil
}

func (c *ChatStorage) Raw() []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.raw
}
