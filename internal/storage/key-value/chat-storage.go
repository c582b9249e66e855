package key_value

import (
	"context"
	"errors"
	"fmt"

	"github.com/iamvkosarev/telegpt/internal/model"
	chat_json "github.com/iamvkosarev/telegpt/internal/storage/chat-json"
	"github.com/redis/go-redis/v9"
)

// ChatStorage keeps the whole chat collection as one JSON value under a single key.
type ChatStorage struct {
	rdb *redis.Client
	key string
}

func NewChatStorage(rdb *redis.Client, key string) *ChatStorage {
	return &ChatStorage{
		rdb: rdb,
		key: key,
	}
}

func (c *ChatStorage) LoadChats(ctx context.Context) ([]model.Chat, error) {
	raw, err := c.rdb.Get(ctx, c.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrChatsNotFound
		}
		return nil, fmt.Errorf("failed to get chats %s: %w", c.key, err)
	}
	chats, err := chat_json.Unmarshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode chats %s: %w", c.key, err)
	}
	return chats, nil
}

func (c *ChatStorage) SaveChats(ctx context.Context, chats []model.Chat) error {
	raw, err := chat_json.Marshal(chats)
	if err != nil {
		return err
	}
	if err = c.rdb.Set(ctx, c.key, raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to save chats %s: %w", c.key, err)
	}
	return nil
}
