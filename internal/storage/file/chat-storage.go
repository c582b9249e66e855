package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/iamvkosarev/telegpt/internal/model"
	chat_json "github.com/iamvkosarev/telegpt/internal/storage/chat-json"
)

// ChatStorage writes the collection to <dir>/<key>.json.
type ChatStorage struct {
	path string
}

func NewChatStorage(dir, key string) (*ChatStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir %s: %w", dir, err)
	}
	return &ChatStorage{
		path: filepath.Join(dir, key+".json"),
	}, nil
}

func (c *ChatStorage) LoadChats(_ context.Context) ([]model.Chat, error) {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, model.ErrChatsNotFound
		}
		return nil, fmt.Errorf("failed to read chats %s: %w", c.path, err)
	}
	chats, err := chat_json.Unmarshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode chats %s: %w", c.path, err)
	}
	return chats, nil
}

// SaveChats replaces the file atomically.
func (c *ChatStorage) SaveChats(_ context.Context, chats []model.Chat) error {
	raw, err := chat_json.Marshal(chats)
	if err != nil {
		return err
	}
	if err = writeFileAtomic(c.path, raw); err != nil {
		return fmt.Errorf("failed to save chats %s: %w", c.path, err)
	}
	return nil
}

// writeFileAtomic writes through a temp file in the same dir and renames it over path.
func writeFileAtomic(path string, raw []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err = tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
