package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/iamvkosarev/telegpt/internal/model"
)

const usersFileName = "users.json"

type userInternal struct {
	UserID     string `json:"user_id"`
	TelegramID int64  `json:"telegram_id"`
	LastChatID string `json:"last_chat_id"`
}

// UserStorage keeps every user in <dir>/users.json keyed by Telegram id.
type UserStorage struct {
	path string

	mu sync.Mutex
}

func NewUserStorage(dir string) (*UserStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir %s: %w", dir, err)
	}
	return &UserStorage{
		path: filepath.Join(dir, usersFileName),
	}, nil
}

func (u *UserStorage) CreateNewTelegramUser(_ context.Context, userTelegramID int64) (uuid.UUID, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	users, err := u.load()
	if err != nil {
		return uuid.Nil, err
	}
	key := strconv.FormatInt(userTelegramID, 10)
	if _, ok := users[key]; ok {
		return uuid.Nil, model.ErrUserAlreadyExists
	}
	userID := uuid.New()
	users[key] = userInternal{
		UserID:     userID.String(),
		TelegramID: userTelegramID,
	}
	if err = u.save(users); err != nil {
		return uuid.Nil, err
	}
	return userID, nil
}

func (u *UserStorage) UpdateUserLastChat(_ context.Context, userID uuid.UUID, chatID string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	users, err := u.load()
	if err != nil {
		return err
	}
	for key, user := range users {
		if user.UserID == userID.String() {
			user.LastChatID = chatID
			users[key] = user
			return u.save(users)
		}
	}
	return model.ErrUserDoesNotExists
}

func (u *UserStorage) GetUserInfo(_ context.Context, userID uuid.UUID) (model.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	users, err := u.load()
	if err != nil {
		return model.User{}, err
	}
	for _, user := range users {
		if user.UserID == userID.String() {
			return model.User{
				UserID:     userID,
				TelegramID: user.TelegramID,
				LastChatID: user.LastChatID,
			}, nil
		}
	}
	return model.User{}, model.ErrUserDoesNotExists
}

func (u *UserStorage) GetUserIDForTelegramUser(_ context.Context, userTelegramID int64) (uuid.UUID, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	users, err := u.load()
	if err != nil {
		return uuid.Nil, err
	}
	user, ok := users[strconv.FormatInt(userTelegramID, 10)]
	if !ok {
		return uuid.Nil, model.ErrTelegramUserDoesNotExists
	}
	userID, err := uuid.Parse(user.UserID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to parse userID %s: %w", user.UserID, err)
	}
	return userID, nil
}

func (u *UserStorage) load() (map[string]userInternal, error) {
	raw, err := os.ReadFile(u.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return make(map[string]userInternal), nil
		}
		return nil, fmt.Errorf("failed to read users %s: %w", u.path, err)
	}
	users := make(map[string]userInternal)
	if err = json.Unmarshal(raw, &users); err != nil {
		return nil, fmt.Errorf("failed to unmarshal users %s: %w", u.path, err)
	}
	return users, nil
}

func (u *UserStorage) save(users map[string]userInternal) error {
	raw, err := json.Marshal(users)
	if err != nil {
		return fmt.Errorf("failed to marshal users: %w", err)
	}
	if err = writeFileAtomic(u.path, raw); err != nil {
		return fmt.Errorf("failed to save users %s: %w", u.path, err)
	}
	return nil
}
