package model

import (
	"github.com/google/uuid"
)

// User is a Telegram account talking to the bot. LastChatID is the thread the user
// selected last, empty until one is picked.
type User struct {
	UserID     uuid.UUID
	TelegramID int64
	LastChatID string
}
