package model

import "errors"

var (
	ErrChatNotFound   = errors.New("chat not found")
	ErrEmptyMessage   = errors.New("message is empty")
	ErrChatsNotFound  = errors.New("chats not found in storage")
	ErrChatsCorrupted = errors.New("stored chats are corrupted")
	ErrBlankName      = errors.New("name is blank")

	ErrTelegramUserDoesNotExists = errors.New("telegram user doesn't exists")
	ErrUserDoesNotExists         = errors.New("user doesn't exists")
	ErrUserAlreadyExists         = errors.New("user already exists")
)
