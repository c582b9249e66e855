package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/iamvkosarev/telegpt/internal/model"
)

type UserStorage interface {
	GetUserIDForTelegramUser(ctx context.Context, userTelegramID int64) (uuid.UUID, error)
	CreateNewTelegramUser(ctx context.Context, userTelegramID int64) (uuid.UUID, error)
	GetUserInfo(ctx context.Context, userID uuid.UUID) (model.User, error)
	UpdateUserLastChat(ctx context.Context, userID uuid.UUID, chatID string) error
}

type UserUsecaseDeps struct {
	UserStorage UserStorage
}

type UserUsecase struct {
	UserUsecaseDeps
}

func NewUserUsecase(deps UserUsecaseDeps) *UserUsecase {
	return &UserUsecase{
		UserUsecaseDeps: deps,
	}
}

// GetUserInfoForTelegramUser returns the user bound to a Telegram id, registering
// it on first contact.
func (u *UserUsecase) GetUserInfoForTelegramUser(ctx context.Context, userTelegramID int64) (model.User, error) {
	userID, err := u.UserStorage.GetUserIDForTelegramUser(ctx, userTelegramID)
	if errors.Is(err, model.ErrTelegramUserDoesNotExists) {
		userID, err = u.UserStorage.CreateNewTelegramUser(ctx, userTelegramID)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("failed to get user for telegram id %d: %w", userTelegramID, err)
	}
	return u.UserStorage.GetUserInfo(ctx, userID)
}

func (u *UserUsecase) UpdateUserLastChat(ctx context.Context, userID uuid.UUID, chatID string) error {
	return u.UserStorage.UpdateUserLastChat(ctx, userID, chatID)
}
