package app

import (
	"context"
	"fmt"
	"os"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/iamvkosarev/telegpt/config"
	"github.com/iamvkosarev/telegpt/internal/storage/file"
	in_memory "github.com/iamvkosarev/telegpt/internal/storage/in-memory"
	key_value "github.com/iamvkosarev/telegpt/internal/storage/key-value"
	"github.com/iamvkosarev/telegpt/internal/usecase"
	"github.com/iamvkosarev/telegpt/pkg/local"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	ModeConsole  = "console"
	ModeTelegram = "telegram"
)

func Run(ctx context.Context, cfg *config.Config, mode string) error {
	logger := NewLogger(cfg.Log)

	storages, err := newStorages(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer storages.close()
	logger.WithFields(
		logrus.Fields{
			"driver": cfg.Storage.Driver,
			"key":    cfg.Storage.Key,
		},
	).Info("chat storage ready")

	openAIUsecase := usecase.NewOpenAIUsecase(cfg.OpenAI, logger)
	if cfg.OpenAI.OpenAIAPIKey == "" {
		logger.Warn("OPENAI_API_KEY is not set, chats will get no replies")
	}

	chatUsecase := usecase.NewChatUsecase(
		usecase.ChatUsecaseDeps{
			ChatStorage: storages.chats,
			Completer:   openAIUsecase,
			Logger:      logger,
		}, cfg.Chat,
	)

	switch mode {
	case ModeConsole:
		consoleUsecase := usecase.NewConsoleUsecase(
			usecase.ConsoleUsecaseDeps{
				Chat:   chatUsecase,
				Timer:  usecase.NewTimerUsecase(usecase.TimerUsecaseDeps{}, cfg.Timer),
				Logger: logger,
				In:     os.Stdin,
				Out:    os.Stdout,
			}, local.ParseLanguage(os.Getenv("LANG")),
		)
		return consoleUsecase.Run(ctx)
	case ModeTelegram:
		if cfg.Telegram.TelegramAPIToken == "" {
			return fmt.Errorf("TELEGRAM_APITOKEN is required in %s mode", ModeTelegram)
		}
		bot, err := api.NewBotAPI(cfg.Telegram.TelegramAPIToken)
		if err != nil {
			return fmt.Errorf("failed to create new bot: %w", err)
		}
		logger.WithField("account", bot.Self.UserName).Info("authorized on telegram")

		if _, err = chatUsecase.LoadChats(ctx); err != nil {
			return fmt.Errorf("failed to load chats: %w", err)
		}
		telegramUsecase, err := usecase.NewTelegramUsecase(
			cfg.Telegram, cfg.Timer, usecase.TelegramUsecaseDeps{
				Bot:    bot,
				Chat:   chatUsecase,
				User:   usecase.NewUserUsecase(usecase.UserUsecaseDeps{UserStorage: storages.users}),
				Logger: logger,
			},
		)
		if err != nil {
			return fmt.Errorf("failed to create telegram usecase: %w", err)
		}
		return telegramUsecase.Run(ctx)
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
}

type storages struct {
	chats usecase.ChatStorage
	users usecase.UserStorage
	close func()
}

func newStorages(ctx context.Context, cfg config.Storage) (storages, error) {
	switch cfg.Driver {
	case config.StorageDriverRedis:
		rdb := redis.NewClient(
			&redis.Options{
				Addr: cfg.RedisEndpoint,
			},
		)
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return storages{}, fmt.Errorf("failed to connect to redis %s: %w", cfg.RedisEndpoint, err)
		}
		return storages{
			chats: key_value.NewChatStorage(rdb, cfg.Key),
			users: key_value.NewUserStorage(rdb),
			close: func() { rdb.Close() },
		}, nil
	case config.StorageDriverMemory:
		return storages{
			chats: in_memory.NewChatStorage(),
			users: in_memory.NewUserStorage(),
			close: func() {},
		}, nil
	case config.StorageDriverFile, "":
		chatStorage, err := file.NewChatStorage(cfg.Dir, cfg.Key)
		if err != nil {
			return storages{}, err
		}
		userStorage, err := file.NewUserStorage(cfg.Dir)
		if err != nil {
			return storages{}, err
		}
		return storages{
			chats: chatStorage,
			users: userStorage,
			close: func() {},
		}, nil
	default:
		return storages{}, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
