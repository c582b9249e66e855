package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/iamvkosarev/telegpt/config"
	"github.com/iamvkosarev/telegpt/internal/model"
	"github.com/iamvkosarev/telegpt/pkg/local"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"
)

const (
	MessageUserNoAccess   = "You are not allowed to use this bot"
	MessageCommandHelp    = "Use /chats to pick a conversation, then just write. /timer NAME starts a countdown, /reset stops it."
	MessageCommandUnknown = "I don't know that command"
	MessageSelectChat     = "Select a chat"
	MessageChatNotFound   = "Chat not found"
	MessageNoMessagesYet  = "No messages yet"
	MessageEnterName      = "Enter your name: /timer NAME"
	MessageSelectedFormat = "Chat with %s"

	CommandStart = "start"
	CommandHelp  = "help"
	CommandChats = "chats"
	CommandTimer = "timer"
	CommandReset = "reset"

	callbackChatPrefix = "chat:"
	maxButtonsInRow    = 2
)

type TelegramUsecaseDeps struct {
	Bot    *api.BotAPI
	Chat   *ChatUsecase
	User   *UserUsecase
	Logger *logrus.Logger

	// NewTicker defaults to a time.Ticker.
	NewTicker func(d time.Duration) (<-chan time.Time, func())
}

type timerSession struct {
	timer  *TimerUsecase
	cancel context.CancelFunc
}

type TelegramUsecase struct {
	TelegramUsecaseDeps
	cfg          config.Telegram
	timerCfg     config.Timer
	allowedUsers map[int64]struct{}

	mu     sync.Mutex
	timers map[int64]*timerSession
	wg     conc.WaitGroup
}

func NewTelegramUsecase(
	cfg config.Telegram,
	timerCfg config.Timer,
	deps TelegramUsecaseDeps,
) (*TelegramUsecase, error) {
	if deps.NewTicker == nil {
		deps.NewTicker = func(d time.Duration) (<-chan time.Time, func()) {
			ticker := time.NewTicker(d)
			return ticker.C, ticker.Stop
		}
	}
	allowedUsers := make(map[int64]struct{})
	for _, userID := range cfg.AllowedTelegramID {
		allowedUsers[userID] = struct{}{}
	}

	_, err := deps.Bot.Request(
		api.NewSetMyCommands(
			[]api.BotCommand{
				{
					Command:     CommandChats,
					Description: "Show chats",
				},
				{
					Command:     CommandTimer,
					Description: "Start a countdown",
				},
				{
					Command:     CommandReset,
					Description: "Reset the countdown",
				},
				{
					Command:     CommandHelp,
					Description: "Get help",
				},
			}...,
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to set bot commands: %w", err)
	}

	return &TelegramUsecase{
		TelegramUsecaseDeps: deps,
		cfg:                 cfg,
		timerCfg:            timerCfg,
		allowedUsers:        allowedUsers,
		timers:              make(map[int64]*timerSession),
	}, nil
}

// Run handles updates until ctx is done. Running countdowns are stopped on return.
func (t *TelegramUsecase) Run(ctx context.Context) error {
	u := api.NewUpdate(0)
	u.Timeout = 60

	updates := t.Bot.GetUpdatesChan(u)
	defer t.wg.Wait()
	defer t.stopTimers()

	for {
		select {
		case <-ctx.Done():
			t.Bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message != nil {
				if err := t.handleMessage(ctx, update); err != nil {
					t.Logger.WithError(err).Error("error handling message")
				}
			}
			if update.CallbackQuery != nil {
				if err := t.handleCallbackQuery(ctx, update); err != nil {
					t.Logger.WithError(err).Error("error handling callback query")
				}
			}
		}
	}
}

func (t *TelegramUsecase) isAllowed(chatID int64) bool {
	if len(t.allowedUsers) == 0 {
		return true
	}
	_, ok := t.allowedUsers[chatID]
	return ok
}

func (t *TelegramUsecase) handleCallbackQuery(ctx context.Context, update api.Update) error {
	chatID := update.CallbackQuery.Message.Chat.ID
	callback := api.NewCallback(update.CallbackQuery.ID, "")
	if _, err := t.Bot.Request(callback); err != nil {
		return fmt.Errorf("failed to request callback: %w", err)
	}
	if !t.isAllowed(chatID) {
		t.sendMessageAndHandleErr(chatID, MessageUserNoAccess)
		return nil
	}

	data := update.CallbackQuery.Data
	if !strings.HasPrefix(data, callbackChatPrefix) {
		return nil
	}
	aiChat, err := t.Chat.GetChat(strings.TrimPrefix(data, callbackChatPrefix))
	if err != nil {
		t.sendMessageAndHandleErr(chatID, MessageChatNotFound)
		return nil
	}

	user, err := t.User.GetUserInfoForTelegramUser(ctx, chatID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if err = t.User.UpdateUserLastChat(ctx, user.UserID, aiChat.ID); err != nil {
		return fmt.Errorf("failed to update last chat: %w", err)
	}

	t.sendMessageAndHandleErr(chatID, formatChatHistory(aiChat))
	return nil
}

func (t *TelegramUsecase) handleMessage(ctx context.Context, update api.Update) error {
	chatID := update.Message.Chat.ID
	if !t.isAllowed(chatID) {
		t.sendMessageAndHandleErr(chatID, MessageUserNoAccess)
		return nil
	}

	language := local.Eng
	if update.Message.From != nil {
		language = local.ParseLanguage(update.Message.From.LanguageCode)
	}

	if update.Message.IsCommand() {
		var answerText string
		switch update.Message.Command() {
		case CommandStart, CommandHelp:
			answerText = MessageCommandHelp
		case CommandChats:
			return t.sendSelectChatKeyboard(chatID)
		case CommandTimer:
			return t.startTimer(ctx, chatID, update.Message.CommandArguments(), language)
		case CommandReset:
			t.resetTimer(chatID)
			return nil
		default:
			answerText = MessageCommandUnknown
		}
		t.sendMessageAndHandleErr(chatID, answerText)
		return nil
	}

	user, err := t.User.GetUserInfoForTelegramUser(ctx, chatID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if _, err = t.Chat.GetChat(user.LastChatID); err != nil {
		return t.sendSelectChatKeyboard(chatID)
	}
	aiChatID := user.LastChatID

	msgText := update.Message.Text
	var wg conc.WaitGroup
	wg.Go(
		func() {
			if _, err := t.Bot.Request(api.NewChatAction(chatID, api.ChatTyping)); err != nil {
				t.Logger.WithError(err).Warn("failed to send chat action")
			}
		},
	)
	var reply model.Message
	wg.Go(
		func() {
			reply, err = t.Chat.SendMessage(ctx, aiChatID, msgText)
		},
	)
	wg.Wait()

	if err != nil {
		// failures are logged by the chat usecase, the user gets no reply
		return nil
	}
	t.sendMessageAndHandleErr(chatID, reply.Text)
	return nil
}

func (t *TelegramUsecase) sendSelectChatKeyboard(chatID int64) error {
	chats := t.Chat.ListChats()
	msg := api.NewMessage(chatID, MessageSelectChat)
	inlineRows := make([][]api.InlineKeyboardButton, 0)
	inlineButtons := make([]api.InlineKeyboardButton, 0)
	for _, aiChat := range chats {
		if len(inlineButtons) >= maxButtonsInRow {
			inlineRows = append(inlineRows, inlineButtons)
			inlineButtons = make([]api.InlineKeyboardButton, 0)
		}
		label := aiChat.Name
		if preview := Preview(aiChat); preview != "" {
			label += ": " + preview
		}
		inlineButtons = append(inlineButtons, api.NewInlineKeyboardButtonData(label, callbackChatPrefix+aiChat.ID))
	}
	if len(inlineButtons) > 0 {
		inlineRows = append(inlineRows, inlineButtons)
	}
	if len(inlineRows) > 0 {
		msg.ReplyMarkup = api.NewInlineKeyboardMarkup(inlineRows...)
	}
	if _, err := t.Bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send message to bot: %w", err)
	}
	return nil
}

func (t *TelegramUsecase) startTimer(ctx context.Context, chatID int64, name string, language local.Language) error {
	timer := NewTimerUsecase(TimerUsecaseDeps{}, t.timerCfg)
	snap, err := timer.Start(name)
	if err != nil {
		t.sendMessageAndHandleErr(chatID, MessageEnterName)
		return nil
	}
	timerMsg, err := t.sendMessage(chatID, FormatTimer(snap, language))
	if err != nil {
		return fmt.Errorf("failed to send timer message: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	t.mu.Lock()
	if previous, ok := t.timers[chatID]; ok {
		previous.cancel()
	}
	t.timers[chatID] = &timerSession{timer: timer, cancel: cancel}
	t.mu.Unlock()

	t.wg.Go(
		func() {
			ticks, stop := t.NewTicker(time.Second)
			defer stop()
			err := timer.Run(
				runCtx, ticks, func(snap model.TimerSnapshot) {
					if _, err := t.sendEditMessage(chatID, timerMsg.MessageID, FormatTimer(snap, language)); err != nil {
						t.Logger.WithError(err).Warn("failed to edit timer message")
					}
				},
			)
			if err != nil && !errors.Is(err, context.Canceled) {
				t.Logger.WithError(err).Warn("timer stopped")
			}
		},
	)
	return nil
}

func (t *TelegramUsecase) resetTimer(chatID int64) {
	t.mu.Lock()
	session, ok := t.timers[chatID]
	delete(t.timers, chatID)
	t.mu.Unlock()
	if ok {
		session.cancel()
		session.timer.Reset()
	}
}

func (t *TelegramUsecase) stopTimers() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for chatID, session := range t.timers {
		session.cancel()
		delete(t.timers, chatID)
	}
}

func formatChatHistory(aiChat model.Chat) string {
	result := strings.Builder{}
	result.WriteString(fmt.Sprintf(MessageSelectedFormat, aiChat.Name))
	result.WriteString("\n")
	if len(aiChat.Messages) == 0 {
		result.WriteString(MessageNoMessagesYet)
		return result.String()
	}
	for _, msg := range aiChat.Messages {
		result.WriteString(fmt.Sprintf("\n[%s] %s: %s", msg.Timestamp, msg.From, msg.Text))
	}
	return result.String()
}

func (t *TelegramUsecase) sendMessageAndHandleErr(chatID int64, message string) api.Message {
	msg, err := t.sendMessage(chatID, message)
	if err != nil {
		t.Logger.WithError(err).Warn("failed to send new message to bot")
	}
	return msg
}

func (t *TelegramUsecase) sendMessage(chatID int64, message string) (api.Message, error) {
	return t.sendToBot(api.NewMessage(chatID, message))
}

func (t *TelegramUsecase) sendEditMessage(chatID int64, previousMsgID int, message string) (api.Message, error) {
	return t.sendToBot(api.NewEditMessageText(chatID, previousMsgID, message))
}

func (t *TelegramUsecase) sendToBot(c api.Chattable) (api.Message, error) {
	return t.Bot.Send(c)
}
