package usecase

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/iamvkosarev/telegpt/config"
	"github.com/iamvkosarev/telegpt/internal/model"
	"github.com/sirupsen/logrus"
)

const previewLength = 20

type ChatStorage interface {
	LoadChats(ctx context.Context) ([]model.Chat, error)
	SaveChats(ctx context.Context, chats []model.Chat) error
}

type Completer interface {
	Complete(ctx context.Context, messages []model.CompletionMessage) (string, error)
}

type ChatUsecaseDeps struct {
	ChatStorage ChatStorage
	Completer   Completer
	Logger      *logrus.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

type ChatUsecase struct {
	ChatUsecaseDeps
	cfg config.Chat

	mu    sync.Mutex
	chats []model.Chat
}

func NewChatUsecase(deps ChatUsecaseDeps, cfg config.Chat) *ChatUsecase {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if cfg.UserLabel == "" {
		cfg.UserLabel = "You"
	}
	return &ChatUsecase{
		ChatUsecaseDeps: deps,
		cfg:             cfg,
	}
}

func (a *ChatUsecase) UserLabel() string {
	return a.cfg.UserLabel
}

// LoadChats reads the stored collection. A missing or corrupted value is replaced by
// the sample chats, which are written back immediately.
func (a *ChatUsecase) LoadChats(ctx context.Context) ([]model.Chat, error) {
	chats, err := a.ChatStorage.LoadChats(ctx)
	switch {
	case err == nil:
	case errors.Is(err, model.ErrChatsNotFound):
		chats = SampleChats()
		if err = a.ChatStorage.SaveChats(ctx, chats); err != nil {
			return nil, fmt.Errorf("failed to save sample chats: %w", err)
		}
	case errors.Is(err, model.ErrChatsCorrupted):
		a.Logger.WithError(err).Error("error parsing chats, restoring samples")
		chats = SampleChats()
		if err = a.ChatStorage.SaveChats(ctx, chats); err != nil {
			return nil, fmt.Errorf("failed to save sample chats: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to load chats: %w", err)
	}

	a.mu.Lock()
	a.chats = chats
	a.mu.Unlock()
	return a.ListChats(), nil
}

func (a *ChatUsecase) ListChats() []model.Chat {
	a.mu.Lock()
	defer a.mu.Unlock()
	chats := make([]model.Chat, 0, len(a.chats))
	for _, chat := range a.chats {
		chats = append(chats, chat.Clone())
	}
	return chats
}

func (a *ChatUsecase) GetChat(chatID string) (model.Chat, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	i := a.indexOf(chatID)
	if i < 0 {
		return model.Chat{}, model.ErrChatNotFound
	}
	return a.chats[i].Clone(), nil
}

func (a *ChatUsecase) CreateChat(ctx context.Context, name, image, persona string) (model.Chat, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Chat{}, model.ErrBlankName
	}
	chat := model.Chat{
		ID:                 uuid.NewString(),
		Name:               name,
		Image:              strings.TrimSpace(image),
		PersonaDescription: strings.TrimSpace(persona),
		Messages:           make([]model.Message, 0),
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	next := append(slices.Clone(a.chats), chat)
	if err := a.save(ctx, next); err != nil {
		return model.Chat{}, err
	}
	a.chats = next
	return chat.Clone(), nil
}

func (a *ChatUsecase) UpdatePersona(ctx context.Context, chatID, persona string) (model.Chat, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	i := a.indexOf(chatID)
	if i < 0 {
		return model.Chat{}, model.ErrChatNotFound
	}
	next := slices.Clone(a.chats)
	next[i].PersonaDescription = persona
	if err := a.save(ctx, next); err != nil {
		return model.Chat{}, err
	}
	a.chats = next
	return a.chats[i].Clone(), nil
}

// SendMessage appends the user's text, asks the completer for a reply and appends it.
// The thread is persisted after each append. When the completion fails the thread
// keeps only the user's message and the error is returned.
func (a *ChatUsecase) SendMessage(ctx context.Context, chatID, text string) (model.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.Message{}, model.ErrEmptyMessage
	}

	a.mu.Lock()
	i := a.indexOf(chatID)
	if i < 0 {
		a.mu.Unlock()
		return model.Message{}, model.ErrChatNotFound
	}
	now := a.Now()
	userMsg := model.Message{
		ID:        strconv.FormatInt(now.UnixMilli(), 10),
		From:      a.cfg.UserLabel,
		Text:      text,
		Timestamp: model.FormatTimestamp(now),
	}
	a.chats[i].Messages = append(a.chats[i].Messages, userMsg)
	chat := a.chats[i].Clone()
	if err := a.save(ctx, a.chats); err != nil {
		a.Logger.WithError(err).WithField("chat_id", chatID).Error("failed to persist user message")
	}
	a.mu.Unlock()

	transcript := BuildTranscript(chat, a.cfg.UserLabel)
	a.Logger.WithFields(
		logrus.Fields{
			"chat_id":  chatID,
			"messages": len(transcript),
		},
	).Debug("sending transcript")

	answer, err := a.Completer.Complete(ctx, transcript)
	if err != nil {
		a.Logger.WithError(err).WithField("chat_id", chatID).Error("completion request failed")
		return model.Message{}, fmt.Errorf("failed to get completion: %w", err)
	}

	now = a.Now()
	assistantMsg := model.Message{
		ID:        strconv.FormatInt(now.UnixMilli(), 10) + "_ai",
		From:      chat.Name,
		Text:      strings.TrimSpace(answer),
		Timestamp: model.FormatTimestamp(now),
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if i = a.indexOf(chatID); i < 0 {
		return model.Message{}, model.ErrChatNotFound
	}
	a.chats[i].Messages = append(a.chats[i].Messages, assistantMsg)
	if err = a.save(ctx, a.chats); err != nil {
		a.Logger.WithError(err).WithField("chat_id", chatID).Error("failed to persist assistant message")
	}
	return assistantMsg, nil
}

// BuildTranscript maps a chat to completion messages: the trimmed persona as a system
// message (when present) followed by every message in order.
func BuildTranscript(chat model.Chat, userLabel string) []model.CompletionMessage {
	transcript := make([]model.CompletionMessage, 0, len(chat.Messages)+1)
	if persona := strings.TrimSpace(chat.PersonaDescription); persona != "" {
		transcript = append(
			transcript, model.CompletionMessage{
				Role:    model.CompletionRoleSystem,
				Content: persona,
			},
		)
	}
	for _, msg := range chat.Messages {
		transcript = append(
			transcript, model.CompletionMessage{
				Role:    parseSenderToRole(msg.From, userLabel),
				Content: msg.Text,
			},
		)
	}
	return transcript
}

// Preview is the last message of a chat cut to a short list entry.
func Preview(chat model.Chat) string {
	last, ok := chat.LastMessage()
	if !ok {
		return ""
	}
	runes := []rune(last.Text)
	if len(runes) > previewLength {
		return string(runes[:previewLength]) + "..."
	}
	return last.Text
}

func parseSenderToRole(from, userLabel string) model.CompletionRole {
	if from == userLabel {
		return model.CompletionRoleUser
	}
	return model.CompletionRoleAssistant
}

// save must be called with mu held.
func (a *ChatUsecase) save(ctx context.Context, chats []model.Chat) error {
	if err := a.ChatStorage.SaveChats(ctx, chats); err != nil {
		return fmt.Errorf("failed to save chats: %w", err)
	}
	return nil
}

func (a *ChatUsecase) indexOf(chatID string) int {
	for i := range a.chats {
		if a.chats[i].ID == chatID {
			return i
		}
	}
	return -1
}
