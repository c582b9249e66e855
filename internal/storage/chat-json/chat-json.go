package chat_json

import (
	"encoding/json"
	"fmt"

	"github.com/iamvkosarev/telegpt/internal/model"
)

type messageInternal struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

type chatInternal struct {
	ID                 string            `json:"id"`
	Name               string            `json:"name"`
	Image              string            `json:"image"`
	PersonaDescription string            `json:"personaDescription,omitempty"`
	Messages           []messageInternal `json:"messages"`
}

func Marshal(chats []model.Chat) ([]byte, error) {
	chatsInt := make([]chatInternal, 0, len(chats))
	for _, chat := range chats {
		messages := make([]messageInternal, 0, len(chat.Messages))
		for _, msg := range chat.Messages {
			messages = append(
				messages, messageInternal{
					ID:        msg.ID,
					From:      msg.From,
					Text:      msg.Text,
					Timestamp: msg.Timestamp,
				},
			)
		}
		chatsInt = append(
			chatsInt, chatInternal{
				ID:                 chat.ID,
				Name:               chat.Name,
				Image:              chat.Image,
				PersonaDescription: chat.PersonaDescription,
				Messages:           messages,
			},
		)
	}
	raw, err := json.Marshal(chatsInt)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chats: %w", err)
	}
	return raw, nil
}

// Unmarshal returns an error wrapping model.ErrChatsCorrupted when raw is not a chats array.
func Unmarshal(raw []byte) ([]model.Chat, error) {
	var chatsInt []chatInternal
	if err := json.Unmarshal(raw, &chatsInt); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrChatsCorrupted, err)
	}
	chats := make([]model.Chat, 0, len(chatsInt))
	for _, chatInt := range chatsInt {
		messages := make([]model.Message, 0, len(chatInt.Messages))
		for _, msg := range chatInt.Messages {
			messages = append(
				messages, model.Message{
					ID:        msg.ID,
					From:      msg.From,
					Text:      msg.Text,
					Timestamp: msg.Timestamp,
				},
			)
		}
		chats = append(
			chats, model.Chat{
				ID:                 chatInt.ID,
				Name:               chatInt.Name,
				Image:              chatInt.Image,
				PersonaDescription: chatInt.PersonaDescription,
				Messages:           messages,
			},
		)
	}
	return chats, nil
}
