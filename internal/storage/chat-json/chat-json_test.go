package chat_json

import (
	"errors"
	"testing"

	"github.com/iamvkosarev/telegpt/internal/model"
)

func TestMarshalKeepsMessageOrder(t *testing.T) {
	chats := []model.Chat{
		{
			ID:                 "1",
			Name:               "Alice",
			Image:              "https://example.com/alice.png",
			PersonaDescription: "You are Alice.",
			Messages: []model.Message{
				{ID: "10", From: "You", Text: "first", Timestamp: "09:00"},
				{ID: "11", From: "Alice", Text: "second", Timestamp: "09:01"},
				{ID: "12", From: "You", Text: "third", Timestamp: "09:02"},
			},
		},
		{ID: "2", Name: "Bob"},
	}

	raw, err := Marshal(chats)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Unmarshal(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 chats, got %d", len(got))
	}
	if got[0].PersonaDescription != "You are Alice." || got[0].Image != chats[0].Image {
		t.Fatalf("chat fields lost: %+v", got[0])
	}
	for i, msg := range chats[0].Messages {
		if got[0].Messages[i] != msg {
			t.Fatalf("message %d mismatch: want %+v, got %+v", i, msg, got[0].Messages[i])
		}
	}
	if len(got[1].Messages) != 0 {
		t.Fatalf("expected no messages, got %d", len(got[1].Messages))
	}
}

func TestUnmarshalCamelCaseFieldNames(t *testing.T) {
	raw := []byte(`[{"id":"1","name":"Alice","image":"a.png","personaDescription":"p",
		"messages":[{"id":"m","from":"You","text":"hi","timestamp":"10:15"}]}]`)
	chats, err := Unmarshal(raw)
	if err != nil {
		t.Fatal(err)
	}
	if chats[0].PersonaDescription != "p" || chats[0].Messages[0].Timestamp != "10:15" {
		t.Fatalf("unexpected chat: %+v", chats[0])
	}
}

func TestUnmarshalCorrupted(t *testing.T) {
	_, err := Unmarshal([]byte("{not json"))
	if !errors.Is(err, model.ErrChatsCorrupted) {
		t.Fatalf("expected ErrChatsCorrupted, got %v", err)
	}
}
