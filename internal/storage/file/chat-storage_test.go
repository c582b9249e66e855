package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/iamvkosarev/telegpt/internal/model"
)

func TestChatStorageRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	s, err := NewChatStorage(dir, "chats")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if _, err = s.LoadChats(ctx); !errors.Is(err, model.ErrChatsNotFound) {
		t.Fatalf("expected ErrChatsNotFound, got %v", err)
	}

	chats := []model.Chat{
		{ID: "1", Name: "Alice", Messages: []model.Message{{ID: "x", From: "You", Text: "one"}}},
		{ID: "2", Name: "Bob"},
	}
	if err = s.SaveChats(ctx, chats); err != nil {
		t.Fatal(err)
	}
	got, err := s.LoadChats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Messages[0].Text != "one" || got[1].Name != "Bob" {
		t.Fatalf("unexpected chats: %+v", got)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "chats.json" {
		t.Fatalf("expected only chats.json, got %v", entries)
	}
}

func TestChatStorageCorrupted(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "chats.json"), []byte("nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := NewChatStorage(dir, "chats")
	if err != nil {
		t.Fatal(err)
	}
	if _, err = s.LoadChats(context.Background()); !errors.Is(err, model.ErrChatsCorrupted) {
		t.Fatalf("expected ErrChatsCorrupted, got %v", err)
	}
}
