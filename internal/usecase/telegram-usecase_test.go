package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/iamvkosarev/telegpt/config"
	"github.com/iamvkosarev/telegpt/internal/model"
	in_memory "github.com/iamvkosarev/telegpt/internal/storage/in-memory"
)

type botCall struct {
	method string
	params url.Values
}

// fakeBotAPI answers Bot API requests and records every call except getMe.
type fakeBotAPI struct {
	mu            sync.Mutex
	calls         []botCall
	lastMessageID int
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	w.Header().Set("Content-Type", "application/json")

	f.mu.Lock()
	defer f.mu.Unlock()
	var result any = true
	switch method {
	case "getMe":
		result = map[string]any{"id": 1, "is_bot": true, "first_name": "telegpt", "username": "telegpt_bot"}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": result})
		return
	case "sendMessage", "editMessageText":
		messageID, _ := strconv.Atoi(r.PostForm.Get("message_id"))
		if method == "sendMessage" {
			f.lastMessageID++
			messageID = f.lastMessageID
		}
		chatID, _ := strconv.ParseInt(r.PostForm.Get("chat_id"), 10, 64)
		result = map[string]any{
			"message_id": messageID,
			"date":       0,
			"chat":       map[string]any{"id": chatID, "type": "private"},
			"text":       r.PostForm.Get("text"),
		}
	}
	f.calls = append(f.calls, botCall{method: method, params: r.PostForm})
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": result})
}

func (f *fakeBotAPI) callsOf(method string) []botCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	calls := make([]botCall, 0)
	for _, call := range f.calls {
		if call.method == method {
			calls = append(calls, call)
		}
	}
	return calls
}

func (f *fakeBotAPI) lastSentID() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastMessageID
}

func (f *fakeBotAPI) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

type telegramFixture struct {
	bot       *fakeBotAPI
	tg        *TelegramUsecase
	completer *fakeCompleter
	users     *in_memory.UserStorage
}

func newTelegramFixture(
	t *testing.T,
	cfg config.Telegram,
	completer *fakeCompleter,
	users *in_memory.UserStorage,
	newTicker func(d time.Duration) (<-chan time.Time, func()),
) *telegramFixture {
	t.Helper()
	fake := &fakeBotAPI{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	bot, err := api.NewBotAPIWithAPIEndpoint("test-token", srv.URL+"/bot%s/%s")
	if err != nil {
		t.Fatal(err)
	}
	chat := NewChatUsecase(
		ChatUsecaseDeps{
			ChatStorage: in_memory.NewChatStorage(),
			Completer:   completer,
			Logger:      newTestLogger(),
			Now:         fixedClock(),
		}, config.Chat{UserLabel: "You"},
	)
	if _, err = chat.LoadChats(context.Background()); err != nil {
		t.Fatal(err)
	}
	tg, err := NewTelegramUsecase(
		cfg, config.Timer{Seconds: 3}, TelegramUsecaseDeps{
			Bot:       bot,
			Chat:      chat,
			User:      NewUserUsecase(UserUsecaseDeps{UserStorage: users}),
			Logger:    newTestLogger(),
			NewTicker: newTicker,
		},
	)
	if err != nil {
		t.Fatal(err)
	}
	if len(fake.callsOf("setMyCommands")) != 1 {
		t.Fatal("expected bot commands to be registered")
	}
	fake.reset()
	return &telegramFixture{bot: fake, tg: tg, completer: completer, users: users}
}

func textUpdate(chatID int64, text string) api.Update {
	msg := &api.Message{
		Text: text,
		Chat: api.Chat{ID: chatID, Type: "private"},
		From: &api.User{ID: chatID, LanguageCode: "en"},
	}
	if strings.HasPrefix(text, "/") {
		command, _, _ := strings.Cut(text, " ")
		msg.Entities = []api.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(command)}}
	}
	return api.Update{Message: msg}
}

func callbackUpdate(chatID int64, data string) api.Update {
	return api.Update{
		CallbackQuery: &api.CallbackQuery{
			ID:      "cb-1",
			From:    &api.User{ID: chatID},
			Message: &api.Message{Chat: api.Chat{ID: chatID, Type: "private"}},
			Data:    data,
		},
	}
}

func (f *telegramFixture) selectChat(t *testing.T, chatID int64, aiChatID string) {
	t.Helper()
	if err := f.tg.handleCallbackQuery(context.Background(), callbackUpdate(chatID, callbackChatPrefix+aiChatID)); err != nil {
		t.Fatal(err)
	}
	f.bot.reset()
}

func TestTelegramRejectsUsersOutsideAllowlist(t *testing.T) {
	completer := &fakeCompleter{answer: "hi"}
	f := newTelegramFixture(t, config.Telegram{AllowedTelegramID: []int64{1}}, completer, in_memory.NewUserStorage(), nil)

	if err := f.tg.handleMessage(context.Background(), textUpdate(2, "hello")); err != nil {
		t.Fatal(err)
	}
	if err := f.tg.handleCallbackQuery(context.Background(), callbackUpdate(2, "chat:1")); err != nil {
		t.Fatal(err)
	}

	sent := f.bot.callsOf("sendMessage")
	if len(sent) != 2 {
		t.Fatalf("expected two refusals, got %+v", sent)
	}
	for _, call := range sent {
		if call.params.Get("text") != MessageUserNoAccess || call.params.Get("chat_id") != "2" {
			t.Fatalf("unexpected refusal %+v", call.params)
		}
	}
	if len(completer.calls) != 0 {
		t.Fatal("completer must not be called for a rejected user")
	}
	if _, err := f.users.GetUserIDForTelegramUser(context.Background(), 2); !errors.Is(err, model.ErrTelegramUserDoesNotExists) {
		t.Fatalf("rejected user must not be registered, got %v", err)
	}

	if !f.tg.isAllowed(1) || f.tg.isAllowed(2) {
		t.Fatal("unexpected allowlist result")
	}
	open := newTelegramFixture(t, config.Telegram{}, completer, in_memory.NewUserStorage(), nil)
	if !open.tg.isAllowed(2) {
		t.Fatal("empty allowlist must allow everyone")
	}
}

func TestTelegramAsksToSelectChatFirst(t *testing.T) {
	completer := &fakeCompleter{answer: "hi"}
	f := newTelegramFixture(t, config.Telegram{}, completer, in_memory.NewUserStorage(), nil)

	if err := f.tg.handleMessage(context.Background(), textUpdate(1, "hello")); err != nil {
		t.Fatal(err)
	}

	sent := f.bot.callsOf("sendMessage")
	if len(sent) != 1 || sent[0].params.Get("text") != MessageSelectChat {
		t.Fatalf("expected the select prompt, got %+v", sent)
	}
	markup := sent[0].params.Get("reply_markup")
	for _, id := range []string{"chat:1", "chat:2", "chat:3"} {
		if !strings.Contains(markup, id) {
			t.Fatalf("keyboard misses %s: %s", id, markup)
		}
	}
	if len(completer.calls) != 0 {
		t.Fatal("completer must not be called without a selected chat")
	}
}

func TestTelegramCallbackSelectsChatAndSurvivesRestart(t *testing.T) {
	users := in_memory.NewUserStorage()
	completer := &fakeCompleter{answer: "Ahoy"}
	f := newTelegramFixture(t, config.Telegram{}, completer, users, nil)

	if err := f.tg.handleCallbackQuery(context.Background(), callbackUpdate(1, "chat:3")); err != nil {
		t.Fatal(err)
	}
	if len(f.bot.callsOf("answerCallbackQuery")) != 1 {
		t.Fatal("expected the callback to be answered")
	}
	sent := f.bot.callsOf("sendMessage")
	if len(sent) != 1 || !strings.HasPrefix(sent[0].params.Get("text"), "Chat with Olga") {
		t.Fatalf("expected the chat history, got %+v", sent)
	}

	// a new bot instance over the same user storage remembers the selection
	restarted := newTelegramFixture(t, config.Telegram{}, completer, users, nil)
	if err := restarted.tg.handleMessage(context.Background(), textUpdate(1, "Hello Olga")); err != nil {
		t.Fatal(err)
	}
	if len(completer.calls) != 1 {
		t.Fatalf("expected one completion, got %d", len(completer.calls))
	}
	if len(restarted.bot.callsOf("sendChatAction")) != 1 {
		t.Fatal("expected a typing action")
	}
	sent = restarted.bot.callsOf("sendMessage")
	if len(sent) != 1 || sent[0].params.Get("text") != "Ahoy" {
		t.Fatalf("expected the reply, got %+v", sent)
	}
}

func TestTelegramUnknownChatCallback(t *testing.T) {
	f := newTelegramFixture(t, config.Telegram{}, &fakeCompleter{}, in_memory.NewUserStorage(), nil)
	if err := f.tg.handleCallbackQuery(context.Background(), callbackUpdate(1, "chat:missing")); err != nil {
		t.Fatal(err)
	}
	sent := f.bot.callsOf("sendMessage")
	if len(sent) != 1 || sent[0].params.Get("text") != MessageChatNotFound {
		t.Fatalf("expected not found message, got %+v", sent)
	}
}

func TestTelegramCompletionFailureSendsNoReply(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("status 500")}
	f := newTelegramFixture(t, config.Telegram{}, completer, in_memory.NewUserStorage(), nil)
	f.selectChat(t, 1, "3")

	if err := f.tg.handleMessage(context.Background(), textUpdate(1, "Are you there?")); err != nil {
		t.Fatal(err)
	}
	if len(completer.calls) != 1 {
		t.Fatalf("expected one completion attempt, got %d", len(completer.calls))
	}
	if sent := f.bot.callsOf("sendMessage"); len(sent) != 0 {
		t.Fatalf("no reply expected, got %+v", sent)
	}
	chat, err := f.tg.Chat.GetChat("3")
	if err != nil {
		t.Fatal(err)
	}
	if len(chat.Messages) != 1 || chat.Messages[0].Text != "Are you there?" {
		t.Fatalf("expected only the user message, got %+v", chat.Messages)
	}
}

func TestTelegramTimerEditsOneMessage(t *testing.T) {
	ticks := make(chan time.Time, 3)
	stopped := make(chan struct{})
	newTicker := func(time.Duration) (<-chan time.Time, func()) {
		return ticks, func() { close(stopped) }
	}
	f := newTelegramFixture(t, config.Telegram{}, &fakeCompleter{}, in_memory.NewUserStorage(), newTicker)

	if err := f.tg.handleMessage(context.Background(), textUpdate(1, "/timer")); err != nil {
		t.Fatal(err)
	}
	sent := f.bot.callsOf("sendMessage")
	if len(sent) != 1 || sent[0].params.Get("text") != MessageEnterName {
		t.Fatalf("expected name prompt, got %+v", sent)
	}
	f.bot.reset()

	if err := f.tg.handleMessage(context.Background(), textUpdate(1, "/timer Kate")); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		ticks <- time.Now()
	}
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("timer did not finish")
	}
	f.tg.wg.Wait()

	sent = f.bot.callsOf("sendMessage")
	if len(sent) != 1 || !strings.Contains(sent[0].params.Get("text"), "3 seconds left") {
		t.Fatalf("expected one timer message, got %+v", sent)
	}
	edits := f.bot.callsOf("editMessageText")
	if len(edits) != 3 {
		t.Fatalf("expected one edit per tick, got %d", len(edits))
	}
	timerMessageID := strconv.Itoa(f.bot.lastSentID())
	for i, edit := range edits {
		if edit.params.Get("message_id") != timerMessageID {
			t.Fatalf("edit %d targets message %s, want %s", i, edit.params.Get("message_id"), timerMessageID)
		}
	}
	if text := edits[0].params.Get("text"); !strings.Contains(text, "2 seconds left") {
		t.Fatalf("unexpected first edit %q", text)
	}
	if text := edits[2].params.Get("text"); !strings.Contains(text, fmt.Sprintf(TextWellDone.Default, "Kate")) {
		t.Fatalf("unexpected last edit %q", text)
	}
}

func TestFormatChatHistory(t *testing.T) {
	empty := formatChatHistory(model.Chat{Name: "Olga"})
	if empty != "Chat with Olga\n"+MessageNoMessagesYet {
		t.Fatalf("unexpected empty history %q", empty)
	}

	history := formatChatHistory(
		model.Chat{
			Name: "Anna",
			Messages: []model.Message{
				{From: "You", Text: "Hi", Timestamp: "09:00"},
				{From: "Anna", Text: "Hello!", Timestamp: "09:01"},
			},
		},
	)
	want := "Chat with Anna\n\n[09:00] You: Hi\n[09:01] Anna: Hello!"
	if history != want {
		t.Fatalf("unexpected history %q", history)
	}
}
