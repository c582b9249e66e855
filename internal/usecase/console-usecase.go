package usecase

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/iamvkosarev/telegpt/internal/model"
	"github.com/iamvkosarev/telegpt/pkg/local"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"
)

const consoleHelp = `Commands:
  /chats               list chats
  /open ID             open a chat
  /new NAME | PERSONA  create a chat, persona is optional
  /persona TEXT        replace the persona of the open chat
  /timer NAME          start the countdown
  /reset               reset the countdown
  /help                show this help
  /exit                quit
Anything else is sent to the open chat.`

type ConsoleUsecaseDeps struct {
	Chat   *ChatUsecase
	Timer  *TimerUsecase
	Logger *logrus.Logger
	In     io.Reader
	Out    io.Writer

	// NewTicker defaults to a time.Ticker.
	NewTicker func(d time.Duration) (<-chan time.Time, func())
}

type ConsoleUsecase struct {
	ConsoleUsecaseDeps
	language local.Language

	outMu       sync.Mutex
	openChatID  string
	timerCancel context.CancelFunc
	wg          conc.WaitGroup

	userColor      *color.Color
	assistantColor *color.Color
	systemColor    *color.Color
}

func NewConsoleUsecase(deps ConsoleUsecaseDeps, language local.Language) *ConsoleUsecase {
	if deps.NewTicker == nil {
		deps.NewTicker = func(d time.Duration) (<-chan time.Time, func()) {
			ticker := time.NewTicker(d)
			return ticker.C, ticker.Stop
		}
	}
	return &ConsoleUsecase{
		ConsoleUsecaseDeps: deps,
		language:           language,
		userColor:          color.New(color.FgGreen, color.Bold),
		assistantColor:     color.New(color.FgCyan, color.Bold),
		systemColor:        color.New(color.FgYellow),
	}
}

// Run reads commands line by line until /exit, EOF or ctx is done.
func (c *ConsoleUsecase) Run(ctx context.Context) error {
	defer c.wg.Wait()
	defer c.stopTimer()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if _, err := c.Chat.LoadChats(ctx); err != nil {
		return fmt.Errorf("failed to load chats: %w", err)
	}
	c.printSystem(consoleHelp)
	c.printChats()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(c.In)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return <-scanErr
			}
			if !c.handleLine(ctx, line) {
				return nil
			}
		}
	}
}

// handleLine returns false when the console should quit.
func (c *ConsoleUsecase) handleLine(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return true
	}
	if !strings.HasPrefix(line, "/") {
		c.send(ctx, line)
		return true
	}

	command, args, _ := strings.Cut(line[1:], " ")
	args = strings.TrimSpace(args)
	switch command {
	case "exit", "quit":
		return false
	case "help":
		c.printSystem(consoleHelp)
	case "chats":
		c.printChats()
	case "open":
		c.open(args)
	case "new":
		c.create(ctx, args)
	case "persona":
		c.updatePersona(ctx, args)
	case "timer":
		c.startTimer(ctx, args)
	case "reset":
		c.stopTimer()
		c.Timer.Reset()
		c.printSystem("Timer reset")
	default:
		c.printSystem(MessageCommandUnknown)
	}
	return true
}

func (c *ConsoleUsecase) send(ctx context.Context, text string) {
	if c.openChatID == "" {
		c.printSystem("Open a chat first: /open ID")
		return
	}
	reply, err := c.Chat.SendMessage(ctx, c.openChatID, text)
	if err != nil {
		// failures are logged by the chat usecase, no reply is shown
		return
	}
	c.printMessage(reply)
}

func (c *ConsoleUsecase) open(chatID string) {
	aiChat, err := c.Chat.GetChat(chatID)
	if err != nil {
		c.printSystem(MessageChatNotFound)
		return
	}
	c.openChatID = aiChat.ID
	c.printSystem(fmt.Sprintf(MessageSelectedFormat, aiChat.Name))
	if len(aiChat.Messages) == 0 {
		c.printSystem(MessageNoMessagesYet)
	}
	for _, msg := range aiChat.Messages {
		c.printMessage(msg)
	}
}

func (c *ConsoleUsecase) create(ctx context.Context, args string) {
	name, persona, _ := strings.Cut(args, "|")
	aiChat, err := c.Chat.CreateChat(ctx, name, "", persona)
	if err != nil {
		if errors.Is(err, model.ErrBlankName) {
			c.printSystem("Usage: /new NAME | PERSONA")
			return
		}
		c.Logger.WithError(err).Error("failed to create chat")
		return
	}
	c.openChatID = aiChat.ID
	c.printSystem(fmt.Sprintf(MessageSelectedFormat, aiChat.Name))
}

func (c *ConsoleUsecase) updatePersona(ctx context.Context, persona string) {
	if c.openChatID == "" {
		c.printSystem("Open a chat first: /open ID")
		return
	}
	if _, err := c.Chat.UpdatePersona(ctx, c.openChatID, persona); err != nil {
		c.Logger.WithError(err).Error("failed to update persona")
		return
	}
	c.printSystem("Persona updated")
}

func (c *ConsoleUsecase) startTimer(ctx context.Context, name string) {
	if strings.TrimSpace(name) == "" {
		c.printSystem(MessageEnterName)
		return
	}
	c.stopTimer()
	snap, err := c.Timer.Start(name)
	if err != nil {
		c.printSystem(MessageEnterName)
		return
	}
	c.printSystem(FormatTimer(snap, c.language))

	runCtx, cancel := context.WithCancel(ctx)
	c.timerCancel = cancel
	ticks, stop := c.NewTicker(time.Second)
	c.wg.Go(
		func() {
			defer stop()
			err := c.Timer.Run(
				runCtx, ticks, func(snap model.TimerSnapshot) {
					c.printSystem(FormatTimer(snap, c.language))
				},
			)
			if err != nil && !errors.Is(err, context.Canceled) {
				c.Logger.WithError(err).Warn("timer stopped")
			}
		},
	)
}

// stopTimer cancels the running countdown and waits for its goroutine, so a late
// tick can't reach a timer that is about to restart.
func (c *ConsoleUsecase) stopTimer() {
	if c.timerCancel != nil {
		c.timerCancel()
		c.timerCancel = nil
	}
	c.wg.Wait()
}

func (c *ConsoleUsecase) printChats() {
	var b strings.Builder
	for _, aiChat := range c.Chat.ListChats() {
		fmt.Fprintf(&b, "%s\t%s\t%s\n", aiChat.ID, aiChat.Name, Preview(aiChat))
	}
	c.printSystem(strings.TrimRight(b.String(), "\n"))
}

func (c *ConsoleUsecase) printMessage(msg model.Message) {
	paint := c.assistantColor
	if msg.From == c.Chat.UserLabel() {
		paint = c.userColor
	}
	c.outMu.Lock()
	defer c.outMu.Unlock()
	paint.Fprintf(c.Out, "[%s] %s: ", msg.Timestamp, msg.From)
	fmt.Fprintln(c.Out, msg.Text)
}

func (c *ConsoleUsecase) printSystem(text string) {
	if text == "" {
		return
	}
	c.outMu.Lock()
	defer c.outMu.Unlock()
	c.systemColor.Fprintln(c.Out, text)
}
