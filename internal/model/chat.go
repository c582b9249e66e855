package model

import "time"

// TimestampLayout is the hour:minute form shown next to every message.
const TimestampLayout = "15:04"

type Message struct {
	ID        string
	From      string
	Text      string
	Timestamp string
}

// Chat is a single conversation with one persona.
type Chat struct {
	ID                 string
	Name               string
	Image              string
	PersonaDescription string
	Messages           []Message
}

func (c Chat) Clone() Chat {
	clone := c
	clone.Messages = make([]Message, len(c.Messages))
	copy(clone.Messages, c.Messages)
	return clone
}

func (c Chat) LastMessage() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}
