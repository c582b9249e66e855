package model

type CompletionRole string

const (
	CompletionRoleSystem    = CompletionRole("system")
	CompletionRoleUser      = CompletionRole("user")
	CompletionRoleAssistant = CompletionRole("assistant")
)

type CompletionMessage struct {
	Role    CompletionRole
	Content string
}
