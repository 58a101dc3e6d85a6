package domain

import "context"

// Chat message roles understood by OpenAI-compatible providers.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one entry of a rendered prompt.
type ChatMessage struct {
	Role    string
	Content string
}

// ChatModel produces a completion for a rendered prompt. Stage names the
// calling chain step and only labels logs and metrics.
type ChatModel interface {
	Complete(ctx context.Context, stage string, messages []ChatMessage) (string, error)
}
