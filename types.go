package mealmind

import (
	"context"
	"net/http"
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type Notifier interface {
	PostMessage(ctx context.Context, channel string, message string) error
}

// TurnRunner is the top-level contract for one conversational turn: one user
// utterance in, one user-facing response out.
type TurnRunner interface {
	RunTurn(ctx context.Context, input TurnInput) (string, error)
}

// TurnInput carries everything a turn needs from the caller.
type TurnInput struct {
	UserID    string `json:"user_id"`
	ThreadID  string `json:"thread_id"`
	UserInput string `json:"user_input"`
}

// ChatMessage is a role-tagged message in a conversation history.
type ChatMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}
