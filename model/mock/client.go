// Package mock provides a scripted model gateway for tests and offline runs.
package mock

import (
	"context"
	"log/slog"
	"sync"

	"mealmind/model"
)

// Client replays a fixed script of completions in order. Once the script is
// exhausted it keeps returning the last entry, which keeps bounded loops in
// the router terminating deterministically.
type Client struct {
	mu     sync.Mutex
	script []Reply
	next   int

	// Responder, when set, overrides the script entirely. It receives the
	// full message list so tests can branch on prompt content.
	Responder func(messages []model.Message) (model.Message, error)
}

// Reply is one scripted completion: either content or an error.
type Reply struct {
	Content string
	Err     error
}

func NewClient(script ...Reply) *Client {
	return &Client{script: script}
}

// Text is shorthand for a successful scripted completion.
func Text(content string) Reply { return Reply{Content: content} }

// Fail is shorthand for a scripted upstream failure.
func Fail(err error) Reply { return Reply{Err: err} }

func (c *Client) Complete(ctx context.Context, messages []model.Message) (model.Message, error) {
	slog.Info("MODEL_GATEWAY: Invoked (mock)", "messages_len", len(messages))

	if c.Responder != nil {
		return c.Responder(messages)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.script) == 0 {
		return model.Message{Role: model.RoleAssistant, Content: ""}, nil
	}

	idx := c.next
	if idx >= len(c.script) {
		idx = len(c.script) - 1
	} else {
		c.next++
	}

	r := c.script[idx]
	if r.Err != nil {
		return model.Message{}, &model.UpstreamError{Op: "mock complete", Err: r.Err}
	}
	return model.Message{Role: model.RoleAssistant, Content: r.Content}, nil
}

// Calls reports how many scripted replies have been consumed.
func (c *Client) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.next
}
