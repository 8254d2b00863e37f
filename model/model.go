// Package model defines the call/respond contract against a hosted
// text-generation model. Implementations live in subpackages (ollama,
// bedrock, mock); the router only sees this interface.
package model

import (
	"context"
	"fmt"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one role-tagged message in a completion request or response.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Gateway is the synchronous call/respond abstraction around a hosted model.
// Given role-tagged messages it returns exactly one completion message.
type Gateway interface {
	Complete(ctx context.Context, messages []Message) (Message, error)
}

// UpstreamError reports a network/auth/rate-limit failure from the hosted
// model or from the retrieval index. Handlers convert it into an apologetic
// text result instead of failing the turn.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// System is a convenience constructor for a system message.
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }

// User is a convenience constructor for a user message.
func User(content string) Message { return Message{Role: RoleUser, Content: content} }

// Assistant is a convenience constructor for an assistant message.
func Assistant(content string) Message { return Message{Role: RoleAssistant, Content: content} }
