package router

import (
	"context"
	"testing"

	"mealmind/model"
	"mealmind/model/mock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleteWithToolsStripsRepeatedCallsFromReprompt(t *testing.T) {
	state := &ConversationState{
		ToolOutputs: []ToolOutput{
			{Tool: "search_foods", Query: "banana", Result: "Banana: 105 kcal per medium fruit."},
		},
	}

	var echoed string
	calls := 0
	gateway := mock.NewClient()
	gateway.Responder = func(messages []model.Message) (model.Message, error) {
		calls++
		if calls == 1 {
			return model.Message{Role: model.RoleAssistant,
				Content: `Let me check that. {"tool": "search_foods", "query": "banana"}`}, nil
		}
		// The reprompt stack is [system, user, result, assistant echo, nudge].
		echoed = messages[len(messages)-2].Content
		return model.Message{Role: model.RoleAssistant, Content: "About 105 calories."}, nil
	}

	final, pending := completeWithTools(context.Background(), gateway, state, "system", "user", 0)
	require.False(t, pending)
	assert.Equal(t, "About 105 calories.", final)
	assert.Equal(t, "Let me check that.", echoed, "the echoed reply must not repeat the call syntax")
}

func TestCompleteWithToolsAttemptBound(t *testing.T) {
	state := &ConversationState{
		ToolOutputs: []ToolOutput{
			{Tool: "search_foods", Query: "banana", Result: "Banana: 105 kcal per medium fruit."},
		},
	}

	calls := 0
	gateway := mock.NewClient()
	gateway.Responder = func(messages []model.Message) (model.Message, error) {
		calls++
		return model.Message{Role: model.RoleAssistant,
			Content: `{"tool": "search_foods", "query": "banana"}`}, nil
	}

	final, pending := completeWithTools(context.Background(), gateway, state, "system", "user", 2)
	require.False(t, pending)
	assert.Equal(t, 2, calls)
	assert.Contains(t, final, "best estimate")
	assert.Contains(t, final, "105 kcal")
}
