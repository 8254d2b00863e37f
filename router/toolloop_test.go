package router

import (
	"context"
	"errors"
	"testing"

	"mealmind/retrieval"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolLoopRunsEachCallOnce(t *testing.T) {
	retriever := retrieval.NewStatic(map[string]string{
		"banana": "Banana: 105 kcal per medium fruit.",
		"honey":  "Honey: 64 kcal per tablespoon.",
	})
	loop := &toolLoop{retriever: retriever}

	state := &ConversationState{
		ToolCalls: []ToolCall{
			{Tool: "search_foods", Query: "banana"},
			{Tool: "search_foods", Query: "honey"},
		},
	}
	loop.Run(context.Background(), state)

	require.Len(t, state.ToolOutputs, 2)
	assert.Empty(t, state.ToolCalls)
	assert.Equal(t, "Banana: 105 kcal per medium fruit.", state.ToolOutputs[0].Result)
	assert.Equal(t, 1, retriever.Calls("banana"))
	assert.Equal(t, 1, retriever.Calls("honey"))
}

func TestToolLoopSuppressesDuplicates(t *testing.T) {
	retriever := retrieval.NewStatic(map[string]string{
		"banana": "Banana: 105 kcal per medium fruit.",
	})
	loop := &toolLoop{retriever: retriever}

	state := &ConversationState{
		ToolOutputs: []ToolOutput{
			{Tool: "search_foods", Query: "banana", Result: "Banana: 105 kcal per medium fruit."},
		},
		ToolCalls: []ToolCall{
			{Tool: "search_foods", Query: "banana"},
		},
	}
	loop.Run(context.Background(), state)

	require.Len(t, state.ToolOutputs, 2)
	assert.Equal(t, AlreadySearchedResult, state.ToolOutputs[1].Result)
	assert.Equal(t, 0, retriever.Calls("banana"), "retriever must not run for a duplicate")
}

func TestToolLoopDedupsWithinBatch(t *testing.T) {
	retriever := retrieval.NewStatic(map[string]string{
		"oats": "Oats: 389 kcal per 100g.",
	})
	loop := &toolLoop{retriever: retriever}

	state := &ConversationState{
		ToolCalls: []ToolCall{
			{Tool: "search_foods", Query: "oats"},
			{Tool: "search_foods", Query: "oats"},
		},
	}
	loop.Run(context.Background(), state)

	require.Len(t, state.ToolOutputs, 2)
	assert.Equal(t, "Oats: 389 kcal per 100g.", state.ToolOutputs[0].Result)
	assert.Equal(t, AlreadySearchedResult, state.ToolOutputs[1].Result)
	assert.Equal(t, 1, retriever.Calls("oats"))
}

func TestToolLoopRecordsRetrievalFailure(t *testing.T) {
	retriever := retrieval.NewStaticWithError(errors.New("connection refused"))
	loop := &toolLoop{retriever: retriever}

	state := &ConversationState{
		ToolCalls: []ToolCall{{Tool: "search_foods", Query: "banana"}},
	}
	loop.Run(context.Background(), state)

	require.Len(t, state.ToolOutputs, 1)
	assert.Contains(t, state.ToolOutputs[0].Result, "unavailable")
	assert.Empty(t, state.ToolCalls)
}
