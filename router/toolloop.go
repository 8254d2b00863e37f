package router

import (
	"context"
	"fmt"
	"log/slog"

	"mealmind/retrieval"
)

// AlreadySearchedResult is the synthetic result recorded for a duplicate
// (tool, query) pair. Handlers surface it back to the model verbatim, which
// is what breaks the repeat-search loop instead of letting it recurse.
const AlreadySearchedResult = "Already searched for this query. Use the earlier result instead of searching again."

// toolLoop drains the pending tool calls on the state, one retrieval per
// unique (tool, query) pair per turn.
type toolLoop struct {
	retriever retrieval.Retriever
}

// Run executes every pending call, records outputs, and clears the pending
// list. Duplicates of an already-executed pair get the synthetic result
// without touching the retriever. Retrieval failures are recorded as outputs
// too so a flaky index cannot wedge the turn.
func (t *toolLoop) Run(ctx context.Context, state *ConversationState) {
	for _, call := range state.ToolCalls {
		if state.HasToolOutput(call.Tool, call.Query) {
			slog.Info("TOOL_LOOP: Suppressing duplicate search", "query", call.Query)
			state.ToolOutputs = append(state.ToolOutputs, ToolOutput{
				Tool:   call.Tool,
				Query:  call.Query,
				Result: AlreadySearchedResult,
			})
			continue
		}

		result, err := t.retriever.Search(ctx, call.Query)
		if err != nil {
			slog.Error("TOOL_LOOP: Search failed", "query", call.Query, "error", err)
			result = fmt.Sprintf("The food database is unavailable right now (query %q failed). Answer from general knowledge and say the lookup could not be completed.", call.Query)
		}
		state.ToolOutputs = append(state.ToolOutputs, ToolOutput{
			Tool:   call.Tool,
			Query:  call.Query,
			Result: result,
		})
	}
	state.ToolCalls = nil
}
