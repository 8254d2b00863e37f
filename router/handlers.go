package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mealmind/model"
)

// Handler executes one plan step against the state. A handler signals that
// it needs retrieval by leaving pending entries in state.ToolCalls; the
// orchestrator then runs the tool loop and re-invokes the same handler.
// Handlers report user-facing failures through the state buffers, not the
// error return; the error is reserved for conditions that should abort the
// turn (none of the built-in handlers produce one today).
type Handler interface {
	Handle(ctx context.Context, step Step, state *ConversationState) error
}

const upstreamApology = "I'm having trouble reaching my language model right now. Please try again in a moment."

// defaultMaxToolAttempts bounds how many times a tool-capable handler
// re-prompts the model when a completion contains only duplicate searches.
const defaultMaxToolAttempts = 3

// completeWithTools runs the shared contract of the two tool-capable
// handlers (calorie_estimation and general_chat): build the message stack
// with all prior search results appended, call the model, and either park new
// tool calls on the state or return the final prose.
//
// Returns ("", true) when tool calls are pending and the orchestrator must
// run the tool loop before re-entering the handler.
func completeWithTools(ctx context.Context, gateway model.Gateway, state *ConversationState, system, userContent string, maxAttempts int) (string, bool) {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxToolAttempts
	}
	messages := []model.Message{model.System(system), model.User(userContent)}
	for _, out := range state.ToolOutputs {
		messages = append(messages, model.User(
			fmt.Sprintf("Search result for %q:\n%s", out.Query, out.Result),
		))
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		reply, err := gateway.Complete(ctx, messages)
		if err != nil {
			return upstreamApology, false
		}

		calls := extractToolCalls(reply.Content)
		if len(calls) == 0 {
			return strings.TrimSpace(reply.Content), false
		}

		fresh := dedupNewCalls(calls, state)
		if len(fresh) > 0 {
			state.ToolCalls = fresh
			return "", true
		}

		// Every requested search already ran. Push back and re-prompt
		// instead of burning a tool-loop round trip on synthetics. Echo the
		// model's prose without the repeated call objects so the reprompt
		// does not show the syntax we are asking it to stop using.
		prose := stripToolCalls(reply.Content)
		if prose == "" {
			prose = reply.Content
		}
		messages = append(messages,
			model.Assistant(prose),
			model.User("All of those searches were already done and their results are above. Do not search again; write the final answer now."),
		)
	}

	return "I could not finish looking that up. Here is my best estimate from the results so far:\n" + joinOutputs(state), false
}

// dedupNewCalls drops calls whose (tool, query) pair already has an output,
// and collapses repeats within the same batch.
func dedupNewCalls(calls []ToolCall, state *ConversationState) []ToolCall {
	seen := make(map[string]bool)
	var fresh []ToolCall
	for _, call := range calls {
		key := call.Tool + "\x00" + call.Query
		if seen[key] || state.HasToolOutput(call.Tool, call.Query) {
			continue
		}
		seen[key] = true
		fresh = append(fresh, call)
	}
	return fresh
}

func joinOutputs(state *ConversationState) string {
	var parts []string
	for _, out := range state.ToolOutputs {
		if out.Result == AlreadySearchedResult {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", out.Query, out.Result))
	}
	if len(parts) == 0 {
		return "(no results)"
	}
	return strings.Join(parts, "\n")
}

// resolveDate maps the date words the planner passes through ("today",
// "tomorrow", weekday names) onto YYYY-MM-DD. Already-formatted dates pass
// unchanged; anything unrecognized resolves to today.
func resolveDate(now time.Time, s string) string {
	normalized := strings.ToLower(strings.TrimSpace(s))
	switch normalized {
	case "", "today":
		return now.Format("2006-01-02")
	case "tomorrow":
		return now.AddDate(0, 0, 1).Format("2006-01-02")
	case "yesterday":
		return now.AddDate(0, 0, -1).Format("2006-01-02")
	}
	if t, err := time.Parse("2006-01-02", normalized); err == nil {
		return t.Format("2006-01-02")
	}
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if normalized == strings.ToLower(wd.String()) {
			// Next occurrence of that weekday, counting today as a match.
			days := (int(wd) - int(now.Weekday()) + 7) % 7
			return now.AddDate(0, 0, days).Format("2006-01-02")
		}
	}
	return now.Format("2006-01-02")
}

func normalizeMealType(s string) string {
	normalized := strings.ToLower(strings.TrimSpace(s))
	switch normalized {
	case "snack":
		return "snacks"
	case "breakfast", "lunch", "dinner", "snacks", "":
		return normalized
	}
	return ""
}
