// Package router implements the conversational task router: a planner that
// turns a user utterance into an ordered list of intent steps, an
// orchestrator that drives those steps through per-intent handlers, a tool
// sub-loop with duplicate suppression, and a final response aggregation pass.
package router

import (
	"mealmind"
	"mealmind/store"
)

// Action is the intent tag of one plan step.
type Action string

const (
	ActionMealAdjustment    Action = "meal_adjustment"
	ActionMealRetrieval     Action = "meal_retrieval"
	ActionCalorieEstimation Action = "calorie_estimation"
	ActionRecipeLookup      Action = "recipe_lookup"
	ActionGeneralChat       Action = "general_chat"
)

// KnownAction reports whether a is one of the five dispatchable intents.
func KnownAction(a Action) bool {
	switch a {
	case ActionMealAdjustment, ActionMealRetrieval, ActionCalorieEstimation,
		ActionRecipeLookup, ActionGeneralChat:
		return true
	}
	return false
}

// Step is one unit of work within a plan. Immutable once planned.
type Step struct {
	Action Action            `json:"action"`
	Params map[string]string `json:"params"`
}

// Param returns a step parameter or "" when absent.
func (s Step) Param(key string) string {
	if s.Params == nil {
		return ""
	}
	return s.Params[key]
}

// Node names the states of the orchestrator's finite-state loop.
type Node string

const (
	NodePlanner   Node = "planner"
	NodeToolLoop  Node = "tool_loop"
	NodeAggregate Node = "aggregate"
	NodeDone      Node = "done"
)

// nodeFor maps a step action onto its handler node. Handler nodes share the
// action's name so active_node round-trips through checkpoints unchanged.
func nodeFor(a Action) Node { return Node(a) }

// ToolCall is one pending retrieval request emitted by a handler.
type ToolCall struct {
	Tool  string `json:"tool"`
	Query string `json:"query"`
}

// ToolOutput is one executed retrieval request plus its result. Outputs
// accumulate for the whole turn; the tool loop keys duplicate suppression
// off them.
type ToolOutput struct {
	Tool   string `json:"tool"`
	Query  string `json:"query"`
	Result string `json:"result"`
}

// ConversationState is owned exclusively by one in-flight turn. The context
// fields are loaded once per turn and never mutated by the core; everything
// else is written by the planner, the handlers and the tool loop.
type ConversationState struct {
	UserInput string `json:"user_input"`
	UserID    string `json:"user_id"`

	Profile          store.Profile     `json:"user_profile"`
	InventorySummary string            `json:"inventory_summary"`
	MealPlanSummary  string            `json:"meal_plan_summary"`
	Preferences      store.Preferences `json:"user_preferences"`

	ChatHistory []mealmind.ChatMessage `json:"chat_history"`

	Plan             []Step `json:"plan"`
	CurrentStepIndex int    `json:"current_step_index"`

	RetrievedData      string   `json:"retrieved_data,omitempty"`
	AdjustmentResult   string   `json:"adjustment_result,omitempty"`
	EstimationResult   string   `json:"estimation_result,omitempty"` // historical; final output goes to FinalMessages
	RecipeResult       string   `json:"recipe_result,omitempty"`
	MonitoringWarnings []string `json:"monitoring_warnings,omitempty"`

	FinalMessages []string `json:"final_messages,omitempty"`

	ToolCalls   []ToolCall   `json:"tool_calls,omitempty"`
	ToolOutputs []ToolOutput `json:"tool_outputs,omitempty"`

	// ActiveNode records which handler is awaiting tool results so the tool
	// loop can hand control back to it.
	ActiveNode Node `json:"active_node,omitempty"`
}

// BeginTurn resets the turn-scoped fields for a fresh user utterance while
// keeping the cross-turn fields (chat history, loaded context) intact. The
// partial buffers are cleared here too: a checkpoint restored from the
// previous turn still carries that turn's results, and leaving them in place
// would make the planner treat the new turn as a re-entry.
func (s *ConversationState) BeginTurn(userInput string) {
	s.UserInput = userInput
	s.Plan = nil
	s.CurrentStepIndex = 0
	s.FinalMessages = nil
	s.MonitoringWarnings = nil
	s.ActiveNode = ""
	s.ResetPartials()
}

// HasPartialResults reports whether any work product exists for this turn.
// The planner must never regenerate a plan while this is true: doing so
// erased completed work in earlier revisions of this router.
func (s *ConversationState) HasPartialResults() bool {
	return s.RetrievedData != "" ||
		s.AdjustmentResult != "" ||
		s.EstimationResult != "" ||
		s.RecipeResult != "" ||
		len(s.FinalMessages) > 0
}

// ResetPartials clears every per-intent buffer plus the tool buffers. Called
// only on the planner's fresh-plan branch so results from a prior unrelated
// turn can never leak into a new response.
func (s *ConversationState) ResetPartials() {
	s.RetrievedData = ""
	s.AdjustmentResult = ""
	s.EstimationResult = ""
	s.RecipeResult = ""
	s.ToolCalls = nil
	s.ToolOutputs = nil
}

// CurrentStep returns the step under the index, or false when the index has
// run off the end of the plan.
func (s *ConversationState) CurrentStep() (Step, bool) {
	if s.CurrentStepIndex < 0 || s.CurrentStepIndex >= len(s.Plan) {
		return Step{}, false
	}
	return s.Plan[s.CurrentStepIndex], true
}

// HasToolOutput reports whether the given (tool, query) pair already ran
// this turn.
func (s *ConversationState) HasToolOutput(tool, query string) bool {
	for _, out := range s.ToolOutputs {
		if out.Tool == tool && out.Query == query {
			return true
		}
	}
	return false
}
