package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mealmind"
	"mealmind/model"
)

// Planner turns a user utterance into an ordered plan of intent steps.
type Planner struct {
	gateway       model.Gateway
	historyWindow int
	now           func() time.Time
}

func NewPlanner(gateway model.Gateway, historyWindow int) *Planner {
	return &Planner{gateway: gateway, historyWindow: historyWindow, now: time.Now}
}

// rawStep tolerates non-string param values in model output; everything is
// coerced to a string before entering the plan.
type rawStep struct {
	Action string         `json:"action"`
	Params map[string]any `json:"params"`
}

// Plan is re-entrant. On the fresh branch (no plan, no partial results) it
// clears stale buffers, calls the model, and installs a new plan at index 0.
// On every other entry it only advances the step index: a plan that exists,
// or partial results that exist, mean planning already happened this turn and
// regenerating would throw away completed work.
func (p *Planner) Plan(ctx context.Context, state *ConversationState) error {
	if len(state.Plan) > 0 || state.HasPartialResults() {
		state.CurrentStepIndex++
		slog.Debug("PLANNER: Advancing", "step_index", state.CurrentStepIndex)
		return nil
	}

	state.ResetPartials()

	system := fmt.Sprintf(plannerSystemPrompt,
		p.now().Format("2006-01-02"),
		formatHistory(state.ChatHistory, p.historyWindow),
	)
	reply, err := p.gateway.Complete(ctx, []model.Message{
		model.System(system),
		model.User(state.UserInput),
	})
	if err != nil {
		slog.Error("PLANNER: Model call failed, falling back to chat", "error", err)
		state.Plan = fallbackPlan(state.UserInput)
		state.CurrentStepIndex = 0
		return nil
	}

	plan := parsePlan(reply.Content)
	if len(plan) == 0 {
		slog.Warn("PLANNER: Unparseable plan, falling back to chat", "content", reply.Content)
		plan = fallbackPlan(state.UserInput)
	}
	plan = gateAdjustments(plan, state)

	state.Plan = plan
	state.CurrentStepIndex = 0
	slog.Info("PLANNER: Plan ready", "steps", len(plan), "first_action", plan[0].Action)
	return nil
}

// parsePlan extracts the step array from a completion. Unknown actions are
// dropped; a plan that loses every step parses as empty.
func parsePlan(content string) []Step {
	var raw []rawStep
	if !extractJSONArray(content, &raw) {
		return nil
	}
	var plan []Step
	for _, rs := range raw {
		action := Action(strings.ToLower(strings.TrimSpace(rs.Action)))
		if !KnownAction(action) {
			continue
		}
		params := make(map[string]string, len(rs.Params))
		for k, v := range rs.Params {
			switch val := v.(type) {
			case string:
				params[k] = val
			case nil:
			default:
				params[k] = fmt.Sprint(val)
			}
		}
		plan = append(plan, Step{Action: action, Params: params})
	}
	return plan
}

func fallbackPlan(userInput string) []Step {
	return []Step{{
		Action: ActionGeneralChat,
		Params: map[string]string{"query": userInput},
	}}
}

// gateAdjustments downgrades meal_adjustment steps the conversation does not
// license. The prompt already forbids unconfirmed adjustments, but the gate
// makes the rule hold even when the model ignores it: a write to the meal
// plan requires that the assistant proposed the change and the user said yes.
func gateAdjustments(plan []Step, state *ConversationState) []Step {
	for i, step := range plan {
		if step.Action != ActionMealAdjustment {
			continue
		}
		if adjustmentConfirmed(state) {
			continue
		}
		slog.Info("PLANNER: Downgrading unconfirmed adjustment", "instruction", step.Param("instruction"))
		params := map[string]string{"query": state.UserInput}
		if inst := step.Param("instruction"); inst != "" {
			params["pending_change"] = inst
		}
		plan[i] = Step{Action: ActionGeneralChat, Params: params}
	}
	return plan
}

// adjustmentConfirmed holds when the previous assistant message asked about a
// change and the current utterance reads as assent.
func adjustmentConfirmed(state *ConversationState) bool {
	return lastAssistantAskedConfirmation(state.ChatHistory) && affirms(state.UserInput)
}

func lastAssistantAskedConfirmation(history []mealmind.ChatMessage) bool {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role != "assistant" {
			continue
		}
		content := strings.ToLower(history[i].Content)
		if !strings.Contains(content, "?") {
			return false
		}
		for _, marker := range []string{"would you like", "should i", "confirm", "do you want", "shall i", "add this to your meal plan"} {
			if strings.Contains(content, marker) {
				return true
			}
		}
		return false
	}
	return false
}

var affirmWords = map[string]bool{
	"yes": true, "yep": true, "yeah": true, "sure": true,
	"ok": true, "okay": true, "confirm": true, "confirmed": true,
}

var affirmPhrases = []string{
	"go ahead", "do it", "please do", "please update", "please add",
	"add it", "update it", "sounds good",
}

func affirms(input string) bool {
	normalized := strings.ToLower(strings.TrimSpace(input))
	for _, word := range strings.FieldsFunc(normalized, func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == '!'
	}) {
		if affirmWords[word] {
			return true
		}
	}
	for _, phrase := range affirmPhrases {
		if strings.Contains(normalized, phrase) {
			return true
		}
	}
	return false
}
