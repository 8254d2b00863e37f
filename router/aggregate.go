package router

import "strings"

// confirmAddPrompt bridges a completed estimation into a possible follow-up
// adjustment: it is both the question the user answers and the marker the
// confirmation gate looks for in the next turn's history.
const confirmAddPrompt = "Would you like to add this to your meal plan? Just tell me which meal (breakfast, lunch, dinner, or snacks) and I'll update it."

const fallbackResponse = "I'm not sure how to help with that yet, but I'm happy to chat about your meals, nutrition, or recipes."

// aggregate assembles the turn's response from the per-intent buffers in a
// fixed priority order: adjustments (with their warnings) first, then
// retrieved plan data, then recipes, then the free-form messages. Runs at
// most once per turn and never calls the model.
func aggregate(state *ConversationState) string {
	var parts []string

	if state.AdjustmentResult != "" {
		parts = append(parts, state.AdjustmentResult)
		for _, warning := range state.MonitoringWarnings {
			parts = append(parts, "Heads up: "+warning)
		}
	}
	if state.RetrievedData != "" {
		parts = append(parts, state.RetrievedData)
	}
	if state.RecipeResult != "" {
		parts = append(parts, state.RecipeResult)
	}
	if len(state.FinalMessages) > 0 {
		parts = append(parts, strings.Join(state.FinalMessages, "\n\n"))
	}

	if endsWithEstimation(state) && state.AdjustmentResult == "" {
		parts = append(parts, confirmAddPrompt)
	}

	if len(parts) == 0 {
		return fallbackResponse
	}
	return strings.Join(parts, "\n\n")
}

func endsWithEstimation(state *ConversationState) bool {
	if len(state.Plan) == 0 {
		return false
	}
	return state.Plan[len(state.Plan)-1].Action == ActionCalorieEstimation
}
