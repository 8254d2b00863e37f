package router

import (
	"context"
	"fmt"

	"mealmind/model"
)

// CalorieEstimationHandler estimates calories and macros for food the user
// describes, grounded in nutrition database lookups. The handler is
// re-entrant: on first entry it typically parks tool calls for the tool loop;
// on re-entry the accumulated results are in the message stack and the model
// writes the final answer.
type CalorieEstimationHandler struct {
	gateway     model.Gateway
	maxAttempts int
}

func NewCalorieEstimationHandler(gateway model.Gateway, maxAttempts int) *CalorieEstimationHandler {
	return &CalorieEstimationHandler{gateway: gateway, maxAttempts: maxAttempts}
}

func (h *CalorieEstimationHandler) Handle(ctx context.Context, step Step, state *ConversationState) error {
	query := step.Param("query")
	if query == "" {
		query = state.UserInput
	}

	system := fmt.Sprintf(estimationSystemPrompt, toolSchemaJSON())
	final, pending := completeWithTools(ctx, h.gateway, state, system,
		"Estimate the nutrition for: "+query, h.maxAttempts)
	if pending {
		return nil
	}
	state.FinalMessages = append(state.FinalMessages, final)
	return nil
}
