package router

import (
	"context"
	"fmt"

	"mealmind/model"
)

// GeneralChatHandler is the catch-all intent: conversational answers grounded
// in the user's profile, plan and preferences, with optional database
// lookups. Like calorie estimation it may round-trip through the tool loop.
type GeneralChatHandler struct {
	gateway     model.Gateway
	maxAttempts int
}

func NewGeneralChatHandler(gateway model.Gateway, maxAttempts int) *GeneralChatHandler {
	return &GeneralChatHandler{gateway: gateway, maxAttempts: maxAttempts}
}

func (h *GeneralChatHandler) Handle(ctx context.Context, step Step, state *ConversationState) error {
	query := step.Param("query")
	if query == "" {
		query = state.UserInput
	}
	if pending := step.Param("pending_change"); pending != "" {
		query += fmt.Sprintf(
			"\n\n(The user has not yet confirmed the change %q. Describe what it would involve and ask whether to go ahead; do not claim the plan was updated.)",
			pending)
	}

	system := fmt.Sprintf(chatSystemPromptTemplate,
		formatProfile(state.Profile),
		orPlaceholder(state.InventorySummary, "(empty)"),
		orPlaceholder(state.MealPlanSummary, "(no active plan)"),
		formatPreferences(state.Preferences),
		toolSchemaJSON(),
	)
	final, pending := completeWithTools(ctx, h.gateway, state, system, query, h.maxAttempts)
	if pending {
		return nil
	}
	state.FinalMessages = append(state.FinalMessages, final)
	return nil
}
