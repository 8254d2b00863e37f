package router

import (
	"context"
	"fmt"
	"log/slog"

	"mealmind/model"
)

// RecipeLookupHandler produces a recipe suggestion shaped by the user's
// preferences and pantry. Single model call, no tools.
type RecipeLookupHandler struct {
	gateway model.Gateway
}

func NewRecipeLookupHandler(gateway model.Gateway) *RecipeLookupHandler {
	return &RecipeLookupHandler{gateway: gateway}
}

func (h *RecipeLookupHandler) Handle(ctx context.Context, step Step, state *ConversationState) error {
	query := step.Param("query")
	if query == "" {
		query = state.UserInput
	}

	system := fmt.Sprintf(recipeSystemPromptTemplate,
		formatPreferences(state.Preferences),
		orPlaceholder(state.InventorySummary, "(empty)"),
	)
	reply, err := h.gateway.Complete(ctx, []model.Message{
		model.System(system),
		model.User(query),
	})
	if err != nil {
		slog.Error("RECIPE_LOOKUP: Model call failed", "error", err)
		appendBlock(&state.RecipeResult, upstreamApology)
		return nil
	}
	appendBlock(&state.RecipeResult, reply.Content)
	return nil
}
