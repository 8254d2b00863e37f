package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mealmind/store"
)

// MealRetrievalHandler answers "what's on my plan" questions straight from
// the store; no model call involved.
type MealRetrievalHandler struct {
	store store.Gateway
	now   func() time.Time
}

func NewMealRetrievalHandler(gw store.Gateway) *MealRetrievalHandler {
	return &MealRetrievalHandler{store: gw, now: time.Now}
}

func (h *MealRetrievalHandler) Handle(ctx context.Context, step Step, state *ConversationState) error {
	date := resolveDate(h.now(), step.Param("date"))
	mealType := normalizeMealType(step.Param("meal_type"))

	meals, err := h.store.GetMealsByCriteria(ctx, state.UserID, date, mealType)
	if err != nil {
		slog.Error("MEAL_RETRIEVAL: Store query failed", "date", date, "meal_type", mealType, "error", err)
		appendBlock(&state.RetrievedData, "I couldn't read your meal plan just now. Please try again shortly.")
		return nil
	}
	if len(meals) == 0 {
		what := "meals"
		if mealType != "" {
			what = mealType
		}
		appendBlock(&state.RetrievedData, fmt.Sprintf("No %s planned for %s.", what, date))
		return nil
	}

	appendBlock(&state.RetrievedData, formatMeals(date, meals))
	return nil
}

func formatMeals(date string, meals []store.MealSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Here's what's on your plan for %s:\n", date)
	for _, m := range meals {
		fmt.Fprintf(&b, "\n**%s** (%s): %s\n", titleCase(m.MealType), m.DayName, m.MealName)
		if len(m.Ingredients) > 0 {
			var names []string
			for _, ing := range m.Ingredients {
				names = append(names, fmt.Sprintf("%s (%s %s)", ing.Ingredient, ing.Quantity, ing.Unit))
			}
			fmt.Fprintf(&b, "Ingredients: %s\n", strings.Join(names, ", "))
		}
		fmt.Fprintf(&b, "Nutrition: %s\n", formatNutrition(m.Nutrition))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatNutrition(n store.Nutrition) string {
	return fmt.Sprintf("%.0f kcal, %.1fg protein, %.1fg carbs, %.1fg fat",
		n.Calories, n.ProteinG, n.CarbohydratesG, n.FatG)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// appendBlock accumulates result text with a blank-line separator so multiple
// steps of the same intent read as distinct sections.
func appendBlock(dst *string, block string) {
	if *dst == "" {
		*dst = block
		return
	}
	*dst = *dst + "\n\n" + block
}
