package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mealmind/model"
	"mealmind/monitor"
	"mealmind/store"
)

// MealAdjustmentHandler applies a confirmed change to one planned meal: it
// classifies the instruction with the model, rewrites the meal record,
// recomputes the day's totals, and records any target warnings. Everything
// user-facing lands in state.AdjustmentResult; persistence failures are
// reported there too and never retried.
type MealAdjustmentHandler struct {
	gateway model.Gateway
	store   store.Gateway
	now     func() time.Time
}

func NewMealAdjustmentHandler(gateway model.Gateway, gw store.Gateway) *MealAdjustmentHandler {
	return &MealAdjustmentHandler{gateway: gateway, store: gw, now: time.Now}
}

type adjustmentDecision struct {
	Intent string          `json:"intent"`
	Meal   *adjustmentMeal `json:"meal"`
}

type adjustmentMeal struct {
	MealName    string             `json:"meal_name"`
	Ingredients []store.Ingredient `json:"ingredients_with_quantities"`
	Nutrition   store.Nutrition    `json:"nutrition"`
	Recipe      *store.Recipe      `json:"recipe"`
}

func (h *MealAdjustmentHandler) Handle(ctx context.Context, step Step, state *ConversationState) error {
	date := resolveDate(h.now(), step.Param("date"))
	mealType := normalizeMealType(step.Param("meal_type"))
	instruction := step.Param("instruction")

	if mealType == "" {
		appendBlock(&state.AdjustmentResult,
			"Which meal should I update? Tell me breakfast, lunch, dinner, or snacks.")
		return nil
	}

	rec, err := h.store.GetMealRecord(ctx, state.UserID, date, mealType)
	if errors.Is(err, store.ErrNotFound) {
		appendBlock(&state.AdjustmentResult,
			fmt.Sprintf("I couldn't find a %s on your plan for %s, so there's nothing to update.", mealType, date))
		return nil
	}
	if err != nil {
		slog.Error("MEAL_ADJUSTMENT: Load failed", "date", date, "meal_type", mealType, "error", err)
		appendBlock(&state.AdjustmentResult,
			"I couldn't load that meal just now, so I haven't changed anything. Please try again.")
		return nil
	}

	decision, ok := h.classify(ctx, rec, instruction)
	if !ok {
		appendBlock(&state.AdjustmentResult,
			"I couldn't work out how to apply that change, so your plan is untouched. Could you rephrase it?")
		return nil
	}

	switch decision.Intent {
	case "report":
		appendBlock(&state.AdjustmentResult, fmt.Sprintf(
			"Noted. Your %s on %s is %s (%s).", mealType, date, rec.MealName, formatNutrition(rec.Nutrition)))
		return nil
	case "request":
		appendBlock(&state.AdjustmentResult,
			"I'd be happy to change that meal, but I need a bit more detail about what you'd like instead.")
		return nil
	}

	if decision.Meal == nil {
		appendBlock(&state.AdjustmentResult,
			"I couldn't work out how to apply that change, so your plan is untouched. Could you rephrase it?")
		return nil
	}

	updated := applyDecision(rec, decision)
	if err := h.store.ReplaceMealRecord(ctx, updated); err != nil {
		slog.Error("MEAL_ADJUSTMENT: Write failed", "detail_id", rec.DetailID, "error", err)
		msg := "Something went wrong saving the change, so your plan is untouched. Please try again."
		if errors.Is(err, store.ErrVersionConflict) {
			msg = "That meal changed while I was updating it, so I stopped without saving. Ask me again and I'll work from the latest version."
		}
		appendBlock(&state.AdjustmentResult, msg)
		return nil
	}

	summary := fmt.Sprintf("Done! Your %s on %s is now %s (%s).",
		mealType, date, updated.MealName, formatNutrition(updated.Nutrition))

	totals, err := h.recomputeDay(ctx, rec.DailyMealID)
	if err != nil {
		slog.Warn("MEAL_ADJUSTMENT: Daily total recompute failed", "daily_meal_id", rec.DailyMealID, "error", err)
	} else {
		summary += fmt.Sprintf("\nNew daily total: %s.", formatNutrition(totals))
		state.MonitoringWarnings = append(state.MonitoringWarnings, monitor.Check(state.Profile, totals)...)
	}
	appendBlock(&state.AdjustmentResult, summary)
	return nil
}

// classify asks the model what the instruction means for this meal. A reply
// that fails to parse, or carries an unknown intent, reads as not-ok.
func (h *MealAdjustmentHandler) classify(ctx context.Context, rec store.MealRecord, instruction string) (adjustmentDecision, bool) {
	mealJSON, err := json.Marshal(adjustmentMeal{
		MealName:    rec.MealName,
		Ingredients: rec.Ingredients,
		Nutrition:   rec.Nutrition,
		Recipe:      &rec.Recipe,
	})
	if err != nil {
		return adjustmentDecision{}, false
	}

	reply, err := h.gateway.Complete(ctx, []model.Message{
		model.System(adjustmentSystemPrompt),
		model.User(fmt.Sprintf("Meal:\n%s\n\nInstruction: %s", mealJSON, instruction)),
	})
	if err != nil {
		slog.Error("MEAL_ADJUSTMENT: Classification failed", "error", err)
		return adjustmentDecision{}, false
	}

	var decision adjustmentDecision
	if !extractJSONObject(reply.Content, &decision) {
		return adjustmentDecision{}, false
	}
	switch decision.Intent {
	case "report", "request", "append", "remove", "replace":
		return decision, true
	}
	return adjustmentDecision{}, false
}

// applyDecision builds the replacement record. Append merges the new items
// into the existing meal; remove and replace take the model's meal wholesale.
// DetailID, DailyMealID and Version always carry over from the loaded record
// so the compare-and-swap write targets what was read.
func applyDecision(rec store.MealRecord, decision adjustmentDecision) store.MealRecord {
	updated := rec
	meal := decision.Meal

	if decision.Intent == "append" {
		updated.Ingredients = append(append([]store.Ingredient{}, rec.Ingredients...), meal.Ingredients...)
		updated.Nutrition = rec.Nutrition.Add(meal.Nutrition).Round()
		if meal.MealName != "" {
			updated.MealName = rec.MealName + " with " + meal.MealName
		}
		return updated
	}

	updated.MealName = meal.MealName
	updated.Ingredients = meal.Ingredients
	updated.Nutrition = meal.Nutrition.Round()
	if meal.Recipe != nil {
		updated.Recipe = *meal.Recipe
	}
	return updated
}

func (h *MealAdjustmentHandler) recomputeDay(ctx context.Context, dailyMealID string) (store.Nutrition, error) {
	records, err := h.store.GetDayRecords(ctx, dailyMealID)
	if err != nil {
		return store.Nutrition{}, err
	}
	var totals store.Nutrition
	for _, r := range records {
		totals = totals.Add(r.Nutrition)
	}
	totals = totals.Round()
	if err := h.store.SetDailyNutrition(ctx, dailyMealID, totals); err != nil {
		return store.Nutrition{}, err
	}
	return totals, nil
}
