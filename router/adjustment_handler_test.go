package router

import (
	"context"
	"testing"
	"time"

	"mealmind/model/mock"
	"mealmind/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAdjustmentFixture(t *testing.T, reply string) (*MealAdjustmentHandler, *store.Memory, *ConversationState) {
	t.Helper()
	mem := store.NewMemory()
	seedLunch(t, mem, "1", "2026-08-25")

	h := NewMealAdjustmentHandler(mock.NewClient(mock.Text(reply)), mem)
	h.now = func() time.Time { return time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC) }

	state := &ConversationState{
		UserID:  "1",
		Profile: store.Profile{UserID: "1", DailyCalories: 2000, DailyProtein: 100},
	}
	return h, mem, state
}

func adjStep(params map[string]string) Step {
	return Step{Action: ActionMealAdjustment, Params: params}
}

func TestAdjustmentReplaceIntent(t *testing.T) {
	h, mem, state := newAdjustmentFixture(t, `{
		"intent": "replace",
		"meal": {
			"meal_name": "Tofu Stir Fry",
			"ingredients_with_quantities": [{"ingredient": "tofu", "quantity": "200", "unit": "g"}],
			"nutrition": {"calories": 420, "protein_g": 32, "carbohydrates_g": 30, "fat_g": 18, "fiber_g": 4}
		}
	}`)

	err := h.Handle(context.Background(), adjStep(map[string]string{
		"date": "2026-08-25", "meal_type": "lunch", "instruction": "replace my lunch with a tofu stir fry",
	}), state)
	require.NoError(t, err)

	assert.Contains(t, state.AdjustmentResult, "Done!")
	assert.Contains(t, state.AdjustmentResult, "Tofu Stir Fry")
	assert.Contains(t, state.AdjustmentResult, "New daily total")

	rec, err := mem.GetMealRecord(context.Background(), "1", "2026-08-25", "lunch")
	require.NoError(t, err)
	assert.Equal(t, "Tofu Stir Fry", rec.MealName)
	assert.Equal(t, 2, rec.Version)
	require.Len(t, rec.Ingredients, 1)
}

func TestAdjustmentReportIntentWritesNothing(t *testing.T) {
	h, mem, state := newAdjustmentFixture(t, `{"intent": "report", "meal": null}`)

	err := h.Handle(context.Background(), adjStep(map[string]string{
		"date": "2026-08-25", "meal_type": "lunch", "instruction": "I already ate my lunch",
	}), state)
	require.NoError(t, err)

	assert.Contains(t, state.AdjustmentResult, "Noted.")
	rec, err := mem.GetMealRecord(context.Background(), "1", "2026-08-25", "lunch")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Version, "report must not write")
}

func TestAdjustmentVagueRequestAsksForDetail(t *testing.T) {
	h, mem, state := newAdjustmentFixture(t, `{"intent": "request", "meal": null}`)

	err := h.Handle(context.Background(), adjStep(map[string]string{
		"date": "2026-08-25", "meal_type": "lunch", "instruction": "make it better",
	}), state)
	require.NoError(t, err)

	assert.Contains(t, state.AdjustmentResult, "more detail")
	rec, _ := mem.GetMealRecord(context.Background(), "1", "2026-08-25", "lunch")
	assert.Equal(t, 1, rec.Version)
}

func TestAdjustmentUnparseableClassification(t *testing.T) {
	h, mem, state := newAdjustmentFixture(t, "Sure, I'll update that for you!")

	err := h.Handle(context.Background(), adjStep(map[string]string{
		"date": "2026-08-25", "meal_type": "lunch", "instruction": "swap rice for quinoa",
	}), state)
	require.NoError(t, err)

	assert.Contains(t, state.AdjustmentResult, "untouched")
	rec, _ := mem.GetMealRecord(context.Background(), "1", "2026-08-25", "lunch")
	assert.Equal(t, 1, rec.Version)
}

func TestAdjustmentMissingMealType(t *testing.T) {
	h, _, state := newAdjustmentFixture(t, `{"intent": "replace", "meal": null}`)

	err := h.Handle(context.Background(), adjStep(map[string]string{
		"date": "2026-08-25", "instruction": "add an egg",
	}), state)
	require.NoError(t, err)

	assert.Contains(t, state.AdjustmentResult, "Which meal should I update?")
}

func TestResolveDate(t *testing.T) {
	now := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC) // a Tuesday

	tests := []struct {
		in   string
		want string
	}{
		{"", "2026-08-25"},
		{"today", "2026-08-25"},
		{"Tomorrow", "2026-08-26"},
		{"yesterday", "2026-08-24"},
		{"2026-09-01", "2026-09-01"},
		{"friday", "2026-08-28"},
		{"tuesday", "2026-08-25"},
		{"someday", "2026-08-25"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveDate(now, tt.in))
		})
	}
}

func TestNormalizeMealType(t *testing.T) {
	assert.Equal(t, "snacks", normalizeMealType("snack"))
	assert.Equal(t, "lunch", normalizeMealType(" Lunch "))
	assert.Equal(t, "", normalizeMealType("brunch"))
}
