package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedDay(t *testing.T, m *Memory) (lunchID string) {
	t.Helper()
	m.SeedMeal("1", "2026-08-25", "Tuesday", "breakfast", MealRecord{
		MealName:  "Oatmeal",
		Nutrition: Nutrition{Calories: 350, ProteinG: 12, CarbohydratesG: 60, FatG: 6, FiberG: 8},
	})
	return m.SeedMeal("1", "2026-08-25", "Tuesday", "lunch", MealRecord{
		MealName:  "Quinoa Bowl",
		Nutrition: Nutrition{Calories: 500, ProteinG: 30, CarbohydratesG: 50, FatG: 15, FiberG: 5},
	})
}

func TestMemoryGetMealsByCriteria(t *testing.T) {
	m := NewMemory()
	seedDay(t, m)
	ctx := context.Background()

	all, err := m.GetMealsByCriteria(ctx, "1", "", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	lunches, err := m.GetMealsByCriteria(ctx, "1", "2026-08-25", "lunch")
	require.NoError(t, err)
	require.Len(t, lunches, 1)
	assert.Equal(t, "Quinoa Bowl", lunches[0].MealName)
	assert.Equal(t, "Tuesday", lunches[0].DayName)

	none, err := m.GetMealsByCriteria(ctx, "1", "2026-08-26", "")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryGetMealRecordNotFound(t *testing.T) {
	m := NewMemory()
	seedDay(t, m)

	_, err := m.GetMealRecord(context.Background(), "1", "2026-08-25", "dinner")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = m.GetMealRecord(context.Background(), "1", "2026-08-26", "lunch")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryReplaceMealRecordCAS(t *testing.T) {
	m := NewMemory()
	seedDay(t, m)
	ctx := context.Background()

	rec, err := m.GetMealRecord(ctx, "1", "2026-08-25", "lunch")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Version)

	rec.MealName = "Quinoa Bowl with Egg"
	rec.Nutrition.Calories = 578
	require.NoError(t, m.ReplaceMealRecord(ctx, rec))

	// The first writer bumped the version; a second write from the same
	// read must lose.
	rec.MealName = "Stale Write"
	err = m.ReplaceMealRecord(ctx, rec)
	assert.ErrorIs(t, err, ErrVersionConflict)

	got, err := m.GetMealRecord(ctx, "1", "2026-08-25", "lunch")
	require.NoError(t, err)
	assert.Equal(t, "Quinoa Bowl with Egg", got.MealName)
	assert.Equal(t, 2, got.Version)
}

func TestMemoryDayRecordsAndTotals(t *testing.T) {
	m := NewMemory()
	lunchID := seedDay(t, m)
	ctx := context.Background()

	rec, err := m.GetMealRecord(ctx, "1", "2026-08-25", "lunch")
	require.NoError(t, err)
	assert.Equal(t, lunchID, rec.DetailID)

	records, err := m.GetDayRecords(ctx, rec.DailyMealID)
	require.NoError(t, err)
	require.Len(t, records, 2)

	var totals Nutrition
	for _, r := range records {
		totals = totals.Add(r.Nutrition)
	}
	assert.InDelta(t, 850, totals.Calories, 0.01)

	require.NoError(t, m.SetDailyNutrition(ctx, rec.DailyMealID, totals.Round()))
	assert.InDelta(t, 850, m.DailyNutrition(rec.DailyMealID).Calories, 0.01)
}

func TestMemoryFeedback(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	items := []FeedbackItem{
		{Type: "dislike", Entity: "cilantro", Sentiment: "negative"},
		{Type: "cuisine", Entity: "thai", Sentiment: "positive"},
	}
	require.NoError(t, m.SaveFeedback(ctx, "1", items))
	assert.Equal(t, items, m.Feedback("1"))
}

func TestNutritionRound(t *testing.T) {
	n := Nutrition{Calories: 577.96, ProteinG: 36.04, CarbohydratesG: 50.55, FatG: 19.999}
	r := n.Round()
	assert.InDelta(t, 578.0, r.Calories, 0.0001)
	assert.InDelta(t, 36.0, r.ProteinG, 0.0001)
	assert.InDelta(t, 50.6, r.CarbohydratesG, 0.0001)
	assert.InDelta(t, 20.0, r.FatG, 0.0001)
}
