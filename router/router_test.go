package router

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"mealmind"
	"mealmind/model/mock"
	"mealmind/retrieval"
	"mealmind/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memCheckpoints is a map-backed CheckpointStore for multi-turn tests. The
// real backends live in the checkpoint package, which this package cannot
// import without a cycle.
type memCheckpoints struct {
	states map[string][]byte
}

func newMemCheckpoints() *memCheckpoints {
	return &memCheckpoints{states: make(map[string][]byte)}
}

func (m *memCheckpoints) Save(ctx context.Context, threadID string, state *ConversationState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	m.states[threadID] = data
	return nil
}

func (m *memCheckpoints) Load(ctx context.Context, threadID string) (*ConversationState, bool, error) {
	data, ok := m.states[threadID]
	if !ok {
		return nil, false, nil
	}
	var state ConversationState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, false, err
	}
	return &state, true, nil
}

func seedLunch(t *testing.T, mem *store.Memory, userID, date string) string {
	t.Helper()
	return mem.SeedMeal(userID, date, "Monday", "lunch", store.MealRecord{
		MealName: "Quinoa Bowl",
		Ingredients: []store.Ingredient{
			{Ingredient: "quinoa", Quantity: "1", Unit: "cup"},
			{Ingredient: "chickpeas", Quantity: "0.5", Unit: "cup"},
		},
		Nutrition: store.Nutrition{Calories: 500, ProteinG: 30, CarbohydratesG: 50, FatG: 15, FiberG: 5},
		Recipe:    store.Recipe{Instructions: []string{"Cook quinoa.", "Add chickpeas."}},
	})
}

func newTestStore(t *testing.T, userID string) (*store.Memory, string) {
	t.Helper()
	mem := store.NewMemory()
	mem.Profiles[userID] = store.Profile{
		UserID:            userID,
		Username:          "sam",
		HealthGoal:        "maintenance",
		ActivityLevel:     "moderate",
		DailyCalories:     2000,
		DailyProtein:      100,
		DailyCarbohydrate: 250,
		DailyFat:          70,
	}
	detailID := seedLunch(t, mem, userID, time.Now().Format("2006-01-02"))
	return mem, detailID
}

func TestRunTurnRetrievalThenEstimation(t *testing.T) {
	mem, _ := newTestStore(t, "1")
	gateway := mock.NewClient(
		mock.Text(`[{"action": "meal_retrieval", "params": {"date": "today", "meal_type": "lunch"}},
		            {"action": "calorie_estimation", "params": {"query": "banana"}}]`),
		mock.Text(`{"tool": "search_foods", "query": "banana"}`),
		mock.Text("A banana has about 105 calories."),
	)
	retriever := retrieval.NewStatic(map[string]string{
		"banana": "Banana: 105 kcal per medium fruit.",
	})

	r := New(Opts{Gateway: gateway, Store: mem, Retriever: retriever})
	got, err := r.RunTurn(context.Background(), mealmind.TurnInput{
		UserID:    "1",
		UserInput: "what's for lunch, and how many calories are in a banana?",
	})
	require.NoError(t, err)

	assert.Contains(t, got, "Quinoa Bowl")
	assert.Contains(t, got, "A banana has about 105 calories.")
	assert.Contains(t, got, confirmAddPrompt)
	assert.Equal(t, 3, gateway.Calls(), "planner must run the model exactly once per turn")
	assert.Equal(t, 1, retriever.Calls("banana"))
}

func TestRunTurnConfirmationThenAdjustment(t *testing.T) {
	mem, detailID := newTestStore(t, "1")
	today := time.Now().Format("2006-01-02")

	eggMeal := `{"intent": "append", "meal": {
		"meal_name": "a boiled egg",
		"ingredients_with_quantities": [{"ingredient": "boiled egg", "quantity": "1", "unit": "piece"}],
		"nutrition": {"calories": 78, "protein_g": 6, "carbohydrates_g": 0.6, "fat_g": 5, "fiber_g": 0}
	}}`

	gateway := mock.NewClient(
		// Turn 1: the model jumps straight to an adjustment; the gate must
		// hold it back because nothing was proposed yet.
		mock.Text(`[{"action": "meal_adjustment", "params": {"date": "today", "meal_type": "lunch", "instruction": "add a boiled egg"}}]`),
		mock.Text("Adding a boiled egg would add about 78 kcal. Would you like me to update your lunch?"),
		// Turn 2: confirmed, so the adjustment goes through.
		mock.Text(`[{"action": "meal_adjustment", "params": {"date": "today", "meal_type": "lunch", "instruction": "add a boiled egg"}}]`),
		mock.Text(eggMeal),
	)

	r := New(Opts{
		Gateway:     gateway,
		Store:       mem,
		Retriever:   retrieval.NewStatic(nil),
		Checkpoints: newMemCheckpoints(),
	})

	turn1, err := r.RunTurn(context.Background(), mealmind.TurnInput{
		UserID: "1", ThreadID: "t1",
		UserInput: "what if I added a boiled egg to my lunch?",
	})
	require.NoError(t, err)
	assert.Contains(t, turn1, "Would you like me to update your lunch?")

	rec, err := mem.GetMealRecord(context.Background(), "1", today, "lunch")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Version, "no write may happen before confirmation")

	turn2, err := r.RunTurn(context.Background(), mealmind.TurnInput{
		UserID: "1", ThreadID: "t1",
		UserInput: "yes, go ahead",
	})
	require.NoError(t, err)
	assert.Contains(t, turn2, "Done!")
	assert.Contains(t, turn2, "New daily total")
	assert.Contains(t, turn2, "Heads up:", "a 578 kcal day against a 2000 kcal target must warn")

	rec, err = mem.GetMealRecord(context.Background(), "1", today, "lunch")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Version)
	assert.Len(t, rec.Ingredients, 3)
	assert.InDelta(t, 578, rec.Nutrition.Calories, 0.01)
	assert.InDelta(t, 578, mem.DailyNutrition(rec.DailyMealID).Calories, 0.01)
	assert.Equal(t, detailID, rec.DetailID)
}

func TestRunTurnTwoRetrievalStepsAccumulate(t *testing.T) {
	mem, _ := newTestStore(t, "1")
	today := time.Now().Format("2006-01-02")
	mem.SeedMeal("1", today, "Monday", "breakfast", store.MealRecord{
		MealName:  "Oatmeal",
		Nutrition: store.Nutrition{Calories: 350, ProteinG: 12, CarbohydratesG: 60, FatG: 6, FiberG: 8},
	})
	mem.SeedMeal("1", today, "Monday", "dinner", store.MealRecord{
		MealName:  "Dal Tadka",
		Nutrition: store.Nutrition{Calories: 600, ProteinG: 24, CarbohydratesG: 80, FatG: 18, FiberG: 12},
	})

	gateway := mock.NewClient(
		mock.Text(`[{"action": "meal_retrieval", "params": {"date": "today", "meal_type": "breakfast"}},
		            {"action": "meal_retrieval", "params": {"date": "today", "meal_type": "dinner"}}]`),
	)

	r := New(Opts{Gateway: gateway, Store: mem, Retriever: retrieval.NewStatic(nil)})
	got, err := r.RunTurn(context.Background(), mealmind.TurnInput{
		UserID:    "1",
		UserInput: "what's for breakfast and dinner today?",
	})
	require.NoError(t, err)

	assert.Contains(t, got, "Oatmeal")
	assert.Contains(t, got, "Dal Tadka", "the second retrieval step must not overwrite the first")
	assert.Equal(t, 1, gateway.Calls(), "retrieval steps never call the model")
}

func TestRunTurnEstimationWithMultipleSearches(t *testing.T) {
	mem, _ := newTestStore(t, "1")
	gateway := mock.NewClient(
		mock.Text(`[{"action": "calorie_estimation", "params": {"query": "banana oat smoothie"}}]`),
		mock.Text(`I'll look both up.
		           {"tool": "search_foods", "query": "banana"}
		           {"tool": "search_foods", "query": "rolled oats"}`),
		mock.Text("A banana oat smoothie has about 280 calories."),
	)
	retriever := retrieval.NewStatic(map[string]string{
		"banana":      "Banana: 105 kcal per medium fruit.",
		"rolled oats": "Rolled oats: 150 kcal per 40g serving.",
	})

	r := New(Opts{Gateway: gateway, Store: mem, Retriever: retriever})
	got, err := r.RunTurn(context.Background(), mealmind.TurnInput{
		UserID:    "1",
		UserInput: "how many calories in a banana oat smoothie?",
	})
	require.NoError(t, err)

	assert.Contains(t, got, "A banana oat smoothie has about 280 calories.")
	assert.Equal(t, 1, retriever.Calls("banana"))
	assert.Equal(t, 1, retriever.Calls("rolled oats"))
	assert.Equal(t, 3, gateway.Calls(), "both searches must run off a single completion")
}

func TestRunTurnHonorsMaxToolIterations(t *testing.T) {
	mem, _ := newTestStore(t, "1")
	dup := `{"tool": "search_foods", "query": "banana"}`
	gateway := mock.NewClient(
		mock.Text(`[{"action": "calorie_estimation", "params": {"query": "banana"}}]`),
		mock.Text(dup),
		mock.Text(dup),
		mock.Text(dup),
		mock.Text(dup),
	)
	retriever := retrieval.NewStatic(map[string]string{
		"banana": "Banana: 105 kcal per medium fruit.",
	})

	r := New(Opts{Gateway: gateway, Store: mem, Retriever: retriever, MaxToolIterations: 2})
	got, err := r.RunTurn(context.Background(), mealmind.TurnInput{
		UserID:    "1",
		UserInput: "how many calories in a banana?",
	})
	require.NoError(t, err)

	// One planner call, one call that parks the search, then exactly two
	// re-entry attempts before the handler settles for what it has.
	assert.Equal(t, 4, gateway.Calls())
	assert.Contains(t, got, "best estimate")
	assert.Contains(t, got, "105 kcal")
	assert.Equal(t, 1, retriever.Calls("banana"))
}

func TestRunTurnRepeatedSearchIsSuppressed(t *testing.T) {
	mem, _ := newTestStore(t, "1")
	gateway := mock.NewClient(
		mock.Text(`[{"action": "calorie_estimation", "params": {"query": "banana smoothie"}}]`),
		// Same query twice in one completion, then again after the result
		// came back: the duplicate paths that used to recurse.
		mock.Text(`{"tool": "search_foods", "query": "banana"}
		           {"tool": "search_foods", "query": "banana"}`),
		mock.Text(`{"tool": "search_foods", "query": "banana"}`),
		mock.Text("A banana smoothie has about 200 calories."),
	)
	retriever := retrieval.NewStatic(map[string]string{
		"banana": "Banana: 105 kcal per medium fruit.",
	})

	r := New(Opts{Gateway: gateway, Store: mem, Retriever: retriever})
	got, err := r.RunTurn(context.Background(), mealmind.TurnInput{
		UserID:    "1",
		UserInput: "how many calories in a banana smoothie?",
	})
	require.NoError(t, err)

	assert.Contains(t, got, "A banana smoothie has about 200 calories.")
	assert.Equal(t, 1, retriever.Calls("banana"), "the index must be hit once per unique query per turn")
	assert.Equal(t, 4, gateway.Calls())
}

func TestRunTurnClearsPriorTurnResults(t *testing.T) {
	mem, _ := newTestStore(t, "1")
	gateway := mock.NewClient(
		mock.Text(`[{"action": "recipe_lookup", "params": {"query": "paneer tikka"}}]`),
		mock.Text("Paneer Tikka: marinate cubes of paneer in yogurt and spices, then grill."),
		mock.Text(`[{"action": "general_chat", "params": {"query": "hello"}}]`),
		mock.Text("Hello! How can I help with your meals today?"),
	)

	r := New(Opts{
		Gateway:     gateway,
		Store:       mem,
		Retriever:   retrieval.NewStatic(nil),
		Checkpoints: newMemCheckpoints(),
	})

	turn1, err := r.RunTurn(context.Background(), mealmind.TurnInput{
		UserID: "1", ThreadID: "t1", UserInput: "suggest a paneer recipe",
	})
	require.NoError(t, err)
	assert.Contains(t, turn1, "Paneer Tikka")

	turn2, err := r.RunTurn(context.Background(), mealmind.TurnInput{
		UserID: "1", ThreadID: "t1", UserInput: "hello",
	})
	require.NoError(t, err)
	assert.NotContains(t, turn2, "Paneer Tikka", "results from an earlier turn must not leak")
	assert.Contains(t, turn2, "Hello!")
}

func TestRunTurnKeepsHistoryAcrossTurns(t *testing.T) {
	mem, _ := newTestStore(t, "1")
	gateway := mock.NewClient(
		mock.Text(`[{"action": "general_chat", "params": {"query": "hi"}}]`),
		mock.Text("Hi Sam!"),
		mock.Text(`[{"action": "general_chat", "params": {"query": "thanks"}}]`),
		mock.Text("Anytime!"),
	)
	checkpoints := newMemCheckpoints()

	r := New(Opts{Gateway: gateway, Store: mem, Retriever: retrieval.NewStatic(nil), Checkpoints: checkpoints})

	_, err := r.RunTurn(context.Background(), mealmind.TurnInput{UserID: "1", ThreadID: "t9", UserInput: "hi"})
	require.NoError(t, err)
	_, err = r.RunTurn(context.Background(), mealmind.TurnInput{UserID: "1", ThreadID: "t9", UserInput: "thanks"})
	require.NoError(t, err)

	state, found, err := checkpoints.Load(context.Background(), "t9")
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, state.ChatHistory, 4)
	assert.Equal(t, "hi", state.ChatHistory[0].Content)
	assert.Equal(t, "Hi Sam!", state.ChatHistory[1].Content)
	assert.Equal(t, "thanks", state.ChatHistory[2].Content)
}

func TestRunTurnModelFailureDegradesGracefully(t *testing.T) {
	mem, _ := newTestStore(t, "1")
	gateway := mock.NewClient(
		mock.Text(`[{"action": "recipe_lookup", "params": {"query": "dal"}}]`),
		mock.Fail(errors.New("connection refused")),
	)

	r := New(Opts{Gateway: gateway, Store: mem, Retriever: retrieval.NewStatic(nil)})
	got, err := r.RunTurn(context.Background(), mealmind.TurnInput{UserID: "1", UserInput: "suggest a dal recipe"})
	require.NoError(t, err, "an upstream failure is a degraded response, not a turn error")
	assert.Contains(t, got, "trouble reaching")
}

func TestRunTurnAdjustmentOnMissingMeal(t *testing.T) {
	mem := store.NewMemory()
	mem.Profiles["1"] = store.Profile{UserID: "1", Username: "sam"}
	gateway := mock.NewClient(
		mock.Text(`[{"action": "meal_adjustment", "params": {"date": "today", "meal_type": "dinner", "instruction": "add rice"}}]`),
	)

	r := New(Opts{Gateway: gateway, Store: mem, Retriever: retrieval.NewStatic(nil)})

	// History licenses the adjustment so the handler itself gets exercised.
	checkpoints := newMemCheckpoints()
	require.NoError(t, checkpoints.Save(context.Background(), "t1", &ConversationState{
		UserID: "1",
		ChatHistory: []mealmind.ChatMessage{
			{Role: "assistant", Content: "Would you like me to update your dinner?"},
		},
	}))
	r.checkpoints = checkpoints

	got, err := r.RunTurn(context.Background(), mealmind.TurnInput{UserID: "1", ThreadID: "t1", UserInput: "yes please"})
	require.NoError(t, err)
	assert.Contains(t, got, "couldn't find a dinner")
	assert.Contains(t, got, "nothing to update")
}

func TestRunTurnEmptyInput(t *testing.T) {
	mem, _ := newTestStore(t, "1")
	r := New(Opts{Gateway: mock.NewClient(), Store: mem, Retriever: retrieval.NewStatic(nil)})

	_, err := r.RunTurn(context.Background(), mealmind.TurnInput{UserID: "1"})
	assert.Error(t, err)
}
