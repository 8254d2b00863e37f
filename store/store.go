// Package store is the persistence gateway for the meal-plan, inventory and
// feedback tables. The router only depends on the Gateway interface; the
// Postgres implementation lives in postgres.go and an in-memory one for tests
// in memory.go.
package store

import (
	"context"
	"errors"
	"math"
)

var (
	// ErrNotFound reports a missing row (no plan for the date, no meal of that
	// type, unknown user). Rendered verbatim to the user by the adjustment
	// handler, never retried.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict reports a lost compare-and-swap on a meal record.
	// Concurrent adjustments to the same day race on the read-modify-write of
	// daily totals; the version column makes the loser fail instead of
	// silently overwriting.
	ErrVersionConflict = errors.New("meal record version conflict")
)

// Profile holds the per-user context loaded once per turn.
type Profile struct {
	UserID              string  `json:"user_id"`
	Username            string  `json:"username"`
	HealthGoal          string  `json:"health_goal"`
	ActivityLevel       string  `json:"activity_level"`
	DietaryRestrictions string  `json:"dietary_restrictions"`
	FoodAllergies       string  `json:"food_allergies"`
	PreferredCuisines   string  `json:"preferred_cuisines"`
	DailyCalories       float64 `json:"daily_calories"`
	DailyProtein        float64 `json:"daily_protein"`
	DailyCarbohydrate   float64 `json:"daily_carbohydrate"`
	DailyFat            float64 `json:"daily_fat"`
	DailyFiber          float64 `json:"daily_fiber"`
}

// Nutrition is a macro breakdown, used both per meal and as a daily total.
type Nutrition struct {
	Calories       float64 `json:"calories"`
	ProteinG       float64 `json:"protein_g"`
	CarbohydratesG float64 `json:"carbohydrates_g"`
	FatG           float64 `json:"fat_g"`
	FiberG         float64 `json:"fiber_g"`
}

// Add returns the element-wise sum of two nutrition records.
func (n Nutrition) Add(other Nutrition) Nutrition {
	return Nutrition{
		Calories:       n.Calories + other.Calories,
		ProteinG:       n.ProteinG + other.ProteinG,
		CarbohydratesG: n.CarbohydratesG + other.CarbohydratesG,
		FatG:           n.FatG + other.FatG,
		FiberG:         n.FiberG + other.FiberG,
	}
}

// Round returns the record with every field rounded to one decimal place.
func (n Nutrition) Round() Nutrition {
	r := func(v float64) float64 { return math.Round(v*10) / 10 }
	return Nutrition{
		Calories:       r(n.Calories),
		ProteinG:       r(n.ProteinG),
		CarbohydratesG: r(n.CarbohydratesG),
		FatG:           r(n.FatG),
		FiberG:         r(n.FiberG),
	}
}

// Ingredient is one entry of a meal's ingredient list.
type Ingredient struct {
	Ingredient string `json:"ingredient"`
	Quantity   string `json:"quantity"`
	Unit       string `json:"unit"`
}

// Recipe holds preparation details for a meal record.
type Recipe struct {
	Instructions    []string `json:"instructions"`
	PreparationTime int      `json:"preparation_time"`
	CookingTime     int      `json:"cooking_time"`
	DifficultyLevel string   `json:"difficulty_level"`
}

// MealRecord is one meal slot (breakfast/lunch/dinner/snacks) of one day.
type MealRecord struct {
	DetailID    string       `json:"detail_id"`
	DailyMealID string       `json:"daily_meal_id"`
	MealType    string       `json:"meal_type"`
	MealName    string       `json:"meal_name"`
	Ingredients []Ingredient `json:"ingredients_with_quantities"`
	Nutrition   Nutrition    `json:"nutrition"`
	Recipe      Recipe       `json:"recipe"`
	Version     int          `json:"version"`
}

// MealSummary is the read-only shape the retrieval handler formats for users.
type MealSummary struct {
	MealName    string       `json:"meal_name"`
	MealType    string       `json:"meal_type"`
	DayName     string       `json:"day_name"`
	Date        string       `json:"meal_date"`
	Nutrition   Nutrition    `json:"nutrition"`
	Ingredients []Ingredient `json:"ingredients_with_quantities"`
}

// Preferences is the learned long-term memory for a user.
type Preferences struct {
	Likes    []string `json:"likes"`
	Dislikes []string `json:"dislikes"`
	Cuisines []string `json:"cuisines"`
	Dietary  []string `json:"dietary"`
}

// FeedbackItem is one extracted preference signal from a user utterance.
type FeedbackItem struct {
	Type      string `json:"type"`      // like, dislike, cuisine, dietary
	Entity    string `json:"entity"`    // e.g. "paneer", "thai"
	Sentiment string `json:"sentiment"` // positive or negative
}

// Gateway is the set of store operations the router core depends on. Dates
// are YYYY-MM-DD strings throughout.
type Gateway interface {
	GetUserProfile(ctx context.Context, userID string) (Profile, error)
	GetUserPreferences(ctx context.Context, userID string) (Preferences, error)
	GetInventorySummary(ctx context.Context, userID string) (string, error)
	GetActiveMealPlanSummary(ctx context.Context, userID string) (string, error)

	// GetMealsByCriteria returns summaries matching the optional date and meal
	// type filters (empty string means "any").
	GetMealsByCriteria(ctx context.Context, userID, date, mealType string) ([]MealSummary, error)

	GetMealRecord(ctx context.Context, userID, date, mealType string) (MealRecord, error)

	// ReplaceMealRecord writes a full replacement record. The write is a
	// compare-and-swap on rec.Version and fails with ErrVersionConflict when
	// the record changed underneath the caller.
	ReplaceMealRecord(ctx context.Context, rec MealRecord) error

	// GetDayRecords returns every meal record belonging to the day identified
	// by dailyMealID, for recomputing daily totals.
	GetDayRecords(ctx context.Context, dailyMealID string) ([]MealRecord, error)

	SetDailyNutrition(ctx context.Context, dailyMealID string, totals Nutrition) error

	SaveFeedback(ctx context.Context, userID string, items []FeedbackItem) error
}
