package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres implements Gateway on top of a pgx connection pool. Meal
// ingredient lists, recipes and nutrition are stored as JSONB documents, the
// way the original schema keeps them.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) GetUserProfile(ctx context.Context, userID string) (Profile, error) {
	const q = `
		SELECT user_id, username, health_goal, activity_level,
		       dietary_restrictions, food_allergies, preferred_cuisines,
		       daily_calories, daily_protein, daily_carbohydrate, daily_fat, daily_fiber
		FROM users
		WHERE user_id = $1`

	var pr Profile
	err := p.pool.QueryRow(ctx, q, userID).Scan(
		&pr.UserID, &pr.Username, &pr.HealthGoal, &pr.ActivityLevel,
		&pr.DietaryRestrictions, &pr.FoodAllergies, &pr.PreferredCuisines,
		&pr.DailyCalories, &pr.DailyProtein, &pr.DailyCarbohydrate, &pr.DailyFat, &pr.DailyFiber,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, fmt.Errorf("profile for user %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return Profile{}, fmt.Errorf("get user profile: %w", err)
	}
	return pr, nil
}

func (p *Postgres) GetUserPreferences(ctx context.Context, userID string) (Preferences, error) {
	const q = `
		SELECT feedback_type, entity
		FROM user_feedback
		WHERE user_id = $1
		ORDER BY created_at`

	rows, err := p.pool.Query(ctx, q, userID)
	if err != nil {
		return Preferences{}, fmt.Errorf("get user preferences: %w", err)
	}
	defer rows.Close()

	var prefs Preferences
	for rows.Next() {
		var kind, entity string
		if err := rows.Scan(&kind, &entity); err != nil {
			return Preferences{}, fmt.Errorf("scan preference: %w", err)
		}
		switch kind {
		case "like":
			prefs.Likes = append(prefs.Likes, entity)
		case "dislike":
			prefs.Dislikes = append(prefs.Dislikes, entity)
		case "cuisine":
			prefs.Cuisines = append(prefs.Cuisines, entity)
		case "dietary":
			prefs.Dietary = append(prefs.Dietary, entity)
		}
	}
	return prefs, rows.Err()
}

func (p *Postgres) GetInventorySummary(ctx context.Context, userID string) (string, error) {
	const q = `
		SELECT item_name, quantity, unit, COALESCE(category, 'Other')
		FROM user_inventory
		WHERE user_id = $1
		ORDER BY category, item_name`

	rows, err := p.pool.Query(ctx, q, userID)
	if err != nil {
		return "", fmt.Errorf("get inventory: %w", err)
	}
	defer rows.Close()

	var b strings.Builder
	for rows.Next() {
		var name, unit, category string
		var qty float64
		if err := rows.Scan(&name, &qty, &unit, &category); err != nil {
			return "", fmt.Errorf("scan inventory item: %w", err)
		}
		fmt.Fprintf(&b, "- %s: %.1f %s (%s)\n", name, qty, unit, category)
	}
	return b.String(), rows.Err()
}

func (p *Postgres) GetActiveMealPlanSummary(ctx context.Context, userID string) (string, error) {
	const q = `
		SELECT plan_name, start_date::text, end_date::text, week_summary
		FROM meal_plans
		WHERE user_id = $1 AND status = 'ACTIVE'
		ORDER BY start_date DESC
		LIMIT 1`

	var name, start, end string
	var summary []byte
	err := p.pool.QueryRow(ctx, q, userID).Scan(&name, &start, &end, &summary)
	if errors.Is(err, pgx.ErrNoRows) {
		return "No active meal plan.", nil
	}
	if err != nil {
		return "", fmt.Errorf("get active meal plan: %w", err)
	}

	var week map[string]any
	_ = json.Unmarshal(summary, &week)
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s to %s)\n", name, start, end)
	if v, ok := week["average_daily_calories"]; ok {
		fmt.Fprintf(&b, "Average daily calories: %v\n", v)
	}
	return b.String(), nil
}

func (p *Postgres) GetMealsByCriteria(ctx context.Context, userID, date, mealType string) ([]MealSummary, error) {
	q := `
		SELECT md.meal_name, md.meal_type, dm.day_name, dm.meal_date::text,
		       md.nutrition, md.ingredients_with_quantities
		FROM meal_details md
		JOIN daily_meals dm ON dm.meal_id = md.meal_id
		JOIN meal_plans mp ON mp.plan_id = dm.plan_id
		WHERE dm.user_id = $1 AND mp.status = 'ACTIVE'`
	args := []any{userID}
	if date != "" {
		args = append(args, date)
		q += fmt.Sprintf(" AND dm.meal_date = $%d", len(args))
	}
	if mealType != "" {
		args = append(args, mealType)
		q += fmt.Sprintf(" AND md.meal_type = $%d", len(args))
	}
	q += " ORDER BY dm.meal_date, md.meal_type"

	rows, err := p.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("get meals by criteria: %w", err)
	}
	defer rows.Close()

	var out []MealSummary
	for rows.Next() {
		var s MealSummary
		var nutrition, ingredients []byte
		if err := rows.Scan(&s.MealName, &s.MealType, &s.DayName, &s.Date, &nutrition, &ingredients); err != nil {
			return nil, fmt.Errorf("scan meal summary: %w", err)
		}
		_ = json.Unmarshal(nutrition, &s.Nutrition)
		_ = json.Unmarshal(ingredients, &s.Ingredients)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) GetMealRecord(ctx context.Context, userID, date, mealType string) (MealRecord, error) {
	const q = `
		SELECT md.detail_id, md.meal_id, md.meal_type, md.meal_name,
		       md.ingredients_with_quantities, md.nutrition, md.recipe, md.version
		FROM meal_details md
		JOIN daily_meals dm ON dm.meal_id = md.meal_id
		WHERE dm.user_id = $1 AND dm.meal_date = $2 AND md.meal_type = $3`

	var rec MealRecord
	var ingredients, nutrition, recipe []byte
	err := p.pool.QueryRow(ctx, q, userID, date, mealType).Scan(
		&rec.DetailID, &rec.DailyMealID, &rec.MealType, &rec.MealName,
		&ingredients, &nutrition, &recipe, &rec.Version,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return MealRecord{}, fmt.Errorf("no %s found for %s: %w", mealType, date, ErrNotFound)
	}
	if err != nil {
		return MealRecord{}, fmt.Errorf("get meal record: %w", err)
	}
	_ = json.Unmarshal(ingredients, &rec.Ingredients)
	_ = json.Unmarshal(nutrition, &rec.Nutrition)
	_ = json.Unmarshal(recipe, &rec.Recipe)
	return rec, nil
}

func (p *Postgres) ReplaceMealRecord(ctx context.Context, rec MealRecord) error {
	ingredients, err := json.Marshal(rec.Ingredients)
	if err != nil {
		return fmt.Errorf("marshal ingredients: %w", err)
	}
	nutrition, err := json.Marshal(rec.Nutrition)
	if err != nil {
		return fmt.Errorf("marshal nutrition: %w", err)
	}
	recipe, err := json.Marshal(rec.Recipe)
	if err != nil {
		return fmt.Errorf("marshal recipe: %w", err)
	}

	const q = `
		UPDATE meal_details
		SET meal_name = $2,
		    ingredients_with_quantities = $3,
		    nutrition = $4,
		    recipe = $5,
		    version = version + 1
		WHERE detail_id = $1 AND version = $6`

	tag, err := p.pool.Exec(ctx, q, rec.DetailID, rec.MealName, ingredients, nutrition, recipe, rec.Version)
	if err != nil {
		return fmt.Errorf("replace meal record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a stale version from a missing row.
		var exists bool
		if err := p.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM meal_details WHERE detail_id = $1)`, rec.DetailID).Scan(&exists); err != nil {
			return fmt.Errorf("replace meal record: %w", err)
		}
		if exists {
			return ErrVersionConflict
		}
		return fmt.Errorf("meal record %s: %w", rec.DetailID, ErrNotFound)
	}
	return nil
}

func (p *Postgres) GetDayRecords(ctx context.Context, dailyMealID string) ([]MealRecord, error) {
	const q = `
		SELECT detail_id, meal_id, meal_type, meal_name,
		       ingredients_with_quantities, nutrition, recipe, version
		FROM meal_details
		WHERE meal_id = $1
		ORDER BY meal_type`

	rows, err := p.pool.Query(ctx, q, dailyMealID)
	if err != nil {
		return nil, fmt.Errorf("get day records: %w", err)
	}
	defer rows.Close()

	var out []MealRecord
	for rows.Next() {
		var rec MealRecord
		var ingredients, nutrition, recipe []byte
		if err := rows.Scan(&rec.DetailID, &rec.DailyMealID, &rec.MealType, &rec.MealName,
			&ingredients, &nutrition, &recipe, &rec.Version); err != nil {
			return nil, fmt.Errorf("scan meal record: %w", err)
		}
		_ = json.Unmarshal(ingredients, &rec.Ingredients)
		_ = json.Unmarshal(nutrition, &rec.Nutrition)
		_ = json.Unmarshal(recipe, &rec.Recipe)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (p *Postgres) SetDailyNutrition(ctx context.Context, dailyMealID string, totals Nutrition) error {
	b, err := json.Marshal(totals)
	if err != nil {
		return fmt.Errorf("marshal totals: %w", err)
	}
	tag, err := p.pool.Exec(ctx, `UPDATE daily_meals SET total_nutrition = $2 WHERE meal_id = $1`, dailyMealID, b)
	if err != nil {
		return fmt.Errorf("set daily nutrition: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("daily meal %s: %w", dailyMealID, ErrNotFound)
	}
	return nil
}

func (p *Postgres) SaveFeedback(ctx context.Context, userID string, items []FeedbackItem) error {
	if len(items) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, it := range items {
		batch.Queue(
			`INSERT INTO user_feedback (user_id, feedback_type, entity, sentiment) VALUES ($1, $2, $3, $4)`,
			userID, it.Type, it.Entity, it.Sentiment,
		)
	}
	res := p.pool.SendBatch(ctx, batch)
	defer res.Close()
	for range items {
		if _, err := res.Exec(); err != nil {
			return fmt.Errorf("save feedback: %w", err)
		}
	}
	return nil
}
