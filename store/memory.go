package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-memory Gateway used by tests and offline runs. A single
// mutex serializes the read-modify-write of daily totals, which is the
// in-memory equivalent of the Postgres version CAS.
type Memory struct {
	mu sync.Mutex

	Profiles    map[string]Profile
	Prefs       map[string]Preferences
	Inventories map[string]string
	PlanSummary map[string]string

	// meals is keyed by userID -> date -> mealType.
	meals    map[string]map[string]map[string]*MealRecord
	dayIDs   map[string]string // userID|date -> dailyMealID
	dayMeta  map[string]dayMeta
	totals   map[string]Nutrition
	feedback map[string][]FeedbackItem
}

type dayMeta struct {
	userID  string
	date    string
	dayName string
}

func NewMemory() *Memory {
	return &Memory{
		Profiles:    make(map[string]Profile),
		Prefs:       make(map[string]Preferences),
		Inventories: make(map[string]string),
		PlanSummary: make(map[string]string),
		meals:       make(map[string]map[string]map[string]*MealRecord),
		dayIDs:      make(map[string]string),
		dayMeta:     make(map[string]dayMeta),
		totals:      make(map[string]Nutrition),
		feedback:    make(map[string][]FeedbackItem),
	}
}

// SeedMeal installs a meal record for a user/date/type, creating the day on
// first use, and returns the record's detail id.
func (m *Memory) SeedMeal(userID, date, dayName, mealType string, rec MealRecord) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	dayKey := userID + "|" + date
	dailyMealID, ok := m.dayIDs[dayKey]
	if !ok {
		dailyMealID = uuid.NewString()
		m.dayIDs[dayKey] = dailyMealID
		m.dayMeta[dailyMealID] = dayMeta{userID: userID, date: date, dayName: dayName}
	}

	rec.DetailID = uuid.NewString()
	rec.DailyMealID = dailyMealID
	rec.MealType = mealType
	rec.Version = 1

	if m.meals[userID] == nil {
		m.meals[userID] = make(map[string]map[string]*MealRecord)
	}
	if m.meals[userID][date] == nil {
		m.meals[userID][date] = make(map[string]*MealRecord)
	}
	m.meals[userID][date][mealType] = &rec
	return rec.DetailID
}

func (m *Memory) GetUserProfile(ctx context.Context, userID string) (Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.Profiles[userID]
	if !ok {
		return Profile{}, fmt.Errorf("profile for user %s: %w", userID, ErrNotFound)
	}
	return p, nil
}

func (m *Memory) GetUserPreferences(ctx context.Context, userID string) (Preferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Prefs[userID], nil
}

func (m *Memory) GetInventorySummary(ctx context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Inventories[userID], nil
}

func (m *Memory) GetActiveMealPlanSummary(ctx context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.PlanSummary[userID], nil
}

func (m *Memory) GetMealsByCriteria(ctx context.Context, userID, date, mealType string) ([]MealSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []MealSummary
	for d, byType := range m.meals[userID] {
		if date != "" && d != date {
			continue
		}
		for mt, rec := range byType {
			if mealType != "" && mt != mealType {
				continue
			}
			meta := m.dayMeta[rec.DailyMealID]
			out = append(out, MealSummary{
				MealName:    rec.MealName,
				MealType:    rec.MealType,
				DayName:     meta.dayName,
				Date:        d,
				Nutrition:   rec.Nutrition,
				Ingredients: rec.Ingredients,
			})
		}
	}
	return out, nil
}

func (m *Memory) GetMealRecord(ctx context.Context, userID, date, mealType string) (MealRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byType, ok := m.meals[userID][date]
	if !ok {
		return MealRecord{}, fmt.Errorf("no meal plan found for %s: %w", date, ErrNotFound)
	}
	rec, ok := byType[mealType]
	if !ok {
		return MealRecord{}, fmt.Errorf("no %s found for %s: %w", mealType, date, ErrNotFound)
	}
	return *rec, nil
}

func (m *Memory) ReplaceMealRecord(ctx context.Context, rec MealRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	meta, ok := m.dayMeta[rec.DailyMealID]
	if !ok {
		return fmt.Errorf("daily meal %s: %w", rec.DailyMealID, ErrNotFound)
	}
	cur := m.meals[meta.userID][meta.date][rec.MealType]
	if cur == nil || cur.DetailID != rec.DetailID {
		return fmt.Errorf("meal record %s: %w", rec.DetailID, ErrNotFound)
	}
	if cur.Version != rec.Version {
		return ErrVersionConflict
	}
	rec.Version = cur.Version + 1
	m.meals[meta.userID][meta.date][rec.MealType] = &rec
	return nil
}

func (m *Memory) GetDayRecords(ctx context.Context, dailyMealID string) ([]MealRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	meta, ok := m.dayMeta[dailyMealID]
	if !ok {
		return nil, fmt.Errorf("daily meal %s: %w", dailyMealID, ErrNotFound)
	}
	var out []MealRecord
	for _, rec := range m.meals[meta.userID][meta.date] {
		out = append(out, *rec)
	}
	return out, nil
}

func (m *Memory) SetDailyNutrition(ctx context.Context, dailyMealID string, totals Nutrition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totals[dailyMealID] = totals
	return nil
}

// DailyNutrition reads back a day's stored totals (test helper).
func (m *Memory) DailyNutrition(dailyMealID string) Nutrition {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totals[dailyMealID]
}

func (m *Memory) SaveFeedback(ctx context.Context, userID string, items []FeedbackItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feedback[userID] = append(m.feedback[userID], items...)
	return nil
}

// Feedback reads back saved feedback items (test helper).
func (m *Memory) Feedback(userID string) []FeedbackItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.feedback[userID]
}
